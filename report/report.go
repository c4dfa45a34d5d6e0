package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jrwynneiii/cassette/datalink"
	"github.com/jrwynneiii/cassette/decode"
	"github.com/jrwynneiii/cassette/demod"
	"github.com/jrwynneiii/cassette/tape"
)

// BytesPerLine is the width of the payload hex dump.
const BytesPerLine = 16

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func Recording(w io.Writer, rec *tape.Recording) {
	fmt.Fprintln(w, titleStyle.Render("Converting "+rec.Path+" to binary waveform"))
	fmt.Fprintf(w, "number of channels = %d\n", rec.NumChans)
	fmt.Fprintf(w, "sampleWidth = %d\n", rec.BitDepth/8)
	fmt.Fprintf(w, "framerate = %d\n", rec.SampleRate)
	fmt.Fprintf(w, "number of frames = %d\n", rec.Frames)
}

func Header(w io.Writer, b *decode.Block) {
	fmt.Fprintf(w, "Name = %s\n", b.Name)
	fmt.Fprintf(w, "Start address = %04X\n", b.StartAddress)
	fmt.Fprintf(w, "End address = %04X\n", b.EndAddress)
	fmt.Fprintf(w, "Number of bytes to read = %d\n\n", b.Length())
}

// HexDump writes data as upper-case hex, BytesPerLine to a line.
func HexDump(w io.Writer, data []byte) {
	for i := 0; i < len(data); i += BytesPerLine {
		end := min(i+BytesPerLine, len(data))
		parts := make([]string, 0, end-i)
		for _, v := range data[i:end] {
			parts = append(parts, fmt.Sprintf("%02X", v))
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
}

// Result prints everything known about one decode, including how it failed.
func Result(w io.Writer, res *decode.Result, err error) {
	b := res.Block
	if b.BytesRead >= decode.HeaderLength {
		Header(w, b)
	} else if b.BytesRead > 0 {
		fmt.Fprintf(w, "Name = %s (partial)\n", b.Name)
	}
	if len(b.Payload) > 0 {
		HexDump(w, b.Payload)
	}

	var perr *datalink.ParityError
	var herr *decode.MalformedHeaderError
	var ierr *decode.IncompleteError
	switch {
	case errors.As(err, &perr):
		fmt.Fprintln(w, failStyle.Render(fmt.Sprintf("Failed! Bad parity at byte %d", perr.ByteIndex)))
		return
	case errors.As(err, &herr):
		fmt.Fprintln(w, failStyle.Render("Failed! "+herr.Error()))
		return
	case errors.As(err, &ierr):
		fmt.Fprintln(w, failStyle.Render("Failed! "+ierr.Error()))
		return
	case err != nil:
		fmt.Fprintln(w, failStyle.Render("Failed! "+err.Error()))
		return
	}

	fmt.Fprintf(w, "\nData checksum = %02X  Recorded checksum = %02X\n", b.Computed, b.Recorded)
	if b.ChecksumValid {
		fmt.Fprintln(w, okStyle.Render("Checksum ok"))
	} else {
		fmt.Fprintln(w, failStyle.Render("Checksum failed!"))
	}
}

func Spans(w io.Writer, path string, stats demod.SpanStats, threshold int, tone float64) {
	fmt.Fprintln(w, titleStyle.Render("Cycle spans in "+path))
	fmt.Fprintf(w, "symbols = %d\n", stats.Count)
	fmt.Fprintf(w, "span min/max = %.0f / %.0f samples\n", stats.Min, stats.Max)
	fmt.Fprintf(w, "span mean = %.2f (stddev %.2f)\n", stats.Mean, stats.StdDev)
	if stats.Suggested > 0 {
		fmt.Fprintf(w, "clusters = %.2f / %.2f\n", stats.LowMean, stats.HighMean)
		fmt.Fprintf(w, "suggested cycle_threshold = %d (configured %d)\n", stats.Suggested, threshold)
	} else {
		fmt.Fprintf(w, "spans do not separate into two tones (configured cycle_threshold %d)\n", threshold)
	}
	if tone > 0 {
		fmt.Fprintf(w, "leader tone = %.0fHz\n", tone)
	}
}

// PayloadPath names the output file after the input, in dir if given.
func PayloadPath(input, dir string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input)) + ".bin"
	if dir == "" {
		return base
	}
	return filepath.Join(dir, filepath.Base(base))
}

func WritePayload(path string, b *decode.Block) error {
	if err := os.WriteFile(path, b.Payload, 0o644); err != nil {
		return fmt.Errorf("could not write payload: %w", err)
	}
	return nil
}
