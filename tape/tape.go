package tape

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ErrUnreadableInput is returned when a recording cannot be opened or parsed.
var ErrUnreadableInput = errors.New("unreadable input")

// Recording is a single channel of PCM samples pulled out of a WAV container.
type Recording struct {
	Path       string
	SampleRate int
	NumChans   int
	BitDepth   int
	Frames     int
	Channel    int
	Samples    []int
}

// Duration returns the playing time of the recording.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(r.Frames) * time.Second / time.Duration(r.SampleRate)
}

func (r *Recording) String() string {
	return fmt.Sprintf("channels=%d sample_width=%d framerate=%d frames=%d", r.NumChans, r.BitDepth/8, r.SampleRate, r.Frames)
}

// Open reads the WAV file at path and keeps only the given channel.
func Open(path string, channel int) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableInput, err)
	}
	defer f.Close()

	rec, err := Read(f, channel)
	if err != nil {
		return nil, err
	}
	rec.Path = path
	return rec, nil
}

// Read decodes a WAV stream and keeps only the given channel.
func Read(r io.ReadSeeker, channel int) (*Recording, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: doesn't look like a valid .wav file", ErrUnreadableInput)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: unsupported audio format %d (only PCM)", ErrUnreadableInput, dec.WavAudioFormat)
	}
	if channel < 0 || channel >= int(dec.NumChans) {
		return nil, fmt.Errorf("%w: channel %d out of range, recording has %d", ErrUnreadableInput, channel, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableInput, err)
	}

	rec := &Recording{
		SampleRate: int(dec.SampleRate),
		NumChans:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Channel:    channel,
		Samples:    selectChannel(buf, channel, centre(int(dec.BitDepth))),
	}
	rec.Frames = len(rec.Samples)
	return rec, nil
}

// centre is the offset that makes samples of the given depth signed. 8-bit
// PCM is stored unsigned around 128; wider depths are already signed.
func centre(bitDepth int) int {
	if bitDepth == 8 {
		return 128
	}
	return 0
}

func selectChannel(buf *audio.IntBuffer, channel, offset int) []int {
	chans := max(buf.Format.NumChannels, 1)
	out := make([]int, 0, len(buf.Data)/chans)
	for i := channel; i < len(buf.Data); i += chans {
		out = append(out, buf.Data[i]-offset)
	}
	return out
}
