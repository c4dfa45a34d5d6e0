package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/cassette/config"
	"github.com/jrwynneiii/cassette/decode"
	"github.com/jrwynneiii/cassette/demod"
	"github.com/jrwynneiii/cassette/report"
	"github.com/jrwynneiii/cassette/tape"
	"golang.org/x/sync/errgroup"
)

// toneWindow is how many samples from the start of a recording are used to
// estimate the leader tone.
const toneWindow = 8192

var (
	errNoRecordings = errors.New("no .wav files given")
	errDecodeFailed = errors.New("some recordings failed to decode")
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("cassette"),
		kong.Description("Recover Microtan FAST cassette blocks from WAV recordings"),
		kong.UsageOnError(),
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if cli.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if cli.Profile {
		prof, err := os.Create("./cpu.pprof")
		if err != nil {
			return fmt.Errorf("could not create profile: %w", err)
		}
		defer prof.Close()
		if err := pprof.StartCPUProfile(prof); err != nil {
			return fmt.Errorf("could not start profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	path := cli.Config
	if path == "" {
		path = config.FindConfigPath()
	}
	k, err := config.Load(path)
	if err != nil {
		return err
	}
	conf, err := config.Parse(k)
	if err != nil {
		return err
	}
	if cli.Channel >= 0 {
		conf.Input.Channel = cli.Channel
	}
	log.Debugf("Using config: %+v", conf)

	cmd := strings.Fields(ctx.Command())
	if len(cmd) == 0 {
		return fmt.Errorf("no command given")
	}
	switch cmd[0] {
	case "decode":
		if cli.Decode.Write {
			conf.Decode.WritePayload = true
		}
		if cli.Decode.OutputDir != "" {
			conf.Decode.OutputDir = cli.Decode.OutputDir
		}
		if cli.Decode.Workers > 0 {
			conf.Decode.Workers = cli.Decode.Workers
		}
		return decodeFiles(wavFiles(cli.Decode.Files), conf, out)
	case "analyze":
		return analyzeFiles(wavFiles(cli.Analyze.Files), conf, cli.Analyze.Plot, out)
	default:
		return fmt.Errorf("command not recognized: %s", ctx.Command())
	}
}

func wavFiles(args []string) []string {
	var files []string
	for _, arg := range args {
		if strings.EqualFold(filepath.Ext(arg), ".wav") {
			files = append(files, arg)
			continue
		}
		log.Warnf("Skipping %s: not a .wav file", arg)
	}
	return files
}

// decodeFiles decodes every recording concurrently and prints the reports in
// argument order. A failure in one recording does not stop the others.
func decodeFiles(files []string, conf config.Conf, out io.Writer) error {
	if len(files) == 0 {
		return errNoRecordings
	}

	workers := conf.Decode.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	decoder := decode.New(conf)
	outputs := make([]bytes.Buffer, len(files))
	failed := make([]bool, len(files))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			failed[i] = !decodeFile(decoder, path, conf, &outputs[i])
			return nil
		})
	}
	g.Wait()

	failures := 0
	for i := range files {
		outputs[i].WriteTo(out)
		fmt.Fprintln(out)
		if failed[i] {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("%w: %d of %d", errDecodeFailed, failures, len(files))
	}
	return nil
}

func decodeFile(decoder *decode.Decoder, path string, conf config.Conf, w io.Writer) bool {
	logger := log.WithPrefix(filepath.Base(path))

	rec, err := tape.Open(path, conf.Input.Channel)
	if err != nil {
		fmt.Fprintf(w, "%s doesn't look like a valid .wav file. Skipping.\n%v\n", path, err)
		logger.Errorf("Could not read recording: %v", err)
		return false
	}
	logger.Debugf("[tape] Read %d frames on channel %d: %s", rec.Frames, rec.Channel, rec)
	report.Recording(w, rec)
	fmt.Fprintf(w, "Demodulating %s\n\n", path)

	res, err := decoder.WithLogger(logger).Run(rec.Samples, rec.SampleRate)
	report.Result(w, res, err)
	if err != nil {
		logger.Errorf("Decode failed: %v", err)
		return false
	}
	if verr := res.Block.Verify(); verr != nil {
		logger.Warn(verr.Error())
	}

	if conf.Decode.WritePayload {
		dst := report.PayloadPath(path, conf.Decode.OutputDir)
		if err := report.WritePayload(dst, res.Block); err != nil {
			logger.Errorf("%v", err)
			return false
		}
		fmt.Fprintf(w, "Wrote %d bytes to %s\n", len(res.Block.Payload), dst)
	}
	return res.Block.ChecksumValid
}

func analyzeFiles(files []string, conf config.Conf, plot bool, out io.Writer) error {
	if len(files) == 0 {
		return errNoRecordings
	}

	for _, path := range files {
		rec, err := tape.Open(path, conf.Input.Channel)
		if err != nil {
			fmt.Fprintf(out, "%s doesn't look like a valid .wav file. Skipping.\n%v\n", path, err)
			continue
		}
		report.Recording(out, rec)

		levels := demod.NewThresholder(conf.Demod, rec.SampleRate).Levels(rec.Samples)
		spans := demod.Spans(levels)
		tone := demod.DominantFrequency(rec.Samples[:min(len(rec.Samples), toneWindow)], rec.SampleRate)
		report.Spans(out, path, demod.Analyze(spans), conf.Demod.CycleThreshold, tone)

		if plot {
			dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".spans.png"
			if err := report.PlotSpans(dst, filepath.Base(path), spans); err != nil {
				log.Errorf("Could not plot %s: %v", path, err)
				continue
			}
			fmt.Fprintf(out, "Wrote span histogram to %s\n", dst)
		}
		fmt.Fprintln(out)
	}
	return nil
}
