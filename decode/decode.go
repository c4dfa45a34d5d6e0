package decode

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/cassette/config"
	"github.com/jrwynneiii/cassette/datalink"
	"github.com/jrwynneiii/cassette/demod"
)

// Decoder runs the whole chain from samples to a Block. It only holds
// configuration, so one Decoder can serve many recordings at once.
type Decoder struct {
	conf   config.Conf
	Logger *log.Logger
}

func New(conf config.Conf) *Decoder {
	return &Decoder{conf: conf, Logger: log.Default()}
}

// WithLogger returns a copy of d that logs through l.
func (d *Decoder) WithLogger(l *log.Logger) *Decoder {
	c := *d
	c.Logger = l
	return &c
}

// Result carries the intermediate products of a decode alongside the block,
// for reporting.
type Result struct {
	Block          *Block
	Symbols        int
	Frames         []datalink.Frame
	CycleThreshold int
	Spans          demod.SpanStats
}

func (d *Decoder) Decode(samples []int, sampleRate int) (*Block, error) {
	res, err := d.Run(samples, sampleRate)
	return res.Block, err
}

// Run decodes samples and also returns the per-stage detail. The returned
// Result always has a non-nil Block, partially filled when err is not nil.
func (d *Decoder) Run(samples []int, sampleRate int) (*Result, error) {
	res := &Result{CycleThreshold: d.conf.Demod.CycleThreshold}

	d.Logger.Debugf("[demod] Thresholding %d samples at %d", len(samples), d.conf.Demod.AmplitudeThreshold)
	levels := demod.NewThresholder(d.conf.Demod, sampleRate).Levels(samples)

	if d.conf.Demod.AutoThreshold {
		res.Spans = demod.Analyze(demod.Spans(levels))
		if res.Spans.Suggested > 0 {
			res.CycleThreshold = res.Spans.Suggested
			d.Logger.Infof("Using cycle threshold %d from recording (spans %.1f / %.1f)", res.CycleThreshold, res.Spans.LowMean, res.Spans.HighMean)
		} else {
			d.Logger.Warnf("Could not derive a cycle threshold, keeping %d", res.CycleThreshold)
		}
	}

	dm := demod.New(d.conf.Demod)
	dm.CycleThreshold = res.CycleThreshold
	dm.Logger = d.Logger
	symbols, start := datalink.NormalizeLeader(dm.Demodulate(levels), d.conf.Datalink.LeaderMinBits)
	res.Symbols = len(symbols)
	if start < 0 {
		d.Logger.Debugf("[datalink] No start bit after %d symbols of leader", len(symbols))
	} else {
		d.Logger.Debugf("[datalink] Leader of %d symbols", start)
	}

	asm := NewAssembler()
	asm.OnHeader = func(b *Block) {
		d.Logger.Debugf("[decode] Name = %q, start %04X, end %04X, %d bytes to read", b.Name, b.StartAddress, b.EndAddress, b.Length())
	}

	framer := datalink.NewFramer()
	for _, sym := range symbols {
		frame, ok, err := framer.Step(sym)
		if err != nil {
			d.Logger.Debugf("[datalink] %v", err)
			res.Block = asm.Block()
			return res, fmt.Errorf("framing failed: %w", err)
		}
		if !ok {
			continue
		}
		res.Frames = append(res.Frames, frame)

		done, err := asm.Feed(frame.Value)
		if err != nil {
			res.Block = asm.Block()
			return res, err
		}
		if done {
			break
		}
	}

	res.Block = asm.Block()
	if !asm.Done() && framer.State() != datalink.SeekingStart {
		d.Logger.Debugf("[datalink] Symbols ran out while %s", framer.State())
	}
	if err := asm.Finish(); err != nil {
		return res, err
	}
	d.Logger.Debugf("[decode] Block complete after %d frames, checksum valid: %v", len(res.Frames), res.Block.ChecksumValid)
	return res, nil
}
