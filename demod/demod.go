package demod

import (
	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/cassette/config"
	"github.com/racerxdl/segdsp/dsp"
)

type Symbol byte

const (
	Zero Symbol = '0'
	One  Symbol = '1'
)

func (s Symbol) Bit() byte {
	if s == One {
		return 1
	}
	return 0
}

func (s Symbol) String() string {
	return string(rune(s))
}

// Level classifies one sample as high or low.
func Level(sample, threshold int) bool {
	return sample >= threshold
}

// Thresholder turns raw samples into levels, optionally running them
// through a FIR low-pass first to knock down tape hiss.
type Thresholder struct {
	Threshold int
	filter    *dsp.FloatFirFilter
}

func NewThresholder(conf config.DemodConf, sampleRate int) *Thresholder {
	t := Thresholder{Threshold: conf.AmplitudeThreshold}
	if conf.LowPassCutoff > 0 && sampleRate > 0 {
		transition := conf.LowPassTransition
		if transition <= 0 {
			transition = conf.LowPassCutoff / 10
		}
		log.Debugf("[demod] Low-pass prefilter at %.0fHz (transition %.0fHz, rate %d)", conf.LowPassCutoff, transition, sampleRate)
		t.filter = dsp.MakeFloatFirFilter(dsp.MakeLowPass(1, float64(sampleRate), conf.LowPassCutoff, transition))
	}
	return &t
}

func (t *Thresholder) Filtered() bool {
	return t.filter != nil
}

func (t *Thresholder) Levels(samples []int) []bool {
	if t.filter == nil {
		levels := make([]bool, len(samples))
		for i, s := range samples {
			levels[i] = Level(s, t.Threshold)
		}
		return levels
	}

	in := make([]float32, len(samples))
	for i, s := range samples {
		in[i] = float32(s)
	}
	out := t.filter.Work(in)

	levels := make([]bool, len(out))
	threshold := float32(t.Threshold)
	for i, s := range out {
		levels[i] = s >= threshold
	}
	return levels
}

// Demodulator measures how many samples three zero crossings span. A short
// span is the high tone (One), a long one the low tone (Zero).
type Demodulator struct {
	CycleThreshold int
	// Logger defaults to the package logger when nil.
	Logger *log.Logger
}

func New(conf config.DemodConf) *Demodulator {
	return &Demodulator{CycleThreshold: conf.CycleThreshold, Logger: log.Default()}
}

// walk calls emit with the sample count of every three-crossing group. The
// first sample counts as a crossing; after each emission the crossing that
// triggered it starts the next group.
func walk(levels []bool, emit func(span int)) {
	if len(levels) == 0 {
		return
	}
	crossings, samples := 1, 1
	for i := 1; i < len(levels); i++ {
		if levels[i] != levels[i-1] {
			crossings++
		}
		samples++

		if crossings == 3 {
			emit(samples)
			crossings, samples = 1, 1
		}
	}
}

func (d *Demodulator) Classify(span int) Symbol {
	if span < d.CycleThreshold {
		return One
	}
	return Zero
}

func (d *Demodulator) Demodulate(levels []bool) []Symbol {
	var symbols []Symbol
	walk(levels, func(span int) {
		symbols = append(symbols, d.Classify(span))
	})
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debugf("[demod] %d levels -> %d symbols (threshold %d)", len(levels), len(symbols), d.CycleThreshold)
	return symbols
}

// Spans returns the raw sample count of every symbol Demodulate would emit.
func Spans(levels []bool) []int {
	var spans []int
	walk(levels, func(span int) {
		spans = append(spans, span)
	})
	return spans
}
