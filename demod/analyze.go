package demod

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpanStats summarises the three-crossing spans of a recording.
type SpanStats struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	// LowMean and HighMean are the centres of the short-span (One) and
	// long-span (Zero) clusters.
	LowMean  float64
	HighMean float64
	// Suggested is a cycle threshold halfway between the two clusters. It is
	// zero when the spans do not separate into two groups.
	Suggested int
}

const maxClusterIterations = 32

func Analyze(spans []int) SpanStats {
	var s SpanStats
	if len(spans) == 0 {
		return s
	}

	x := make([]float64, len(spans))
	for i, v := range spans {
		x[i] = float64(v)
	}

	s.Count = len(x)
	s.Min = floats.Min(x)
	s.Max = floats.Max(x)
	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	if s.Count < 2 || s.Min == s.Max {
		return s
	}

	// two-means on a line: seed at the extremes, reassign until stable.
	lo, hi := s.Min, s.Max
	var low, high []float64
	for iter := 0; iter < maxClusterIterations; iter++ {
		low, high = low[:0], high[:0]
		mid := (lo + hi) / 2
		for _, v := range x {
			if v < mid {
				low = append(low, v)
			} else {
				high = append(high, v)
			}
		}
		if len(low) == 0 || len(high) == 0 {
			return s
		}
		nlo, nhi := stat.Mean(low, nil), stat.Mean(high, nil)
		if nlo == lo && nhi == hi {
			break
		}
		lo, hi = nlo, nhi
	}

	s.LowMean, s.HighMean = lo, hi
	s.Suggested = int(math.Ceil((lo + hi) / 2))
	return s
}

// DominantFrequency estimates the strongest tone in samples, in Hz. It is
// meant for a stretch of leader where only one tone is present.
func DominantFrequency(samples []int, sampleRate int) float64 {
	if len(samples) < 2 || sampleRate <= 0 {
		return 0
	}

	in := make([]float64, len(samples))
	for i, v := range samples {
		in[i] = float64(v)
	}
	mean := stat.Mean(in, nil)
	floats.AddConst(-mean, in)

	coeff := fft.FFTReal(in)

	peak, peakIdx := 0.0, 0
	for i := 1; i < len(coeff)/2; i++ {
		if m := cmplx.Abs(coeff[i]); m > peak {
			peak, peakIdx = m, i
		}
	}
	return float64(peakIdx) * float64(sampleRate) / float64(len(coeff))
}
