// Package testutil builds synthetic cassette signals for tests: blocks,
// framed symbol streams, square-wave samples and WAV files.
package testutil

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jrwynneiii/cassette/datalink"
	"github.com/jrwynneiii/cassette/demod"
)

const (
	// OnePeriod and ZeroPeriod are the cycle lengths, in samples, of the two
	// tones. With the default cycle threshold of 14 they decode as One and
	// Zero.
	OnePeriod  = 10
	ZeroPeriod = 20
	Amplitude  = 8000
	SampleRate = 44100
)

func Checksum(payload []byte) byte {
	var sum byte
	for _, v := range payload {
		sum += v
	}
	return sum
}

// Block lays out a block as it sits on tape: name padded to 8 characters,
// end and start address high byte first, payload, checksum.
func Block(name string, start, end uint16, payload []byte, checksum byte) []byte {
	out := make([]byte, 0, 13+len(payload))
	for i := 0; i < 8; i++ {
		if i < len(name) {
			out = append(out, name[i])
		} else {
			out = append(out, ' ')
		}
	}
	out = append(out, byte(end>>8), byte(end), byte(start>>8), byte(start))
	out = append(out, payload...)
	return append(out, checksum)
}

type Encoder struct {
	Leader   int
	StopBits int
	// BadParity holds 1-based byte indices whose parity bit is flipped.
	BadParity map[int]bool
}

// Frame returns the start bit, the 8 data bits LSB first and the parity bit
// for b.
func Frame(b byte, badParity bool) []demod.Symbol {
	syms := []demod.Symbol{demod.Zero}
	for i := 0; i < 8; i++ {
		syms = append(syms, bitSymbol((b>>i)&1))
	}
	p := 1 ^ datalink.Parity(b)
	if badParity {
		p ^= 1
	}
	return append(syms, bitSymbol(p))
}

func (e Encoder) Symbols(data []byte) []demod.Symbol {
	syms := ones(e.Leader)
	for i, b := range data {
		syms = append(syms, Frame(b, e.BadParity[i+1])...)
		syms = append(syms, ones(e.StopBits)...)
	}
	return syms
}

func ones(n int) []demod.Symbol {
	syms := make([]demod.Symbol, n)
	for i := range syms {
		syms[i] = demod.One
	}
	return syms
}

func bitSymbol(bit byte) demod.Symbol {
	if bit == 1 {
		return demod.One
	}
	return demod.Zero
}

// Square renders each symbol as one square cycle, high half first, and ends
// with a single high sample so the last cycle is closed by a crossing.
func Square(symbols []demod.Symbol) []int {
	var samples []int
	for _, sym := range symbols {
		period := ZeroPeriod
		if sym == demod.One {
			period = OnePeriod
		}
		for i := 0; i < period; i++ {
			if i < period/2 {
				samples = append(samples, Amplitude)
			} else {
				samples = append(samples, -Amplitude)
			}
		}
	}
	return append(samples, Amplitude)
}

// WriteWAV writes 16-bit PCM with one slice of samples per channel. All
// channels must be the same length.
func WriteWAV(path string, sampleRate int, channels ...[]int) error {
	return WriteWAVDepth(path, sampleRate, 16, channels...)
}

// WriteWAVDepth is WriteWAV at the given bit depth. Samples are written as
// given, so 8-bit data must already be unsigned.
func WriteWAVDepth(path string, sampleRate, bitDepth int, channels ...[]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	numChans := len(channels)
	data := make([]int, 0, len(channels[0])*numChans)
	for i := range channels[0] {
		for _, ch := range channels {
			data = append(data, ch[i])
		}
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, numChans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
