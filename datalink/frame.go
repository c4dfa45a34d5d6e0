package datalink

import (
	"fmt"

	"github.com/jrwynneiii/cassette/demod"
)

// FrameBits is the width of one frame on the wire: start, 8 data, parity.
const FrameBits = 10

type State int

const (
	SeekingStart State = iota
	CollectingBits
	AwaitingParity
	Failed
)

func (s State) String() string {
	switch s {
	case SeekingStart:
		return "seeking start"
	case CollectingBits:
		return "collecting bits"
	case AwaitingParity:
		return "awaiting parity"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParityError reports the 1-based index of the first byte whose parity bit
// did not check out.
type ParityError struct {
	ByteIndex int
	Value     byte
	Offset    int
}

func (e *ParityError) Error() string {
	return fmt.Sprintf("bad parity at byte %d (value %02X, symbol %d)", e.ByteIndex, e.Value, e.Offset)
}

type Frame struct {
	Value byte
	// StopBits is the run of idle symbols seen before the start bit.
	StopBits int
	// Offset is the index of the start bit in the symbol stream.
	Offset int
}

// Parity returns the XOR of all bits in b.
func Parity(b byte) byte {
	var p byte
	for n := b; n != 0; n >>= 1 {
		p ^= n & 1
	}
	return p
}

// ValidParity reports whether b and its parity bit carry an odd number of
// set bits.
func ValidParity(b, parityBit byte) bool {
	return Parity(b)^parityBit == 1
}

// Framer is the UART-style receiver. Feed it one symbol at a time with Step.
type Framer struct {
	state    State
	bits     int
	value    byte
	stopBits int
	start    int
	pos      int
	attempts int
	err      *ParityError
}

func NewFramer() *Framer {
	return &Framer{}
}

func (f *Framer) State() State {
	return f.state
}

// Attempts is the number of frames that reached their parity bit.
func (f *Framer) Attempts() int {
	return f.attempts
}

// Step advances the state machine by one symbol. It returns a frame when one
// completes. Once a parity check fails every later call returns the same
// error.
func (f *Framer) Step(sym demod.Symbol) (Frame, bool, error) {
	pos := f.pos
	f.pos++

	switch f.state {
	case SeekingStart:
		if sym == demod.Zero {
			f.state = CollectingBits
			f.start = pos
			f.bits = 0
			f.value = 0
		} else {
			f.stopBits++
		}

	case CollectingBits:
		f.value = f.value>>1 | sym.Bit()<<7
		f.bits++
		if f.bits == 8 {
			f.state = AwaitingParity
		}

	case AwaitingParity:
		f.attempts++
		if !ValidParity(f.value, sym.Bit()) {
			f.state = Failed
			f.err = &ParityError{ByteIndex: f.attempts, Value: f.value, Offset: f.start}
			return Frame{}, false, f.err
		}
		frame := Frame{Value: f.value, StopBits: f.stopBits, Offset: f.start}
		f.state = SeekingStart
		f.stopBits = 0
		return frame, true, nil

	case Failed:
		return Frame{}, false, f.err
	}

	return Frame{}, false, nil
}

// Decode frames a whole symbol sequence. It stops at the first parity
// failure and returns the frames decoded before it.
func Decode(symbols []demod.Symbol) ([]Frame, error) {
	f := NewFramer()
	var frames []Frame
	for _, sym := range symbols {
		frame, ok, err := f.Step(sym)
		if err != nil {
			return frames, err
		}
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// Bytes returns the values carried by frames.
func Bytes(frames []Frame) []byte {
	out := make([]byte, len(frames))
	for i, fr := range frames {
		out[i] = fr.Value
	}
	return out
}
