package decode

import (
	"fmt"
	"strings"
)

const (
	NameLength = 8
	// HeaderLength covers the name and both addresses.
	HeaderLength = NameLength + 4
)

type ChecksumError struct {
	Computed byte
	Recorded byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: data checksum %02X, recorded checksum %02X", e.Computed, e.Recorded)
}

// MalformedHeaderError is returned when the end address lies before the
// start address, leaving nothing to read.
type MalformedHeaderError struct {
	Start uint16
	End   uint16
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header: end address %04X is before start address %04X", e.End, e.Start)
}

// IncompleteError is returned when the symbols run out before the checksum
// byte was read.
type IncompleteError struct {
	BytesRead int
	Want      int
}

func (e *IncompleteError) Error() string {
	if e.Want == 0 {
		return fmt.Sprintf("incomplete block: recording ended after %d bytes, inside the header", e.BytesRead)
	}
	return fmt.Sprintf("incomplete block: recording ended after %d of %d bytes", e.BytesRead, e.Want)
}

type Block struct {
	Name         string
	EndAddress   uint16
	StartAddress uint16
	Payload      []byte
	// Computed is the running sum of the payload, Recorded the checksum byte
	// found on tape.
	Computed      byte
	Recorded      byte
	ChecksumValid bool
	BytesRead     int
}

// Length is the payload size the header declares.
func (b *Block) Length() int {
	return int(b.EndAddress) - int(b.StartAddress) + 1
}

// TotalLength is the number of bytes the whole block occupies on tape.
func (b *Block) TotalLength() int {
	return HeaderLength + b.Length() + 1
}

func (b *Block) Complete() bool {
	return b.BytesRead > HeaderLength && b.BytesRead == b.TotalLength()
}

// Verify returns a ChecksumError if the block was read to the end but the
// checksum did not match.
func (b *Block) Verify() error {
	if b.Complete() && !b.ChecksumValid {
		return &ChecksumError{Computed: b.Computed, Recorded: b.Recorded}
	}
	return nil
}

// TrimmedName drops the padding the name field is stored with.
func (b *Block) TrimmedName() string {
	return strings.TrimRight(b.Name, " \x00")
}

// Assembler folds bytes into a Block as they come off the framer.
type Assembler struct {
	block    Block
	name     strings.Builder
	toRead   int
	done     bool
	OnHeader func(*Block)
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) Done() bool {
	return a.done
}

// Block returns the fields assembled so far.
func (a *Assembler) Block() *Block {
	b := a.block
	b.Name = a.name.String()
	return &b
}

// Feed consumes the next byte. It returns true once the checksum byte has
// been read; later bytes belong to another block and are ignored.
func (a *Assembler) Feed(v byte) (bool, error) {
	if a.done {
		return true, nil
	}

	a.block.BytesRead++
	n := a.block.BytesRead

	switch {
	case n <= NameLength:
		a.name.WriteRune(rune(v))
	case n == 9:
		a.block.EndAddress = uint16(v) << 8
	case n == 10:
		a.block.EndAddress |= uint16(v)
	case n == 11:
		a.block.StartAddress = uint16(v) << 8
	case n == 12:
		a.block.StartAddress |= uint16(v)
		a.toRead = a.block.Length()
		if a.toRead < 1 {
			a.done = true
			return true, &MalformedHeaderError{Start: a.block.StartAddress, End: a.block.EndAddress}
		}
		a.block.Payload = make([]byte, 0, a.toRead)
		if a.OnHeader != nil {
			a.OnHeader(a.Block())
		}
	case n <= HeaderLength+a.toRead:
		a.block.Computed += v
		a.block.Payload = append(a.block.Payload, v)
	default:
		a.block.Recorded = v
		a.block.ChecksumValid = a.block.Computed == v
		a.done = true
	}
	return a.done, nil
}

// Finish is called when no more bytes will arrive. It reports a block that
// stopped short of its checksum byte.
func (a *Assembler) Finish() error {
	if a.done {
		return nil
	}
	return &IncompleteError{BytesRead: a.block.BytesRead, Want: a.wanted()}
}

func (a *Assembler) wanted() int {
	if a.block.BytesRead < HeaderLength {
		return 0
	}
	return HeaderLength + a.toRead + 1
}
