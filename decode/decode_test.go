package decode_test

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/cassette/config"
	"github.com/jrwynneiii/cassette/datalink"
	"github.com/jrwynneiii/cassette/decode"
	"github.com/jrwynneiii/cassette/demod"
	"github.com/jrwynneiii/cassette/testutil"
)

func recording(enc testutil.Encoder, data []byte) []int {
	return testutil.Square(enc.Symbols(data))
}

var leader = testutil.Encoder{Leader: 40, StopBits: 2}

func TestDecodeValidBlock(t *testing.T) {
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if b.Name != "TESTFILE" || b.StartAddress != 0x1000 || b.EndAddress != 0x1005 {
		t.Fatalf("header=%q %04X-%04X", b.Name, b.StartAddress, b.EndAddress)
	}
	if !slices.Equal(b.Payload, testPayload) {
		t.Fatalf("payload=%X, want %X", b.Payload, testPayload)
	}
	if !b.ChecksumValid {
		t.Fatalf("checksum invalid: computed %02X recorded %02X", b.Computed, b.Recorded)
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x16))

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	if err != nil {
		t.Fatalf("mismatch must not be fatal: %v", err)
	}
	if b.ChecksumValid || b.Computed != 0x15 || b.Recorded != 0x16 {
		t.Fatalf("valid=%v computed=%02X recorded=%02X", b.ChecksumValid, b.Computed, b.Recorded)
	}
	if !slices.Equal(b.Payload, testPayload) {
		t.Fatalf("payload=%X, want it returned anyway", b.Payload)
	}
}

func TestDecodeParityFailure(t *testing.T) {
	enc := leader
	enc.BadParity = map[int]bool{5: true}
	samples := recording(enc, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	var perr *datalink.ParityError
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v, want ParityError", err)
	}
	if perr.ByteIndex != 5 {
		t.Fatalf("byte index=%d, want 5", perr.ByteIndex)
	}
	if b.BytesRead != 4 || b.Name != "TEST" {
		t.Fatalf("partial block read %d bytes, name %q; want 4 and TEST", b.BytesRead, b.Name)
	}
	if b.EndAddress != 0 || b.StartAddress != 0 || len(b.Payload) != 0 {
		t.Fatalf("fields beyond byte 4 populated: %+v", b)
	}
}

func TestDecodeParityFailureOnFirstByte(t *testing.T) {
	enc := leader
	enc.BadParity = map[int]bool{1: true}
	samples := recording(enc, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	var perr *datalink.ParityError
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v name=%q, want ParityError", err, b.Name)
	}
	if perr.ByteIndex != 1 {
		t.Fatalf("byte index=%d, want 1", perr.ByteIndex)
	}
	if b.BytesRead != 0 || b.Name != "" {
		t.Fatalf("partial block read %d bytes, name %q; want nothing", b.BytesRead, b.Name)
	}
}

func TestDecodeStopsAtChecksumByte(t *testing.T) {
	data := testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15)
	data = append(data, 0x99, 0x98)
	enc := leader
	enc.BadParity = map[int]bool{len(data): true}

	b, err := decode.New(config.Default()).Decode(recording(enc, data), testutil.SampleRate)
	if err != nil {
		t.Fatalf("bytes after the block affected the decode: %v", err)
	}
	if !b.ChecksumValid {
		t.Fatalf("checksum invalid")
	}
}

func TestDecodeSingleBytePayload(t *testing.T) {
	samples := recording(leader, testutil.Block("B", 0x0200, 0x0200, []byte{0x7F}, 0x7F))

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if b.Length() != 1 || !slices.Equal(b.Payload, []byte{0x7F}) || !b.ChecksumValid {
		t.Fatalf("block=%+v", b)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	data := testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15)
	samples := recording(leader, data[:16])

	b, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	var ierr *decode.IncompleteError
	if !errors.As(err, &ierr) {
		t.Fatalf("err=%v, want IncompleteError", err)
	}
	if b.BytesRead != 16 || b.ChecksumValid {
		t.Fatalf("partial block=%+v", b)
	}
}

func TestDecodeMalformedHeader(t *testing.T) {
	samples := recording(leader, testutil.Block("BAD", 0x3000, 0x0FFF, nil, 0))

	_, err := decode.New(config.Default()).Decode(samples, testutil.SampleRate)
	var herr *decode.MalformedHeaderError
	if !errors.As(err, &herr) {
		t.Fatalf("err=%v, want MalformedHeaderError", err)
	}
}

func TestDecodeNoisyLeader(t *testing.T) {
	data := testutil.Block("NOISE", 0x0500, 0x0503, []byte{9, 8, 7, 6}, 30)
	syms := leader.Symbols(data)
	for _, i := range []int{0, 2, 3, 9} {
		syms[i] = demod.Zero
	}

	b, err := decode.New(config.Default()).Decode(testutil.Square(syms), testutil.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if b.TrimmedName() != "NOISE" || !b.ChecksumValid {
		t.Fatalf("block=%+v", b)
	}
}

func TestDecodeAutoThreshold(t *testing.T) {
	conf := config.Default()
	conf.Demod.CycleThreshold = 100
	conf.Demod.AutoThreshold = true
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	res, err := decode.New(conf).Run(samples, testutil.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if res.CycleThreshold != 16 {
		t.Fatalf("cycle threshold=%d, want 16 derived from the recording", res.CycleThreshold)
	}
	if !res.Block.ChecksumValid {
		t.Fatalf("checksum invalid with derived threshold")
	}
	if len(res.Frames) != 19 {
		t.Fatalf("frames=%d, want 19", len(res.Frames))
	}
}

func TestDecodeAmplitudeThreshold(t *testing.T) {
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))
	for i := range samples {
		samples[i] += 3000
	}

	conf := config.Default()
	conf.Demod.AmplitudeThreshold = 3000
	b, err := decode.New(conf).Decode(samples, testutil.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if !b.ChecksumValid {
		t.Fatalf("checksum invalid with offset signal")
	}
}

func TestDecoderIsSharedSafely(t *testing.T) {
	d := decode.New(config.Default())
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := d.Decode(samples, testutil.SampleRate)
			if err == nil && !b.ChecksumValid {
				err = b.Verify()
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
	}
}

func TestDecoderLogsThroughItsLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel, Prefix: "side-a.wav"})
	samples := recording(leader, testutil.Block("TESTFILE", 0x1000, 0x1005, testPayload, 0x15))

	if _, err := decode.New(config.Default()).WithLogger(logger).Decode(samples, testutil.SampleRate); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"side-a.wav", "[demod]", "[datalink] Leader of 40 symbols", "[decode] Block complete"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}
