package datalink

import (
	"github.com/jrwynneiii/cassette/demod"
)

// NormalizeLeader returns a copy of symbols with spurious Zeros in the leader
// rewritten to One, and the index of the first real start bit. Zeros are noise
// until minLeader leader symbols have gone by; the first Zero after that opens
// the first frame whether or not its parity checks out, so a damaged first
// byte still fails framing. If no Zero qualifies the whole sequence is leader
// and the index is -1.
func NormalizeLeader(symbols []demod.Symbol, minLeader int) ([]demod.Symbol, int) {
	out := make([]demod.Symbol, len(symbols))
	copy(out, symbols)

	for i, sym := range out {
		if sym != demod.Zero {
			continue
		}
		if i >= minLeader {
			return out, i
		}
		out[i] = demod.One
	}
	return out, -1
}
