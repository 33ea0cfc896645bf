package pfor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// assertCompositionRoundTrip compresses any-length input through a
// Composition and decodes it with a fresh instance.
func assertCompositionRoundTrip(t *testing.T, enc, dec *Composition, in []uint32) {
	t.Helper()
	out := make([]uint32, outBound(len(in))+8)

	var inpos, outpos int
	enc.Compress(in, &inpos, len(in), out, &outpos)
	assert.Equal(t, len(in), inpos, "composition must consume the entire input")

	got := make([]uint32, len(in))
	var rpos, dpos int
	err := dec.Uncompress(out[:outpos], &rpos, outpos, got, &dpos)
	assert.NoError(t, err)
	assert.Equal(t, outpos, rpos, "frame not fully consumed")
	assert.Equal(t, len(in), dpos)
	assert.Equal(t, in, got[:dpos])
}

// TestCompositionRoundTripLengths covers tails of every flavor: empty head,
// empty tail, and both populated.
func TestCompositionRoundTripLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(55))
	for _, n := range []int{1, 2, 5, 127, 128, 129, 255, 256, 1000, 4096 + 17} {
		in := make([]uint32, n)
		for i := range in {
			in[i] = rng.Uint32() >> uint(rng.Intn(24))
		}
		assertCompositionRoundTrip(t, NewComposition(NewFastPFOR()), NewComposition(NewFastPFOR()), in)
	}
}

// TestCompositionOptPFDHead runs the same shapes over an OptPFD head.
func TestCompositionOptPFDHead(t *testing.T) {
	for _, n := range []int{63, 128, 300, 1153} {
		assertCompositionRoundTrip(t, NewComposition(NewOptPFD()), NewComposition(NewOptPFD()), genMixed(n))
	}
}

// TestCompositionEmptyInput writes and reads nothing for zero-length input.
func TestCompositionEmptyInput(t *testing.T) {
	assert := assert.New(t)
	c := NewComposition(NewFastPFOR())
	out := make([]uint32, 8)

	var inpos, outpos int
	c.Compress(nil, &inpos, 0, out, &outpos)
	assert.Zero(inpos)
	assert.Zero(outpos)

	assert.NoError(c.Uncompress(nil, &inpos, 0, out, &outpos))
	assert.Zero(inpos)
	assert.Zero(outpos)
}

// TestCompositionTailOnlyFrame checks the head section collapses to a single
// zero word for sub-block inputs.
func TestCompositionTailOnlyFrame(t *testing.T) {
	assert := assert.New(t)
	in := []uint32{7, 300, 70000, 1 << 30}
	out := make([]uint32, 64)

	c := NewComposition(NewFastPFOR())
	var inpos, outpos int
	c.Compress(in, &inpos, len(in), out, &outpos)

	assert.Equal(uint32(0), out[0], "head section must be empty")
	assert.Equal(uint32(len(in)), out[1], "tail count")

	got := make([]uint32, len(in))
	var rpos, dpos int
	assert.NoError(c.Uncompress(out[:outpos], &rpos, outpos, got, &dpos))
	assert.Equal(in, got)
}

// TestCompositionReuse runs different lengths through one instance to check
// the scratch buffers carry no state.
func TestCompositionReuse(t *testing.T) {
	c := NewComposition(NewFastPFOR())
	d := NewComposition(NewFastPFOR())
	assertCompositionRoundTrip(t, c, d, genMixed(301))
	assertCompositionRoundTrip(t, c, d, genMixed(128))
	assertCompositionRoundTrip(t, c, d, genMixed(57))
	assertCompositionRoundTrip(t, c, d, genClustered(2048+99))
}

// TestCompositionMalformed corrupts frame fields and expects
// ErrMalformedStream.
func TestCompositionMalformed(t *testing.T) {
	assert := assert.New(t)
	in := genMixed(300)
	out := make([]uint32, outBound(len(in))+8)
	c := NewComposition(NewFastPFOR())
	var inpos, outpos int
	c.Compress(in, &inpos, len(in), out, &outpos)
	stream := out[:outpos]

	corrupt := func(idx int, val uint32) []uint32 {
		cp := append([]uint32(nil), stream...)
		cp[idx] = val
		return cp
	}

	tailCountPos := 1 + int(stream[0])
	for name, bad := range map[string][]uint32{
		"headSectionTooLong": corrupt(0, 1<<20),
		"tailTooLong":        corrupt(tailCountPos, BlockSize),
		"truncatedTail":      stream[:len(stream)-2],
	} {
		t.Run(name, func(t *testing.T) {
			got := make([]uint32, len(in))
			var rpos, dpos int
			err := NewComposition(NewFastPFOR()).Uncompress(bad, &rpos, len(bad), got, &dpos)
			assert.ErrorIs(err, ErrMalformedStream)
		})
	}
}
