package pfor

import (
	"fmt"

	"github.com/mhr3/streamvbyte"
)

// Composition joins a paged codec with a StreamVByte tail coder so inputs of
// any length round-trip. The greatest multiple-of-128 prefix goes through
// the head codec; the remaining tail (at most 127 values) is StreamVByte
// encoded and embedded as little-endian words.
//
// Frame layout, all in 32-bit words:
//
//	[headWords]  [head stream ...]  [tailCount]  [tailBytes]  [tail bytes, padded]
//
// A Composition shares its head codec's concurrency rules: one instance per
// goroutine.
type Composition struct {
	head Codec

	tailBytes []byte
	tailVals  []uint32
}

// NewComposition returns a Composition around the given paged head codec.
func NewComposition(head Codec) *Composition {
	return &Composition{
		head: head,
		// Worst case: one control byte per four values plus four data bytes
		// per value.
		tailBytes: make([]byte, 0, BlockSize/4+4*BlockSize),
		tailVals:  make([]uint32, 0, BlockSize),
	}
}

// Compress encodes all inlen values of in[*inpos:], advancing both cursors.
// A zero inlen writes nothing.
func (c *Composition) Compress(in []uint32, inpos *int, inlen int, out []uint32, outpos *int) {
	if inlen == 0 {
		return
	}
	headerPos := *outpos
	*outpos = headerPos + 1

	whole := inlen - inlen%BlockSize
	c.head.Compress(in, inpos, whole, out, outpos)
	out[headerPos] = uint32(*outpos - headerPos - 1)

	tail := inlen - whole
	out[*outpos] = uint32(tail)
	*outpos++

	encoded := c.tailBytes[:0]
	if tail > 0 {
		encoded = streamvbyte.EncodeUint32(in[*inpos:*inpos+tail], &streamvbyte.EncodeOptions[uint32]{Buffer: c.tailBytes[:cap(c.tailBytes)]})
		c.tailBytes = encoded
		*inpos = *inpos + tail
	}
	out[*outpos] = uint32(len(encoded))
	*outpos++
	for i := 0; i < len(encoded); i += 4 {
		var w [4]byte
		copy(w[:], encoded[i:])
		out[*outpos] = bo.Uint32(w[:])
		*outpos++
	}
}

// Uncompress decodes a Compress-produced frame, advancing both cursors. A
// zero inlen reads nothing.
func (c *Composition) Uncompress(in []uint32, inpos *int, inlen int, out []uint32, outpos *int) error {
	if inlen == 0 {
		return nil
	}
	if *inpos >= len(in) {
		return fmt.Errorf("%w: missing composition header", ErrMalformedStream)
	}
	headWords := int(in[*inpos])
	*inpos++

	if headWords > 0 {
		headStart := *inpos
		if headStart+headWords > len(in) {
			return fmt.Errorf("%w: head section of %d words leaves the stream", ErrMalformedStream, headWords)
		}
		if err := c.head.Uncompress(in, inpos, headWords, out, outpos); err != nil {
			return err
		}
		if *inpos != headStart+headWords {
			return fmt.Errorf("%w: head section consumed %d of %d words", ErrMalformedStream, *inpos-headStart, headWords)
		}
	}

	if *inpos+2 > len(in) {
		return fmt.Errorf("%w: missing tail header", ErrMalformedStream)
	}
	tail := int(in[*inpos])
	nbytes := int(in[*inpos+1])
	*inpos = *inpos + 2
	if tail >= BlockSize {
		return fmt.Errorf("%w: tail of %d values", ErrMalformedStream, tail)
	}
	words := (nbytes + 3) / 4
	if nbytes < 0 || *inpos+words > len(in) {
		return fmt.Errorf("%w: tail payload of %d bytes leaves the stream", ErrMalformedStream, nbytes)
	}
	if tail > 0 {
		buf := c.tailBytes[:0]
		for i := 0; i < words; i++ {
			buf = bo.AppendUint32(buf, in[*inpos+i])
		}
		c.tailBytes = buf
		decoded := streamvbyte.DecodeUint32(buf[:nbytes], tail, &streamvbyte.DecodeOptions[uint32]{Buffer: c.tailVals[:0]})
		c.tailVals = decoded
		copy(out[*outpos:*outpos+tail], decoded)
		*outpos = *outpos + tail
	}
	*inpos = *inpos + words
	return nil
}
