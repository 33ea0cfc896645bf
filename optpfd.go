package pfor

import "fmt"

// optpfdWidths is the set of packed widths OptPFD may choose from; the block
// header stores an index into this table, not the width itself.
var optpfdWidths = [17]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 16, 20, 32}

// optpfdInvWidths maps a true max width to the smallest table index whose
// width covers it.
var optpfdInvWidths = [33]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13,
	14, 14, 14, // 14..16 -> width 16
	15, 15, 15, 15, // 17..20 -> width 20
	16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, 16, // 21..32 -> width 32
}

// OptPFD is a patched frame-of-reference codec that picks each block's width
// from a fixed allowed set by jointly minimizing the packed size and the
// Simple16-coded size of the exception payload. Unlike FastPFOR there is no
// page-level side table: every block is self-contained behind one header
// word. The page size is fixed at 65536 values.
//
// An OptPFD instance owns a scratch exception buffer and is not safe for
// concurrent use.
type OptPFD struct {
	// exceptBuffer stages 2n integers per candidate width: the n exception
	// high-bit payloads first, then the n positions.
	exceptBuffer [2 * BlockSize]uint32
}

// NewOptPFD returns an OptPFD codec.
func NewOptPFD() *OptPFD {
	return &OptPFD{}
}

// Compress encodes the first inlen values of in[*inpos:], rounded down to a
// multiple of BlockSize, into out[*outpos:]. The first word written is the
// rounded value count; a zero rounded count writes nothing. Both cursors
// advance in place.
func (c *OptPFD) Compress(in []uint32, inpos *int, inlen int, out []uint32, outpos *int) {
	inlen -= inlen % BlockSize
	if inlen == 0 {
		return
	}
	out[*outpos] = uint32(inlen)
	*outpos++
	for done := 0; done < inlen; {
		thissize := min(DefaultPageSize, inlen-done)
		c.encodePage(in, inpos, thissize, out, outpos)
		done += thissize
	}
}

// Uncompress decodes the stream at in[*inpos:] into out[*outpos:]. The
// number of values produced is the count stored in the stream; inlen is
// informational. out must be sized by the caller.
func (c *OptPFD) Uncompress(in []uint32, inpos *int, inlen int, out []uint32, outpos *int) error {
	if inlen == 0 {
		return nil
	}
	if *inpos >= len(in) {
		return fmt.Errorf("%w: missing value count", ErrMalformedStream)
	}
	nvalues := int(in[*inpos])
	if nvalues < 0 || nvalues%BlockSize != 0 {
		return fmt.Errorf("%w: value count %d is not a multiple of %d", ErrMalformedStream, nvalues, BlockSize)
	}
	*inpos++
	for produced := 0; produced < nvalues; {
		thissize := min(DefaultPageSize, nvalues-produced)
		if err := c.decodePage(in, inpos, out, outpos, thissize); err != nil {
			return err
		}
		produced += thissize
	}
	return nil
}

// bestBFromData chooses the width index for one block by exhaustive cost
// comparison: packed low bits cost width*4 words, exceptions cost whatever
// Simple16 needs for their staged payload. The candidate floor keeps
// exception high bits within Simple16's 28-bit limit. Candidates whose
// every value would be an exception are skipped; ties go to the last (widest
// remaining) candidate. The width-32 fallback costs 128 words and never has
// exceptions.
func (c *OptPFD) bestBFromData(block []uint32) (besti, nexcept int) {
	mb := maxBitsValue(block)
	mini := 0
	if w := optpfdWidths[optpfdInvWidths[mb]] - 28; w > 0 {
		mini = w
	}
	besti = len(optpfdWidths) - 1
	bestCost := optpfdWidths[besti] * 4
	for i := mini; i < len(optpfdWidths)-1; i++ {
		w := uint(optpfdWidths[i])
		n := 0
		for _, v := range block {
			if v>>w != 0 {
				n++
			}
		}
		if n == BlockSize {
			continue
		}
		cpos := 0
		for k, v := range block {
			if v>>w != 0 {
				c.exceptBuffer[cpos] = v >> w
				c.exceptBuffer[n+cpos] = uint32(k)
				cpos++
			}
		}
		cost := optpfdWidths[i]*4 + s16Estimate(c.exceptBuffer[:2*n])
		if cost <= bestCost {
			bestCost = cost
			besti = i
			nexcept = n
		}
	}
	return besti, nexcept
}

// encodePage emits thissize values (a multiple of BlockSize). Every block
// writes one header word, the Simple16-coded exception payload when there
// are exceptions, then four packed groups of 32 low-bit values.
func (c *OptPFD) encodePage(in []uint32, inpos *int, thissize int, out []uint32, outpos *int) {
	tmpout := *outpos
	tmpin := *inpos
	for final := tmpin + thissize; tmpin+BlockSize <= final; tmpin += BlockSize {
		block := in[tmpin : tmpin+BlockSize]
		besti, nexcept := c.bestBFromData(block)
		b := uint(optpfdWidths[besti])

		headerPos := tmpout
		tmpout++
		exceptsize := 0
		if nexcept > 0 {
			cpos := 0
			for k, v := range block {
				if v>>b != 0 {
					c.exceptBuffer[cpos] = v >> b
					c.exceptBuffer[nexcept+cpos] = uint32(k)
					cpos++
				}
			}
			exceptsize = s16Compress(c.exceptBuffer[:2*nexcept], out[tmpout:])
			tmpout += exceptsize
		}
		out[headerPos] = uint32(besti) | uint32(nexcept)<<8 | uint32(exceptsize)<<16

		for k := 0; k < BlockSize; k += 32 {
			pack32(block[k:k+32], out[tmpout:], int(b))
			tmpout += int(b)
		}
	}
	*inpos = tmpin
	*outpos = tmpout
}

// decodePage mirrors encodePage: read the header word, decode the Simple16
// payload of 2*nexcept staged integers, unpack the low bits, then patch the
// exceptions back in.
func (c *OptPFD) decodePage(in []uint32, inpos *int, out []uint32, outpos *int, thissize int) error {
	tmpout := *outpos
	tmpin := *inpos
	for run := 0; run < thissize/BlockSize; run++ {
		if tmpin >= len(in) {
			return fmt.Errorf("%w: truncated block header", ErrMalformedStream)
		}
		header := in[tmpin]
		tmpin++
		besti := int(header & 0xff)
		nexcept := int(header >> 8 & 0xff)
		exceptsize := int(header >> 16)
		if besti >= len(optpfdWidths) {
			return fmt.Errorf("%w: width index %d", ErrMalformedStream, besti)
		}
		if nexcept >= BlockSize {
			return fmt.Errorf("%w: %d exceptions in one block", ErrMalformedStream, nexcept)
		}
		b := uint(optpfdWidths[besti])

		if nexcept > 0 {
			if tmpin+exceptsize > len(in) {
				return fmt.Errorf("%w: truncated exception payload", ErrMalformedStream)
			}
			if s16Uncompress(in[tmpin:tmpin+exceptsize], c.exceptBuffer[:2*nexcept]) < 0 {
				return fmt.Errorf("%w: exception payload ends early", ErrMalformedStream)
			}
			tmpin += exceptsize
		}

		if tmpin+4*int(b) > len(in) {
			return fmt.Errorf("%w: truncated block payload", ErrMalformedStream)
		}
		for k := 0; k < BlockSize; k += 32 {
			unpack32(in[tmpin:], out[tmpout+k:tmpout+k+32], int(b))
			tmpin += int(b)
		}

		for k := 0; k < nexcept; k++ {
			pos := int(c.exceptBuffer[nexcept+k])
			if pos >= BlockSize {
				return fmt.Errorf("%w: exception position %d", ErrMalformedStream, pos)
			}
			out[tmpout+pos] |= c.exceptBuffer[k] << b
		}
		tmpout += BlockSize
	}
	*outpos = tmpout
	*inpos = tmpin
	return nil
}
