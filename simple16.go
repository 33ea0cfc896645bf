package pfor

// Simple16 secondary coder. Each output word carries a 4-bit mode tag in its
// top bits and up to 28 payload bits below it; the mode selects how many
// integers share the word and at which widths. OptPFD uses it to code
// exception payloads (high bits, then positions), which its width floor
// keeps below 2^28.

const (
	s16Modes       = 16
	s16PayloadBits = 28
)

// s16Num[m] is the number of integers mode m packs into one word.
var s16Num = [s16Modes]int{28, 21, 21, 21, 14, 9, 8, 7, 6, 6, 5, 5, 4, 3, 2, 1}

// s16Bits[m][j] is the width of slot j in mode m; every row sums to 28.
var s16Bits = [s16Modes][]int{
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2, 1, 1, 1, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2},
	{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2},
	{4, 3, 3, 3, 3, 3, 3, 3, 3},
	{3, 4, 4, 4, 4, 3, 3, 3},
	{4, 4, 4, 4, 4, 4, 4},
	{5, 5, 5, 5, 4, 4},
	{4, 4, 5, 5, 5, 5},
	{6, 6, 6, 5, 5},
	{5, 5, 6, 6, 6},
	{7, 7, 7, 7},
	{10, 9, 9},
	{14, 14},
	{28},
}

// s16CompressBlock packs a prefix of src into a single word, trying modes in
// order and taking the first that fits. Returns the number of integers
// consumed, or -1 if src[0] needs more than 28 bits.
func s16CompressBlock(src []uint32, dst *uint32) int {
	for mode := 0; mode < s16Modes; mode++ {
		word := uint32(mode) << s16PayloadBits
		num := min(s16Num[mode], len(src))
		shift := 0
		j := 0
		for j < num && src[j] < 1<<uint(s16Bits[mode][j]) {
			word |= src[j] << uint(shift)
			shift += s16Bits[mode][j]
			j++
		}
		if j == num {
			*dst = word
			return num
		}
	}
	return -1
}

// s16Compress codes all of src into dst and returns the number of words
// written. Values of 29 bits or more are unencodable; feeding one is a
// programming error and panics.
func s16Compress(src, dst []uint32) int {
	words := 0
	for pos := 0; pos < len(src); words++ {
		num := s16CompressBlock(src[pos:], &dst[words])
		if num < 0 {
			panic("pfor: simple16 cannot encode a value of 29 bits or more")
		}
		pos += num
	}
	return words
}

// s16Estimate returns the number of words s16Compress would write for src
// without producing output.
func s16Estimate(src []uint32) int {
	var scratch uint32
	words := 0
	for pos := 0; pos < len(src); words++ {
		num := s16CompressBlock(src[pos:], &scratch)
		if num < 0 {
			panic("pfor: simple16 cannot encode a value of 29 bits or more")
		}
		pos += num
	}
	return words
}

// s16DecompressBlock unpacks one word into dst, bounded by n remaining
// values, and returns the number of integers produced.
func s16DecompressBlock(word uint32, dst []uint32, n int) int {
	mode := word >> s16PayloadBits
	num := min(s16Num[mode], n)
	shift := 0
	for j := 0; j < num; j++ {
		w := s16Bits[mode][j]
		dst[j] = (word >> uint(shift)) & (1<<uint(w) - 1)
		shift += w
	}
	return num
}

// s16Uncompress decodes exactly len(dst) values from src and returns the
// number of words consumed, or -1 if src ends before enough values were
// produced.
func s16Uncompress(src, dst []uint32) int {
	consumed := 0
	for produced := 0; produced < len(dst); consumed++ {
		if consumed >= len(src) {
			return -1
		}
		produced += s16DecompressBlock(src[consumed], dst[produced:], len(dst)-produced)
	}
	return consumed
}
