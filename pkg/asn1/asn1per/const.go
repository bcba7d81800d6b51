// Package asn1per implements the X.691 packed encoding primitives in both the aligned and the
// unaligned variant: whole numbers, length determinants with fragmentation, open types and
// bitmaps. Type level codecs are built on top of these in asn1codec.
package asn1per

const (
	// MaxConstrainedLength is the first upper bound for which lengths stop being encoded
	// as constrained whole numbers.
	MaxConstrainedLength = 65536

	// FragmentSize is the fragmentation quantum (16K). Lengths of at least this size are
	// sent in fragments of 1 to 4 quanta.
	FragmentSize = 16384

	maxFragmentQuanta = 4

	// NormallySmallLimit is the largest value sent in the six bit normally small form + 1.
	NormallySmallLimit = 64
)
