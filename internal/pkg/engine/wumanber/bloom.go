package wumanber

import "math"

// BloomFilter is the probabilistic prefix-membership filter used by the
// Bloom verification mode. Sizing follows the classic formulas: for n
// items and false-positive probability p,
//
//	mBits = ceil(-n*ln(p) / ln(2)^2)
//	k     = floor((mBits/n) * ln(2))
//
// Probe i sets or tests bit (h1 + i*h2) mod mBits, with h1 and h2 both
// FNV-1a over the same bytes, seeded with the FNV offset basis and prime
// respectively. Membership is keyed and queried on identical bytes, so
// false negatives cannot occur.
type BloomFilter struct {
	bits      []byte
	mBits     uint32
	numHashes uint32
}

// NewBloomFilter sizes a filter for n expected items at probability p.
func NewBloomFilter(n int, p float64) *BloomFilter {
	mBits := uint32(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if mBits == 0 {
		mBits = 1
	}
	k := uint32(float64(mBits) / float64(n) * math.Ln2)
	if k == 0 {
		k = 1
	}
	return &BloomFilter{
		bits:      make([]byte, (mBits+7)/8),
		mBits:     mBits,
		numHashes: k,
	}
}

func fnv1a(data []byte, seed uint32) uint32 {
	h := seed
	for _, c := range data {
		h = (h ^ uint32(c)) * fnvPrime
	}
	return h
}

// Add inserts data into the filter.
func (bf *BloomFilter) Add(data []byte) {
	h1 := fnv1a(data, fnvOffsetBasis)
	h2 := fnv1a(data, fnvPrime)
	for i := uint32(0); i < bf.numHashes; i++ {
		idx := (h1 + i*h2) % bf.mBits
		bf.bits[idx>>3] |= 1 << (idx & 7)
	}
}

// Check reports whether data may be present. A false result is definite.
func (bf *BloomFilter) Check(data []byte) bool {
	h1 := fnv1a(data, fnvOffsetBasis)
	h2 := fnv1a(data, fnvPrime)
	for i := uint32(0); i < bf.numHashes; i++ {
		idx := (h1 + i*h2) % bf.mBits
		if bf.bits[idx>>3]&(1<<(idx&7)) == 0 {
			return false
		}
	}
	return true
}

// NumHashes returns k.
func (bf *BloomFilter) NumHashes() uint32 { return bf.numHashes }

// Bits returns mBits.
func (bf *BloomFilter) Bits() uint32 { return bf.mBits }

// SizeBytes returns the retained bit-array size.
func (bf *BloomFilter) SizeBytes() uint64 { return uint64(len(bf.bits)) }
