// Package wumanber implements the Wu-Manber multi-pattern matcher with a
// deterministic FNV-1a prefix-hash verification step and an optional
// probabilistic Bloom prefix filter.
//
// The scan window is m = max(B, shortest pattern length). Every B-byte
// block of every pattern's first m bytes lowers the shift table entry for
// that block; the block ending the window carries shift 0 and chains the
// pattern into the hash table. Patterns shorter than B cannot be carried
// by the block tables and are matched by a per-first-byte side pass.
//
// When the set contains case-insensitive signatures, every table key,
// prefix hash and Bloom probe is computed over ASCII-folded bytes on both
// the pattern and the text side; exact-case signatures are then separated
// from their folded shadows at final verification. Probes therefore always
// fold consistently and the Bloom filter cannot produce false negatives.
package wumanber

import (
	"fmt"
	"time"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Reporting names for the two prefix-verification modes.
const (
	Name      = "Wu-Manber"
	NameBloom = "Wu-Manber-Bloom"
)

const (
	fnvOffsetBasis = 0x811C9DC5
	fnvPrime       = 0x01000193

	// b4IndexBits folds the 32-bit key space of B=4 into a 24-bit table
	// index. Collisions only lower shifts and lengthen chains; matching
	// stays exact.
	b4IndexBits = 24

	noPattern = int32(-1)
)

// Options control table construction.
type Options struct {
	// BlockSize forces B to 2, 3 or 4; zero selects the heuristic.
	BlockSize int

	// AllowB4 permits the heuristic to pick B=4. Without it the
	// heuristic's choice is capped at 3; an explicit BlockSize of 4 is
	// used as given.
	AllowB4 bool

	// Bloom enables the probabilistic prefix filter.
	Bloom bool

	// BloomFPP is the Bloom false-positive probability; zero means 0.01.
	BloomFPP float64
}

// Engine is a preprocessed Wu-Manber matcher.
type Engine struct {
	set  *sigset.Set
	b    int
	m    int
	fold bool

	shift      []int32
	hash       []int32
	next       []int32
	prefixHash []uint32
	patLen     []int32

	// byteBuckets holds ids of patterns shorter than B, keyed by their
	// (possibly folded) first byte.
	byteBuckets [256][]uint32

	bloom      *BloomFilter
	tableBytes uint64
}

// ChooseBlockSize applies the dataset heuristic: B=2 for short patterns or
// very large sets, B=4 for long patterns, B=3 otherwise.
func ChooseBlockSize(set *sigset.Set) int {
	if set.MinLen < 4 || set.Len() > 5000 {
		return 2
	}
	if set.AvgLen > 30 {
		return 4
	}
	return 3
}

// NewDeterministic builds the engine in hash-prefix mode.
func NewDeterministic(set *sigset.Set) (engine.Engine, error) {
	return New(set, Options{})
}

// NewProbabilistic builds the engine with the Bloom prefix filter.
func NewProbabilistic(set *sigset.Set) (engine.Engine, error) {
	return New(set, Options{Bloom: true})
}

// New builds the engine with explicit options.
func New(set *sigset.Set, opts Options) (engine.Engine, error) {
	b := opts.BlockSize
	switch b {
	case 0:
		b = ChooseBlockSize(set)
	case 2, 3, 4:
	default:
		return nil, fmt.Errorf("wumanber: block size must be 2, 3 or 4, got %d", b)
	}
	if b == 4 && !opts.AllowB4 && opts.BlockSize != 4 {
		b = 3
	}

	m := set.MinLen
	if m < b {
		m = b
	}

	e := &Engine{
		set:        set,
		b:          b,
		m:          m,
		fold:       set.AnyNocase(),
		next:       make([]int32, set.Len()),
		prefixHash: make([]uint32, set.Len()),
		patLen:     make([]int32, set.Len()),
	}

	tableSize := 1 << (8 * b)
	if b == 4 {
		tableSize = 1 << b4IndexBits
	}
	e.shift = make([]int32, tableSize)
	e.hash = make([]int32, tableSize)
	defaultShift := int32(m - b + 1)
	for i := range e.shift {
		e.shift[i] = defaultShift
		e.hash[i] = noPattern
	}

	if opts.Bloom {
		fpp := opts.BloomFPP
		if fpp <= 0 || fpp >= 1 {
			fpp = 0.01
		}
		e.bloom = NewBloomFilter(set.Len(), fpp)
	}

	for pid := range set.Signatures {
		e.addPattern(uint32(pid))
	}

	e.tableBytes = uint64(tableSize)*8 + uint64(set.Len())*12
	if e.bloom != nil {
		e.tableBytes += e.bloom.SizeBytes()
	}
	return e, nil
}

// keyByte returns the byte fed into table keys and hashes, folded when the
// engine runs in folded mode.
func (e *Engine) keyByte(c byte) byte {
	if e.fold {
		return sigset.Fold(c)
	}
	return c
}

// blockKey encodes up to B bytes of s little-endian, zero-padding past
// avail.
func (e *Engine) blockKey(s []byte, avail int) uint32 {
	var k uint32
	for i := 0; i < e.b; i++ {
		if i < avail {
			k |= uint32(e.keyByte(s[i])) << (8 * i)
		}
	}
	return k
}

// index maps a block key to a table slot. B=4 xor-folds the high byte.
func (e *Engine) index(key uint32) uint32 {
	if e.b == 4 {
		return (key ^ (key >> b4IndexBits)) & (1<<b4IndexBits - 1)
	}
	return key
}

// hashPrefix computes the FNV-1a hash of the first min(n, B) bytes of s.
func (e *Engine) hashPrefix(s []byte, n int) uint32 {
	if n > e.b {
		n = e.b
	}
	h := uint32(fnvOffsetBasis)
	for i := 0; i < n; i++ {
		h = (h ^ uint32(e.keyByte(s[i]))) * fnvPrime
	}
	return h
}

func (e *Engine) addPattern(pid uint32) {
	sig := &e.set.Signatures[pid]
	p := sig.Pattern
	l := len(p)

	e.patLen[pid] = int32(l)
	e.prefixHash[pid] = e.hashPrefix(p, l)
	e.next[pid] = noPattern

	for j := 0; j+e.b <= e.m; j++ {
		var key uint32
		if j < l {
			key = e.blockKey(p[j:], l-j)
		}
		newShift := int32(e.m - j - e.b)
		idx := e.index(key)
		if newShift < e.shift[idx] {
			e.shift[idx] = newShift
		}
	}

	if l < e.b {
		// Too short for the block tables; matched by the side pass.
		c := e.keyByte(p[0])
		e.byteBuckets[c] = append(e.byteBuckets[c], pid)
		return
	}

	sfxPos := e.m - e.b
	var sfx []byte
	avail := 0
	if sfxPos < l {
		sfx = p[sfxPos:]
		avail = l - sfxPos
	}
	idx := e.index(e.blockKey(sfx, avail))
	e.next[pid] = e.hash[idx]
	e.hash[idx] = int32(pid)

	if e.bloom != nil {
		e.bloom.Add(e.prefixBytes(p))
	}
}

// prefixBytes returns the (folded) first min(L, B) bytes of p, the exact
// bytes Bloom membership is keyed and queried on.
func (e *Engine) prefixBytes(p []byte) []byte {
	n := len(p)
	if n > e.b {
		n = e.b
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = e.keyByte(p[i])
	}
	return out
}

// Name implements engine.Engine.
func (e *Engine) Name() string {
	if e.bloom != nil {
		return NameBloom
	}
	return Name
}

// BlockSize returns the chosen B.
func (e *Engine) BlockSize() int { return e.b }

// Window returns the scan window length m.
func (e *Engine) Window() int { return e.m }

// Scan implements engine.Engine.
func (e *Engine) Scan(buf []byte, emit engine.MatchFunc) *engine.Stats {
	st := &engine.Stats{
		Algorithm:  e.Name(),
		InputLen:   uint64(len(buf)),
		TableBytes: e.tableBytes,
	}
	start := time.Now()
	if e.scanShort(buf, emit, st) {
		e.scanBlocks(buf, emit, st)
	}
	st.ElapsedSec = time.Since(start).Seconds()
	return st
}

// scanShort matches the patterns shorter than B via their first-byte
// buckets. Returns false if the caller canceled.
func (e *Engine) scanShort(buf []byte, emit engine.MatchFunc, st *engine.Stats) bool {
	any := false
	for _, bucket := range &e.byteBuckets {
		if len(bucket) > 0 {
			any = true
			break
		}
	}
	if !any {
		return true
	}

	n := len(buf)
	for i := 0; i < n; i++ {
		bucket := e.byteBuckets[e.keyByte(buf[i])]
		for _, pid := range bucket {
			st.ChainSteps++
			sig := &e.set.Signatures[pid]
			l := int(e.patLen[pid])
			if i+l > n {
				continue
			}
			if sigset.Equal(buf[i:], sig.Pattern, sig.Nocase) {
				st.ExactMatches++
				if !emit(engine.Match{PID: pid, Offset: uint64(i)}) {
					return false
				}
			}
		}
	}
	return true
}

// scanBlocks is the main shift/hash loop.
func (e *Engine) scanBlocks(buf []byte, emit engine.MatchFunc, st *engine.Stats) {
	n := len(buf)
	for i := e.m - 1; i < n; {
		st.Windows++

		key := e.blockKey(buf[i-e.b+1:], e.b)
		shift := e.shift[e.index(key)]
		st.SumShift += uint64(shift)
		if shift > 0 {
			i += int(shift)
			continue
		}

		st.HashHits++
		ws := i - e.m + 1

		if e.bloom != nil {
			st.BloomChecks++
			if !e.bloom.Check(e.prefixBytes(buf[ws : ws+e.b])) {
				i++
				continue
			}
			st.BloomPass++
		}

		h := e.hashPrefix(buf[ws:], e.b)
		for pid := e.hash[e.index(key)]; pid != noPattern; pid = e.next[pid] {
			st.ChainSteps++
			if e.prefixHash[pid] != h {
				continue
			}
			l := int(e.patLen[pid])
			if ws+l > n {
				continue
			}
			sig := &e.set.Signatures[pid]
			if sigset.Equal(buf[ws:], sig.Pattern, sig.Nocase) {
				st.ExactMatches++
				if !emit(engine.Match{PID: uint32(pid), Offset: uint64(ws)}) {
					return
				}
			}
		}
		i++
	}
}
