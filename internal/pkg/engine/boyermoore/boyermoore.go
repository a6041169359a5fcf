// Package boyermoore implements per-pattern Boyer-Moore matching with the
// bad-character and strong good-suffix heuristics. The engine iterates the
// signature set pattern by pattern with no cross-pattern sharing; it is
// the comparative baseline of the four matchers.
package boyermoore

import (
	"time"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Name is the reporting name of this engine.
const Name = "Boyer-Moore"

// notInPattern is the bad-character value for bytes absent from a pattern.
const notInPattern = int32(-1)

// tables holds the per-pattern preprocessing. Nocase patterns store a
// folded copy, so the scan folds the text byte and compares directly.
type tables struct {
	pat    []byte
	nocase bool

	bad [256]int32

	// border and good both have len(pat)+1 slots, built by the standard
	// strong-suffix construction: good[k] is the safe shift after a
	// mismatch with the suffix pat[k:] already matched, and good[0] the
	// shift after a full match.
	border []int32
	good   []int32
}

// Engine is the per-pattern Boyer-Moore matcher.
type Engine struct {
	pats       []tables
	tableBytes uint64
}

// New preprocesses every signature independently.
func New(set *sigset.Set) (engine.Engine, error) {
	e := &Engine{pats: make([]tables, set.Len())}
	for pid := range set.Signatures {
		sig := &set.Signatures[pid]
		p := sig.Pattern
		if sig.Nocase {
			p = sigset.FoldSlice(p)
		}
		e.pats[pid] = buildTables(p, sig.Nocase)
		e.tableBytes += uint64(len(p)) + 256*4 + uint64(len(p)+1)*8
	}
	return e, nil
}

func buildTables(p []byte, nocase bool) tables {
	l := len(p)
	t := tables{
		pat:    p,
		nocase: nocase,
		border: make([]int32, l+1),
		good:   make([]int32, l+1),
	}

	for c := range t.bad {
		t.bad[c] = notInPattern
	}
	for j := 0; j < l; j++ {
		t.bad[p[j]] = int32(j)
	}

	// Strong-suffix borders (case 1): walk suffix borders right to left,
	// recording the shift for each mismatch position the first time it
	// is seen.
	i, j := l, l+1
	t.border[i] = int32(j)
	for i > 0 {
		for j <= l && p[i-1] != p[j-1] {
			if t.good[j] == 0 {
				t.good[j] = int32(j - i)
			}
			j = int(t.border[j])
		}
		i--
		j--
		t.border[i] = int32(j)
	}

	// Case 2: positions with no assigned shift move by the widest border
	// of the whole pattern.
	j = int(t.border[0])
	for i = 0; i <= l; i++ {
		if t.good[i] == 0 {
			t.good[i] = int32(j)
		}
		if i == j {
			j = int(t.border[j])
		}
	}
	return t
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// Scan implements engine.Engine. Patterns are scanned sequentially in id
// order, so the match stream is grouped by pattern and ordered by offset
// within each group.
func (e *Engine) Scan(buf []byte, emit engine.MatchFunc) *engine.Stats {
	st := &engine.Stats{
		Algorithm:  Name,
		InputLen:   uint64(len(buf)),
		TableBytes: e.tableBytes,
	}
	start := time.Now()
	for pid := range e.pats {
		if !e.scanPattern(uint32(pid), buf, emit, st) {
			break
		}
	}
	st.ElapsedSec = time.Since(start).Seconds()
	return st
}

func (e *Engine) scanPattern(pid uint32, buf []byte, emit engine.MatchFunc, st *engine.Stats) bool {
	t := &e.pats[pid]
	l := len(t.pat)
	n := len(buf)

	shift := 0
	for shift+l <= n {
		j := l - 1
		for j >= 0 {
			st.Comparisons++
			c := buf[shift+j]
			if t.nocase {
				c = sigset.Fold(c)
			}
			if c != t.pat[j] {
				break
			}
			j--
		}

		if j < 0 {
			st.ExactMatches++
			if !emit(engine.Match{PID: pid, Offset: uint64(shift)}) {
				return false
			}
			adv := int(t.good[0])
			if adv < 1 {
				adv = 1
			}
			shift += adv
			st.Shifts++
			continue
		}

		c := buf[shift+j]
		if t.nocase {
			c = sigset.Fold(c)
		}
		badSkip := j - int(t.bad[c])
		goodSkip := int(t.good[j+1])
		adv := badSkip
		if goodSkip > adv {
			adv = goodSkip
		}
		if adv < 1 {
			adv = 1
		}
		shift += adv
		st.Shifts++
	}
	return true
}
