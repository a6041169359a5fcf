// Package sethorspool implements the Set-Horspool multi-pattern matcher:
// a single bad-character shift table unified over the shortest-pattern
// window, plus per-end-byte candidate buckets so that a window only
// verifies the patterns that could actually end there.
package sethorspool

import (
	"time"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Name is the reporting name of this engine.
const Name = "Set-Horspool"

// Engine is a preprocessed Set-Horspool matcher.
type Engine struct {
	set *sigset.Set
	m   int

	shift   [256]int32
	buckets [256][]uint32

	tableBytes uint64
}

// New builds the shift table and candidate buckets from the set.
func New(set *sigset.Set) (engine.Engine, error) {
	e := &Engine{set: set, m: set.MinLen}

	for c := range e.shift {
		e.shift[c] = int32(e.m)
	}

	for pid := range set.Signatures {
		sig := &set.Signatures[pid]
		p := sig.Pattern

		// Bytes in the first m-1 window positions lower the shift;
		// nocase patterns contribute both letter cases.
		for i := 0; i < e.m-1; i++ {
			d := int32(e.m - 1 - i)
			c := p[i]
			if d < e.shift[c] {
				e.shift[c] = d
			}
			if sig.Nocase && sigset.IsLetter(c) {
				alt := sigset.SwapCase(c)
				if d < e.shift[alt] {
					e.shift[alt] = d
				}
			}
		}

		end := p[e.m-1]
		e.buckets[end] = append(e.buckets[end], uint32(pid))
		if sig.Nocase && sigset.IsLetter(end) {
			alt := sigset.SwapCase(end)
			e.buckets[alt] = append(e.buckets[alt], uint32(pid))
		}
	}

	e.tableBytes = 256 * 4
	for c := range e.buckets {
		e.tableBytes += uint64(len(e.buckets[c])) * 4
	}
	return e, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// Scan implements engine.Engine. After any window that produced a match
// the position advances by one so overlapping occurrences are reported.
func (e *Engine) Scan(buf []byte, emit engine.MatchFunc) *engine.Stats {
	st := &engine.Stats{
		Algorithm:  Name,
		InputLen:   uint64(len(buf)),
		TableBytes: e.tableBytes,
	}
	start := time.Now()
	e.scan(buf, emit, st)
	st.ElapsedSec = time.Since(start).Seconds()
	return st
}

func (e *Engine) scan(buf []byte, emit engine.MatchFunc, st *engine.Stats) {
	n := len(buf)
	pos := 0
	for pos+e.m <= n {
		st.Windows++
		end := buf[pos+e.m-1]
		shift := e.shift[end]

		// No pattern ends in this byte, so the window cannot match and
		// the bad-character shift applies directly. A window whose end
		// byte does carry candidates must always be verified: the end
		// byte may be absent from the earlier window positions, which
		// leaves its table shift at m even though a match sits here.
		if len(e.buckets[end]) == 0 {
			pos += int(shift)
			st.Shifts++
			st.SumShift += uint64(shift)
			continue
		}

		found := false
		for _, pid := range e.buckets[end] {
			sig := &e.set.Signatures[pid]
			l := len(sig.Pattern)
			if pos+l > n {
				continue
			}
			matched := true
			for j := 0; j < l; j++ {
				st.Comparisons++
				a, b := buf[pos+j], sig.Pattern[j]
				if sig.Nocase {
					a, b = sigset.Fold(a), sigset.Fold(b)
				}
				if a != b {
					matched = false
					break
				}
			}
			if matched {
				st.Matches++
				found = true
				if !emit(engine.Match{PID: pid, Offset: uint64(pos)}) {
					return
				}
			}
		}

		if found {
			pos++
		} else {
			if shift < 1 {
				shift = 1
			}
			pos += int(shift)
			st.Shifts++
			st.SumShift += uint64(shift)
		}
	}
}
