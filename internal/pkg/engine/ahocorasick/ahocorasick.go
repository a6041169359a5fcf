// Package ahocorasick implements the Aho-Corasick automaton over a
// signature set. The automaton uses a dense transition table per state for
// O(1) lookups; failure links are computed breadth-first and output sets
// are closed under failure at build time, so the scan only inspects the
// current state's outputs.
//
// Case handling: a fully case-insensitive set runs one automaton with both
// inserted and scanned bytes folded. A fully case-sensitive set runs one
// exact automaton. A mixed set runs one automaton of each kind over the
// same buffer.
package ahocorasick

import (
	"time"

	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Name is the reporting name of this engine.
const Name = "Aho-Corasick"

// noTransition marks an undefined edge. Root edges are gap-filled to the
// root itself before failure-link construction, so only non-root states
// keep the sentinel and the scan follows failure links through it.
const noTransition = int32(-1)

type state struct {
	transitions [256]int32
	failure     int32
	output      []uint32
}

func newState() state {
	var s state
	for i := range s.transitions {
		s.transitions[i] = noTransition
	}
	return s
}

// automaton is a single trie + failure-link machine. fold selects whether
// inserted and scanned bytes pass through the ASCII fold.
type automaton struct {
	states  []state
	fold    bool
	patLens map[uint32]int
}

// Engine is the Aho-Corasick matcher. It holds one or two automata
// depending on the set's case mix.
type Engine struct {
	machines   []*automaton
	tableBytes uint64
}

// New builds the engine from a signature set.
func New(set *sigset.Set) (engine.Engine, error) {
	var folded, exact []sigset.Signature
	for _, sig := range set.Signatures {
		if sig.Nocase {
			folded = append(folded, sig)
		} else {
			exact = append(exact, sig)
		}
	}

	e := &Engine{}
	if len(folded) > 0 {
		e.machines = append(e.machines, buildAutomaton(folded, true))
	}
	if len(exact) > 0 {
		e.machines = append(e.machines, buildAutomaton(exact, false))
	}
	for _, m := range e.machines {
		e.tableBytes += m.sizeBytes()
	}
	return e, nil
}

func buildAutomaton(sigs []sigset.Signature, fold bool) *automaton {
	a := &automaton{
		states:  []state{newState()},
		fold:    fold,
		patLens: make(map[uint32]int, len(sigs)),
	}

	for _, sig := range sigs {
		a.patLens[sig.ID] = len(sig.Pattern)
		a.insert(sig)
	}
	a.buildFailureLinks()
	return a
}

// insert adds one pattern as a chain of transitions from the root.
func (a *automaton) insert(sig sigset.Signature) {
	cur := int32(0)
	for _, c := range sig.Pattern {
		if a.fold {
			c = sigset.Fold(c)
		}
		next := a.states[cur].transitions[c]
		if next == noTransition {
			next = int32(len(a.states))
			a.states = append(a.states, newState())
			a.states[cur].transitions[c] = next
		}
		cur = next
	}
	a.states[cur].output = append(a.states[cur].output, sig.ID)
}

// buildFailureLinks gap-fills the root and computes failure links by BFS,
// merging each state's output set with its failure state's so outputs are
// closed under failure.
func (a *automaton) buildFailureLinks() {
	queue := make([]int32, 0, len(a.states))

	for c := 0; c < 256; c++ {
		next := a.states[0].transitions[c]
		if next != noTransition {
			a.states[next].failure = 0
			queue = append(queue, next)
		} else {
			a.states[0].transitions[c] = 0
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for c := 0; c < 256; c++ {
			next := a.states[cur].transitions[c]
			if next == noTransition {
				continue
			}
			queue = append(queue, next)

			fail := a.states[cur].failure
			for a.states[fail].transitions[c] == noTransition {
				fail = a.states[fail].failure
			}
			a.states[next].failure = a.states[fail].transitions[c]

			failOut := a.states[a.states[next].failure].output
			if len(failOut) > 0 {
				a.states[next].output = append(a.states[next].output, failOut...)
			}
		}
	}
}

func (a *automaton) sizeBytes() uint64 {
	n := uint64(len(a.states)) * uint64(256*4+4)
	for i := range a.states {
		n += uint64(len(a.states[i].output)) * 4
	}
	return n
}

// scan runs the automaton over buf, emitting matches and accumulating
// counters into st. Returns false if the caller canceled.
func (a *automaton) scan(buf []byte, emit engine.MatchFunc, st *engine.Stats) bool {
	cur := int32(0)
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if a.fold {
			c = sigset.Fold(c)
		}

		for a.states[cur].transitions[c] == noTransition && cur != 0 {
			cur = a.states[cur].failure
			st.FailSteps++
		}
		cur = a.states[cur].transitions[c]
		if cur == noTransition {
			cur = 0
		}
		st.Transitions++

		for _, pid := range a.states[cur].output {
			st.Matches++
			ok := emit(engine.Match{
				PID:    pid,
				Offset: uint64(i - a.patLens[pid] + 1),
			})
			if !ok {
				return false
			}
		}
	}
	return true
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return Name }

// Scan implements engine.Engine. Matches are emitted in nondecreasing
// ending position within each automaton; a mixed-case set reports the
// case-insensitive automaton's stream first.
func (e *Engine) Scan(buf []byte, emit engine.MatchFunc) *engine.Stats {
	st := &engine.Stats{
		Algorithm:  Name,
		InputLen:   uint64(len(buf)),
		TableBytes: e.tableBytes,
	}
	start := time.Now()
	for _, m := range e.machines {
		if !m.scan(buf, emit, st) {
			break
		}
	}
	st.ElapsedSec = time.Since(start).Seconds()
	return st
}
