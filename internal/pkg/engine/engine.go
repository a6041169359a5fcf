// Package engine defines the contract shared by the multi-pattern matching
// engines. An engine is built once from a sigset.Set, holds immutable
// tables, and can run any number of concurrent scans; each scan streams
// matches through a callback and returns a per-scan Stats value.
package engine

import (
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// Match is one occurrence of a signature in the scanned buffer.
type Match struct {
	// PID is the signature id within the set.
	PID uint32

	// Offset is the byte offset where the occurrence begins.
	// Offset + len(pattern) <= len(buffer) always holds.
	Offset uint64
}

// MatchFunc receives each match as it is found. Returning false cancels
// the scan at the engine's next safe point; the scan still returns its
// Stats record.
type MatchFunc func(m Match) bool

// Engine is a preprocessed matcher over one signature set.
type Engine interface {
	// Name returns the algorithm name for reporting.
	Name() string

	// Scan reports every occurrence of every signature in buf via emit.
	// Scans never fail; malformed or empty input yields no matches.
	// buf is borrowed read-only and not retained.
	Scan(buf []byte, emit MatchFunc) *Stats
}

// Builder constructs an engine from a signature set.
type Builder func(set *sigset.Set) (Engine, error)

// CollectMatches is a convenience emit callback appending to a slice.
func CollectMatches(out *[]Match) MatchFunc {
	return func(m Match) bool {
		*out = append(*out, m)
		return true
	}
}
