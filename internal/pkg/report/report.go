// Package report renders scan statistics for the CLI. Counter lines are
// emitted only for the counters the producing algorithm populates, the
// same sections the per-algorithm analytics dumps used to print.
package report

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/rulehound/sigbench/internal/pkg/engine"
)

// throughputFloorSec is the lower bound applied to elapsed time when
// deriving throughput, so near-zero scans do not report absurd MB/s while
// the raw elapsed value stays untouched.
const throughputFloorSec = 1e-3

// Report wraps one scan's stats with run identity.
type Report struct {
	RunID uuid.UUID
	Stats *engine.Stats
}

// New assigns a fresh run id to a stats record.
func New(st *engine.Stats) *Report {
	return &Report{RunID: uuid.New(), Stats: st}
}

// Throughput returns MB/s over the floored elapsed time.
func Throughput(st *engine.Stats) float64 {
	elapsed := st.ElapsedSec
	if elapsed < throughputFloorSec {
		elapsed = throughputFloorSec
	}
	return float64(st.InputLen) / (1024.0 * 1024.0) / elapsed
}

// WriteMatch prints one match line in the driver's output format.
func WriteMatch(w io.Writer, m engine.Match) {
	fmt.Fprintf(w, "[MATCH] pid %d at %d\n", m.PID, m.Offset)
}

// Write prints the full stats dump for one scan.
func (r *Report) Write(w io.Writer) {
	st := r.Stats
	fmt.Fprintf(w, "\n[Search Stats: %s]\n", st.Algorithm)
	fmt.Fprintf(w, "  Run id               : %s\n", r.RunID)
	fmt.Fprintf(w, "  Input length         : %d bytes\n", st.InputLen)

	if st.Transitions > 0 || st.FailSteps > 0 {
		fmt.Fprintf(w, "  State transitions    : %d\n", st.Transitions)
		fmt.Fprintf(w, "  Fail link traversals : %d\n", st.FailSteps)
	}
	if st.Windows > 0 {
		fmt.Fprintf(w, "  Windows examined     : %d\n", st.Windows)
		fmt.Fprintf(w, "  Avg shift distance   : %.3f\n", st.AvgShift())
	}
	if st.HashHits > 0 || st.ChainSteps > 0 {
		fmt.Fprintf(w, "  Hash hits            : %d\n", st.HashHits)
		fmt.Fprintf(w, "  Chain traversals     : %d\n", st.ChainSteps)
	}
	if st.BloomChecks > 0 {
		fmt.Fprintf(w, "  Bloom checks         : %d\n", st.BloomChecks)
		fmt.Fprintf(w, "  Bloom positives      : %d\n", st.BloomPass)
	}
	if st.Comparisons > 0 {
		fmt.Fprintf(w, "  Comparisons          : %d\n", st.Comparisons)
	}
	if st.Shifts > 0 {
		fmt.Fprintf(w, "  Shift operations     : %d\n", st.Shifts)
	}
	fmt.Fprintf(w, "  Matches              : %d\n", totalMatches(st))
	fmt.Fprintf(w, "  Table memory         : %d bytes\n", st.TableBytes)
	fmt.Fprintf(w, "\n[Performance]\n")
	fmt.Fprintf(w, "  Elapsed time         : %.6f sec\n", st.ElapsedSec)
	fmt.Fprintf(w, "  Throughput           : %.2f MB/s\n", Throughput(st))
}

// WriteComparison prints one table row per engine for the bench command.
func WriteComparison(w io.Writer, stats []*engine.Stats) {
	fmt.Fprintf(w, "\n%-18s %12s %12s %12s %10s\n",
		"Algorithm", "Matches", "Elapsed(s)", "MB/s", "Tables(B)")
	for _, st := range stats {
		fmt.Fprintf(w, "%-18s %12d %12.6f %12.2f %10d\n",
			st.Algorithm, totalMatches(st), st.ElapsedSec, Throughput(st), st.TableBytes)
	}
}

// totalMatches unifies the two match counters: Aho-Corasick and
// Set-Horspool count in Matches, Wu-Manber and Boyer-Moore in ExactMatches.
func totalMatches(st *engine.Stats) uint64 {
	if st.Matches > 0 {
		return st.Matches
	}
	return st.ExactMatches
}
