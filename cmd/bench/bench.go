// Package bench implements the benchmark command: every engine is built
// from the same ruleset and run over the same buffer, and the per-engine
// stats are printed as a comparison table.
package bench

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rulehound/sigbench/cmd/scan"
	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/engine/catalog"
	"github.com/rulehound/sigbench/internal/pkg/logger"
	"github.com/rulehound/sigbench/internal/pkg/report"
)

// BenchCmd is the bench subcommand.
var BenchCmd = &cobra.Command{
	Use:   "bench <file>",
	Short: "Run all engines over one capture and compare",
	Long: `Build every matching engine from the configured ruleset, scan the
same capture buffer with each, and print a comparison table. All engines
must agree on the match count; a disagreement is reported as an error.`,
	Args:         cobra.ExactArgs(1),
	RunE:         runBench,
	SilenceUsage: true,
}

func runBench(cmd *cobra.Command, args []string) error {
	set, buf, err := scan.LoadInputs(args[0])
	if err != nil {
		return err
	}

	cfg := scan.EngineConfig()
	verbose := viper.GetBool("bench.verbose")
	out := cmd.OutOrStdout()

	var stats []*engine.Stats
	var matchCounts []uint64
	for _, entry := range catalog.All() {
		eng, err := entry.Build(set, cfg)
		if err != nil {
			return fmt.Errorf("build %s: %w", entry.Name, err)
		}

		var count uint64
		st := eng.Scan(buf.Data, func(m engine.Match) bool {
			count++
			return true
		})
		stats = append(stats, st)
		matchCounts = append(matchCounts, count)

		if verbose {
			report.New(st).Write(out)
		}
		logger.Debug("engine finished",
			"algorithm", st.Algorithm, "matches", count, "elapsed_sec", st.ElapsedSec)
	}

	report.WriteComparison(out, stats)

	for i := 1; i < len(matchCounts); i++ {
		if matchCounts[i] != matchCounts[0] {
			return fmt.Errorf("engines disagree: %s found %d matches, %s found %d",
				stats[0].Algorithm, matchCounts[0], stats[i].Algorithm, matchCounts[i])
		}
	}
	return nil
}

func init() {
	BenchCmd.Flags().Bool("verbose", false, "print the full stats dump per engine")
	_ = viper.BindPFlag("bench.verbose", BenchCmd.Flags().Lookup("verbose"))
}
