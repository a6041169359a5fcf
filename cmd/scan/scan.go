// Package scan implements the single-engine scan command, the direct
// equivalent of the classic <alg> <file> driver.
package scan

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rulehound/sigbench/internal/pkg/capture"
	"github.com/rulehound/sigbench/internal/pkg/engine"
	"github.com/rulehound/sigbench/internal/pkg/engine/catalog"
	"github.com/rulehound/sigbench/internal/pkg/engine/wumanber"
	"github.com/rulehound/sigbench/internal/pkg/logger"
	"github.com/rulehound/sigbench/internal/pkg/report"
	"github.com/rulehound/sigbench/internal/pkg/rules"
	"github.com/rulehound/sigbench/internal/pkg/sigset"
)

// ScanCmd is the scan subcommand.
var ScanCmd = &cobra.Command{
	Use:   "scan <algorithm> <file>",
	Short: "Scan a capture file with one engine",
	Long: `Scan a capture file with a single matching engine.

Algorithms: a (Aho-Corasick), d (Wu-Manber), p (Wu-Manber with Bloom
prefix filter), h (Set-Horspool), b (Boyer-Moore).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(cmd, args[0], args[1])
	},
	SilenceUsage: true,
}

// Run loads the ruleset and capture, builds the selected engine and
// executes one scan, printing the match stream and the stats dump.
func Run(cmd *cobra.Command, algCode, capturePath string) error {
	entry, err := catalog.ByCode(algCode)
	if err != nil {
		return err
	}

	set, buf, err := LoadInputs(capturePath)
	if err != nil {
		return err
	}

	eng, err := entry.Build(set, EngineConfig())
	if err != nil {
		return fmt.Errorf("build %s: %w", entry.Name, err)
	}

	out := cmd.OutOrStdout()
	printMatches := viper.GetBool("scan.print_matches")
	st := eng.Scan(buf.Data, func(m engine.Match) bool {
		if printMatches {
			report.WriteMatch(out, m)
		}
		return true
	})

	report.New(st).Write(out)
	return nil
}

// LoadInputs resolves the ruleset path from config, parses it and reads
// the capture buffer. Shared with the bench command.
func LoadInputs(capturePath string) (*sigset.Set, *capture.Buffer, error) {
	rulesPath := viper.GetString("rules.path")
	if rulesPath == "" {
		return nil, nil, fmt.Errorf("no ruleset configured (--rules or rules.path)")
	}

	set, err := rules.LoadFile(rulesPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("ruleset loaded",
		"path", rulesPath, "signatures", set.Len(),
		"min_len", set.MinLen, "avg_len", set.AvgLen)

	buf, err := capture.ReadFile(capturePath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("capture loaded", "path", buf.Path, "bytes", len(buf.Data))
	return set, buf, nil
}

// EngineConfig assembles engine options from configuration.
func EngineConfig() catalog.Config {
	return catalog.Config{
		WM: wumanber.Options{
			BlockSize: viper.GetInt("wm.block_size"),
			AllowB4:   viper.GetBool("wm.allow_b4"),
			BloomFPP:  viper.GetFloat64("wm.bloom_fpp"),
		},
	}
}

func init() {
	ScanCmd.Flags().Bool("print-matches", true, "print [MATCH] lines for each occurrence")
	ScanCmd.Flags().Int("block-size", 0, "Wu-Manber block size B (0 = auto, 2-4)")
	ScanCmd.Flags().Bool("allow-b4", false, "allow the Wu-Manber heuristic to pick B=4")
	ScanCmd.Flags().Float64("bloom-fpp", 0.01, "Bloom filter false positive probability")
	_ = viper.BindPFlag("scan.print_matches", ScanCmd.Flags().Lookup("print-matches"))
	_ = viper.BindPFlag("wm.block_size", ScanCmd.Flags().Lookup("block-size"))
	_ = viper.BindPFlag("wm.allow_b4", ScanCmd.Flags().Lookup("allow-b4"))
	_ = viper.BindPFlag("wm.bloom_fpp", ScanCmd.Flags().Lookup("bloom-fpp"))
}
