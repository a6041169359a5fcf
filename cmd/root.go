package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rulehound/sigbench/cmd/bench"
	"github.com/rulehound/sigbench/cmd/rules"
	"github.com/rulehound/sigbench/cmd/scan"
	"github.com/rulehound/sigbench/internal/pkg/logger"
	"github.com/rulehound/sigbench/internal/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "sigbench [algorithm] [file]",
	Short:   "sigbench matches signatures for you",
	Long: fmt.Sprintf(`sigbench %s - multi-pattern signature scanner benchmark

Runs Snort-style content signatures over a capture buffer with one of
four matchers: Aho-Corasick (a), Wu-Manber with hash prefix (d) or Bloom
prefix (p), Set-Horspool (h), Boyer-Moore (b).

The bare two-argument form mirrors the classic driver:

  sigbench a capture.pcap
  sigbench p payload.bin --rules local.rules`, version.GetVersion()),
	Version: version.GetFullVersion(),
	Args:    cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return cmd.Help()
		case 2:
			return scan.Run(cmd, args[0], args[1])
		default:
			return fmt.Errorf("expected <algorithm> <file>, got %d argument(s)", len(args))
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command. Argument errors and unreadable inputs
// exit 1 per the driver contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSubCommandPalettes() {
	rootCmd.AddCommand(scan.ScanCmd)
	rootCmd.AddCommand(bench.BenchCmd)
	rootCmd.AddCommand(rules.RulesCmd)
}

func init() {
	cobra.OnInitialize(initConfig)

	addSubCommandPalettes()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sigbench.yaml)")
	rootCmd.PersistentFlags().StringP("rules", "R", "", "ruleset file with content signatures")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("rules.path", rootCmd.PersistentFlags().Lookup("rules"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sigbench")
	}

	viper.SetEnvPrefix("SIGBENCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	logger.SetLevel(viper.GetString("log.level"))
}
