// Package rules implements the ruleset inspection command.
package rules

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ruleparse "github.com/rulehound/sigbench/internal/pkg/rules"
)

// RulesCmd is the rules subcommand.
var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Parse the configured ruleset and dump its signatures",
	Args:  cobra.NoArgs,
	RunE:  runRules,

	SilenceUsage: true,
}

func runRules(cmd *cobra.Command, args []string) error {
	path := viper.GetString("rules.path")
	if path == "" {
		return fmt.Errorf("no ruleset configured (--rules or rules.path)")
	}

	set, err := ruleparse.LoadFile(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d signatures (min %d, avg %d bytes)\n\n",
		set.Len(), set.MinLen, set.AvgLen)
	for _, sig := range set.Signatures {
		nocase := ""
		if sig.Nocase {
			nocase = " nocase"
		}
		sid := sig.RuleID
		if sid == "" {
			sid = "-"
		}
		fmt.Fprintf(out, "%6d  sid=%-10s len=%-4d%s  %s\n",
			sig.ID, sid, len(sig.Pattern), nocase, strconv.Quote(string(sig.Pattern)))
	}
	return nil
}
