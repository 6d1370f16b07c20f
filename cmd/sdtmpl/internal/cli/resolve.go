package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sdtmpl/sdtmpl/pkg/engine"
	"github.com/sdtmpl/sdtmpl/pkg/enumerate"
)

// newResolveCommand resolves a template and prints the loop-axis summary
// table, without substituting any variant text.
func newResolveCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <prompt.yaml>",
		Short: "Resolve a prompt template and report the enumerated variant count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := engine.LoadAndResolve(args[0], toOverrides(flags))
			if err != nil {
				return err
			}
			total, err := run.TotalCombinations()
			if err != nil {
				return err
			}
			cliLog.Printf("resolved %s: %d total combination(s), %d emitted", args[0], total, run.Len())

			summary := enumerate.BuildSummary(run.Axes(), total)
			fmt.Fprint(cmd.OutOrStdout(), summary.Render(useColor(flags)))
			return nil
		},
	}
	return cmd
}

func toOverrides(flags *rootFlags) engine.Overrides {
	return engine.Overrides{
		BaseDir:   flags.baseDir,
		MaxDepth:  flags.maxDepth,
		MaxImages: flags.maxImages,
	}
}

func useColor(flags *rootFlags) bool {
	if flags.noColor {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
