package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdtmpl/sdtmpl/pkg/engine"
)

// newPreviewCommand resolves a template and prints every variant's final
// prompt/negative text and seed hint, one line each. This is the closest
// this module comes to "running" a batch — no HTTP call or file write
// happens (spec.md Non-goals); a real driver would hand each Variant's
// Positive/Negative/APIParams/SeedHint to its own SD client here instead.
func newPreviewCommand(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "preview <prompt.yaml>",
		Short: "Print the resolved prompt text for every enumerated variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := engine.LoadAndResolve(args[0], toOverrides(flags))
			if err != nil {
				return err
			}
			variants, err := run.Iter()
			if err != nil {
				return err
			}
			for i, v := range variants {
				if limit > 0 && i >= limit {
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] seed=%d positive=%q negative=%q\n",
					v.Index, v.SeedHint, v.Positive, v.Negative)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many variants (0 = all)")
	return cmd
}
