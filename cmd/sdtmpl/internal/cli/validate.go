package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdtmpl/sdtmpl/pkg/engine"
)

// newValidateCommand resolves a template and substitutes every variant,
// surfacing the first static or dynamic validation failure without
// printing the resolved text (spec.md §4.V).
func newValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <prompt.yaml>",
		Short: "Validate a prompt template without printing resolved variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := engine.LoadAndResolve(args[0], toOverrides(flags))
			if err != nil {
				return err
			}
			if _, err := run.Iter(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d variant(s)\n", args[0], run.Len())
			return nil
		},
	}
}
