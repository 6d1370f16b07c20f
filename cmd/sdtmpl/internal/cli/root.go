// Package cli wires pkg/engine into a spf13/cobra command tree, following
// the teacher's pkg/cli convention of one NewXCommand constructor per
// subcommand and a shared set of persistent flags on the root.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/sdtmpl/sdtmpl/internal/obslog"
)

var cliLog = obslog.New("cli")

// rootFlags holds the flags shared by every subcommand.
type rootFlags struct {
	baseDir   string
	maxImages uint32
	maxDepth  int
	noColor   bool
}

// NewRootCommand builds the sdtmpl command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "sdtmpl",
		Short:         "Resolve Stable Diffusion prompt templates into concrete variant requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.baseDir, "base-dir", "", "directory relative paths resolve against (default: the prompt file's directory)")
	root.PersistentFlags().Uint32Var(&flags.maxImages, "max-images", 0, "cap the number of enumerated variants (0 = unbounded)")
	root.PersistentFlags().IntVar(&flags.maxDepth, "max-depth", 0, "cap the implements chain depth (0 = default)")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable styled table output")

	root.AddCommand(newResolveCommand(flags))
	root.AddCommand(newValidateCommand(flags))
	root.AddCommand(newPreviewCommand(flags))
	return root
}
