// Command sdtmpl is a thin driver over pkg/engine: it resolves a prompt
// template, reports the enumerated variant count, and can preview the
// substituted text for every variant. It never calls a Stable Diffusion
// API or writes image files (spec.md Non-goals) — pkg/engine.GenerationClient
// is the seam a real driver plugs into instead.
package main

import (
	"fmt"
	"os"

	"github.com/sdtmpl/sdtmpl/cmd/sdtmpl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
