package main

import (
	"fmt"
	"runtime"

	"github.com/alvmarrod/follow-weaver/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version subcommand
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "follow-weaver %s\n", version.String())
			fmt.Fprintf(out, "  commit: %s\n", version.CommitHash())
			fmt.Fprintf(out, "  built:  %s\n", version.BuildDate())
			fmt.Fprintf(out, "  go:     %s\n", runtime.Version())
		},
	}
}
