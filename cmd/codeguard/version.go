package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/codeguard-mcp/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "codeguard version: %s\n", version)
			fmt.Fprintf(out, "  build time: %s\n", buildTime)
			fmt.Fprintf(out, "  build mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "  sqlite driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
