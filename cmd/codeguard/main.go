// Package main is the entry point for the codeguard MCP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codeguard",
		Short: "Code search guard for coding agents",
		Long: `codeguard checks a remote code search index before new code is written.

It serves Model Context Protocol tools that find duplicates, existing symbols,
similar implementations and import sites, and decides whether a new symbol
may be created.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
