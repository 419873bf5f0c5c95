// Command solwire runs the Solana operation gateway, either as an HTTP and
// WebSocket server or as an MCP stdio adapter.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var networksFile string

func main() {
	root := &cobra.Command{
		Use:           "solwire",
		Short:         "Solana operation gateway for AI agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&networksFile, "networks", "networks.yaml", "path to the endpoint pool override file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
