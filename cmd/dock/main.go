package main

import (
	"fmt"
	"os"

	"github.com/satriadhikara/dock/internal/cli"
	"github.com/satriadhikara/dock/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dock",
		Short: "Dock CLI - Contract copilot and knowledge base",
		Long: `Dock CLI talks to the dock API for contract knowledge and copilot chat.

Environment variables:
  DOCK_SESSION_TOKEN   Session token for authentication
  DOCK_API_URL         API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("token", "", "Session token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.PurgeCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
