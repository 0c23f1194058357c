package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// IngestResponse represents the ingest API response.
type IngestResponse struct {
	Inserted  int `json:"inserted"`
	Contracts int `json:"contracts"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed your contracts into the knowledge base",
		Long:  "Chunks and embeds every contract you own so the copilot can answer questions about them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(outputJSON)
		},
	}


	return cmd
}

func runIngest(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/knowledge/ingest", nil)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	var ingestResp IngestResponse
	if err := json.Unmarshal(resp.Data, &ingestResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(ingestResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Embedded %d chunks from %d contracts\n", ingestResp.Inserted, ingestResp.Contracts)
	}

	return nil
}
