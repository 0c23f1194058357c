package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// PurgeResponse represents the contract purge API response.
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// PurgeCmd creates the purge command.
func PurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <contract-id>",
		Short: "Remove a contract's knowledge chunks",
		Long:  "Deletes every knowledge chunk embedded from the given contract.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPurge(args[0], outputJSON)
		},
	}


	return cmd
}

func runPurge(contractID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Delete("/api/knowledge/contract/" + contractID)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	var purgeResp PurgeResponse
	if err := json.Unmarshal(resp.Data, &purgeResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(purgeResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted %d chunks for contract %s\n", purgeResp.Deleted, contractID)
	}

	return nil
}
