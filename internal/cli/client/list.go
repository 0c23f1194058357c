package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ChunkItem represents one stored knowledge chunk.
type ChunkItem struct {
	ID         int64  `json:"id"`
	ContractID string `json:"contract_id,omitempty"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

// ChunkListResponse represents the knowledge list API response.
type ChunkListResponse struct {
	Items   []ChunkItem `json:"items"`
	Total   int64       `json:"total"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored knowledge chunks",
		Long:  "Lists your embedded knowledge chunks, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/api/knowledge?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list knowledge: %w", err)
	}

	var listResp ChunkListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No knowledge chunks stored")
		return nil
	}

	fmt.Printf("Knowledge chunks (%d total):\n", listResp.Total)
	for _, item := range listResp.Items {
		content := strings.ReplaceAll(item.Content, "\n", " ")
		if len(content) > 80 {
			content = content[:77] + "..."
		}
		source := item.ContractID
		if source == "" {
			source = "freeform"
		}
		fmt.Printf("  %d [%s] %s\n", item.ID, source, content)
	}
	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}
