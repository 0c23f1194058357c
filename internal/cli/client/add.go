package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AddKnowledgeRequest represents the add knowledge API request.
type AddKnowledgeRequest struct {
	Content string `json:"content"`
}

// AddKnowledgeResponse represents the add knowledge API response.
type AddKnowledgeResponse struct {
	Message string `json:"message"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add freeform knowledge",
		Long: `Embeds freeform text into the knowledge base.

Examples:
  # Add from an argument
  dock add "Renewal notices must be sent 60 days before expiry."

  # Add from a file
  dock add --file notes.txt

  # Add from stdin
  cat notes.txt | dock add`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			content := ""
			if len(args) > 0 {
				content = args[0]
			}
			return runAddKnowledge(content, file, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from file")

	return cmd
}

func runAddKnowledge(content, file string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if content == "" {
		var input []byte
		if file != "" {
			input, err = os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
		} else {
			input, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		}
		content = strings.TrimSpace(string(input))
	}

	if content == "" {
		return fmt.Errorf("no content provided")
	}

	resp, err := api.Post("/api/knowledge", AddKnowledgeRequest{Content: content})
	if err != nil {
		return fmt.Errorf("failed to add knowledge: %w", err)
	}

	var addResp AddKnowledgeResponse
	if err := json.Unmarshal(resp.Data, &addResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(addResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Println(addResp.Message)
	}

	return nil
}
