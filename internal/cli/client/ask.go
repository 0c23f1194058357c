package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// chatMessage is one turn of a chat exchange on the wire.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the contract copilot",
		Long:  "Sends a question to the copilot and streams the answer to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(args[0])
		},
	}

	return cmd
}

func runAsk(question string) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	req := chatRequest{
		Messages: []chatMessage{{Role: "user", Content: question}},
	}

	body, err := api.Stream("/api/chat", req)
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var payload struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload); err != nil {
				continue
			}
			switch event {
			case "chunk":
				fmt.Print(payload.Text)
			case "error":
				fmt.Println()
				fmt.Fprintln(os.Stderr, payload.Text)
				return fmt.Errorf("chat stream failed")
			case "done":
				fmt.Println()
				return nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}

	fmt.Println()
	return nil
}
