package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var token string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure the dock client",
		Long:  "Stores the session token and API URL in the global config after checking the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(token, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Session token (use 'dockd session create' to mint one)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8080)")

	return cmd
}

func runInit(token, apiURL string, outputJSON bool) error {
	_ = godotenv.Load()
	if token == "" {
		token = os.Getenv(envSessionToken)
	}
	if token == "" {
		fmt.Print("Enter session token (blank for anonymous access): ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read session token: %w", err)
		}
		token = strings.TrimSpace(input)
	}

	if token != "" && !IsValidSessionToken(token) {
		return fmt.Errorf("invalid session token format (expected 'dock_<hex chars>')")
	}

	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	api, err := NewAPIClientWithConfig(token, apiURL)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	if _, err := api.Get("/health"); err != nil {
		return fmt.Errorf("server check failed: %w", err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{SessionToken: token, APIURL: apiURL}); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	if outputJSON {
		result := map[string]interface{}{
			"success": true,
			"api_url": apiURL,
			"config":  configPath,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("dock configured for %s\n", apiURL)
		fmt.Printf("Config saved to %s\n", configPath)
	}

	return nil
}
