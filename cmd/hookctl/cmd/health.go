package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the delivery engine",
	Long:  `Check the health status of dispatchd and its dependencies (Postgres, Redis).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := makeRequest(http.MethodGet, "/healthz", nil)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		defer resp.Body.Close()

		// /healthz returns the status JSON on 200 and 503 alike
		var out struct {
			OK       bool   `json:"ok"`
			Message  string `json:"message"`
			Database bool   `json:"database"`
			Redis    bool   `json:"redis"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		if outputJSON {
			printOutput(out)
			return nil
		}

		if out.OK {
			fmt.Println("✓ Service is healthy")
		} else {
			fmt.Printf("✗ Service is unhealthy: %s\n", out.Message)
			fmt.Printf("  Database: %v\n", out.Database)
			fmt.Printf("  Redis:    %v\n", out.Redis)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
