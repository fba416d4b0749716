package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// endpointCmd represents the endpoint command
var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Inspect and test webhook endpoints",
	Long:  `Inspect registered endpoints and run synchronous test deliveries against them.`,
}

// endpointGetCmd represents the endpoint get command
var endpointGetCmd = &cobra.Command{
	Use:   "get [tenant-id] [endpoint-id]",
	Short: "Show an endpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/v1/tenants/%s/endpoints/%s",
			url.PathEscape(args[0]), url.PathEscape(args[1]))

		resp, err := makeRequest(http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("failed to get endpoint: %w", err)
		}

		var out map[string]interface{}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		printOutput(out)
		return nil
	},
}

// endpointTestCmd represents the endpoint test command
var endpointTestCmd = &cobra.Command{
	Use:   "test [tenant-id] [endpoint-id]",
	Short: "Send a test delivery to an endpoint",
	Long: `Send a single synthetic delivery to the endpoint and wait for the result.
Test deliveries make exactly one attempt; a failure is never retried.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/v1/tenants/%s/endpoints/%s/test",
			url.PathEscape(args[0]), url.PathEscape(args[1]))

		resp, err := makeRequest(http.MethodPost, path, nil)
		if err != nil {
			return fmt.Errorf("failed to test endpoint: %w", err)
		}

		var out struct {
			DeliveryID string `json:"deliveryId"`
			Success    bool   `json:"success"`
			StatusCode int    `json:"statusCode"`
			LatencyMS  int64  `json:"latencyMs"`
			Error      string `json:"error"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
			return nil
		}

		if out.Success {
			fmt.Printf("✓ Test delivery succeeded (HTTP %d, %dms)\n", out.StatusCode, out.LatencyMS)
		} else {
			fmt.Printf("✗ Test delivery failed: %s\n", out.Error)
		}
		fmt.Printf("  Delivery ID: %s\n", out.DeliveryID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointCmd)
	endpointCmd.AddCommand(endpointGetCmd)
	endpointCmd.AddCommand(endpointTestCmd)
}
