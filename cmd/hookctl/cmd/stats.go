package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Delivery statistics",
	Long:  `Read and reset per-tenant delivery statistics.`,
}

// statsGetCmd represents the stats get command
var statsGetCmd = &cobra.Command{
	Use:   "get [tenant-id]",
	Short: "Show delivery stats for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpointID, _ := cmd.Flags().GetString("endpoint")

		path := fmt.Sprintf("/v1/tenants/%s/stats", url.PathEscape(args[0]))
		if endpointID != "" {
			path += "?endpointId=" + url.QueryEscape(endpointID)
		}

		resp, err := makeRequest(http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		var out struct {
			Total       int64   `json:"total"`
			Successful  int64   `json:"successful"`
			Failed      int64   `json:"failed"`
			Discarded   int64   `json:"discarded"`
			Pending     int64   `json:"pending"`
			SuccessRate float64 `json:"successRate"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
			return nil
		}

		scope := "tenant " + args[0]
		if endpointID != "" {
			scope += ", endpoint " + endpointID
		}
		fmt.Printf("Delivery stats (%s):\n", scope)
		fmt.Printf("  Total:        %d\n", out.Total)
		fmt.Printf("  Successful:   %d\n", out.Successful)
		fmt.Printf("  Failed:       %d\n", out.Failed)
		fmt.Printf("  Discarded:    %d\n", out.Discarded)
		fmt.Printf("  Pending:      %d\n", out.Pending)
		fmt.Printf("  Success rate: %.1f%%\n", out.SuccessRate)
		return nil
	},
}

// statsResetCmd represents the stats reset command
var statsResetCmd = &cobra.Command{
	Use:   "reset [tenant-id]",
	Short: "Reset delivery stats for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/v1/tenants/%s/stats", url.PathEscape(args[0]))

		resp, err := makeRequest(http.MethodDelete, path, nil)
		if err != nil {
			return fmt.Errorf("failed to reset stats: %w", err)
		}
		if err := decodeResponse(resp, nil); err != nil {
			return err
		}

		fmt.Printf("Stats reset for tenant %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsGetCmd)
	statsCmd.AddCommand(statsResetCmd)

	statsGetCmd.Flags().String("endpoint", "", "scope stats to one endpoint")
}
