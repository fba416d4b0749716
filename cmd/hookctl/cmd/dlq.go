package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// dlqCmd represents the dlq command
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead letters",
	Long:  `List permanently failed deliveries and replay them as fresh lineages.`,
}

// dlqListCmd represents the dlq list command
var dlqListCmd = &cobra.Command{
	Use:   "list [tenant-id]",
	Short: "List recent dead letters for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		path := "/v1/dlq?tenantId=" + url.QueryEscape(args[0])
		if limit > 0 {
			path += "&limit=" + strconv.Itoa(limit)
		}

		resp, err := makeRequest(http.MethodGet, path, nil)
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		var out struct {
			DeadLetters []struct {
				DeliveryID   string `json:"deliveryId"`
				EndpointID   string `json:"endpointId"`
				FinalAttempt int    `json:"finalAttempt"`
				Reason       string `json:"reason"`
				LastError    string `json:"lastError"`
				FailedAt     string `json:"failedAt"`
			} `json:"deadLetters"`
			Count int `json:"count"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
			return nil
		}

		if out.Count == 0 {
			fmt.Println("No dead letters")
			return nil
		}
		fmt.Printf("%d dead letters:\n", out.Count)
		for _, e := range out.DeadLetters {
			fmt.Printf("  %s  endpoint=%s attempt=%d reason=%s failedAt=%s\n",
				e.DeliveryID, e.EndpointID, e.FinalAttempt, e.Reason, e.FailedAt)
			if e.LastError != "" {
				fmt.Printf("      %s\n", e.LastError)
			}
		}
		return nil
	},
}

// dlqReplayCmd represents the dlq replay command
var dlqReplayCmd = &cobra.Command{
	Use:   "replay [delivery-id]",
	Short: "Replay a dead letter as a new delivery",
	Long: `Re-dispatch a dead-lettered event to its endpoint as a fresh lineage
with a new delivery id and the full attempt budget.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fmt.Sprintf("/v1/dlq/%s/replay", url.PathEscape(args[0]))

		resp, err := makeRequest(http.MethodPost, path, nil)
		if err != nil {
			return fmt.Errorf("failed to replay dead letter: %w", err)
		}

		var out struct {
			DeliveryID string `json:"deliveryId"`
			ReplayOf   string `json:"replayOf"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Replayed %s as new delivery %s\n", out.ReplayOf, out.DeliveryID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqReplayCmd)

	dlqListCmd.Flags().Int("limit", 0, "maximum entries to return")
}
