package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// eventCmd represents the event command
var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage webhook events",
	Long:  `Publish domain events into the webhook delivery engine.`,
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish [tenant-id] [event-type] [data-json]",
	Short: "Publish a domain event",
	Long: `Publish a domain event with a JSON data object. The engine fans the
event out to every active endpoint of the tenant subscribed to the type.

Example:
  hookctl event publish tn_123 campaign.created '{"campaignId":"cmp_789","name":"Summer"}'`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]
		eventType := args[1]
		dataJSON := args[2]

		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return fmt.Errorf("invalid data JSON: %w", err)
		}

		resp, err := makeRequest(http.MethodPost, "/v1/events", map[string]interface{}{
			"type":     eventType,
			"tenantId": tenantID,
			"data":     data,
		})
		if err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}

		var out struct {
			EventID    string `json:"eventId"`
			Deliveries int    `json:"deliveries"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			return err
		}

		if outputJSON {
			printOutput(out)
		} else {
			fmt.Printf("Published event: %s\n", out.EventID)
			fmt.Printf("  Deliveries enqueued: %d\n", out.Deliveries)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(publishCmd)
}
