package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	serverAddr string
	timeout    time.Duration
	outputJSON bool
	prettyJSON bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hookctl",
	Short: "Utmify Hooks CLI - Interact with the webhook delivery engine",
	Long: `Utmify Hooks CLI (hookctl) is a command line tool for interacting with
the Utmify webhook delivery engine.

You can use it to publish events, run test deliveries against endpoints,
inspect delivery statistics, and list or replay dead letters.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.hookctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:8080", "dispatchd address (host:port)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&prettyJSON, "pretty", false, "use jq for pretty JSON formatting (requires jq)")

	// Bind flags to viper
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".hookctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Override global variables with config values if flags weren't explicitly set
	if !rootCmd.PersistentFlags().Changed("server") {
		if s := viper.GetString("server"); s != "" {
			serverAddr = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
	if !rootCmd.PersistentFlags().Changed("pretty") {
		prettyJSON = viper.GetBool("pretty")
	}
}

// apiURL builds the full URL for an admin API path.
func apiURL(path string) string {
	addr := serverAddr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimSuffix(addr, "/") + path
}

// makeRequest makes an HTTP request to the dispatchd admin API.
func makeRequest(method, path string, body interface{}) (*http.Response, error) {
	client := &http.Client{Timeout: timeout}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, apiURL(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return client.Do(req)
}

// decodeResponse decodes a JSON response body into out, turning API error
// payloads ({"error": "..."}) into Go errors.
func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkJQAvailable checks if jq is available in PATH
func checkJQAvailable() bool {
	_, err := exec.LookPath("jq")
	return err == nil
}

// formatWithJQ formats JSON using jq for pretty printing
func formatWithJQ(jsonData []byte) (string, error) {
	if !checkJQAvailable() {
		return "", fmt.Errorf("jq not found in PATH")
	}

	cmd := exec.Command("jq", ".")
	cmd.Stdin = bytes.NewReader(jsonData)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("jq formatting failed: %s", stderr.String())
	}

	return out.String(), nil
}

// printOutput prints the response in the requested format
func printOutput(v interface{}) {
	if outputJSON {
		var jsonData []byte
		var err error

		if prettyJSON {
			// Compact JSON if we're going to format with jq
			jsonData, err = json.Marshal(v)
		} else {
			jsonData, err = json.MarshalIndent(v, "", "  ")
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
			return
		}

		if prettyJSON {
			formatted, jqErr := formatWithJQ(jsonData)
			if jqErr != nil {
				// Fall back to standard pretty printing if jq fails
				fmt.Fprintf(os.Stderr, "Warning: %v, falling back to standard formatting\n", jqErr)
				jsonData, _ = json.MarshalIndent(v, "", "  ")
				fmt.Println(string(jsonData))
			} else {
				// Print jq-formatted output (already includes newline)
				fmt.Print(formatted)
			}
		} else {
			fmt.Println(string(jsonData))
		}
	} else {
		// Human-readable format
		fmt.Printf("%+v\n", v)
	}
}
