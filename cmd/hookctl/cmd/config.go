package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hookctl configuration",
	Long:  `Manage hookctl configuration settings.`,
}

// configViewCmd represents the config view command
var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Long:  `Display the current configuration settings.`,
	Run: func(cmd *cobra.Command, args []string) {
		if outputJSON {
			config := map[string]interface{}{
				"server":  viper.GetString("server"),
				"timeout": viper.GetDuration("timeout").String(),
				"json":    viper.GetBool("json"),
				"pretty":  viper.GetBool("pretty"),
			}
			printOutput(config)
		} else {
			fmt.Println("Current configuration:")
			fmt.Printf("  Server: %s\n", viper.GetString("server"))
			fmt.Printf("  Timeout: %s\n", viper.GetDuration("timeout"))
			fmt.Printf("  JSON Output: %v\n", viper.GetBool("json"))
			fmt.Printf("  Pretty JSON: %v\n", viper.GetBool("pretty"))

			if viper.GetBool("pretty") && !checkJQAvailable() {
				fmt.Printf("  ⚠️  Warning: pretty=true but jq not found in PATH\n")
			}

			if viper.ConfigFileUsed() != "" {
				fmt.Printf("  Config file: %s\n", viper.ConfigFileUsed())
			} else {
				fmt.Println("  Config file: none (using defaults)")
			}
		}
	},
}

// configSetCmd represents the config set command
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save it to the config file.

Examples:
  hookctl config set server localhost:8080
  hookctl config set timeout 60s
  hookctl config set pretty true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := args[1]

		validKeys := map[string]bool{
			"server":  true,
			"timeout": true,
			"json":    true,
			"pretty":  true,
		}
		if !validKeys[key] {
			return fmt.Errorf("invalid config key %q (valid: server, timeout, json, pretty)", key)
		}

		if key == "timeout" {
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout value %q: %w", value, err)
			}
		}

		viper.Set(key, value)

		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to find home directory: %w", err)
			}
			configPath = filepath.Join(home, ".hookctl.yaml")
		}

		if err := viper.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Printf("Set %s = %s\n", key, value)
		fmt.Printf("Saved to %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configSetCmd)
}
