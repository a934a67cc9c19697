package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/ttyscope/internal/config"
)

var configInitOutput string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Default()
		if err != nil {
			exitWithError("failed to build defaults", err)
		}

		data, err := yaml.Marshal(map[string]*config.Config{"ttyscope": cfg})
		if err != nil {
			exitWithError("failed to marshal config", err)
		}

		if _, err := os.Stat(configInitOutput); err == nil {
			exitWithError(fmt.Sprintf("%s already exists", configInitOutput), nil)
		}
		if err := os.WriteFile(configInitOutput, data, 0644); err != nil {
			exitWithError("failed to write config", err)
		}
		fmt.Printf("wrote %s\n", configInitOutput)
	},
}

func init() {
	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "ttyscope.yml", "output file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
