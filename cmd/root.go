// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ttyscope",
	Short: "ttyscope - terminal serial port monitor",
	Long: `ttyscope is a terminal serial-port monitor. It opens a serial port,
reassembles the byte stream into packets using inter-byte silence, and renders
them as decoded text (with keyword highlighting) or hex. Typed input is sent
back out the port.

Features:
  - Silence-based packet framing with a configurable idle timeout
  - Bounded relay buffer with a drop-oldest overflow policy
  - Pluggable character encodings (UTF-8, GBK, UTF-16, ...) with hex fallback
  - Keyword highlighting, Modbus frame summaries, session logging
  - Live baud rate, timeout, and encoding changes from the interactive console`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
