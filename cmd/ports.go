package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/ttyscope/internal/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := serial.List()
		if err != nil {
			exitWithError("failed to enumerate ports", err)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
