package cmd

import (
	"fmt"
	"os"

	"PulseFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulsefm",
	Short: "PulseFM is a personal playback controller and audio broadcaster.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
