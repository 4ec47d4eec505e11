package cmd

import (
	"fmt"
	"log"
	"os"

	"coinfm/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coinfm",
	Short: "CoinFM is a coin-powered music streaming service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting CoinFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
