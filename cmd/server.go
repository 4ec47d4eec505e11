package cmd

import (
	"coinfm/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the CoinFM HTTP server",
	Long:  `Start the CoinFM HTTP server serving the catalog, playback, wallet and social APIs.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
