package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/listingwizard/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "listingwizard",
	Short: "Multi-stage property listing wizard",
	Long: `listingwizard serves the listing wizard API and inspects the drafts it
keeps in its local database.

Configuration is read from the environment (and a .env file), see
LISTEN_ADDR, DB_PATH, SPOOL_PATH, SUBMIT_URL and friends.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(draftCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
