package main

import (
	"os"

	"github.com/spf13/cobra"

	"modmail/internal/interfaces/cli/serve"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modmail",
		Short: "Modmail - a DM-to-thread relay bot",
		Long:  `Modmail relays direct messages from users into per-user staff threads and staff replies back, keeping both sides consistent across edits and deletions.`,
	}

	rootCmd.AddCommand(
		serve.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
