package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"neon2retro/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "neon2retro",
	Short: "Migrate invoices from the Neon database into Retro",
	Long: `neon2retro reads invoice rows from the Neon PostgreSQL database, reshapes
each one into Retro's invoice form (header, six GST rate slots and four
additional-cost slots) and submits them one by one to the Retro API.

Configuration is read from the environment (a .env file is loaded if present).
Run "neon2retro migrate --help" for the list of variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
