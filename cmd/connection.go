package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"neon2retro/internal/config"
	"neon2retro/internal/migration"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check the Retro login and the Neon database",
	Long: `Authenticate against Retro and open the Neon database, independently of
each other, and report whether each side is reachable. Nothing is sent.`,
	Args: cobra.NoArgs,
	RunE: runTestConnection,
}

func init() {
	rootCmd.AddCommand(testConnectionCmd)

	testConnectionCmd.Flags().Bool("json", false, "Output as JSON format")
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(config.PartSource, config.PartDestination)
	if err != nil {
		return err
	}
	migrator, err := newMigrator(cfg, migration.Options{})
	if err != nil {
		return err
	}

	status := migrator.CheckConnections(context.Background())

	if jsonOutput {
		if err := outputJSON(status); err != nil {
			return err
		}
	} else {
		fmt.Println(strings.Repeat("=", 80))
		printCheck("Retro  ("+cfg.AuthAPIURL+")", status.Destination)
		printCheck("Neon   (table "+cfg.NeonTable+")", status.Source)
		fmt.Println(strings.Repeat("=", 80))
	}

	if !status.OK() {
		return fmt.Errorf("connection check failed")
	}
	return nil
}

func printCheck(name string, c migration.CheckResult) {
	state := "OK"
	if !c.OK {
		state = "FAILED"
	}
	fmt.Printf("%-50s %-7s %s\n", name, state, c.Elapsed.Round(time.Millisecond))
	if c.Error != "" {
		fmt.Printf("  %s\n", c.Error)
	}
}
