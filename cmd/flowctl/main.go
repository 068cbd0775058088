// Command flowctl manages stored boards without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"flowboard/infrastructure/config"
	"flowboard/infrastructure/di"

	"github.com/spf13/cobra"
)

var (
	userID     string
	jsonOutput bool
	verbose    bool

	cfg       *config.Config
	container *di.Container
	cleanup   func()
)

var rootCmd = &cobra.Command{
	Use:           "flowctl <command>",
	Short:         "Manage flowboard boards from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if !verbose {
			loaded.LogLevel = "warn"
		}
		if userID == "" {
			userID = loaded.DevUserID
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if container != nil {
			container.Sessions.CloseAll(context.Background())
			_ = container.Logger.Sync()
		}
		if cleanup != nil {
			cleanup()
		}
	},
}

// wire builds the store and buses on first use; token needs neither
func wire(ctx context.Context) (*di.Container, error) {
	if container != nil {
		return container, nil
	}
	c, release, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	container, cleanup = c, release
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "owner of the boards (defaults to DEV_USER_ID)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level")

	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", bad.Sprint("Error:"), err)
		os.Exit(1)
	}
}
