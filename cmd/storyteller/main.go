// ABOUTME: Entry point for the cultural storyteller server and its admin commands
// ABOUTME: Builds the cobra command tree and runs it under a signal-aware context

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389/cultural-storyteller/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _                   _       _ _
 ___| |_ ___  _ __ _   _| |_ ___| | | ___ _ __
/ __| __/ _ \| '__| | | | __/ _ \ | |/ _ \ '__|
\__ \ || (_) | |  | |_| | ||  __/ | |  __/ |
|___/\__\___/|_|   \__, |\__\___|_|_|\___|_|
                   |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "storyteller",
		Short:         "Cultural storytelling platform",
		Long:          "Serve, configure and administer the cultural storyteller platform.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default $STORYTELLER_CONFIG or ~/.config/storyteller/config.yaml)")

	root.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newMigrateCmd(opts),
		newUserCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// path resolves the config file location.
func (o *rootOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.DefaultPath()
}

// load reads the config file, falling back to defaults when it does not exist.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.path())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
