// ABOUTME: Subcommands for serving, config bootstrap, schema migration, accounts and stats
// ABOUTME: Admin commands open the store directly and never need a running server

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/cultural-storyteller/internal/auth"
	"github.com/2389/cultural-storyteller/internal/config"
	"github.com/2389/cultural-storyteller/internal/server"
	"github.com/2389/cultural-storyteller/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the storyteller web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			cyan := color.New(color.FgCyan)
			gray := color.New(color.FgHiBlack)
			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			cyan.Fprint(out, banner)
			gray.Fprintf(out, "    version: %s\n\n", version)

			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "Config:     %s\n", opts.path())
			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "HTTP:       %s\n", cfg.Server.HTTPAddr)
			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "Database:   %s\n", cfg.Database.Path)
			green.Fprint(out, "    ▶ ")
			fmt.Fprintf(out, "Generation: %s", cfg.Generation.Provider)
			if cfg.Generation.Provider == "openai" && cfg.Generation.APIKey == "" {
				yellow.Fprint(out, " [no api key, stub content]")
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out)

			logger := setupLogger(cfg.Logging)
			logger.Info("starting storyteller",
				"config", opts.path(),
				"http_addr", cfg.Server.HTTPAddr,
			)

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file with a fresh JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.path()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			secret, err := generateSecret()
			if err != nil {
				return err
			}
			cfg := config.Default()
			cfg.Auth.JWTSecret = secret

			if err := config.Write(path, cfg); err != nil {
				return err
			}

			green := color.New(color.FgGreen)
			green.Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// generateSecret returns 32 random bytes, base64 encoded.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// openStore opens the configured database quietly. Opening applies pending migrations.
func openStore(opts *rootOptions) (*config.Config, *store.SQLiteStore, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.NewSQLiteStore(cfg.Database.Path, store.WithLogger(quiet))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, s, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			version, err := s.SchemaVersion()
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date (schema version %d)\n", cfg.Database.Path, version)
			return nil
		},
	}
}

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCmd(opts))
	return cmd
}

func newUserCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		role     string
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Create a storyteller or audience account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}

			if password == "" {
				password, err = readPassword(cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			cfg, s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			svc := auth.NewService(s, auth.ServiceConfig{
				MinPasswordLength: cfg.Auth.MinPasswordLength,
				BcryptCost:        cfg.Auth.BcryptCost,
			}, slog.New(slog.NewTextHandler(io.Discard, nil)))

			user, err := svc.Register(cmd.Context(), args[0], password, r, email)
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), "✓ ")
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s account %q (id %d)\n", r.Label(), user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&role, "role", "r", string(auth.RoleStoryteller), "account role: storyteller or audience")
	cmd.Flags().StringVarP(&email, "email", "e", "", "contact email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

// readPassword reads one line from in after printing a prompt.
func readPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print platform statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.PlatformStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			bold.Fprintln(out, "Platform")
			fmt.Fprintf(out, "  Users:        %d\n", stats.TotalUsers)

			roles := make([]string, 0, len(stats.UsersByRole))
			for r := range stats.UsersByRole {
				roles = append(roles, r)
			}
			slices.Sort(roles)
			for _, r := range roles {
				fmt.Fprintf(out, "    %-12s %d\n", r+":", stats.UsersByRole[r])
			}

			fmt.Fprintf(out, "  Stories:      %d\n", stats.TotalStories)
			fmt.Fprintf(out, "  Views:        %d\n", stats.TotalViews)
			fmt.Fprintf(out, "  Likes:        %d\n", stats.TotalLikes)
			fmt.Fprintf(out, "  Active rooms: %d\n", stats.ActiveRooms)
			return nil
		},
	}
}
