// Package main is the entry point for the ctxpack CLI.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flemzord/ctxpack/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ctxpack",
		Short:         "Fit captured sources into a model's context and shape them for its capabilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(
		versionCmd(),
		configCmd(),
		anchorCmd(),
		buildCmd(),
		budgetCmd(),
		capsCmd(),
		transformCmd(),
		prepareCmd(),
		serveCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctxpack %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration OK")
			fmt.Fprintf(out, "  tokenizer:  %s\n", orDefault(cfg.Tokenizer.Kind, config.TokenizerChars))
			fmt.Fprintf(out, "  gateway:    %s (auth: %t)\n", orDefault(cfg.Gateway.Bind, "127.0.0.1:8080"), cfg.Gateway.Auth.IsConfigured())
			fmt.Fprintf(out, "  catalog:    %t\n", cfg.Catalog.Enabled)
			fmt.Fprintf(out, "  tracing:    %t\n", cfg.Telemetry.Enabled())
			return nil
		},
	})
	return cmd
}

// loadConfig reads the --config file, or the first file found by
// resolveConfigPath. With neither, built-in defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &config.Config{Version: "1"}, nil
			}
			return nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/ctxpack/ctxpack.yaml → ./ctxpack.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "ctxpack", "ctxpack.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "ctxpack", "ctxpack.yaml"))
	}

	candidates = append(candidates, "ctxpack.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v): %w", candidates, fs.ErrNotExist)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
