// Package main is the kamoku CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kamoku/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kamoku/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence, and a missing default file yields
// the built-in defaults. It returns the path actually used ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			if err := config.Validate(cfg); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "kamoku",
		Short: "Hybrid lexical and semantic search over course catalogs",
		Long: `kamoku indexes a course catalog twice, with BM25 over the course text and
with dense embeddings, and fuses the two rankings for each query.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	cfgPath := func() string { return configPath }

	root.AddCommand(
		newServeCmd(cfgPath),
		newBuildCmd(cfgPath),
		newSearchCmd(cfgPath),
		newMergeCmd(cfgPath),
		newStatusCmd(cfgPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the kamoku version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("kamoku version %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
