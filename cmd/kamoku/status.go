package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/cli"
	"github.com/hyperjump/kamoku/internal/search"
)

func newStatusCmd(configPath func() string) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long: `Shows the serving snapshot of a running server, or with --server "" the
manifest of the artifacts on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				st, err := cli.NewClient(serverURL).Status(cmd.Context())
				if err != nil {
					return err
				}
				return cli.WriteStatus(cmd.OutOrStdout(), st.Stats, st.DiskUsageBytes, format)
			}

			cfg, _, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			a, err := newApp(cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.store.Manifest(cmd.Context())
			if err != nil {
				return fmt.Errorf("read artifacts in %s: %w", a.store.Dir(), err)
			}
			usage, err := a.store.DiskUsage()
			if err != nil {
				return err
			}
			st := search.Stats{
				Ready:         true,
				Records:       m.Size,
				Fingerprint:   m.Fingerprint,
				BuildID:       m.BuildID,
				BuiltAt:       m.BuiltAt,
				Embedder:      m.Embedder,
				Dimensions:    m.Dimensions,
				SemanticIndex: m.SemanticIndex,
				LexicalIndex:  m.LexicalIndex,
				Fusion:        cfg.Search.Fusion,
				FilterPolicy:  cfg.Search.FilterPolicy,
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, usage, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", `server URL ("" reads the artifact directory)`)
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
