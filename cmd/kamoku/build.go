package main

import (
	"github.com/spf13/cobra"
)

func newBuildCmd(configPath func() string) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and persist index artifacts for the configured corpus",
		Long: `Loads the corpus (merging the secondary catalog when configured), embeds
every record, builds both indexes and writes them to the artifact directory.
Existing artifacts are replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			logger, err := newLoggerFor(cfg, debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.rebuild(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Built %d records (fingerprint %s, build %s) in %s\n",
				snap.Size(), snap.Fingerprint(), snap.BuildID, a.store.Dir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}
