package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/hyperjump/kamoku/internal/corpus"
	"github.com/hyperjump/kamoku/internal/models"
)

func newMergeCmd(configPath func() string) *cobra.Command {
	var primary, secondary, output string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge a primary and a secondary catalog into one corpus file",
		Long: `Combines two catalogs keyed by normalized course code. Primary records win;
their empty fields are filled from the secondary and such records are tagged
"merged". The result is written as a JSON array.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if primary == "" || secondary == "" {
				cfg, _, err := loadConfig(configPath())
				if err != nil {
					return err
				}
				if primary == "" {
					primary = cfg.Storage.CorpusPath
				}
				if secondary == "" {
					secondary = cfg.Storage.SecondaryCorpusPath
				}
			}
			if primary == "" || secondary == "" {
				return errors.New("both --primary and --secondary catalogs are required")
			}
			if output == "" {
				return errors.New("--output is required")
			}

			p, err := corpus.Load(primary, models.SourcePrimary)
			if err != nil {
				return err
			}
			s, err := corpus.Load(secondary, models.SourceSecondary)
			if err != nil {
				return err
			}
			merged := corpus.Merge(p, s)
			if err := corpus.Validate(merged); err != nil {
				return err
			}
			if err := corpus.Save(output, merged); err != nil {
				return err
			}
			counts := map[models.Source]int{}
			for _, c := range merged {
				counts[c.Source]++
			}
			cmd.Printf("Wrote %d courses to %s (%d primary, %d secondary, %d merged)\n", len(merged), output,
				counts[models.SourcePrimary], counts[models.SourceSecondary], counts[models.SourceMerged])
			return nil
		},
	}
	cmd.Flags().StringVar(&primary, "primary", "", "primary catalog (default storage.corpus_path)")
	cmd.Flags().StringVar(&secondary, "secondary", "", "secondary catalog (default storage.secondary_corpus_path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output corpus file (JSON)")
	return cmd
}
