package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kamoku/internal/cli"
	"github.com/hyperjump/kamoku/internal/models"
	"github.com/hyperjump/kamoku/internal/server"
)

func newSearchCmd(configPath func() string) *cobra.Command {
	var (
		serverURL  string
		limit      int
		department string
		filterJSON string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "search [flags] <query>",
		Short: "Search the course index",
		Long: `Runs a hybrid query. The query is all remaining arguments joined by spaces.
By default the query goes to a running server; use --server "" to load the
artifacts directly.`,
		Example: `  kamoku search machine learning
  kamoku search --department philosophy "nature of being"
  kamoku search --filter '{"meeting_day": ["M", "W"], "meeting_start": {"gte": "09:00"}}' design
  kamoku search --server "" -o json csci 0320`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			req := server.SearchRequest{
				Query:      buildSearchQuery(args),
				K:          limit,
				Department: department,
			}
			if req.Query == "" {
				return fmt.Errorf("empty query")
			}
			if filterJSON != "" {
				if err := json.Unmarshal([]byte(filterJSON), &req.Filters); err != nil {
					return fmt.Errorf("--filter must be a JSON object: %w", err)
				}
			}

			var resp *models.SearchResponse
			if serverURL != "" {
				resp, err = cli.NewClient(serverURL).Search(cmd.Context(), req)
			} else {
				resp, err = searchDirect(cmd, configPath(), req)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", `server URL ("" loads artifacts directly)`)
	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "number of results (0 uses search.default_limit)")
	cmd.Flags().StringVarP(&department, "department", "d", "", "restrict results to a department")
	cmd.Flags().StringVar(&filterJSON, "filter", "", "filters as a JSON object")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, compact or json")
	return cmd
}

// searchDirect loads the persisted artifacts and queries them in process.
func searchDirect(cmd *cobra.Command, path string, req server.SearchRequest) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	logger := zap.NewNop()
	if cfg.Debug {
		if logger, err = newLoggerFor(cfg, true); err != nil {
			return nil, err
		}
		defer logger.Sync()
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if err := a.open(cmd.Context()); err != nil {
		return nil, err
	}
	filters, err := server.MergeDepartment(req.Filters, req.Department)
	if err != nil {
		return nil, err
	}
	return a.engine.Search(cmd.Context(), req.Query, filters, req.K)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
