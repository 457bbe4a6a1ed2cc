package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ZanzyTHEbar/gitfolio/internal/adapters"
	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/ZanzyTHEbar/gitfolio/internal/resilience"
	"github.com/ZanzyTHEbar/gitfolio/internal/security"
	"github.com/spf13/cobra"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

type analyzeOptions struct {
	Fixture string
	Record  string
	Format  string
}

func newAnalyzeCmd(configFile *string) *cobra.Command {
	opts := analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <username>",
		Short: "Analyze a GitHub profile.",
		Long: `Fetch a profile and its repositories, then print statistics,
top languages, top repositories and the collaboration score.

Use --record to capture every upstream response into a snapshot and
--fixture to replay one without touching the network.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New(*configFile)
			for key, flag := range map[string]string{
				"github_token":    "token",
				"github_base_url": "base-url",
				"workers":         "workers",
				"log_level":       "log-level",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logger := monitoring.NewLogger(cmd.ErrOrStderr(), monitoring.ParseLevel(cfg.LogLevel))
			return runAnalyze(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout(), logger.Logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Fixture, "fixture", "", "replay a recorded snapshot instead of calling the API")
	flags.StringVar(&opts.Record, "record", "", "write every upstream response to this snapshot file")
	flags.StringVarP(&opts.Format, "format", "f", formatTable, "output format: table or json")
	flags.String("token", "", "GitHub token (defaults to GITFOLIO_GITHUB_TOKEN or GITHUB_TOKEN)")
	flags.String("base-url", "", "GitHub API base URL")
	flags.Int("workers", 8, "concurrent secondary fetches")
	flags.String("log-level", "info", "log level written to stderr")
	return cmd
}

// newSource returns the fixture or live source selected by opts
func newSource(cfg *config.Config, opts analyzeOptions) (analysis.RecordSource, error) {
	if opts.Fixture != "" {
		return adapters.LoadFixture(opts.Fixture)
	}
	return adapters.NewGitHubAdapter(adapters.GitHubConfig{
		Token:             cfg.GitHubToken,
		BaseURL:           cfg.GitHubBaseURL,
		RequestsPerSecond: cfg.SourceRPS,
		Burst:             cfg.SourceBurst,
		Retry:             resilience.SourceRetryConfig(),
		Pool:              resilience.DefaultPoolConfig(),
	})
}

func runAnalyze(ctx context.Context, cfg *config.Config, opts analyzeOptions, username string, out io.Writer, logger *slog.Logger) error {
	if opts.Format != formatJSON && opts.Format != formatTable {
		return apperrors.NewValidationError(fmt.Sprintf("unknown output format %q", opts.Format), "expected table or json")
	}

	login, err := security.ValidateUsername(username)
	if err != nil {
		return err
	}

	source, err := newSource(cfg, opts)
	if err != nil {
		return err
	}

	var recorder *adapters.RecordingSource
	if opts.Record != "" {
		recorder = adapters.NewRecordingSource(source)
		source = recorder
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.AnalysisTimeout)
	defer cancel()

	analyzer := analysis.NewAnalyzer(source,
		analysis.WithWorkers(cfg.Workers),
		analysis.WithLogger(logger),
	)
	profile, err := analyzer.Analyze(ctx, login)
	if err != nil {
		return err
	}

	if recorder != nil {
		if err := recorder.WriteFile(opts.Record); err != nil {
			return err
		}
		logger.Info("Snapshot written", "path", opts.Record)
	}

	if opts.Format == formatJSON {
		return renderJSON(out, profile)
	}
	return renderTables(out, profile)
}
