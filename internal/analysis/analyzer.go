package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// ErrNotFound is wrapped by record sources when the requested login does not exist
var ErrNotFound = errors.New("record not found")

const defaultWorkers = 8

// Analyzer orchestrates the full analysis pipeline
type Analyzer struct {
	source   RecordSource
	limits   Limits
	workers  int
	now      func() time.Time
	recorder FailureRecorder
	logger   *slog.Logger
}

// Option configures an Analyzer
type Option func(*Analyzer)

func WithLimits(l Limits) Option {
	return func(a *Analyzer) { a.limits = l.withDefaults() }
}

// WithWorkers bounds concurrent per-repository fetches
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithClock replaces the wall clock used for the streak, update windows and the analysis timestamp
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnalyzer creates a new analyzer reading from source
func NewAnalyzer(source RecordSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:  source,
		limits:  DefaultLimits(),
		workers: defaultWorkers,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Limits() Limits {
	return a.limits
}

// Analyze fetches and scores one profile. It returns either a complete
// profile or a single error: a validation error for an empty login, a
// source error when the user or repository lookup fails or the deadline
// expires, or an analysis error when assembly fails.
func (a *Analyzer) Analyze(ctx context.Context, login string) (*AnalyzedProfile, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, apperrors.NewValidationError("Username is required")
	}

	start := a.now()
	a.logger.Info("Starting profile analysis", "username", login)

	user, err := a.source.GetUser(ctx, login)
	if err != nil {
		return nil, sourceError(login, fmt.Errorf("get user: %w", err))
	}
	repos, err := a.source.ListRepositories(ctx, user.Login)
	if err != nil {
		return nil, sourceError(login, fmt.Errorf("list repositories: %w", err))
	}

	f := newFetcher(a.source, a.recorder, a.logger)
	commitCounts := a.fetchCommitCounts(ctx, f, user.Login, repos)
	breakdowns := a.fetchLanguageBreakdowns(ctx, f, repos)
	samples := a.fetchCommitSamples(ctx, f, repos)
	collab := a.collaborationScore(ctx, f, user.Login, repos)
	people := a.peopleSummary(ctx, f, user.Login, repos)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewSourceTimeoutError(login, err)
	}

	profile, err := a.assemble(login, user, repos, commitCounts, breakdowns, samples, collab, people)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Profile analysis completed",
		"username", login,
		"repos", len(repos),
		"overall_score", profile.CollaborationScore.OverallScore,
		"duration", a.now().Sub(start))
	return profile, nil
}

func (a *Analyzer) assemble(
	login string,
	user *types.RawUser,
	repos []types.RawRepository,
	commitCounts []int,
	breakdowns []languageBreakdown,
	samples [][]types.Commit,
	collab CollaborationScore,
	people PeopleSummary,
) (profile *AnalyzedProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			profile = nil
			err = apperrors.NewAnalysisError("Failed to assemble profile", fmt.Errorf("%v", r))
		}
	}()

	now := a.now()
	languages := languageDistribution(repos, breakdowns, a.limits.TopLanguages, a.limits.FallbackLanguageBytes)

	name := user.Name
	if name == "" {
		name = login
	}

	return &AnalyzedProfile{
		Username:            login,
		Name:                name,
		Bio:                 user.Bio,
		AvatarURL:           user.AvatarURL,
		Blog:                user.Blog,
		Location:            user.Location,
		Email:               user.Email,
		TwitterUsername:     user.TwitterUsername,
		Company:             user.Company,
		Hireable:            user.Hireable,
		CreatedAt:           formatTime(user.CreatedAt),
		UpdatedAt:           formatTime(user.UpdatedAt),
		Stats:               aggregateStats(user, repos, commitCounts),
		TopLanguages:        languages,
		TopRepositories:     topRepositories(repos, a.limits.TopRepositories),
		ContributionSummary: contributionSummary(repos, samples, now, a.limits),
		CollaborationScore:  collab,
		Collaborators:       people,
		Summary:             narrative(user, repos, languages, a.limits.NarrativeLanguages),
		AnalyzedAt:          now.UTC(),
	}, nil
}

func sourceError(login string, err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperrors.NewSourceNotFoundError(login, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.NewSourceTimeoutError(login, err)
	default:
		return apperrors.NewSourceError(login, err)
	}
}
