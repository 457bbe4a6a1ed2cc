package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/ZanzyTHEbar/gitfolio/internal/monitoring"
	"github.com/ZanzyTHEbar/gitfolio/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultAnalysisTimeout = 2 * time.Minute

	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Analyzer runs one profile analysis
type Analyzer interface {
	Analyze(ctx context.Context, login string) (*analysis.AnalyzedProfile, error)
}

// ProfileStore is the durable side of the service
type ProfileStore interface {
	Save(ctx context.Context, profile *analysis.AnalyzedProfile) error
	Load(ctx context.Context, username string) (*store.StoredProfile, error)
	Latest(ctx context.Context) (*store.StoredProfile, error)
	Delete(ctx context.Context, username string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	TopScores(ctx context.Context, limit int) ([]store.ScoreEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProfileCache is the hot side of the service
type ProfileCache interface {
	Get(ctx context.Context, username string) (*analysis.AnalyzedProfile, bool)
	Set(ctx context.Context, username string, profile *analysis.AnalyzedProfile)
	Delete(ctx context.Context, username string)
	Clear(ctx context.Context)
}

// Metrics is the subset of monitoring.Metrics the service reports to
type Metrics interface {
	IncrementAnalysisStarted()
	RecordAnalysisResult(err error)
	IncrementStoreHit()
	IncrementStoreMiss()
}

type Config struct {
	// MaxAge is how long a stored analysis is served before it counts as stale.
	MaxAge time.Duration
	// AnalysisTimeout bounds one analysis run, including all upstream fetches.
	AnalysisTimeout time.Duration
}

// ProfileService serves analyzed profiles from cache, store or a fresh analysis
type ProfileService struct {
	analyzer Analyzer
	store    ProfileStore
	cache    ProfileCache
	metrics  Metrics
	logger   *monitoring.Logger
	config   Config
	now      func() time.Time

	inflight singleflight.Group
}

func NewProfileService(analyzer Analyzer, st ProfileStore, cache ProfileCache, metrics Metrics, logger *monitoring.Logger, cfg Config) *ProfileService {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if logger == nil {
		logger = &monitoring.Logger{Logger: slog.Default()}
	}
	return &ProfileService{
		analyzer: analyzer,
		store:    st,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Analyze always runs a fresh analysis, then persists and caches the result.
// Concurrent requests for the same login share one run; the run outlives a
// caller that disconnects.
func (s *ProfileService) Analyze(ctx context.Context, username string) (*analysis.AnalyzedProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("Username is required")
	}

	start := s.now()
	v, err, shared := s.inflight.Do(normalize(username), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AnalysisTimeout)
		defer cancel()
		return s.analyze(runCtx, username)
	})
	if err != nil {
		return nil, err
	}

	profile := v.(*analysis.AnalyzedProfile)
	if shared {
		s.logger.Debug("Joined in-flight analysis", "username", username)
	}
	s.logger.AnalysisLogger(profile.Username, "analysis", profile.CollaborationScore.OverallScore, s.now().Sub(start))
	return profile, nil
}

func (s *ProfileService) analyze(ctx context.Context, username string) (*analysis.AnalyzedProfile, error) {
	if s.metrics != nil {
		s.metrics.IncrementAnalysisStarted()
	}
	profile, err := s.analyzer.Analyze(ctx, username)
	if s.metrics != nil {
		s.metrics.RecordAnalysisResult(err)
	}
	if err != nil {
		return nil, err
	}

	// A profile that was analyzed but could not be persisted is still served.
	if err := s.store.Save(ctx, profile); err != nil {
		s.logger.Warn("Failed to persist profile", "username", username, "error", err)
	}
	s.cache.Set(ctx, username, profile)
	return profile, nil
}

func (s *ProfileService) fresh(analyzedAt time.Time) bool {
	return s.now().Sub(analyzedAt) < s.config.MaxAge
}

// Get returns a stored profile younger than MaxAge. A forced refresh always
// misses so the caller falls through to Analyze.
func (s *ProfileService) Get(ctx context.Context, username string, forceRefresh bool) (*analysis.AnalyzedProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("Username is required")
	}
	if forceRefresh {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("No data found for user: %s", username))
	}

	start := s.now()
	if profile, ok := s.cache.Get(ctx, username); ok && s.fresh(profile.AnalyzedAt) {
		s.logger.AnalysisLogger(profile.Username, "cache", profile.CollaborationScore.OverallScore, s.now().Sub(start))
		return profile, nil
	}

	stored, err := s.store.Load(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.storeMiss()
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("No data found for user: %s", username))
		}
		return nil, apperrors.NewInternalError("Failed to load stored profile", err)
	}

	if !s.fresh(stored.AnalyzedAt) {
		s.storeMiss()
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Cached data expired for user: %s", username))
	}

	if s.metrics != nil {
		s.metrics.IncrementStoreHit()
	}
	s.cache.Set(ctx, username, stored.Profile)
	s.logger.AnalysisLogger(stored.Profile.Username, "store", stored.Profile.CollaborationScore.OverallScore, s.now().Sub(start))
	return stored.Profile, nil
}

func (s *ProfileService) storeMiss() {
	if s.metrics != nil {
		s.metrics.IncrementStoreMiss()
	}
}

// Latest returns the most recently analyzed profile regardless of age
func (s *ProfileService) Latest(ctx context.Context) (*analysis.AnalyzedProfile, error) {
	stored, err := s.store.Latest(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("No profile data found. Please analyze a profile first.")
		}
		return nil, apperrors.NewInternalError("Failed to load stored profile", err)
	}
	return stored.Profile, nil
}

// Delete removes one login from the store and the cache
func (s *ProfileService) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperrors.NewValidationError("Username is required")
	}

	s.cache.Delete(ctx, username)
	removed, err := s.store.Delete(ctx, username)
	if err != nil {
		return apperrors.NewInternalError("Failed to delete stored profile", err)
	}
	if !removed {
		return apperrors.NewNotFoundError(fmt.Sprintf("No data found for user: %s", username))
	}
	return nil
}

// Clear removes every stored and cached profile
func (s *ProfileService) Clear(ctx context.Context) (int64, error) {
	s.cache.Clear(ctx)
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, apperrors.NewInternalError("Failed to clear stored profiles", err)
	}
	s.logger.SystemLogger("profiles_cleared", fmt.Sprintf("%d profiles removed", n))
	return n, nil
}

// Leaderboard ranks stored profiles by overall collaboration score
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]store.ScoreEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		limit = MaxLeaderboardLimit
	}

	entries, err := s.store.TopScores(ctx, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load leaderboard", err)
	}
	return entries, nil
}

// Prune deletes stored profiles analyzed longer than retention ago
func (s *ProfileService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.store.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, apperrors.NewInternalError("Failed to prune stored profiles", err)
	}
	if n > 0 {
		s.logger.SystemLogger("profiles_pruned", fmt.Sprintf("%d profiles older than %s removed", n, retention))
	}
	return n, nil
}
