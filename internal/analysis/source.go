package analysis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// RecordSource is the capability the engine consumes. GetUser and
// ListRepositories failures abort a run; every other method may fail
// independently and is degraded to its fetch site's default.
type RecordSource interface {
	GetUser(ctx context.Context, login string) (*types.RawUser, error)
	ListRepositories(ctx context.Context, login string) ([]types.RawRepository, error)
	GetLanguageBreakdown(ctx context.Context, repo types.RawRepository) (map[string]int64, error)
	GetCommitCount(ctx context.Context, repo types.RawRepository, author string) (int, error)
	ListCommits(ctx context.Context, repo types.RawRepository, limit int) ([]types.Commit, error)
	GetCollaborators(ctx context.Context, repo types.RawRepository) ([]types.Person, error)
	GetContributors(ctx context.Context, repo types.RawRepository) ([]types.Person, error)
	GetPullRequests(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.PullRequest, error)
	GetIssues(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.Issue, error)
	GetReviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) ([]types.Review, error)
}

// FailureRecorder receives one call per degraded secondary fetch
type FailureRecorder interface {
	RecordFetchFailure(site string)
}

// FetchSite names a secondary fetch and, by convention, its default on failure.
type FetchSite string

const (
	// SiteLanguages falls back to crediting the primary language Limits.FallbackLanguageBytes.
	SiteLanguages FetchSite = "languages"
	// SiteCommitCount contributes zero commits.
	SiteCommitCount FetchSite = "commit_count"
	// SiteCommits contributes no weekday samples.
	SiteCommits FetchSite = "commits"
	// SiteCollaborators yields zero collaborators for the repository.
	SiteCollaborators FetchSite = "collaborators"
	// SiteContributors yields zero contributors for the repository.
	SiteContributors FetchSite = "contributors"
	// SitePullRequests yields zero pull requests and no external authors.
	SitePullRequests FetchSite = "pull_requests"
	// SiteIssues yields zero issues.
	SiteIssues FetchSite = "issues"
	// SiteReviews counts the pull request as unreviewed.
	SiteReviews FetchSite = "reviews"
)

const stateAll = "all"

// fetcher wraps a RecordSource for one run. Collaborator and contributor
// listings are memoized so the people registry and the scoring model share
// one request per repository.
type fetcher struct {
	source   RecordSource
	recorder FailureRecorder
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string][]types.Person
}

func newFetcher(source RecordSource, recorder FailureRecorder, logger *slog.Logger) *fetcher {
	return &fetcher{
		source:   source,
		recorder: recorder,
		logger:   logger,
		memo:     make(map[string][]types.Person),
	}
}

// attempt runs fn and substitutes def when it fails
func attempt[T any](f *fetcher, site FetchSite, repo types.RawRepository, def T, fn func() (T, error)) (T, bool) {
	v, err := fn()
	if err != nil {
		f.logger.Debug("Secondary fetch degraded", "site", site, "repo", repo.Key(), "error", err)
		if f.recorder != nil {
			f.recorder.RecordFetchFailure(string(site))
		}
		return def, false
	}
	return v, true
}

func (f *fetcher) languages(ctx context.Context, repo types.RawRepository) (map[string]int64, bool) {
	return attempt(f, SiteLanguages, repo, nil, func() (map[string]int64, error) {
		return f.source.GetLanguageBreakdown(ctx, repo)
	})
}

func (f *fetcher) commitCount(ctx context.Context, repo types.RawRepository, author string) int {
	n, _ := attempt(f, SiteCommitCount, repo, 0, func() (int, error) {
		return f.source.GetCommitCount(ctx, repo, author)
	})
	return n
}

func (f *fetcher) commits(ctx context.Context, repo types.RawRepository, limit int) []types.Commit {
	commits, _ := attempt(f, SiteCommits, repo, nil, func() ([]types.Commit, error) {
		return f.source.ListCommits(ctx, repo, limit)
	})
	return head(commits, limit)
}

func (f *fetcher) collaborators(ctx context.Context, repo types.RawRepository) []types.Person {
	return f.people(SiteCollaborators, repo, func() ([]types.Person, error) {
		return f.source.GetCollaborators(ctx, repo)
	})
}

func (f *fetcher) contributors(ctx context.Context, repo types.RawRepository) []types.Person {
	return f.people(SiteContributors, repo, func() ([]types.Person, error) {
		return f.source.GetContributors(ctx, repo)
	})
}

func (f *fetcher) people(site FetchSite, repo types.RawRepository, fn func() ([]types.Person, error)) []types.Person {
	key := string(site) + ":" + repo.Key()
	if people, ok := f.cached(key); ok {
		return people
	}
	v, _, _ := f.group.Do(key, func() (interface{}, error) {
		if people, ok := f.cached(key); ok {
			return people, nil
		}
		people, _ := attempt(f, site, repo, nil, fn)
		f.mu.Lock()
		f.memo[key] = people
		f.mu.Unlock()
		return people, nil
	})
	return v.([]types.Person)
}

func (f *fetcher) cached(key string) ([]types.Person, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	people, ok := f.memo[key]
	return people, ok
}

func (f *fetcher) pullRequests(ctx context.Context, repo types.RawRepository, limit int) []types.PullRequest {
	pulls, _ := attempt(f, SitePullRequests, repo, nil, func() ([]types.PullRequest, error) {
		return f.source.GetPullRequests(ctx, repo, stateAll, limit)
	})
	return head(pulls, limit)
}

func (f *fetcher) issues(ctx context.Context, repo types.RawRepository, limit int) []types.Issue {
	issues, _ := attempt(f, SiteIssues, repo, nil, func() ([]types.Issue, error) {
		return f.source.GetIssues(ctx, repo, stateAll, limit)
	})
	return head(issues, limit)
}

func (f *fetcher) reviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) []types.Review {
	reviews, _ := attempt(f, SiteReviews, repo, nil, func() ([]types.Review, error) {
		return f.source.GetReviews(ctx, repo, pr, limit)
	})
	return head(reviews, limit)
}

// forEach runs fn for indexes [0, n) on a pool of at most workers goroutines.
// fn must only write to state owned by its index.
func forEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}
