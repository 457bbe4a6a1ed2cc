package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// Snapshot is a frozen set of record source responses for one login.
// Keys are repository full names; reviews are keyed by "owner/name#number".
type Snapshot struct {
	User          *types.RawUser                 `json:"user"`
	Repositories  []types.RawRepository          `json:"repositories"`
	Languages     map[string]map[string]int64    `json:"languages,omitempty"`
	CommitCounts  map[string]int                 `json:"commit_counts,omitempty"`
	Commits       map[string][]types.Commit      `json:"commits,omitempty"`
	Collaborators map[string][]types.Person      `json:"collaborators,omitempty"`
	Contributors  map[string][]types.Person      `json:"contributors,omitempty"`
	PullRequests  map[string][]types.PullRequest `json:"pull_requests,omitempty"`
	Issues        map[string][]types.Issue       `json:"issues,omitempty"`
	Reviews       map[string][]types.Review      `json:"reviews,omitempty"`
	// Failures lists "site:key" pairs that failed when the snapshot was taken.
	Failures []string `json:"failures,omitempty"`
}

func reviewKey(repo types.RawRepository, pr types.PullRequest) string {
	return repo.Key() + "#" + strconv.Itoa(pr.Number)
}

// FixtureSource serves a Snapshot as an analysis.RecordSource
type FixtureSource struct {
	snap     Snapshot
	failures map[string]bool
}

// NewFixtureSource wraps an in-memory snapshot
func NewFixtureSource(snap Snapshot) *FixtureSource {
	failures := make(map[string]bool, len(snap.Failures))
	for _, f := range snap.Failures {
		failures[f] = true
	}
	return &FixtureSource{snap: snap, failures: failures}
}

// LoadFixture reads a JSON snapshot from disk
func LoadFixture(path string) (*FixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	if snap.User == nil {
		return nil, fmt.Errorf("fixture %s has no user", path)
	}
	return NewFixtureSource(snap), nil
}

func (s *FixtureSource) failed(site analysis.FetchSite, key string) error {
	if s.failures[string(site)+":"+key] {
		return fmt.Errorf("%s for %s failed when captured", site, key)
	}
	return nil
}

func (s *FixtureSource) GetUser(ctx context.Context, login string) (*types.RawUser, error) {
	if s.snap.User == nil || !strings.EqualFold(s.snap.User.Login, login) {
		return nil, fmt.Errorf("fixture user %s: %w", login, analysis.ErrNotFound)
	}
	u := *s.snap.User
	return &u, nil
}

func (s *FixtureSource) ListRepositories(ctx context.Context, login string) ([]types.RawRepository, error) {
	if _, err := s.GetUser(ctx, login); err != nil {
		return nil, err
	}
	return append([]types.RawRepository(nil), s.snap.Repositories...), nil
}

func (s *FixtureSource) GetLanguageBreakdown(ctx context.Context, repo types.RawRepository) (map[string]int64, error) {
	if err := s.failed(analysis.SiteLanguages, repo.Key()); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(s.snap.Languages[repo.Key()]))
	for lang, n := range s.snap.Languages[repo.Key()] {
		out[lang] = n
	}
	return out, nil
}

func (s *FixtureSource) GetCommitCount(ctx context.Context, repo types.RawRepository, author string) (int, error) {
	if err := s.failed(analysis.SiteCommitCount, repo.Key()); err != nil {
		return 0, err
	}
	return s.snap.CommitCounts[repo.Key()], nil
}

func (s *FixtureSource) ListCommits(ctx context.Context, repo types.RawRepository, limit int) ([]types.Commit, error) {
	if err := s.failed(analysis.SiteCommits, repo.Key()); err != nil {
		return nil, err
	}
	return limited(s.snap.Commits[repo.Key()], limit), nil
}

func (s *FixtureSource) GetCollaborators(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	if err := s.failed(analysis.SiteCollaborators, repo.Key()); err != nil {
		return nil, err
	}
	return limited(s.snap.Collaborators[repo.Key()], 0), nil
}

func (s *FixtureSource) GetContributors(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	if err := s.failed(analysis.SiteContributors, repo.Key()); err != nil {
		return nil, err
	}
	return limited(s.snap.Contributors[repo.Key()], 0), nil
}

func (s *FixtureSource) GetPullRequests(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.PullRequest, error) {
	if err := s.failed(analysis.SitePullRequests, repo.Key()); err != nil {
		return nil, err
	}
	return limited(s.snap.PullRequests[repo.Key()], limit), nil
}

func (s *FixtureSource) GetIssues(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.Issue, error) {
	if err := s.failed(analysis.SiteIssues, repo.Key()); err != nil {
		return nil, err
	}
	return limited(s.snap.Issues[repo.Key()], limit), nil
}

func (s *FixtureSource) GetReviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) ([]types.Review, error) {
	key := reviewKey(repo, pr)
	if err := s.failed(analysis.SiteReviews, key); err != nil {
		return nil, err
	}
	return limited(s.snap.Reviews[key], limit), nil
}

// limited copies at most limit items; limit <= 0 copies everything
func limited[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]T(nil), items...)
}

// RecordingSource passes calls through to another source and captures
// every response into a Snapshot that a FixtureSource can replay.
type RecordingSource struct {
	source analysis.RecordSource

	mu   sync.Mutex
	snap Snapshot
}

func NewRecordingSource(source analysis.RecordSource) *RecordingSource {
	return &RecordingSource{
		source: source,
		snap: Snapshot{
			Languages:     make(map[string]map[string]int64),
			CommitCounts:  make(map[string]int),
			Commits:       make(map[string][]types.Commit),
			Collaborators: make(map[string][]types.Person),
			Contributors:  make(map[string][]types.Person),
			PullRequests:  make(map[string][]types.PullRequest),
			Issues:        make(map[string][]types.Issue),
			Reviews:       make(map[string][]types.Review),
		},
	}
}

// Snapshot returns what has been captured so far
func (r *RecordingSource) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// WriteFile saves the captured snapshot as indented JSON
func (r *RecordingSource) WriteFile(path string) error {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *RecordingSource) record(site analysis.FetchSite, key string, err error, store func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.snap.Failures = append(r.snap.Failures, string(site)+":"+key)
		return
	}
	store()
}

func (r *RecordingSource) GetUser(ctx context.Context, login string) (*types.RawUser, error) {
	u, err := r.source.GetUser(ctx, login)
	if err == nil {
		r.mu.Lock()
		r.snap.User = u
		r.mu.Unlock()
	}
	return u, err
}

func (r *RecordingSource) ListRepositories(ctx context.Context, login string) ([]types.RawRepository, error) {
	repos, err := r.source.ListRepositories(ctx, login)
	if err == nil {
		r.mu.Lock()
		r.snap.Repositories = repos
		r.mu.Unlock()
	}
	return repos, err
}

func (r *RecordingSource) GetLanguageBreakdown(ctx context.Context, repo types.RawRepository) (map[string]int64, error) {
	langs, err := r.source.GetLanguageBreakdown(ctx, repo)
	r.record(analysis.SiteLanguages, repo.Key(), err, func() { r.snap.Languages[repo.Key()] = langs })
	return langs, err
}

func (r *RecordingSource) GetCommitCount(ctx context.Context, repo types.RawRepository, author string) (int, error) {
	n, err := r.source.GetCommitCount(ctx, repo, author)
	r.record(analysis.SiteCommitCount, repo.Key(), err, func() { r.snap.CommitCounts[repo.Key()] = n })
	return n, err
}

func (r *RecordingSource) ListCommits(ctx context.Context, repo types.RawRepository, limit int) ([]types.Commit, error) {
	commits, err := r.source.ListCommits(ctx, repo, limit)
	r.record(analysis.SiteCommits, repo.Key(), err, func() { r.snap.Commits[repo.Key()] = commits })
	return commits, err
}

func (r *RecordingSource) GetCollaborators(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	people, err := r.source.GetCollaborators(ctx, repo)
	r.record(analysis.SiteCollaborators, repo.Key(), err, func() { r.snap.Collaborators[repo.Key()] = people })
	return people, err
}

func (r *RecordingSource) GetContributors(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	people, err := r.source.GetContributors(ctx, repo)
	r.record(analysis.SiteContributors, repo.Key(), err, func() { r.snap.Contributors[repo.Key()] = people })
	return people, err
}

func (r *RecordingSource) GetPullRequests(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.PullRequest, error) {
	pulls, err := r.source.GetPullRequests(ctx, repo, state, limit)
	r.record(analysis.SitePullRequests, repo.Key(), err, func() { r.snap.PullRequests[repo.Key()] = pulls })
	return pulls, err
}

func (r *RecordingSource) GetIssues(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.Issue, error) {
	issues, err := r.source.GetIssues(ctx, repo, state, limit)
	r.record(analysis.SiteIssues, repo.Key(), err, func() { r.snap.Issues[repo.Key()] = issues })
	return issues, err
}

func (r *RecordingSource) GetReviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) ([]types.Review, error) {
	reviews, err := r.source.GetReviews(ctx, repo, pr, limit)
	key := reviewKey(repo, pr)
	r.record(analysis.SiteReviews, key, err, func() { r.snap.Reviews[key] = reviews })
	return reviews, err
}

var (
	_ analysis.RecordSource = (*FixtureSource)(nil)
	_ analysis.RecordSource = (*RecordingSource)(nil)
)
