package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

var errPermission = errors.New("403 must have push access to view repository collaborators")

// stubSource serves canned records and counts calls per method
type stubSource struct {
	user    *types.RawUser
	userErr error
	repos   []types.RawRepository
	repoErr error

	languages     map[string]map[string]int64
	commitCounts  map[string]int
	commits       map[string][]types.Commit
	collaborators map[string][]types.Person
	contributors  map[string][]types.Person
	pulls         map[string][]types.PullRequest
	issues        map[string][]types.Issue
	reviews       map[string]map[int][]types.Review

	// failing maps a method name to the repository keys that return an error
	failing map[string]map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

func newStubSource(user *types.RawUser, repos ...types.RawRepository) *stubSource {
	return &stubSource{
		user:          user,
		repos:         repos,
		languages:     map[string]map[string]int64{},
		commitCounts:  map[string]int{},
		commits:       map[string][]types.Commit{},
		collaborators: map[string][]types.Person{},
		contributors:  map[string][]types.Person{},
		pulls:         map[string][]types.PullRequest{},
		issues:        map[string][]types.Issue{},
		reviews:       map[string]map[int][]types.Review{},
		failing:       map[string]map[string]bool{},
		calls:         map[string]int{},
	}
}

func (s *stubSource) fail(method, repo string) {
	if s.failing[method] == nil {
		s.failing[method] = map[string]bool{}
	}
	s.failing[method][repo] = true
}

func (s *stubSource) record(method string, repo types.RawRepository) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.failing[method][repo.Key()] {
		return errPermission
	}
	return nil
}

func (s *stubSource) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *stubSource) GetUser(ctx context.Context, login string) (*types.RawUser, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.user, nil
}

func (s *stubSource) ListRepositories(ctx context.Context, login string) ([]types.RawRepository, error) {
	if s.repoErr != nil {
		return nil, s.repoErr
	}
	return s.repos, nil
}

func (s *stubSource) GetLanguageBreakdown(ctx context.Context, repo types.RawRepository) (map[string]int64, error) {
	if err := s.record("languages", repo); err != nil {
		return nil, err
	}
	return s.languages[repo.Key()], nil
}

func (s *stubSource) GetCommitCount(ctx context.Context, repo types.RawRepository, author string) (int, error) {
	if err := s.record("commit_count", repo); err != nil {
		return 0, err
	}
	return s.commitCounts[repo.Key()], nil
}

func (s *stubSource) ListCommits(ctx context.Context, repo types.RawRepository, limit int) ([]types.Commit, error) {
	if err := s.record("commits", repo); err != nil {
		return nil, err
	}
	return s.commits[repo.Key()], nil
}

func (s *stubSource) GetCollaborators(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	if err := s.record("collaborators", repo); err != nil {
		return nil, err
	}
	return s.collaborators[repo.Key()], nil
}

func (s *stubSource) GetContributors(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	if err := s.record("contributors", repo); err != nil {
		return nil, err
	}
	return s.contributors[repo.Key()], nil
}

func (s *stubSource) GetPullRequests(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.PullRequest, error) {
	if err := s.record("pull_requests", repo); err != nil {
		return nil, err
	}
	return s.pulls[repo.Key()], nil
}

func (s *stubSource) GetIssues(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.Issue, error) {
	if err := s.record("issues", repo); err != nil {
		return nil, err
	}
	return s.issues[repo.Key()], nil
}

func (s *stubSource) GetReviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) ([]types.Review, error) {
	if err := s.record("reviews", repo); err != nil {
		return nil, err
	}
	return s.reviews[repo.Key()][pr.Number], nil
}

// countingRecorder collects degraded fetch sites
type countingRecorder struct {
	mu    sync.Mutex
	sites map[string]int
}

func (r *countingRecorder) RecordFetchFailure(site string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sites == nil {
		r.sites = map[string]int{}
	}
	r.sites[site]++
}

func (r *countingRecorder) count(site string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sites[site]
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func ownedRepo(owner, name string, stars int) types.RawRepository {
	return types.RawRepository{
		Owner:           owner,
		Name:            name,
		FullName:        owner + "/" + name,
		HTMLURL:         "https://github.com/" + owner + "/" + name,
		StargazersCount: stars,
	}
}

func monthDate(year int, month time.Month) time.Time {
	return time.Date(year, month, 10, 0, 0, 0, 0, time.UTC)
}
