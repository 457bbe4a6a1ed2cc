package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/ZanzyTHEbar/gitfolio/internal/resilience"
	"github.com/ZanzyTHEbar/gitfolio/internal/types"
	"github.com/google/go-github/v62/github"
	"golang.org/x/time/rate"
)

const (
	userAgent    = "gitfolio/1.0"
	maxPageSize  = 100
	defaultRPS   = 10
	defaultBurst = 5
	maxRepoPages = 10
)

// GitHubConfig configures the GitHub record source
type GitHubConfig struct {
	Token string
	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise or tests.
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Retry             resilience.RetryConfig
	Breaker           resilience.CircuitBreakerConfig
	Pool              resilience.PoolConfig
	Observer          resilience.RequestObserver
}

// GitHubAdapter implements analysis.RecordSource against the GitHub REST API
type GitHubAdapter struct {
	client  *github.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	hasAuth bool
}

// NewGitHubAdapter creates a new GitHub adapter with pacing, retries and a circuit breaker
func NewGitHubAdapter(cfg GitHubConfig) (*GitHubAdapter, error) {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.SourceRetryConfig()
	}
	cfg.Retry.RetryableErrors = isRetryable
	if cfg.Pool.MaxActive == 0 {
		cfg.Pool = resilience.DefaultPoolConfig()
	}

	client := github.NewClient(resilience.NewHTTPClient(cfg.Pool, cfg.Observer))
	client.UserAgent = userAgent
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", cfg.BaseURL, err)
		}
		client.BaseURL = u
	}

	return &GitHubAdapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: resilience.NewCircuitBreaker(cfg.Breaker),
		retry:   cfg.Retry,
		hasAuth: cfg.Token != "",
	}, nil
}

// Authenticated reports whether requests carry a token
func (g *GitHubAdapter) Authenticated() bool {
	return g.hasAuth
}

// BreakerState returns the upstream circuit state
func (g *GitHubAdapter) BreakerState() resilience.CircuitBreakerState {
	return g.breaker.State()
}

// call paces, guards and retries one API request
func call[T any](ctx context.Context, g *GitHubAdapter, fn func() (T, *github.Response, error)) (T, *github.Response, error) {
	var resp *github.Response
	out, err := resilience.RetryValue(ctx, g.retry, func() (T, error) {
		var v T
		if err := g.limiter.Wait(ctx); err != nil {
			return v, err
		}
		err := g.breaker.Call(func() error {
			var err error
			v, resp, err = fn()
			return err
		}, tripsBreaker)
		return v, err
	})
	return out, resp, err
}

func (g *GitHubAdapter) GetUser(ctx context.Context, login string) (*types.RawUser, error) {
	u, _, err := call(ctx, g, func() (*github.User, *github.Response, error) {
		return g.client.Users.Get(ctx, login)
	})
	if err != nil {
		return nil, wrapNotFound(err, "get user %s", login)
	}
	return convertUser(u), nil
}

func (g *GitHubAdapter) ListRepositories(ctx context.Context, login string) ([]types.RawRepository, error) {
	opts := &github.RepositoryListByUserOptions{
		ListOptions: github.ListOptions{PerPage: maxPageSize},
	}

	var repos []types.RawRepository
	for page := 0; page < maxRepoPages; page++ {
		batch, resp, err := call(ctx, g, func() ([]*github.Repository, *github.Response, error) {
			return g.client.Repositories.ListByUser(ctx, login, opts)
		})
		if err != nil {
			return nil, wrapNotFound(err, "list repositories for %s", login)
		}
		for _, r := range batch {
			repos = append(repos, convertRepository(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

func (g *GitHubAdapter) GetLanguageBreakdown(ctx context.Context, repo types.RawRepository) (map[string]int64, error) {
	langs, _, err := call(ctx, g, func() (map[string]int, *github.Response, error) {
		return g.client.Repositories.ListLanguages(ctx, repo.Owner, repo.Name)
	})
	if err != nil {
		return nil, fmt.Errorf("list languages for %s: %w", repo.Key(), err)
	}
	out := make(map[string]int64, len(langs))
	for lang, n := range langs {
		out[lang] = int64(n)
	}
	return out, nil
}

// GetCommitCount requests one commit per page and reads the page count from the Link header
func (g *GitHubAdapter) GetCommitCount(ctx context.Context, repo types.RawRepository, author string) (int, error) {
	opts := &github.CommitsListOptions{
		Author:      author,
		ListOptions: github.ListOptions{PerPage: 1},
	}
	commits, resp, err := call(ctx, g, func() ([]*github.RepositoryCommit, *github.Response, error) {
		return g.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return 0, fmt.Errorf("count commits for %s: %w", repo.Key(), err)
	}
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage, nil
	}
	return len(commits), nil
}

func (g *GitHubAdapter) ListCommits(ctx context.Context, repo types.RawRepository, limit int) ([]types.Commit, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: pageSize(limit)}}
	commits, _, err := call(ctx, g, func() ([]*github.RepositoryCommit, *github.Response, error) {
		return g.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list commits for %s: %w", repo.Key(), err)
	}

	out := make([]types.Commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, types.Commit{
			SHA:        c.GetSHA(),
			AuthorDate: c.GetCommit().GetAuthor().GetDate().Time,
		})
	}
	return out, nil
}

// GetCollaborators needs push access; GitHub answers 403 otherwise
func (g *GitHubAdapter) GetCollaborators(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	opts := &github.ListCollaboratorsOptions{ListOptions: github.ListOptions{PerPage: maxPageSize}}
	users, _, err := call(ctx, g, func() ([]*github.User, *github.Response, error) {
		return g.client.Repositories.ListCollaborators(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list collaborators for %s: %w", repo.Key(), err)
	}

	out := make([]types.Person, 0, len(users))
	for _, u := range users {
		out = append(out, types.Person{Login: u.GetLogin(), Name: u.GetName(), AvatarURL: u.GetAvatarURL()})
	}
	return out, nil
}

func (g *GitHubAdapter) GetContributors(ctx context.Context, repo types.RawRepository) ([]types.Person, error) {
	opts := &github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: maxPageSize}}
	contributors, _, err := call(ctx, g, func() ([]*github.Contributor, *github.Response, error) {
		return g.client.Repositories.ListContributors(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list contributors for %s: %w", repo.Key(), err)
	}

	out := make([]types.Person, 0, len(contributors))
	for _, c := range contributors {
		if c.GetLogin() == "" {
			continue // anonymous contributors have no account
		}
		out = append(out, types.Person{
			Login:         c.GetLogin(),
			Name:          c.GetName(),
			AvatarURL:     c.GetAvatarURL(),
			Contributions: c.GetContributions(),
		})
	}
	return out, nil
}

func (g *GitHubAdapter) GetPullRequests(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.PullRequest, error) {
	opts := &github.PullRequestListOptions{State: state, ListOptions: github.ListOptions{PerPage: pageSize(limit)}}
	pulls, _, err := call(ctx, g, func() ([]*github.PullRequest, *github.Response, error) {
		return g.client.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list pull requests for %s: %w", repo.Key(), err)
	}

	out := make([]types.PullRequest, 0, len(pulls))
	for _, pr := range pulls {
		out = append(out, types.PullRequest{Number: pr.GetNumber(), Author: pr.GetUser().GetLogin(), State: pr.GetState()})
	}
	return out, nil
}

func (g *GitHubAdapter) GetIssues(ctx context.Context, repo types.RawRepository, state string, limit int) ([]types.Issue, error) {
	opts := &github.IssueListByRepoOptions{State: state, ListOptions: github.ListOptions{PerPage: pageSize(limit)}}
	issues, _, err := call(ctx, g, func() ([]*github.Issue, *github.Response, error) {
		return g.client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list issues for %s: %w", repo.Key(), err)
	}

	out := make([]types.Issue, 0, len(issues))
	for _, is := range issues {
		out = append(out, types.Issue{Number: is.GetNumber(), IsPullRequest: is.IsPullRequest(), State: is.GetState()})
	}
	return out, nil
}

func (g *GitHubAdapter) GetReviews(ctx context.Context, repo types.RawRepository, pr types.PullRequest, limit int) ([]types.Review, error) {
	opts := &github.ListOptions{PerPage: pageSize(limit)}
	reviews, _, err := call(ctx, g, func() ([]*github.PullRequestReview, *github.Response, error) {
		return g.client.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, pr.Number, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews for %s#%d: %w", repo.Key(), pr.Number, err)
	}

	out := make([]types.Review, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, types.Review{ID: r.GetID(), Author: r.GetUser().GetLogin(), State: r.GetState()})
	}
	return out, nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func convertUser(u *github.User) *types.RawUser {
	return &types.RawUser{
		Login:           u.GetLogin(),
		Name:            u.GetName(),
		Bio:             u.GetBio(),
		Company:         u.GetCompany(),
		Location:        u.GetLocation(),
		Blog:            u.GetBlog(),
		Email:           u.GetEmail(),
		TwitterUsername: u.GetTwitterUsername(),
		AvatarURL:       u.GetAvatarURL(),
		Hireable:        u.GetHireable(),
		CreatedAt:       u.GetCreatedAt().Time,
		UpdatedAt:       u.GetUpdatedAt().Time,
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
		PublicRepos:     u.GetPublicRepos(),
		PublicGists:     u.GetPublicGists(),
	}
}

func convertRepository(r *github.Repository) types.RawRepository {
	return types.RawRepository{
		Owner:           r.GetOwner().GetLogin(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.GetDescription(),
		HTMLURL:         r.GetHTMLURL(),
		Homepage:        r.GetHomepage(),
		Fork:            r.GetFork(),
		Language:        r.GetLanguage(),
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		WatchersCount:   r.GetWatchersCount(),
		OpenIssuesCount: r.GetOpenIssuesCount(),
		Topics:          r.Topics,
		CreatedAt:       r.GetCreatedAt().Time,
		UpdatedAt:       r.GetUpdatedAt().Time,
	}
}

func statusOf(err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

func wrapNotFound(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if statusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %w", msg, analysis.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// isRetryable retries transient upstream failures only. Primary rate limits
// reset on the hour and are not worth waiting for inside a request.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return abuseErr.RetryAfter != nil && *abuseErr.RetryAfter <= 2*time.Second
	}
	var cbErr *resilience.CircuitBreakerError
	if errors.As(err, &cbErr) {
		return false
	}
	if status := statusOf(err); status != 0 {
		return resilience.IsRetryableHTTPStatus(status)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// tripsBreaker counts upstream outages and rate limiting, not client errors
// such as missing repositories or denied collaborator listings.
func tripsBreaker(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	if status := statusOf(err); status != 0 {
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

var _ analysis.RecordSource = (*GitHubAdapter)(nil)
