package types

import "time"

// RawUser is the user profile as returned by the record source
type RawUser struct {
	Login           string    `json:"login"`
	Name            string    `json:"name"`
	Bio             string    `json:"bio"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Blog            string    `json:"blog"`
	Email           string    `json:"email"`
	TwitterUsername string    `json:"twitter_username"`
	AvatarURL       string    `json:"avatar_url"`
	Hireable        bool      `json:"hireable"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Followers       int       `json:"followers"`
	Following       int       `json:"following"`
	PublicRepos     int       `json:"public_repos"`
	PublicGists     int       `json:"public_gists"`
}

// RawRepository is an immutable snapshot of one repository, fetched once per run
type RawRepository struct {
	Owner           string    `json:"owner"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Homepage        string    `json:"homepage"`
	Fork            bool      `json:"fork"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	WatchersCount   int       `json:"watchers_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	Topics          []string  `json:"topics"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Key identifies a repository across the fetches of one run
func (r RawRepository) Key() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Owner + "/" + r.Name
}

// Person is a collaborator or contributor as listed for a repository.
// Contributions is only meaningful for contributor listings.
type Person struct {
	Login         string `json:"login"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

// Commit carries the fields the activity estimator samples
type Commit struct {
	SHA        string    `json:"sha"`
	AuthorDate time.Time `json:"author_date"`
}

// PullRequest is a sampled pull request
type PullRequest struct {
	Number int    `json:"number"`
	Author string `json:"author"`
	State  string `json:"state"`
}

// Issue is a sampled issue; the issues listing also returns pull requests
type Issue struct {
	Number        int    `json:"number"`
	IsPullRequest bool   `json:"is_pull_request"`
	State         string `json:"state"`
}

// Review is a pull request review
type Review struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	State  string `json:"state"`
}

// AnalyzeRequest represents the request structure for the analyze endpoint
type AnalyzeRequest struct {
	Username string `json:"username" binding:"required"`
}

// AnalyzeResponse wraps a freshly analyzed profile
type AnalyzeResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// StatusResponse acknowledges a mutation
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Removed *int64 `json:"removed,omitempty"`
}
