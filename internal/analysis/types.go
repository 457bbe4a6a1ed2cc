package analysis

import "time"

// Stats holds aggregate counters across the user and their repositories
type Stats struct {
	TotalRepos    int `json:"total_repos"`
	TotalGists    int `json:"total_gists"`
	TotalStars    int `json:"total_stars"`
	TotalForks    int `json:"total_forks"`
	TotalWatchers int `json:"total_watchers"`
	TotalCommits  int `json:"total_commits"`
	Followers     int `json:"followers"`
	Following     int `json:"following"`
}

type LanguageStat struct {
	Name       string  `json:"name"`
	Bytes      int64   `json:"bytes"`
	Percentage float64 `json:"percentage"`
}

// RepositorySummary is the display projection of a top-ranked repository
type RepositorySummary struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Homepage    string   `json:"homepage"`
	Language    string   `json:"language"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	Watchers    int      `json:"watchers"`
	OpenIssues  int      `json:"open_issues"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	Topics      []string `json:"topics"`
}

type StarTimelineEntry struct {
	Month string `json:"month"`
	Stars int    `json:"stars"`
}

type ContributionSummary struct {
	ReposUpdatedLastMonth int                 `json:"repos_updated_last_month"`
	ReposUpdatedLastYear  int                 `json:"repos_updated_last_year"`
	StarTimeline          []StarTimelineEntry `json:"star_timeline"`
	MostActiveDay         string              `json:"most_active_day"`
	ContributionStreak    int                 `json:"contribution_streak"`
}

// Role classifies a person in the deduplicated registry
type Role string

const (
	RoleContributor  Role = "contributor"
	RoleCollaborator Role = "collaborator"
)

// outranks reports whether r takes precedence over other.
// Collaborator beats contributor.
func (r Role) outranks(other Role) bool {
	return r == RoleCollaborator && other != RoleCollaborator
}

// PersonRecord is one deduplicated identity across all scanned repositories
type PersonRecord struct {
	Username           string `json:"username"`
	Name               string `json:"name"`
	AvatarURL          string `json:"avatar_url"`
	Type               Role   `json:"type"`
	RepoCount          int    `json:"repo_count"`
	TotalContributions int    `json:"total_contributions"`
}

// RepositoryPerson is a person as seen in one repository
type RepositoryPerson struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions,omitempty"`
	Type          Role   `json:"type"`
}

type RepositoryPeople struct {
	RepoName      string             `json:"repo_name"`
	RepoURL       string             `json:"repo_url"`
	Collaborators []RepositoryPerson `json:"collaborators"`
	Contributors  []RepositoryPerson `json:"contributors"`
	TotalPeople   int                `json:"total_people"`
}

// PeopleSummary is the output of the collaborator/contributor deduplication
type PeopleSummary struct {
	TotalUniquePeople        int                `json:"total_unique_people"`
	TotalUniqueCollaborators int                `json:"total_unique_collaborators"`
	TotalUniqueContributors  int                `json:"total_unique_contributors"`
	CollaboratorsByRepo      []RepositoryPeople `json:"collaborators_by_repo"`
	TopPeople                []PersonRecord     `json:"top_people"`
}

// CollaborationMetrics are the seven sub-scores, each in [0,100]
type CollaborationMetrics struct {
	ForkActivity            float64 `json:"fork_activity"`
	IssueEngagement         float64 `json:"issue_engagement"`
	PullRequestActivity     float64 `json:"pull_request_activity"`
	CodeReviewParticipation float64 `json:"code_review_participation"`
	TeamProjects            float64 `json:"team_projects"`
	CommunityImpact         float64 `json:"community_impact"`
	NetworkSize             float64 `json:"network_size"`
}

// CollaborationStats are the raw counters the sub-scores derive from
type CollaborationStats struct {
	AnalyzedRepos         int `json:"analyzed_repos"`
	OwnedNonForkRepos     int `json:"owned_non_fork_repos"`
	ForkedRepos           int `json:"forked_repos"`
	TotalIssues           int `json:"total_issues"`
	TotalPullRequests     int `json:"total_pull_requests"`
	PRReviews             int `json:"pr_reviews"`
	CollaborativeProjects int `json:"collaborative_projects"`
	ReposForkedByOthers   int `json:"repos_forked_by_others"`
	UniqueCollaborators   int `json:"unique_collaborators"`
	UniqueContributors    int `json:"unique_contributors"`
	TotalUniquePeople     int `json:"total_unique_people"`
}

type CollaborationScore struct {
	OverallScore float64              `json:"overall_score"`
	Level        string               `json:"level"`
	Description  string               `json:"description"`
	Metrics      CollaborationMetrics `json:"metrics"`
	Stats        CollaborationStats   `json:"stats"`
	TeamFit      string               `json:"team_fit"`
}

// AnalyzedProfile is the root aggregate of one analysis run.
// It is assembled once and must be treated as read-only afterwards.
type AnalyzedProfile struct {
	Username            string              `json:"username"`
	Name                string              `json:"name"`
	Bio                 string              `json:"bio"`
	AvatarURL           string              `json:"avatar_url"`
	Blog                string              `json:"blog"`
	Location            string              `json:"location"`
	Email               string              `json:"email"`
	TwitterUsername     string              `json:"twitter_username"`
	Company             string              `json:"company"`
	Hireable            bool                `json:"hireable"`
	CreatedAt           string              `json:"created_at"`
	UpdatedAt           string              `json:"updated_at"`
	Stats               Stats               `json:"stats"`
	TopLanguages        []LanguageStat      `json:"top_languages"`
	TopRepositories     []RepositorySummary `json:"top_repositories"`
	ContributionSummary ContributionSummary `json:"contribution_summary"`
	CollaborationScore  CollaborationScore  `json:"collaboration_score"`
	Collaborators       PeopleSummary       `json:"collaborators"`
	Summary             string              `json:"ai_summary"`
	AnalyzedAt          time.Time           `json:"analyzed_at"`
}

// formatTime renders t as RFC3339, or "" when unset
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
