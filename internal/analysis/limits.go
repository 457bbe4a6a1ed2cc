package analysis

// Limits bounds how many repositories and secondary items one run samples.
// Every cap exists to bound the number of requests issued against a
// rate-limited record source.
type Limits struct {
	// CommitCountRepos is how many repositories, in fetch order, contribute to the commit estimate.
	CommitCountRepos int `json:"commit_count_repos"`
	// ActivityRepos and ActivityCommitsPerRepo bound the most-active-day sample.
	ActivityRepos          int `json:"activity_repos"`
	ActivityCommitsPerRepo int `json:"activity_commits_per_repo"`
	// StreakRepos is how many most recently updated repositories the streak walk inspects.
	StreakRepos int `json:"streak_repos"`
	// PeopleRepos caps the owned, non-fork repositories scanned for collaborators and contributors.
	PeopleRepos int `json:"people_repos"`
	TopPeople   int `json:"top_people"`
	// ScoringRepos is how many repositories the collaboration model analyzes.
	ScoringRepos int `json:"scoring_repos"`
	// IssuesPerRepo and PullsPerRepo are the per-repository samples for engagement counts.
	IssuesPerRepo int `json:"issues_per_repo"`
	PullsPerRepo  int `json:"pulls_per_repo"`
	// TeamPullsPerRepo is the all-state PR sample checked for external authors.
	TeamPullsPerRepo int `json:"team_pulls_per_repo"`
	// ReviewedPullsPerRepo PRs per repository are checked for reviews, fetching ReviewsPerPull each.
	ReviewedPullsPerRepo int `json:"reviewed_pulls_per_repo"`
	ReviewsPerPull       int `json:"reviews_per_pull"`
	TopLanguages         int `json:"top_languages"`
	TopRepositories      int `json:"top_repositories"`
	TimelineMonths       int `json:"timeline_months"`
	NarrativeLanguages   int `json:"narrative_languages"`
	// FallbackLanguageBytes is credited to a repository's primary language when its breakdown cannot be fetched.
	FallbackLanguageBytes int64 `json:"fallback_language_bytes"`
}

// DefaultLimits returns the caps the scoring heuristics were calibrated with
func DefaultLimits() Limits {
	return Limits{
		CommitCountRepos:       20,
		ActivityRepos:          50,
		ActivityCommitsPerRepo: 100,
		StreakRepos:            30,
		PeopleRepos:            15,
		TopPeople:              15,
		ScoringRepos:           30,
		IssuesPerRepo:          10,
		PullsPerRepo:           10,
		TeamPullsPerRepo:       20,
		ReviewedPullsPerRepo:   5,
		ReviewsPerPull:         5,
		TopLanguages:           5,
		TopRepositories:        5,
		TimelineMonths:         12,
		NarrativeLanguages:     3,
		FallbackLanguageBytes:  1000,
	}
}

// withDefaults fills zero or negative fields from DefaultLimits
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&l.CommitCountRepos, d.CommitCountRepos)
	fill(&l.ActivityRepos, d.ActivityRepos)
	fill(&l.ActivityCommitsPerRepo, d.ActivityCommitsPerRepo)
	fill(&l.StreakRepos, d.StreakRepos)
	fill(&l.PeopleRepos, d.PeopleRepos)
	fill(&l.TopPeople, d.TopPeople)
	fill(&l.ScoringRepos, d.ScoringRepos)
	fill(&l.IssuesPerRepo, d.IssuesPerRepo)
	fill(&l.PullsPerRepo, d.PullsPerRepo)
	fill(&l.TeamPullsPerRepo, d.TeamPullsPerRepo)
	fill(&l.ReviewedPullsPerRepo, d.ReviewedPullsPerRepo)
	fill(&l.ReviewsPerPull, d.ReviewsPerPull)
	fill(&l.TopLanguages, d.TopLanguages)
	fill(&l.TopRepositories, d.TopRepositories)
	fill(&l.TimelineMonths, d.TimelineMonths)
	fill(&l.NarrativeLanguages, d.NarrativeLanguages)
	if l.FallbackLanguageBytes <= 0 {
		l.FallbackLanguageBytes = d.FallbackLanguageBytes
	}
	return l
}

// head returns at most n leading elements without copying
func head[T any](items []T, n int) []T {
	if n < len(items) {
		return items[:n]
	}
	return items
}
