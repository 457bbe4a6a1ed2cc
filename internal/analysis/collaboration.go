package analysis

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// Collaboration weights. The coefficients are a fixed heuristic and sum to 1.
const (
	weightFork      = 0.18
	weightIssue     = 0.13
	weightPR        = 0.18
	weightReview    = 0.18
	weightTeam      = 0.13
	weightCommunity = 0.10
	weightNetwork   = 0.10
)

const (
	teamFitCollaborative = "Collaborative"
	teamFitIndependent   = "Independent"
)

type collaborationLevel struct {
	min         float64
	name        string
	description string
}

// collaborationLevels is ordered by descending inclusive lower bound
var collaborationLevels = []collaborationLevel{
	{75, "Exceptional Collaborator", "Highly active in team projects, code reviews, and community contributions"},
	{60, "Strong Collaborator", "Regular contributor to collaborative projects with good team engagement"},
	{40, "Moderate Collaborator", "Participates in team projects with some collaborative activity"},
	{20, "Emerging Collaborator", "Beginning to engage in collaborative development"},
	{0, "Independent Developer", "Primarily works on solo projects, potential for more collaboration"},
}

func levelFor(score float64) collaborationLevel {
	for _, lvl := range collaborationLevels {
		if score >= lvl.min {
			return lvl
		}
	}
	return collaborationLevels[len(collaborationLevels)-1]
}

// repoSignals are the per-repository inputs of the collaboration model
type repoSignals struct {
	fork          bool
	owned         bool
	forksReceived int
	issues        int
	pulls         int
	reviewedPulls int
	externalPulls bool
	collaborators []string
	contributors  []string
}

// collectSignals fetches the signals of one repository. Owned non-fork
// repositories fetch one PR sample sized for both the activity count and
// the external-author check.
func (a *Analyzer) collectSignals(ctx context.Context, f *fetcher, login string, repo types.RawRepository) repoSignals {
	s := repoSignals{fork: repo.Fork, owned: ownedNonFork(repo, login)}

	pullLimit := a.limits.PullsPerRepo
	if s.owned {
		s.forksReceived = repo.ForksCount
		pullLimit = max(a.limits.PullsPerRepo, a.limits.TeamPullsPerRepo)
		for _, p := range f.collaborators(ctx, repo) {
			if !strings.EqualFold(p.Login, login) {
				s.collaborators = append(s.collaborators, p.Login)
			}
		}
		for _, p := range f.contributors(ctx, repo) {
			if !strings.EqualFold(p.Login, login) {
				s.contributors = append(s.contributors, p.Login)
			}
		}
	}

	for _, issue := range f.issues(ctx, repo, a.limits.IssuesPerRepo) {
		if !issue.IsPullRequest {
			s.issues++
		}
	}

	pulls := f.pullRequests(ctx, repo, pullLimit)
	if s.owned {
		for _, pr := range head(pulls, a.limits.TeamPullsPerRepo) {
			if pr.Author != "" && !strings.EqualFold(pr.Author, login) {
				s.externalPulls = true
				break
			}
		}
	}

	counted := head(pulls, a.limits.PullsPerRepo)
	s.pulls = len(counted)
	for _, pr := range head(counted, a.limits.ReviewedPullsPerRepo) {
		if len(f.reviews(ctx, repo, pr, a.limits.ReviewsPerPull)) > 0 {
			s.reviewedPulls++
		}
	}
	return s
}

// collaborationScore analyzes the first Limits.ScoringRepos repositories
func (a *Analyzer) collaborationScore(ctx context.Context, f *fetcher, login string, repos []types.RawRepository) CollaborationScore {
	analyzed := head(repos, a.limits.ScoringRepos)
	signals := make([]repoSignals, len(analyzed))
	forEach(ctx, a.workers, len(analyzed), func(ctx context.Context, i int) {
		signals[i] = a.collectSignals(ctx, f, login, analyzed[i])
	})
	return scoreSignals(signals)
}

// scoreSignals combines per-repository signals into the weighted score.
// Each sub-score is rounded to one decimal before weighting so the overall
// score can be recomputed from the reported metrics.
func scoreSignals(signals []repoSignals) CollaborationScore {
	var st CollaborationStats
	collaborators := make(map[string]struct{})
	contributors := make(map[string]struct{})

	st.AnalyzedRepos = len(signals)
	for _, s := range signals {
		if s.fork {
			st.ForkedRepos++
		}
		if s.owned {
			st.OwnedNonForkRepos++
			if s.externalPulls {
				st.CollaborativeProjects++
			}
		}
		st.ReposForkedByOthers += s.forksReceived
		st.TotalIssues += s.issues
		st.TotalPullRequests += s.pulls
		st.PRReviews += s.reviewedPulls
		for _, login := range s.collaborators {
			collaborators[login] = struct{}{}
		}
		for _, login := range s.contributors {
			contributors[login] = struct{}{}
		}
	}
	st.UniqueCollaborators = len(collaborators)
	st.UniqueContributors = len(contributors)
	st.TotalUniquePeople = st.UniqueCollaborators + st.UniqueContributors

	n := float64(max(1, st.AnalyzedRepos))
	owned := float64(max(1, st.OwnedNonForkRepos))

	subScore := func(v float64) float64 {
		return roundTo(clip(v, 0, 100), 1)
	}

	m := CollaborationMetrics{
		ForkActivity:        subScore(float64(st.ForkedRepos) / n * 200),
		IssueEngagement:     subScore(float64(st.TotalIssues) / n * 20),
		PullRequestActivity: subScore(float64(st.TotalPullRequests) / n * 15),
		TeamProjects:        subScore(float64(st.CollaborativeProjects) / owned * 100),
		CommunityImpact:     subScore(float64(st.ReposForkedByOthers) / n * 10),
		NetworkSize:         subScore(float64(st.TotalUniquePeople) / owned * 20),
	}
	if st.TotalPullRequests > 0 {
		m.CodeReviewParticipation = subScore(float64(st.PRReviews) / float64(st.TotalPullRequests) * 100)
	}

	overall := overallScore(m)
	lvl := levelFor(overall)
	teamFit := teamFitIndependent
	if overall >= 50 {
		teamFit = teamFitCollaborative
	}

	return CollaborationScore{
		OverallScore: overall,
		Level:        lvl.name,
		Description:  lvl.description,
		Metrics:      m,
		Stats:        st,
		TeamFit:      teamFit,
	}
}

// overallScore applies the fixed weights and rounds to one decimal
func overallScore(m CollaborationMetrics) float64 {
	total := m.ForkActivity*weightFork +
		m.IssueEngagement*weightIssue +
		m.PullRequestActivity*weightPR +
		m.CodeReviewParticipation*weightReview +
		m.TeamProjects*weightTeam +
		m.CommunityImpact*weightCommunity +
		m.NetworkSize*weightNetwork
	return roundTo(clip(total, 0, 100), 1)
}
