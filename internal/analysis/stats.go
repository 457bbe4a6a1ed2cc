package analysis

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// aggregateStats sums repository counters and copies user counters.
// commitCounts holds one estimate per leading repository; the rest count as zero.
func aggregateStats(user *types.RawUser, repos []types.RawRepository, commitCounts []int) Stats {
	stats := Stats{
		TotalRepos: user.PublicRepos,
		TotalGists: user.PublicGists,
		Followers:  user.Followers,
		Following:  user.Following,
	}
	for _, repo := range repos {
		stats.TotalStars += repo.StargazersCount
		stats.TotalForks += repo.ForksCount
		stats.TotalWatchers += repo.WatchersCount
	}
	for _, n := range commitCounts {
		stats.TotalCommits += n
	}
	return stats
}

// fetchCommitCounts estimates authored commits for the first Limits.CommitCountRepos repositories
func (a *Analyzer) fetchCommitCounts(ctx context.Context, f *fetcher, login string, repos []types.RawRepository) []int {
	sample := head(repos, a.limits.CommitCountRepos)
	counts := make([]int, len(sample))
	forEach(ctx, a.workers, len(sample), func(ctx context.Context, i int) {
		counts[i] = f.commitCount(ctx, sample[i], login)
	})
	return counts
}

// languageBreakdown is one repository's language fetch outcome
type languageBreakdown struct {
	bytes map[string]int64
	ok    bool
}

func (a *Analyzer) fetchLanguageBreakdowns(ctx context.Context, f *fetcher, repos []types.RawRepository) []languageBreakdown {
	out := make([]languageBreakdown, len(repos))
	forEach(ctx, a.workers, len(repos), func(ctx context.Context, i int) {
		if repos[i].Language == "" {
			return
		}
		bytes, ok := f.languages(ctx, repos[i])
		out[i] = languageBreakdown{bytes: bytes, ok: ok}
	})
	return out
}

// languageDistribution merges per-repository breakdowns into a ranked
// distribution. Percentages share one grand total; ties keep first-seen order.
func languageDistribution(repos []types.RawRepository, breakdowns []languageBreakdown, topN int, fallback int64) []LanguageStat {
	totals := make(map[string]int64)
	var order []string
	credit := func(lang string, n int64) {
		if _, seen := totals[lang]; !seen {
			order = append(order, lang)
		}
		totals[lang] += n
	}

	for i, repo := range repos {
		if repo.Language == "" {
			continue
		}
		if i >= len(breakdowns) || !breakdowns[i].ok {
			credit(repo.Language, fallback)
			continue
		}
		for _, lang := range sortedLanguages(breakdowns[i].bytes) {
			credit(lang, breakdowns[i].bytes[lang])
		}
	}

	var grand int64
	for _, n := range totals {
		grand += n
	}

	stats := make([]LanguageStat, 0, len(order))
	for _, lang := range order {
		pct := 0.0
		if grand > 0 {
			pct = roundTo(float64(totals[lang])/float64(grand)*100, 2)
		}
		stats = append(stats, LanguageStat{Name: lang, Bytes: totals[lang], Percentage: pct})
	}
	slices.SortStableFunc(stats, func(x, y LanguageStat) int {
		return cmp.Compare(y.Bytes, x.Bytes)
	})
	return head(stats, topN)
}

// sortedLanguages orders one breakdown by bytes descending, then name,
// matching the order the hosting API reports.
func sortedLanguages(bytes map[string]int64) []string {
	langs := make([]string, 0, len(bytes))
	for lang := range bytes {
		langs = append(langs, lang)
	}
	slices.SortFunc(langs, func(x, y string) int {
		if c := cmp.Compare(bytes[y], bytes[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	return langs
}

// topRepositories ranks by stars descending, ties in fetch order
func topRepositories(repos []types.RawRepository, topN int) []RepositorySummary {
	ranked := slices.Clone(repos)
	slices.SortStableFunc(ranked, func(x, y types.RawRepository) int {
		return cmp.Compare(y.StargazersCount, x.StargazersCount)
	})

	ranked = head(ranked, topN)
	out := make([]RepositorySummary, 0, len(ranked))
	for _, repo := range ranked {
		language := repo.Language
		if language == "" {
			language = "Unknown"
		}
		topics := repo.Topics
		if topics == nil {
			topics = []string{}
		}
		out = append(out, RepositorySummary{
			Name:        repo.Name,
			FullName:    repo.FullName,
			Description: repo.Description,
			URL:         repo.HTMLURL,
			Homepage:    repo.Homepage,
			Language:    language,
			Stars:       repo.StargazersCount,
			Forks:       repo.ForksCount,
			Watchers:    repo.WatchersCount,
			OpenIssues:  repo.OpenIssuesCount,
			CreatedAt:   formatTime(repo.CreatedAt),
			UpdatedAt:   formatTime(repo.UpdatedAt),
			Topics:      topics,
		})
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
