package analysis

import (
	"context"
	"slices"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

const (
	unknownDay  = "Unknown"
	monthLayout = "2006-01"
)

// starTimeline builds the cumulative star series keyed by creation month.
// A later repository in the same month overwrites that month's value with
// the running total, so the series stays non-decreasing.
func starTimeline(repos []types.RawRepository, months int) []StarTimelineEntry {
	dated := make([]types.RawRepository, 0, len(repos))
	for _, repo := range repos {
		if !repo.CreatedAt.IsZero() && repo.StargazersCount > 0 {
			dated = append(dated, repo)
		}
	}
	if len(dated) == 0 {
		return []StarTimelineEntry{}
	}
	slices.SortStableFunc(dated, func(x, y types.RawRepository) int {
		return x.CreatedAt.Compare(y.CreatedAt)
	})

	totals := make(map[string]int)
	cumulative := 0
	for _, repo := range dated {
		cumulative += repo.StargazersCount
		totals[repo.CreatedAt.UTC().Format(monthLayout)] = cumulative
	}

	keys := make([]string, 0, len(totals))
	for month := range totals {
		keys = append(keys, month)
	}
	slices.Sort(keys)
	if len(keys) > months {
		keys = keys[len(keys)-months:]
	}

	timeline := make([]StarTimelineEntry, 0, len(keys))
	for _, month := range keys {
		timeline = append(timeline, StarTimelineEntry{Month: month, Stars: totals[month]})
	}
	return timeline
}

// fetchCommitSamples lists up to Limits.ActivityCommitsPerRepo commits for the
// first Limits.ActivityRepos repositories. Slots follow repository order.
func (a *Analyzer) fetchCommitSamples(ctx context.Context, f *fetcher, repos []types.RawRepository) [][]types.Commit {
	sample := head(repos, a.limits.ActivityRepos)
	out := make([][]types.Commit, len(sample))
	forEach(ctx, a.workers, len(sample), func(ctx context.Context, i int) {
		out[i] = f.commits(ctx, sample[i], a.limits.ActivityCommitsPerRepo)
	})
	return out
}

// mostActiveDay returns the weekday with the most sampled commits.
// Ties go to the weekday that was tallied first.
func mostActiveDay(samples [][]types.Commit) string {
	counts := make(map[time.Weekday]int)
	var order []time.Weekday
	for _, commits := range samples {
		for _, c := range commits {
			if c.AuthorDate.IsZero() {
				continue
			}
			day := c.AuthorDate.UTC().Weekday()
			if _, seen := counts[day]; !seen {
				order = append(order, day)
			}
			counts[day]++
		}
	}
	if len(order) == 0 {
		return unknownDay
	}

	best := order[0]
	for _, day := range order[1:] {
		if counts[day] > counts[best] {
			best = day
		}
	}
	return best.String()
}

// contributionStreak walks repositories from the most recently updated and
// counts how many form a chain with gaps of at most one day, starting at now.
func contributionStreak(repos []types.RawRepository, now time.Time, limit int) int {
	ordered := slices.Clone(repos)
	slices.SortStableFunc(ordered, func(x, y types.RawRepository) int {
		return y.UpdatedAt.Compare(x.UpdatedAt)
	})

	streak := 0
	current := now
	for _, repo := range head(ordered, limit) {
		if repo.UpdatedAt.IsZero() {
			break
		}
		if days := int(current.Sub(repo.UpdatedAt).Hours() / 24); days > 1 {
			break
		}
		streak++
		current = repo.UpdatedAt
	}
	return streak
}

// updatedSince counts repositories updated strictly after now-window
func updatedSince(repos []types.RawRepository, now time.Time, window time.Duration) int {
	threshold := now.Add(-window)
	n := 0
	for _, repo := range repos {
		if repo.UpdatedAt.After(threshold) {
			n++
		}
	}
	return n
}

func contributionSummary(repos []types.RawRepository, samples [][]types.Commit, now time.Time, l Limits) ContributionSummary {
	return ContributionSummary{
		ReposUpdatedLastMonth: updatedSince(repos, now, 30*24*time.Hour),
		ReposUpdatedLastYear:  updatedSince(repos, now, 365*24*time.Hour),
		StarTimeline:          starTimeline(repos, l.TimelineMonths),
		MostActiveDay:         mostActiveDay(samples),
		ContributionStreak:    contributionStreak(repos, now, l.StreakRepos),
	}
}
