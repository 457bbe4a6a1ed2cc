package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// largeSource builds a profile with n repositories, most of them owned
func largeSource(n int) *stubSource {
	user := &types.RawUser{Login: "octo", PublicRepos: n}
	var repos []types.RawRepository
	for i := 0; i < n; i++ {
		repo := ownedRepo("octo", fmt.Sprintf("repo-%03d", i), i*3)
		repo.Language = []string{"Go", "Python", "Rust", "TypeScript"}[i%4]
		repo.Fork = i%5 == 0
		repo.ForksCount = i % 7
		repo.CreatedAt = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, i, 0)
		repo.UpdatedAt = fixedNow.Add(-time.Duration(i) * 6 * time.Hour)
		repos = append(repos, repo)
	}

	src := newStubSource(user, repos...)
	for i, repo := range repos {
		src.languages[repo.Key()] = map[string]int64{repo.Language: int64(1000 * (i + 1)), "Shell": 120}
		src.commitCounts[repo.Key()] = i
		src.contributors[repo.Key()] = []types.Person{{Login: "octo"}, {Login: fmt.Sprintf("dev-%d", i%9), Contributions: i}}
		src.pulls[repo.Key()] = []types.PullRequest{{Number: 1, Author: fmt.Sprintf("dev-%d", i%9)}}
		var commits []types.Commit
		for d := 0; d < 20; d++ {
			commits = append(commits, types.Commit{AuthorDate: fixedNow.AddDate(0, 0, -d-i)})
		}
		src.commits[repo.Key()] = commits
	}
	return src
}

// BenchmarkAnalyze benchmarks the full pipeline against an in-memory source
func BenchmarkAnalyze(b *testing.B) {
	src := largeSource(80)
	analyzer := NewAnalyzer(src, WithClock(fixedClock))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := analyzer.Analyze(context.Background(), "octo"); err != nil {
			b.Fatalf("Analysis failed: %v", err)
		}
	}
}

// BenchmarkAnalyzeWorkers compares pool sizes
func BenchmarkAnalyzeWorkers(b *testing.B) {
	src := largeSource(80)
	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers-%d", workers), func(b *testing.B) {
			analyzer := NewAnalyzer(src, WithClock(fixedClock), WithWorkers(workers))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := analyzer.Analyze(context.Background(), "octo"); err != nil {
					b.Fatalf("Analysis failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkProfileMarshaling benchmarks JSON encoding of an analyzed profile
func BenchmarkProfileMarshaling(b *testing.B) {
	profile, err := NewAnalyzer(largeSource(80), WithClock(fixedClock)).Analyze(context.Background(), "octo")
	if err != nil {
		b.Fatalf("Analysis failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := json.Marshal(profile); err != nil {
			b.Fatalf("Marshal failed: %v", err)
		}
	}
}

// BenchmarkScoreSignals benchmarks the scoring model alone
func BenchmarkScoreSignals(b *testing.B) {
	signals := make([]repoSignals, 30)
	for i := range signals {
		signals[i] = repoSignals{
			owned:         i%2 == 0,
			fork:          i%2 == 1,
			issues:        i % 10,
			pulls:         i % 10,
			reviewedPulls: i % 5,
			contributors:  []string{fmt.Sprintf("dev-%d", i)},
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = scoreSignals(signals)
	}
}
