package store

import (
	"context"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var analyzedAt = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = func() time.Time { return analyzedAt.Add(time.Minute) }
	return s
}

func profile(login string, at time.Time, score float64) *analysis.AnalyzedProfile {
	return &analysis.AnalyzedProfile{
		Username:           login,
		Name:               "The Octocat",
		TopLanguages:       []analysis.LanguageStat{{Name: "Go", Bytes: 6000, Percentage: 100}},
		CollaborationScore: analysis.CollaborationScore{OverallScore: score, Level: "Collaborative"},
		AnalyzedAt:         at,
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := profile("octocat", analyzedAt, 61.5)

	require.NoError(t, s.Save(ctx, p))

	stored, err := s.Load(ctx, "OctoCat")
	require.NoError(t, err)
	assert.Equal(t, p, stored.Profile)
	assert.Equal(t, analyzedAt, stored.AnalyzedAt)
	assert.Equal(t, analyzedAt.Add(time.Minute), stored.UpdatedAt)
	assert.Equal(t, 2*time.Hour, stored.Age(analyzedAt.Add(2*time.Hour)))
}

func TestSaveReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, profile("octocat", analyzedAt, 10)))
	require.NoError(t, s.Save(ctx, profile("Octocat", analyzedAt.Add(time.Hour), 20)))

	stored, err := s.Load(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, 20.0, stored.Profile.CollaborationScore.OverallScore)
	assert.Equal(t, "Octocat", stored.Profile.Username)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSaveRejectsAnonymousProfile(t *testing.T) {
	s := openTestStore(t)

	assert.Error(t, s.Save(context.Background(), nil))
	assert.Error(t, s.Save(context.Background(), profile("  ", analyzedAt, 0)))
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, profile("octocat", analyzedAt, 10)))
	require.NoError(t, s.Save(ctx, profile("hubot", analyzedAt.Add(time.Hour), 20)))
	require.NoError(t, s.Save(ctx, profile("monalisa", analyzedAt.Add(-time.Hour), 30)))

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hubot", latest.Profile.Username)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, profile("octocat", analyzedAt, 10)))
	require.NoError(t, s.Save(ctx, profile("hubot", analyzedAt, 20)))

	removed, err := s.Delete(ctx, "OCTOCAT")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "octocat")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, DefaultPoolConfig())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, profile("octocat", analyzedAt, 10)))
	require.NoError(t, s.Close())

	s, err = Open(dir, DefaultPoolConfig())
	require.NoError(t, err)
	defer s.Close()

	stored, err := s.Load(ctx, "octocat")
	require.NoError(t, err)
	assert.Equal(t, analyzedAt, stored.AnalyzedAt)
	assert.Contains(t, s.GetPoolStats(), "open_connections")
	assert.NoError(t, s.Ping(ctx))
}

func TestTopScores(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, profile("alice", analyzedAt, 42.5)))
	require.NoError(t, s.Save(ctx, profile("bob", analyzedAt.Add(time.Hour), 80)))
	require.NoError(t, s.Save(ctx, profile("carol", analyzedAt, 80)))
	require.NoError(t, s.Save(ctx, profile("dave", analyzedAt, 12)))

	entries, err := s.TopScores(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, ScoreEntry{Rank: 1, Username: "bob", OverallScore: 80, AnalyzedAt: analyzedAt.Add(time.Hour)}, entries[0])
	assert.Equal(t, "carol", entries[1].Username)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "alice", entries[2].Username)

	empty := openTestStore(t)
	none, err := empty.TopScores(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteOlderThan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, profile("old", analyzedAt.Add(-48*time.Hour), 10)))
	require.NoError(t, s.Save(ctx, profile("new", analyzedAt, 10)))

	n, err := s.DeleteOlderThan(ctx, analyzedAt.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Load(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Load(ctx, "new")
	assert.NoError(t, err)
}
