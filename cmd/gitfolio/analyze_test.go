package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/gitfolio/internal/adapters"
	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/ZanzyTHEbar/gitfolio/internal/config"
	apperrors "github.com/ZanzyTHEbar/gitfolio/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturePath = "../../internal/adapters/testdata/octocat.json"

func testConfig() *config.Config {
	return &config.Config{
		DataDir:         "./data",
		Workers:         4,
		SourceRPS:       10,
		SourceBurst:     5,
		AnalysisTimeout: 30 * time.Second,
		LogLevel:        "error",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunAnalyzeJSON(t *testing.T) {
	var out bytes.Buffer
	err := runAnalyze(context.Background(), testConfig(), analyzeOptions{Fixture: fixturePath, Format: formatJSON}, "@octocat", &out, quietLogger())
	require.NoError(t, err)

	var profile analysis.AnalyzedProfile
	require.NoError(t, json.Unmarshal(out.Bytes(), &profile))
	assert.Equal(t, "octocat", profile.Username)
	assert.Equal(t, 93, profile.Stats.TotalStars)
	assert.Equal(t, 47, profile.Stats.TotalCommits)
}

func TestRunAnalyzeTable(t *testing.T) {
	var out bytes.Buffer
	err := runAnalyze(context.Background(), testConfig(), analyzeOptions{Fixture: fixturePath, Format: formatTable}, "octocat", &out, quietLogger())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "@octocat")
	assert.Contains(t, text, "Statistics")
	assert.Contains(t, text, "Top repositories")
	assert.Contains(t, text, "Hello-World")
	assert.Contains(t, text, "93")
}

func TestRunAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name     string
		username string
		opts     analyzeOptions
		category apperrors.ErrorCategory
	}{
		{name: "unknown format", username: "octocat", opts: analyzeOptions{Fixture: fixturePath, Format: "yaml"}, category: apperrors.CategoryValidation},
		{name: "invalid login", username: "not a login", opts: analyzeOptions{Fixture: fixturePath, Format: formatJSON}, category: apperrors.CategoryValidation},
		{name: "unknown user", username: "ghost", opts: analyzeOptions{Fixture: fixturePath, Format: formatJSON}, category: apperrors.CategorySource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runAnalyze(context.Background(), testConfig(), tt.opts, tt.username, &out, quietLogger())
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, tt.category), err.Error())
			assert.Empty(t, out.String())
		})
	}
}

func TestRunAnalyzeMissingFixture(t *testing.T) {
	err := runAnalyze(context.Background(), testConfig(), analyzeOptions{Fixture: filepath.Join(t.TempDir(), "missing.json"), Format: formatJSON}, "octocat", io.Discard, quietLogger())
	assert.Error(t, err)
}

func TestRecordedSnapshotReplays(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "octocat.json")

	var first bytes.Buffer
	err := runAnalyze(context.Background(), testConfig(), analyzeOptions{Fixture: fixturePath, Record: snapshot, Format: formatJSON}, "octocat", &first, quietLogger())
	require.NoError(t, err)

	source, err := adapters.LoadFixture(snapshot)
	require.NoError(t, err)
	user, err := source.GetUser(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Login)

	var second bytes.Buffer
	err = runAnalyze(context.Background(), testConfig(), analyzeOptions{Fixture: snapshot, Format: formatJSON}, "octocat", &second, quietLogger())
	require.NoError(t, err)

	var a, b analysis.AnalyzedProfile
	require.NoError(t, json.Unmarshal(first.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Bytes(), &b))
	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.CollaborationScore.OverallScore, b.CollaborationScore.OverallScore)
}

func TestAnalyzeCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"analyze", "octocat", "--fixture", fixturePath, "--format", "json", "--log-level", "error"})

	require.NoError(t, cmd.Execute())

	var profile analysis.AnalyzedProfile
	require.NoError(t, json.Unmarshal(out.Bytes(), &profile))
	assert.Equal(t, "octocat", profile.Username)
}

func TestAnalyzeCommandRequiresUsername(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"analyze"})

	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version: dev")
}
