package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ZanzyTHEbar/gitfolio/internal/analysis"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

func renderJSON(w io.Writer, profile *analysis.AnalyzedProfile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(profile)
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func percentage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func renderTable(w io.Writer, title string, header []string, rows [][]string, align tw.Align) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "  (none)")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header(header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// renderTables prints the profile as a series of tables
func renderTables(w io.Writer, p *analysis.AnalyzedProfile) error {
	name := p.Name
	if name == "" {
		name = p.Username
	}
	if _, err := fmt.Fprintf(w, "%s (@%s)\n", name, p.Username); err != nil {
		return err
	}

	s := p.Stats
	stats := [][]string{
		{"Repositories", strconv.Itoa(s.TotalRepos)},
		{"Stars", strconv.Itoa(s.TotalStars)},
		{"Forks", strconv.Itoa(s.TotalForks)},
		{"Commits", strconv.Itoa(s.TotalCommits)},
		{"Followers", strconv.Itoa(s.Followers)},
		{"Following", strconv.Itoa(s.Following)},
		{"Streak (days)", strconv.Itoa(p.ContributionSummary.ContributionStreak)},
		{"Most active day", p.ContributionSummary.MostActiveDay},
	}
	if err := renderTable(w, "Statistics", []string{"Metric", "Value"}, stats, tw.AlignLeft); err != nil {
		return err
	}

	var langs [][]string
	for i, l := range p.TopLanguages {
		langs = append(langs, []string{strconv.Itoa(i + 1), l.Name, strconv.FormatInt(l.Bytes, 10), percentage(l.Percentage)})
	}
	if err := renderTable(w, "Top languages", []string{"Rank", "Language", "Bytes", "Share"}, langs, tw.AlignRight); err != nil {
		return err
	}

	var repos [][]string
	for i, r := range p.TopRepositories {
		repos = append(repos, []string{strconv.Itoa(i + 1), r.Name, r.Language, strconv.Itoa(r.Stars), strconv.Itoa(r.Forks)})
	}
	if err := renderTable(w, "Top repositories", []string{"Rank", "Repository", "Language", "Stars", "Forks"}, repos, tw.AlignRight); err != nil {
		return err
	}

	c := p.CollaborationScore
	m := c.Metrics
	collab := [][]string{
		{"Fork activity", score(m.ForkActivity)},
		{"Issue engagement", score(m.IssueEngagement)},
		{"Pull request activity", score(m.PullRequestActivity)},
		{"Code review", score(m.CodeReviewParticipation)},
		{"Team projects", score(m.TeamProjects)},
		{"Community impact", score(m.CommunityImpact)},
		{"Network size", score(m.NetworkSize)},
		{"Overall", score(c.OverallScore)},
	}
	if err := renderTable(w, fmt.Sprintf("Collaboration: %s", c.Level), []string{"Signal", "Score"}, collab, tw.AlignLeft); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n", c.TeamFit, p.Summary)
	return err
}
