package analysis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// developerType is matched in order against the leading languages
type developerType struct {
	label     string
	languages []string
}

var developerTypes = []developerType{
	{"full-stack developer", []string{"Python", "JavaScript", "TypeScript"}},
	{"Python developer", []string{"Python"}},
	{"frontend developer", []string{"JavaScript", "TypeScript", "React"}},
}

const defaultDeveloperType = "software developer"

func classifyDeveloper(languages []string) string {
	for _, dt := range developerTypes {
		for _, lang := range languages {
			if slices.Contains(dt.languages, lang) {
				return dt.label
			}
		}
	}
	return defaultDeveloperType
}

// narrative renders the deterministic profile summary paragraph
func narrative(user *types.RawUser, repos []types.RawRepository, languages []LanguageStat, topN int) string {
	name := user.Name
	if name == "" {
		name = user.Login
	}

	stars := 0
	for _, repo := range repos {
		stars += repo.StargazersCount
	}

	var names []string
	for _, lang := range head(languages, topN) {
		names = append(names, lang.Name)
	}
	langList := "various technologies"
	if len(names) > 0 {
		langList = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s is a passionate %s with %d public repositories and %d total stars across their projects. ",
		name, classifyDeveloper(names), len(repos), stars)
	fmt.Fprintf(&b, "They specialize in %s, demonstrating expertise through diverse open-source contributions. ", langList)
	if user.Bio != "" {
		b.WriteString(user.Bio + " ")
	}
	if user.Company != "" {
		fmt.Fprintf(&b, "Currently working at %s. ", user.Company)
	}
	if user.Location != "" {
		fmt.Fprintf(&b, "Based in %s. ", user.Location)
	}
	b.WriteString("Actively contributing to the developer community.")
	return b.String()
}
