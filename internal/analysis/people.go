package analysis

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/gitfolio/internal/types"
)

// PersonRegistry deduplicates people across repositories by login.
// Role upgrades from contributor to collaborator but never downgrades.
type PersonRegistry struct {
	records map[string]*PersonRecord
	order   []string
}

func NewPersonRegistry() *PersonRegistry {
	return &PersonRegistry{records: make(map[string]*PersonRecord)}
}

// Upsert records one repository sighting of p in the given role
func (r *PersonRegistry) Upsert(p types.Person, role Role) {
	rec, ok := r.records[p.Login]
	if !ok {
		rec = &PersonRecord{
			Username:  p.Login,
			Name:      displayName(p),
			AvatarURL: p.AvatarURL,
			Type:      role,
		}
		r.records[p.Login] = rec
		r.order = append(r.order, p.Login)
	} else if role.outranks(rec.Type) {
		rec.Type = role
	}

	rec.RepoCount++
	if role == RoleContributor {
		rec.TotalContributions += p.Contributions
	}
}

func (r *PersonRegistry) Len() int {
	return len(r.records)
}

func (r *PersonRegistry) CountByRole(role Role) int {
	n := 0
	for _, rec := range r.records {
		if rec.Type == role {
			n++
		}
	}
	return n
}

// Get returns a copy of the record for login
func (r *PersonRegistry) Get(login string) (PersonRecord, bool) {
	rec, ok := r.records[login]
	if !ok {
		return PersonRecord{}, false
	}
	return *rec, true
}

// Top returns up to n records by repository count, ties in first-seen order
func (r *PersonRegistry) Top(n int) []PersonRecord {
	out := make([]PersonRecord, 0, len(r.order))
	for _, login := range r.order {
		out = append(out, *r.records[login])
	}
	slices.SortStableFunc(out, func(x, y PersonRecord) int {
		return cmp.Compare(y.RepoCount, x.RepoCount)
	})
	return head(out, n)
}

func displayName(p types.Person) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

// ownedNonFork reports whether repo belongs to login and is not a fork
func ownedNonFork(repo types.RawRepository, login string) bool {
	return !repo.Fork && strings.EqualFold(repo.Owner, login)
}

func ownedNonForkRepos(repos []types.RawRepository, login string) []types.RawRepository {
	var owned []types.RawRepository
	for _, repo := range repos {
		if ownedNonFork(repo, login) {
			owned = append(owned, repo)
		}
	}
	return owned
}

// repoPeople is one repository's collaborator and contributor listings
type repoPeople struct {
	collaborators []types.Person
	contributors  []types.Person
}

func (a *Analyzer) fetchPeople(ctx context.Context, f *fetcher, repos []types.RawRepository) []repoPeople {
	out := make([]repoPeople, len(repos))
	forEach(ctx, a.workers, len(repos), func(ctx context.Context, i int) {
		out[i] = repoPeople{
			collaborators: f.collaborators(ctx, repos[i]),
			contributors:  f.contributors(ctx, repos[i]),
		}
	})
	return out
}

// peopleSummary builds the deduplicated registry over the first
// Limits.PeopleRepos owned non-fork repositories.
func (a *Analyzer) peopleSummary(ctx context.Context, f *fetcher, login string, repos []types.RawRepository) PeopleSummary {
	scanned := head(ownedNonForkRepos(repos, login), a.limits.PeopleRepos)
	listings := a.fetchPeople(ctx, f, scanned)

	registry := NewPersonRegistry()
	byRepo := []RepositoryPeople{}
	for i, repo := range scanned {
		collaborators := []RepositoryPerson{}
		inRepo := make(map[string]bool)
		for _, p := range listings[i].collaborators {
			if strings.EqualFold(p.Login, login) {
				continue
			}
			inRepo[p.Login] = true
			registry.Upsert(p, RoleCollaborator)
			collaborators = append(collaborators, RepositoryPerson{
				Username:  p.Login,
				Name:      displayName(p),
				AvatarURL: p.AvatarURL,
				Type:      RoleCollaborator,
			})
		}

		contributors := []RepositoryPerson{}
		for _, p := range listings[i].contributors {
			if strings.EqualFold(p.Login, login) || inRepo[p.Login] {
				continue
			}
			registry.Upsert(p, RoleContributor)
			contributors = append(contributors, RepositoryPerson{
				Username:      p.Login,
				Name:          displayName(p),
				AvatarURL:     p.AvatarURL,
				Contributions: p.Contributions,
				Type:          RoleContributor,
			})
		}

		if total := len(collaborators) + len(contributors); total > 0 {
			byRepo = append(byRepo, RepositoryPeople{
				RepoName:      repo.Name,
				RepoURL:       repo.HTMLURL,
				Collaborators: collaborators,
				Contributors:  contributors,
				TotalPeople:   total,
			})
		}
	}

	return PeopleSummary{
		TotalUniquePeople:        registry.Len(),
		TotalUniqueCollaborators: registry.CountByRole(RoleCollaborator),
		TotalUniqueContributors:  registry.CountByRole(RoleContributor),
		CollaboratorsByRepo:      byRepo,
		TopPeople:                registry.Top(a.limits.TopPeople),
	}
}
