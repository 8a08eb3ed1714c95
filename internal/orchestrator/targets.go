package orchestrator

import (
	"fmt"

	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/registry"
)

// Target is one repository operation with branch aliases already expanded.
// Targets are built once per run, before execution begins, and are immutable
// during it.
type Target struct {
	Repo manifest.Repository

	// Source is the branch being merged, or the branch cherry-picked commits
	// were taken from.
	Source string

	// Branch is the actual branch the operation lands on.
	Branch string

	// Commits are applied strictly in order; cherry-pick only.
	Commits []string
}

// BuildMergeTargets expands a scope into per-repository merge targets,
// pushing both branch names through each repository's own alias map.
func BuildMergeTargets(reg *registry.Registry, scope, source, target string) ([]Target, error) {
	repos, err := reg.Resolve(scope)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(repos))
	for _, repo := range repos {
		targets = append(targets, Target{
			Repo:   repo,
			Source: repo.ResolveBranch(source),
			Branch: repo.ResolveBranch(target),
		})
	}
	return targets, nil
}

// BuildCherryPickTargets expands a scope into cherry-pick targets sharing one
// commit list. Commit identifiers are repository-specific, so this only makes
// sense for single-repository scopes; callers selecting commits per
// repository should use NewCherryPickTarget instead.
func BuildCherryPickTargets(reg *registry.Registry, scope, from, target string, commits []string) ([]Target, error) {
	if len(commits) == 0 {
		return nil, fmt.Errorf("no commits to cherry-pick")
	}

	repos, err := reg.Resolve(scope)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(repos))
	for _, repo := range repos {
		targets = append(targets, NewCherryPickTarget(repo, from, target, commits))
	}
	return targets, nil
}

// NewCherryPickTarget builds one repository's cherry-pick target.
func NewCherryPickTarget(repo manifest.Repository, from, target string, commits []string) Target {
	return Target{
		Repo:    repo,
		Source:  repo.ResolveBranch(from),
		Branch:  repo.ResolveBranch(target),
		Commits: commits,
	}
}
