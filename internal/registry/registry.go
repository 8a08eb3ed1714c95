// Package registry resolves operator-facing target names (a group, a single
// repository, or "all") into ordered repository descriptors and hands out one
// cached version-control driver per repository.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/railyardhq/railyard/internal/git"
	"github.com/railyardhq/railyard/internal/manifest"
)

// UnknownTargetError reports a scope that names neither a group nor a
// repository.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q: not a group or repository", e.Target)
}

// PathNotFoundError reports a repository whose configured working copy is
// missing on disk.
type PathNotFoundError struct {
	Repo string
	Path string
	Err  error
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("repository %q: path %s not found", e.Repo, e.Path)
}

func (e *PathNotFoundError) Unwrap() error {
	return e.Err
}

// Opener constructs a driver bound to the repository's working copy.
type Opener func(repo manifest.Repository, path string) (git.Driver, error)

// Registry owns driver caching for a manifest. At most one driver exists per
// repository name for the process lifetime, so each working copy has a single
// mutation path.
type Registry struct {
	man  *manifest.Manifest
	open Opener
	log  *slog.Logger

	mu      sync.Mutex
	drivers map[string]git.Driver
}

// New builds a registry whose drivers shell out to the git binary in each
// repository's working copy.
func New(man *manifest.Manifest, logger *slog.Logger) *Registry {
	return NewWithOpener(man, openShellDriver, logger)
}

// NewWithOpener builds a registry with a custom driver constructor.
func NewWithOpener(man *manifest.Manifest, open Opener, logger *slog.Logger) *Registry {
	return &Registry{
		man:     man,
		open:    open,
		log:     logger,
		drivers: make(map[string]git.Driver),
	}
}

func openShellDriver(repo manifest.Repository, path string) (git.Driver, error) {
	driver, err := git.Open(path)
	if err != nil {
		return nil, err
	}
	driver.Remote = repo.RemoteName()
	return driver, nil
}

func (r *Registry) logger() *slog.Logger {
	if r.log != nil {
		return r.log
	}
	return slog.Default()
}

// Manifest exposes the fleet description the registry was built from.
func (r *Registry) Manifest() *manifest.Manifest {
	return r.man
}

// Resolve expands a target name into repository descriptors: a group yields
// its members in declared order, "all" yields every repository in manifest
// order, and a repository name yields itself.
func (r *Registry) Resolve(target string) ([]manifest.Repository, error) {
	if target == manifest.ScopeAll {
		repos := make([]manifest.Repository, len(r.man.Repositories))
		copy(repos, r.man.Repositories)
		return repos, nil
	}

	if group, ok := r.man.Group(target); ok {
		repos := make([]manifest.Repository, 0, len(group.Repos))
		for _, member := range group.Repos {
			repo, ok := r.man.Repository(member)
			if !ok {
				// Validate() rejects dangling members at load time.
				return nil, fmt.Errorf("group %q references unknown repository %q", target, member)
			}
			repos = append(repos, repo)
		}
		return repos, nil
	}

	if repo, ok := r.man.Repository(target); ok {
		return []manifest.Repository{repo}, nil
	}

	return nil, &UnknownTargetError{Target: target}
}

// DriverFor returns the cached driver for the repository, constructing it on
// first use. Construction fails with PathNotFoundError when the configured
// working copy does not exist; nothing on disk is touched before the first
// call for a given repository.
func (r *Registry) DriverFor(repo manifest.Repository) (git.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if driver, ok := r.drivers[repo.Name]; ok {
		return driver, nil
	}

	path, err := repo.AbsPath()
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", repo.Name, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &PathNotFoundError{Repo: repo.Name, Path: path, Err: err}
	}

	driver, err := r.open(repo, path)
	if err != nil {
		return nil, fmt.Errorf("open repository %q: %w", repo.Name, err)
	}

	r.drivers[repo.Name] = driver
	r.logger().Debug("driver created", "repo", repo.Name, "path", path)
	return driver, nil
}
