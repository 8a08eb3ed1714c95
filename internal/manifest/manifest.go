package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFileName is the manifest file railyard looks for.
	DefaultFileName = "railyard.yaml"

	// DefaultRemote is assumed when a repository does not name one.
	DefaultRemote = "origin"

	// DefaultEscalationPrefix namespaces branches created for unresolved conflicts.
	DefaultEscalationPrefix = "escalation"

	// ScopeAll is the reserved target name meaning every repository in the manifest.
	ScopeAll = "all"
)

// Logical promotion stages every repository answers to. A repository's alias
// map translates these into its actual branch names.
const (
	StageDev     = "dev"
	StageStaging = "staging"
	StageProd    = "prod"
)

// Stages returns the promotion stages in promotion order.
func Stages() []string {
	return []string{StageDev, StageStaging, StageProd}
}

// NextStage returns the stage a branch promotes into, if any.
func NextStage(stage string) (string, bool) {
	switch stage {
	case StageDev:
		return StageStaging, true
	case StageStaging:
		return StageProd, true
	default:
		return "", false
	}
}

// Repository describes one working copy under railyard management.
type Repository struct {
	Name     string            `yaml:"name"`
	Path     string            `yaml:"path"`
	Remote   string            `yaml:"remote,omitempty"`
	URL      string            `yaml:"url,omitempty"`
	Branches map[string]string `yaml:"branches,omitempty"`
	Tags     []string          `yaml:"tags,omitempty"`
}

// ResolveBranch maps a logical branch name through the repository's alias
// table. Names without an alias pass through unchanged, so callers can use
// literal branch names and stage names interchangeably.
func (r Repository) ResolveBranch(name string) string {
	normalized := NormalizeBranch(name)
	if actual, ok := r.Branches[normalized]; ok && strings.TrimSpace(actual) != "" {
		return strings.TrimSpace(actual)
	}
	return normalized
}

// StageFor reports which promotion stage the actual branch name belongs to.
func (r Repository) StageFor(actual string) (string, bool) {
	for _, stage := range Stages() {
		if r.Branches[stage] == actual {
			return stage, true
		}
	}
	return "", false
}

// RemoteName returns the configured remote, defaulting to origin.
func (r Repository) RemoteName() string {
	if r.Remote == "" {
		return DefaultRemote
	}
	return r.Remote
}

// HasTag reports whether the repository carries the given tag.
func (r Repository) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AbsPath expands a leading ~ and returns the absolute filesystem location of
// the working copy.
func (r Repository) AbsPath() (string, error) {
	path := strings.TrimSpace(r.Path)
	if path == "" {
		return "", fmt.Errorf("repository %q has no path", r.Name)
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// Group names an ordered set of repositories.
type Group struct {
	Name  string   `yaml:"name"`
	Repos []string `yaml:"repos"`
}

// Settings carries fleet-wide defaults that runtime flags may override.
type Settings struct {
	EscalationPrefix string   `yaml:"escalation_prefix,omitempty"`
	PRLabels         []string `yaml:"pr_labels,omitempty"`
}

// Manifest is the on-disk fleet description.
type Manifest struct {
	Settings     Settings     `yaml:"settings,omitempty"`
	Repositories []Repository `yaml:"repositories"`
	Groups       []Group      `yaml:"groups,omitempty"`
}

// Load reads, defaults, and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return &m, nil
}

// Save writes the manifest to disk, creating parent directories as needed.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Discover locates the manifest file: an explicit path wins, then
// railyard.yaml in the working directory, then the user config directory.
func Discover(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("manifest %s: %w", explicit, err)
		}
		return explicit, nil
	}

	candidates := []string{DefaultFileName}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(configDir, "railyard", DefaultFileName))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no manifest found (looked for %s; pass --manifest or run railyard init)", strings.Join(candidates, ", "))
}

// ApplyDefaults fills in the remote and the promotion-stage alias triple for
// every repository, and the fleet-wide escalation prefix.
func (m *Manifest) ApplyDefaults() {
	for i := range m.Repositories {
		repo := &m.Repositories[i]
		repo.Name = strings.TrimSpace(repo.Name)
		repo.Path = strings.TrimSpace(repo.Path)
		if repo.Remote == "" {
			repo.Remote = DefaultRemote
		}
		if repo.Branches == nil {
			repo.Branches = make(map[string]string, len(Stages()))
		}
		for _, stage := range Stages() {
			if _, ok := repo.Branches[stage]; !ok {
				repo.Branches[stage] = stage
			}
		}
	}

	if strings.TrimSpace(m.Settings.EscalationPrefix) == "" {
		m.Settings.EscalationPrefix = DefaultEscalationPrefix
	}
}

// Validate enforces the manifest invariants: unique non-empty names, usable
// paths and branch names, and groups that reference known repositories.
func (m *Manifest) Validate() error {
	if len(m.Repositories) == 0 {
		return fmt.Errorf("manifest declares no repositories")
	}

	repoNames := make(map[string]struct{}, len(m.Repositories))
	for _, repo := range m.Repositories {
		if repo.Name == "" {
			return fmt.Errorf("repository with empty name")
		}
		if strings.EqualFold(repo.Name, ScopeAll) {
			return fmt.Errorf("repository name %q is reserved", repo.Name)
		}
		if _, dup := repoNames[repo.Name]; dup {
			return fmt.Errorf("duplicate repository name %q", repo.Name)
		}
		if repo.Path == "" {
			return fmt.Errorf("repository %q has no path", repo.Name)
		}
		for logical, actual := range repo.Branches {
			if err := ValidateBranchName(actual); err != nil {
				return fmt.Errorf("repository %q: alias %q: %w", repo.Name, logical, err)
			}
		}
		repoNames[repo.Name] = struct{}{}
	}

	groupNames := make(map[string]struct{}, len(m.Groups))
	for _, group := range m.Groups {
		if group.Name == "" {
			return fmt.Errorf("group with empty name")
		}
		if strings.EqualFold(group.Name, ScopeAll) {
			return fmt.Errorf("group name %q is reserved", group.Name)
		}
		if _, dup := groupNames[group.Name]; dup {
			return fmt.Errorf("duplicate group name %q", group.Name)
		}
		if _, collides := repoNames[group.Name]; collides {
			return fmt.Errorf("group %q collides with a repository name", group.Name)
		}
		if len(group.Repos) == 0 {
			return fmt.Errorf("group %q has no members", group.Name)
		}
		for _, member := range group.Repos {
			if _, known := repoNames[member]; !known {
				return fmt.Errorf("group %q references unknown repository %q", group.Name, member)
			}
		}
		groupNames[group.Name] = struct{}{}
	}

	return nil
}

// Repository looks up a repository descriptor by name.
func (m *Manifest) Repository(name string) (Repository, bool) {
	for _, repo := range m.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	return Repository{}, false
}

// Group looks up a group by name.
func (m *Manifest) Group(name string) (Group, bool) {
	for _, group := range m.Groups {
		if group.Name == name {
			return group, true
		}
	}
	return Group{}, false
}

// FilterByTag returns the repositories carrying the tag, in manifest order.
// An empty tag matches everything.
func (m *Manifest) FilterByTag(tag string) []Repository {
	if strings.TrimSpace(tag) == "" {
		return m.Repositories
	}
	matched := make([]Repository, 0, len(m.Repositories))
	for _, repo := range m.Repositories {
		if repo.HasTag(tag) {
			matched = append(matched, repo)
		}
	}
	return matched
}
