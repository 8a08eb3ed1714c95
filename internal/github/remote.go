package gh

import (
	"fmt"
	"net/url"
	"strings"
)

// Remote identifies the hosted project a git remote URL points at.
type Remote struct {
	Host  string
	Owner string
	Name  string
}

// ParseRemoteURL extracts the owner and repository name from a git remote
// URL. It understands the scp-like SSH form (git@host:owner/repo.git) and
// https/ssh URL forms, with or without the .git suffix.
func ParseRemoteURL(raw string) (Remote, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}, fmt.Errorf("remote url is empty")
	}

	if !strings.Contains(raw, "://") {
		return parseSCPRemote(raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Remote{}, fmt.Errorf("parse remote url %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return Remote{}, fmt.Errorf("remote url %q has no host", raw)
	}

	owner, name, err := splitRepoPath(parsed.Path)
	if err != nil {
		return Remote{}, fmt.Errorf("remote url %q: %w", raw, err)
	}
	return Remote{Host: parsed.Hostname(), Owner: owner, Name: name}, nil
}

func parseSCPRemote(raw string) (Remote, error) {
	hostPart, pathPart, ok := strings.Cut(raw, ":")
	if !ok || pathPart == "" {
		return Remote{}, fmt.Errorf("remote url %q is not a recognized git remote", raw)
	}
	if i := strings.LastIndex(hostPart, "@"); i >= 0 {
		hostPart = hostPart[i+1:]
	}
	if hostPart == "" {
		return Remote{}, fmt.Errorf("remote url %q has no host", raw)
	}

	owner, name, err := splitRepoPath(pathPart)
	if err != nil {
		return Remote{}, fmt.Errorf("remote url %q: %w", raw, err)
	}
	return Remote{Host: hostPart, Owner: owner, Name: name}, nil
}

func splitRepoPath(path string) (owner, name string, err error) {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("path %q does not contain owner/repo", path)
	}

	// Enterprise installs may nest repositories under a path prefix; the
	// last two segments are always owner and repo.
	owner = parts[len(parts)-2]
	name = parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("path %q does not contain owner/repo", path)
	}
	return owner, name, nil
}
