package git

import (
	"context"
	"time"
)

// Commit is one entry of a branch's history.
type Commit struct {
	ID      string
	Author  string
	Date    time.Time
	Message string
}

// ShortID returns the abbreviated commit hash.
func (c Commit) ShortID() string {
	if len(c.ID) <= 7 {
		return c.ID
	}
	return c.ID[:7]
}

// ConflictedFile carries the three-way content of one conflicted path. Base
// stays empty when the conflict markers carry no common-ancestor section.
// Content is the raw on-disk text, markers included. Resolved is populated
// once a resolution strategy has produced final content for the file.
type ConflictedFile struct {
	Path     string
	Ours     string
	Base     string
	Theirs   string
	Content  string
	Resolved string
}

// MergeResult reports the outcome of a merge attempt. Success false means the
// working copy was left mid-merge with the listed paths in conflict.
type MergeResult struct {
	Success   bool
	Conflicts []string
}

// CherryPickResult reports how far an ordered cherry-pick got. Applied lists
// the commits that landed before the failure; FailedAt and Conflicts are set
// when a commit stopped the sequence.
type CherryPickResult struct {
	Success   bool
	Applied   []string
	FailedAt  string
	Conflicts []string
}

// WorkStatus summarizes a working copy for fleet reporting.
type WorkStatus struct {
	Branch string
	Dirty  bool
	Ahead  int
	Behind int
}

// Driver exposes the git operations railyard performs against one working
// copy. Implementations may shell out to git or use a pure Go library; the
// shipped driver does both.
type Driver interface {
	Fetch(ctx context.Context, remote string) error
	Merge(ctx context.Context, source, target string) (MergeResult, error)
	CherryPick(ctx context.Context, commits []string, target string) (CherryPickResult, error)

	Stash(ctx context.Context) (bool, error)
	StashRestore(ctx context.Context) error

	ConflictedFiles(ctx context.Context) ([]ConflictedFile, error)
	ResolveFile(ctx context.Context, path, content string) error
	ResolveUseOurs(ctx context.Context, path string) error
	ResolveUseTheirs(ctx context.Context, path string) error
	StageAll(ctx context.Context) error
	CommitResolution(ctx context.Context, message string) (string, error)
	AbortMerge(ctx context.Context) error
	CherryPickAbort(ctx context.Context) error
	CherryPickContinue(ctx context.Context) error
	CreateEscalationBranch(ctx context.Context, prefix, label string) (string, error)

	Push(ctx context.Context, remote, branch string) error
	ListCommits(ctx context.Context, branch string, max int) ([]Commit, error)
	CommitsBetween(ctx context.Context, base, head string) ([]Commit, error)
	CurrentBranch(ctx context.Context) (string, error)
	HasBranch(ctx context.Context, branch string) (bool, error)
	Status(ctx context.Context) (WorkStatus, error)
}
