package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// ListCommits returns up to max commits reachable from the branch, newest
// first. max <= 0 means no limit.
func (d *ShellDriver) ListCommits(ctx context.Context, branch string, max int) ([]Commit, error) {
	hash, err := d.resolveBranchHash(branch)
	if err != nil {
		return nil, err
	}

	iter, err := d.repo.Log(&gogit.LogOptions{From: hash})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", branch, err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if max > 0 && len(commits) >= max {
			return storer.ErrStop
		}
		commits = append(commits, newCommit(c))
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("walk %s: %w", branch, err)
	}
	return commits, nil
}

// CommitsBetween returns commits reachable from head but not from base,
// newest first.
func (d *ShellDriver) CommitsBetween(ctx context.Context, base, head string) ([]Commit, error) {
	baseHash, err := d.resolveBranchHash(base)
	if err != nil {
		return nil, err
	}
	headHash, err := d.resolveBranchHash(head)
	if err != nil {
		return nil, err
	}

	baseSet, err := d.reachableFrom(baseHash)
	if err != nil {
		return nil, err
	}

	headIter, err := d.repo.Log(&gogit.LogOptions{From: headHash})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", head, err)
	}
	defer headIter.Close()

	var commits []Commit
	seen := make(map[plumbing.Hash]bool)
	err = headIter.ForEach(func(c *object.Commit) error {
		// Merge commits have multiple parents; keep walking every path so
		// feature commits behind a merge are still found.
		if seen[c.Hash] || baseSet[c.Hash] {
			return nil
		}
		seen[c.Hash] = true
		commits = append(commits, newCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", head, err)
	}
	return commits, nil
}

// CurrentBranch returns the checked-out branch, or the abbreviated commit
// hash when HEAD is detached.
func (d *ShellDriver) CurrentBranch(ctx context.Context) (string, error) {
	head, err := d.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// HasBranch reports whether the branch exists locally or on the driver's
// remote.
func (d *ShellDriver) HasBranch(ctx context.Context, branch string) (bool, error) {
	if _, err := d.repo.Reference(plumbing.NewBranchReferenceName(branch), true); err == nil {
		return true, nil
	}
	if _, err := d.repo.Reference(plumbing.NewRemoteReferenceName(d.remoteName(), branch), true); err == nil {
		return true, nil
	}
	return false, nil
}

// Status summarizes the working copy: current branch, dirtiness, and the
// ahead/behind counts against its remote-tracking ref when one exists.
func (d *ShellDriver) Status(ctx context.Context) (WorkStatus, error) {
	branch, err := d.CurrentBranch(ctx)
	if err != nil {
		return WorkStatus{}, err
	}
	status := WorkStatus{Branch: branch}

	output, err := d.capture(ctx, "status", "--porcelain")
	if err != nil {
		return WorkStatus{}, fmt.Errorf("git status: %w", err)
	}
	status.Dirty = strings.TrimSpace(output) != ""

	localRef, err := d.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return status, nil
	}
	remoteRef, err := d.repo.Reference(plumbing.NewRemoteReferenceName(d.remoteName(), branch), true)
	if err != nil {
		return status, nil
	}

	if status.Ahead, err = d.countExclusive(localRef.Hash(), remoteRef.Hash()); err != nil {
		return WorkStatus{}, err
	}
	if status.Behind, err = d.countExclusive(remoteRef.Hash(), localRef.Hash()); err != nil {
		return WorkStatus{}, err
	}
	return status, nil
}

// resolveBranchHash resolves a branch name (or any revision) to a commit
// hash, falling back to the remote-tracking ref for branches that only exist
// remotely.
func (d *ShellDriver) resolveBranchHash(branch string) (plumbing.Hash, error) {
	if hash, err := d.repo.ResolveRevision(plumbing.Revision(branch)); err == nil {
		return *hash, nil
	}
	remoteRev := plumbing.Revision(plumbing.NewRemoteReferenceName(d.remoteName(), branch))
	if hash, err := d.repo.ResolveRevision(remoteRev); err == nil {
		return *hash, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("resolve %s: unknown revision", branch)
}

func (d *ShellDriver) reachableFrom(from plumbing.Hash) (map[plumbing.Hash]bool, error) {
	iter, err := d.repo.Log(&gogit.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("log %s: %w", from, err)
	}
	defer iter.Close()

	set := make(map[plumbing.Hash]bool)
	err = iter.ForEach(func(c *object.Commit) error {
		set[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", from, err)
	}
	return set, nil
}

func (d *ShellDriver) countExclusive(from, exclude plumbing.Hash) (int, error) {
	excluded, err := d.reachableFrom(exclude)
	if err != nil {
		return 0, err
	}

	iter, err := d.repo.Log(&gogit.LogOptions{From: from})
	if err != nil {
		return 0, fmt.Errorf("log %s: %w", from, err)
	}
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if !excluded[c.Hash] {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", from, err)
	}
	return count, nil
}

func newCommit(c *object.Commit) Commit {
	return Commit{
		ID:      c.Hash.String(),
		Author:  c.Author.Name,
		Date:    c.Author.When,
		Message: strings.Split(c.Message, "\n")[0],
	}
}
