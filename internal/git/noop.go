package git

import (
	"context"
	"time"
)

// NoopDriver implements Driver without touching any repository. All methods
// succeed without side effects, useful for dry runs and as an embeddable base
// for test fakes.
type NoopDriver struct{}

// NewNoopDriver returns a Driver that performs no actual git operations.
func NewNoopDriver() Driver {
	return &NoopDriver{}
}

func (*NoopDriver) Fetch(ctx context.Context, remote string) error {
	return nil
}

func (*NoopDriver) Merge(ctx context.Context, source, target string) (MergeResult, error) {
	return MergeResult{Success: true}, nil
}

func (*NoopDriver) CherryPick(ctx context.Context, commits []string, target string) (CherryPickResult, error) {
	return CherryPickResult{Success: true, Applied: commits}, nil
}

func (*NoopDriver) Stash(ctx context.Context) (bool, error) {
	return false, nil
}

func (*NoopDriver) StashRestore(ctx context.Context) error {
	return nil
}

func (*NoopDriver) ConflictedFiles(ctx context.Context) ([]ConflictedFile, error) {
	return nil, nil
}

func (*NoopDriver) ResolveFile(ctx context.Context, path, content string) error {
	return nil
}

func (*NoopDriver) ResolveUseOurs(ctx context.Context, path string) error {
	return nil
}

func (*NoopDriver) ResolveUseTheirs(ctx context.Context, path string) error {
	return nil
}

func (*NoopDriver) StageAll(ctx context.Context) error {
	return nil
}

func (*NoopDriver) CommitResolution(ctx context.Context, message string) (string, error) {
	return "", nil
}

func (*NoopDriver) AbortMerge(ctx context.Context) error {
	return nil
}

func (*NoopDriver) CherryPickAbort(ctx context.Context) error {
	return nil
}

func (*NoopDriver) CherryPickContinue(ctx context.Context) error {
	return nil
}

func (*NoopDriver) CreateEscalationBranch(ctx context.Context, prefix, label string) (string, error) {
	return EscalationBranchName(prefix, label, time.Now()), nil
}

func (*NoopDriver) Push(ctx context.Context, remote, branch string) error {
	return nil
}

func (*NoopDriver) ListCommits(ctx context.Context, branch string, max int) ([]Commit, error) {
	return nil, nil
}

func (*NoopDriver) CommitsBetween(ctx context.Context, base, head string) ([]Commit, error) {
	return nil, nil
}

func (*NoopDriver) CurrentBranch(ctx context.Context) (string, error) {
	return "", nil
}

func (*NoopDriver) HasBranch(ctx context.Context, branch string) (bool, error) {
	return true, nil
}

func (*NoopDriver) Status(ctx context.Context) (WorkStatus, error) {
	return WorkStatus{}, nil
}
