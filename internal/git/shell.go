package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
)

const stashMessage = "railyard-auto-stash"

// ShellDriver drives one existing working copy. Mutating and network
// operations shell out to the system git binary so the operator's SSH agent,
// hooks, and rerere configuration stay in effect; read-only inspection goes
// through go-git (see read.go).
type ShellDriver struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// Dir is the working copy the driver operates on.
	Dir string

	// Remote is the remote consulted when read operations fall back to
	// remote-tracking refs. Defaults to "origin".
	Remote string

	// NetworkRetries controls how many additional attempts should be made for
	// network oriented git commands (fetch, push, pull). When zero, a default
	// of 2 retries is used; negative disables retries.
	NetworkRetries int

	// NetworkRetryDelay controls the initial backoff delay between retries.
	// When zero, a default of 1 second is used. Backoff grows exponentially
	// per attempt.
	NetworkRetryDelay time.Duration

	// NetworkTimeout bounds network commands that would otherwise inherit an
	// unbounded context. When zero, a default of 2 minutes is used.
	NetworkTimeout time.Duration

	repo *gogit.Repository
}

// Open binds a driver to an existing git working copy.
func Open(dir string) (*ShellDriver, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &ShellDriver{Dir: dir, repo: repo}, nil
}

func (d *ShellDriver) gitBinary() string {
	if d.Git == "" {
		return "git"
	}
	return d.Git
}

func (d *ShellDriver) remoteName() string {
	if d.Remote == "" {
		return "origin"
	}
	return d.Remote
}

// Fetch updates the remote-tracking refs for the given remote.
func (d *ShellDriver) Fetch(ctx context.Context, remote string) error {
	if err := d.exec(ctx, "fetch", remote); err != nil {
		return fmt.Errorf("git fetch %s: %w", remote, err)
	}
	return nil
}

// Merge checks out target and attempts a non-fast-forward merge of source.
// A detected conflict is not an error: the working copy is left mid-merge and
// the conflicted paths are reported on the result.
func (d *ShellDriver) Merge(ctx context.Context, source, target string) (MergeResult, error) {
	if err := d.exec(ctx, "checkout", target); err != nil {
		return MergeResult{}, fmt.Errorf("git checkout %s: %w", target, err)
	}

	err := d.exec(ctx, "merge", "--no-ff", "--no-edit", source)
	if err == nil {
		return MergeResult{Success: true}, nil
	}
	if !isConflict(err) {
		return MergeResult{}, fmt.Errorf("git merge %s: %w", source, err)
	}

	conflicts, listErr := d.conflictPaths(ctx)
	if listErr != nil {
		return MergeResult{}, listErr
	}
	return MergeResult{Conflicts: conflicts}, nil
}

// CherryPick checks out target and applies the commits strictly in the given
// order, stopping at the first commit that fails to apply. Applied always
// reflects the commits that landed before the failure.
func (d *ShellDriver) CherryPick(ctx context.Context, commits []string, target string) (CherryPickResult, error) {
	if len(commits) == 0 {
		return CherryPickResult{}, fmt.Errorf("no commits to cherry-pick")
	}
	if err := d.exec(ctx, "checkout", target); err != nil {
		return CherryPickResult{}, fmt.Errorf("git checkout %s: %w", target, err)
	}

	result := CherryPickResult{Applied: make([]string, 0, len(commits))}
	for _, commit := range commits {
		if err := d.cherryPickOne(ctx, commit); err != nil {
			if !isConflict(err) {
				return CherryPickResult{}, fmt.Errorf("git cherry-pick %s: %w", commit, err)
			}
			conflicts, listErr := d.conflictPaths(ctx)
			if listErr != nil {
				return CherryPickResult{}, listErr
			}
			result.FailedAt = commit
			result.Conflicts = conflicts
			return result, nil
		}
		result.Applied = append(result.Applied, commit)
	}

	result.Success = true
	return result, nil
}

func (d *ShellDriver) cherryPickOne(ctx context.Context, commit string) error {
	isMerge, err := d.isMergeCommit(ctx, commit)
	if err != nil {
		return fmt.Errorf("inspect commit %s: %w", commit, err)
	}

	// Merge commits need -m 1 to pick against their first parent.
	args := []string{"cherry-pick"}
	if isMerge {
		args = append(args, "-m", "1")
	}
	args = append(args, commit)
	return d.exec(ctx, args...)
}

func (d *ShellDriver) isMergeCommit(ctx context.Context, commit string) (bool, error) {
	output, err := d.capture(ctx, "rev-list", "--parents", "-n", "1", commit)
	if err != nil {
		return false, err
	}
	// Output format: "commit parent1 [parent2 ...]"; more than two fields
	// means more than one parent.
	return len(strings.Fields(strings.TrimSpace(output))) > 2, nil
}

// Stash saves uncommitted changes, untracked files included, and reports
// whether anything was actually stashed.
func (d *ShellDriver) Stash(ctx context.Context) (bool, error) {
	output, err := d.capture(ctx, "stash", "push", "--include-untracked", "-m", stashMessage)
	if err != nil {
		return false, fmt.Errorf("git stash push: %w", err)
	}
	if strings.Contains(output, "No local changes to save") {
		return false, nil
	}
	return true, nil
}

// StashRestore pops the most recent stash entry back into the working copy.
func (d *ShellDriver) StashRestore(ctx context.Context) error {
	if err := d.exec(ctx, "stash", "pop"); err != nil {
		return fmt.Errorf("git stash pop: %w", err)
	}
	return nil
}

// ConflictedFiles reads every unmerged path and parses its conflict markers
// into structured three-way content.
func (d *ShellDriver) ConflictedFiles(ctx context.Context) ([]ConflictedFile, error) {
	paths, err := d.conflictPaths(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]ConflictedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(filepath.Join(d.Dir, path))
		if err != nil {
			return nil, fmt.Errorf("read conflicted file %s: %w", path, err)
		}
		files = append(files, ParseConflict(path, string(data)))
	}
	return files, nil
}

func (d *ShellDriver) conflictPaths(ctx context.Context) ([]string, error) {
	output, err := d.capture(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("list conflicted paths: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths, nil
}

// ResolveFile writes the given content over the conflicted path and stages it.
func (d *ShellDriver) ResolveFile(ctx context.Context, path, content string) error {
	if err := os.WriteFile(filepath.Join(d.Dir, path), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return d.stagePath(ctx, path)
}

// ResolveUseOurs resolves the path with the current branch's version.
func (d *ShellDriver) ResolveUseOurs(ctx context.Context, path string) error {
	return d.resolveWithSide(ctx, path, "--ours")
}

// ResolveUseTheirs resolves the path with the incoming version.
func (d *ShellDriver) ResolveUseTheirs(ctx context.Context, path string) error {
	return d.resolveWithSide(ctx, path, "--theirs")
}

func (d *ShellDriver) resolveWithSide(ctx context.Context, path, side string) error {
	if err := d.exec(ctx, "checkout", side, "--", path); err != nil {
		return fmt.Errorf("git checkout %s %s: %w", side, path, err)
	}
	return d.stagePath(ctx, path)
}

func (d *ShellDriver) stagePath(ctx context.Context, path string) error {
	if err := d.exec(ctx, "add", "--", path); err != nil {
		return fmt.Errorf("git add %s: %w", path, err)
	}
	return nil
}

// StageAll stages every change in the working copy, conflict markers and all.
// Used when escalating so the mid-operation state can be committed.
func (d *ShellDriver) StageAll(ctx context.Context) error {
	if err := d.exec(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("git add -A: %w", err)
	}
	return nil
}

// CommitResolution commits the staged resolution and returns the new commit ID.
func (d *ShellDriver) CommitResolution(ctx context.Context, message string) (string, error) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "Resolve conflicts"
	}
	if err := d.exec(ctx, "commit", "-m", msg); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	output, err := d.capture(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// AbortMerge undoes an in-progress merge. Succeeds when no merge is in
// progress so callers can abort unconditionally.
func (d *ShellDriver) AbortMerge(ctx context.Context) error {
	err := d.exec(ctx, "merge", "--abort")
	if err == nil {
		return nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) && strings.Contains(strings.ToLower(gitErr.Output), "no merge") {
		return nil
	}
	return fmt.Errorf("git merge --abort: %w", err)
}

// CherryPickAbort undoes an in-progress cherry-pick sequence. Succeeds when
// no cherry-pick is in progress.
func (d *ShellDriver) CherryPickAbort(ctx context.Context) error {
	err := d.exec(ctx, "cherry-pick", "--abort")
	if err == nil {
		return nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) && strings.Contains(strings.ToLower(gitErr.Output), "no cherry-pick") {
		return nil
	}
	return fmt.Errorf("git cherry-pick --abort: %w", err)
}

// CherryPickContinue concludes the current cherry-pick step after its
// conflicts were resolved, keeping the sequencer state consistent.
func (d *ShellDriver) CherryPickContinue(ctx context.Context) error {
	if err := d.exec(ctx, "-c", "core.editor=true", "cherry-pick", "--continue"); err != nil {
		return fmt.Errorf("git cherry-pick --continue: %w", err)
	}
	return nil
}

// CreateEscalationBranch creates and checks out a uniquely timestamped branch
// preserving the current working-copy state for later attention.
func (d *ShellDriver) CreateEscalationBranch(ctx context.Context, prefix, label string) (string, error) {
	name := EscalationBranchName(prefix, label, time.Now())
	if err := d.exec(ctx, "checkout", "-b", name); err != nil {
		return "", fmt.Errorf("git checkout -b %s: %w", name, err)
	}
	return name, nil
}

// Push publishes the branch to the remote.
func (d *ShellDriver) Push(ctx context.Context, remote, branch string) error {
	refspec := fmt.Sprintf("%s:%s", branch, branch)
	if err := d.exec(ctx, "push", remote, refspec); err != nil {
		return fmt.Errorf("git push %s %s: %w", remote, branch, err)
	}
	return nil
}

func (d *ShellDriver) exec(ctx context.Context, args ...string) error {
	return d.runGit(ctx, append([]string{"-C", d.Dir}, args...)...)
}

func (d *ShellDriver) capture(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", d.Dir}, args...)
	cmd := exec.CommandContext(ctx, d.gitBinary(), full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GitError{Args: full, Output: string(output), Err: err}
	}
	return string(output), nil
}

func (d *ShellDriver) runGit(ctx context.Context, args ...string) error {
	primary := primaryGitCommand(args)
	isNetwork := isNetworkCommand(primary)

	retries := 0
	if isNetwork {
		retries = d.networkRetriesValue()
	}

	delay := d.networkRetryDelayValue()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := d.applyNetworkTimeout(ctx, isNetwork)
		err := d.runGitOnce(attemptCtx, args...)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isNetwork {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}

func (d *ShellDriver) runGitOnce(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, d.gitBinary(), args...)
	setProcessGroup(cmd)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return &GitError{Args: args, Output: output.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &GitError{Args: args, Output: output.String(), Err: err}
		}
	}

	return nil
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "clone", "fetch", "push", "pull", "remote":
		return true
	default:
		return false
	}
}

func (d *ShellDriver) networkRetriesValue() int {
	if d.NetworkRetries < 0 {
		return 0
	}
	if d.NetworkRetries == 0 {
		return 2
	}
	return d.NetworkRetries
}

func (d *ShellDriver) networkRetryDelayValue() time.Duration {
	if d.NetworkRetryDelay <= 0 {
		return time.Second
	}
	return d.NetworkRetryDelay
}

func (d *ShellDriver) networkTimeoutValue() time.Duration {
	if d.NetworkTimeout <= 0 {
		return 2 * time.Minute
	}
	return d.NetworkTimeout
}

func (d *ShellDriver) applyNetworkTimeout(ctx context.Context, network bool) (context.Context, context.CancelFunc) {
	if !network {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	timeout := d.networkTimeoutValue()
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// isConflict reports whether a failed merge or cherry-pick left the working
// copy in a conflicted state rather than failing outright.
func isConflict(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output
	return strings.Contains(out, "CONFLICT") ||
		strings.Contains(out, "Automatic merge failed") ||
		strings.Contains(out, "could not apply")
}
