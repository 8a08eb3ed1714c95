// Package orchestrator sequences merge and cherry-pick operations across a
// fleet of repositories. One invocation processes its targets strictly in
// order, routes conflicts into interactive resolution sessions, and reports
// one result per repository; a single repository's failure never aborts the
// run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/railyardhq/railyard/internal/git"
	gh "github.com/railyardhq/railyard/internal/github"
	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/prompt"
	"github.com/railyardhq/railyard/internal/registry"
	"github.com/railyardhq/railyard/internal/resolve"
	"github.com/railyardhq/railyard/internal/session"
)

// Config captures the collaborators and fleet-wide settings the engine needs.
// Registry and Prompter are required; PRClient may be nil when pull-request
// creation is never requested.
type Config struct {
	Registry *registry.Registry
	Prompter prompt.Prompter
	Resolver resolve.Resolver
	Mode     resolve.Mode
	PRClient gh.Client

	// EscalationPrefix namespaces branches created for unresolved conflicts.
	EscalationPrefix string

	// PRRetryDelay is the pause before the single retry granted to a pull
	// request creation that failed with a transient GitHub error. When zero,
	// a default of 2 seconds is used.
	PRRetryDelay time.Duration

	Logger *slog.Logger
}

// Options adjust a single run.
type Options struct {
	// SkipFetch disables the pre-run fetch of every target's remote.
	SkipFetch bool

	// Push uploads the operated branch after a committed success, and the
	// escalation branch after an escalation.
	Push bool

	// CreatePR opens promotion pull requests for success and conflict
	// results whose repository has a remote URL configured.
	CreatePR bool

	// DryRun evaluates targets and reports what would run without touching
	// any working copy.
	DryRun bool

	// PRLabels are applied to every pull request the run creates.
	PRLabels []string
}

// Engine is the multi-repository coordinator.
type Engine struct {
	cfg Config
}

// New returns a configured Engine instance.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) logger() *slog.Logger {
	if e.cfg.Logger != nil {
		return e.cfg.Logger
	}
	return slog.Default()
}

// ExecuteMerge merges each target's source branch into its operated branch,
// one repository at a time.
func (e *Engine) ExecuteMerge(ctx context.Context, targets []Target, opts Options) ([]Result, error) {
	return e.run(ctx, session.OpMerge, targets, opts)
}

// ExecuteCherryPick applies each target's commits, in order, onto its
// operated branch.
func (e *Engine) ExecuteCherryPick(ctx context.Context, targets []Target, opts Options) ([]Result, error) {
	for _, t := range targets {
		if len(t.Commits) == 0 {
			return nil, fmt.Errorf("cherry-pick target %q has no commits", t.Repo.Name)
		}
	}
	return e.run(ctx, session.OpCherryPick, targets, opts)
}

func (e *Engine) run(ctx context.Context, op session.Operation, targets []Target, opts Options) ([]Result, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets to process")
	}
	if e.cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	e.logger().Info("run started",
		"operation", string(op),
		"targets", len(targets),
		"push", opts.Push,
		"create_pr", opts.CreatePR,
	)

	if opts.DryRun {
		return e.plan(op, targets), nil
	}

	if !opts.SkipFetch {
		e.fetchAll(ctx, targets)
	}

	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		result := e.executeTarget(ctx, op, t, opts)
		e.logger().Info("target finished",
			"repo", t.Repo.Name, "status", string(result.Status), "message", result.Message)
		results = append(results, result)
	}

	if opts.CreatePR {
		e.attachPullRequests(ctx, op, targets, results, opts)
	}

	return results, nil
}

// plan reports what a run would do. Skip evaluation still applies so the
// rendered plan matches a real run.
func (e *Engine) plan(op session.Operation, targets []Target) []Result {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		result := Result{Repo: t.Repo.Name, Status: StatusSkipped}
		switch {
		case t.Source != "" && t.Source == t.Branch:
			result.Message = fmt.Sprintf("source and target both resolve to %s", t.Branch)
		case op == session.OpCherryPick:
			result.Message = fmt.Sprintf("would apply %d commit(s) to %s", len(t.Commits), t.Branch)
		default:
			result.Message = fmt.Sprintf("would merge %s into %s", t.Source, t.Branch)
		}
		results = append(results, result)
	}
	return results
}

// fetchAll refreshes every target's remote before the run. Failures are
// per-repository and never block the rest.
func (e *Engine) fetchAll(ctx context.Context, targets []Target) {
	for _, t := range targets {
		driver, err := e.cfg.Registry.DriverFor(t.Repo)
		if err != nil {
			e.logger().Warn("fetch skipped", "repo", t.Repo.Name, "error", err)
			continue
		}
		if err := driver.Fetch(ctx, t.Repo.RemoteName()); err != nil {
			e.logger().Warn("fetch failed",
				"repo", t.Repo.Name, "remote", t.Repo.RemoteName(), "error", err)
		}
	}
}

// executeTarget runs one repository's operation to a terminal result. The
// stash bracket is acquired before the operation and restored on every exit
// path, best-effort.
func (e *Engine) executeTarget(ctx context.Context, op session.Operation, t Target, opts Options) Result {
	result := Result{Repo: t.Repo.Name, Status: StatusError}

	if t.Source != "" && t.Source == t.Branch {
		result.Status = StatusSkipped
		result.Message = fmt.Sprintf("source and target both resolve to %s", t.Branch)
		return result
	}

	driver, err := e.cfg.Registry.DriverFor(t.Repo)
	if err != nil {
		var pathErr *registry.PathNotFoundError
		if errors.As(err, &pathErr) {
			result.Status = StatusSkipped
			result.Message = pathErr.Error()
			return result
		}
		result.Message = err.Error()
		return result
	}

	stashed, err := driver.Stash(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("stash local changes: %v", err)
		return result
	}
	if stashed {
		e.logger().Info("local changes stashed", "repo", t.Repo.Name)
		defer func() {
			if err := driver.StashRestore(ctx); err != nil {
				e.logger().Warn("stash restore failed", "repo", t.Repo.Name, "error", err)
			}
		}()
	}

	if op == session.OpCherryPick {
		return e.executeCherryPickTarget(ctx, driver, t, opts)
	}
	return e.executeMergeTarget(ctx, driver, t, opts)
}

func (e *Engine) executeMergeTarget(ctx context.Context, driver git.Driver, t Target, opts Options) Result {
	result := Result{Repo: t.Repo.Name, Status: StatusError}

	merge, err := driver.Merge(ctx, t.Source, t.Branch)
	if err != nil {
		result.Message = fmt.Sprintf("merge %s into %s: %v", t.Source, t.Branch, err)
		return result
	}
	if merge.Success {
		return e.finalize(ctx, driver, t, opts,
			fmt.Sprintf("merged %s into %s", t.Source, t.Branch), result)
	}

	sess, err := e.runSession(ctx, session.OpMerge, driver, t, merge.Conflicts)
	result.Session = sess
	if err != nil {
		result.Message = fmt.Sprintf("conflict session: %v", err)
		return result
	}

	switch sess.Status {
	case session.StatusResolved:
		if !sess.Committed {
			result.Status = StatusSuccess
			result.Message = fmt.Sprintf("resolved %d conflict(s), commit left to operator", len(sess.ResolvedPaths))
			return result
		}
		return e.finalize(ctx, driver, t, opts,
			fmt.Sprintf("merged %s into %s after resolving %d conflict(s)", t.Source, t.Branch, len(sess.ResolvedPaths)), result)
	default:
		return e.concludeConflict(ctx, driver, t, opts, sess, result)
	}
}

func (e *Engine) executeCherryPickTarget(ctx context.Context, driver git.Driver, t Target, opts Options) Result {
	result := Result{Repo: t.Repo.Name, Status: StatusError}

	applied := 0
	remaining := t.Commits
	for {
		pick, err := driver.CherryPick(ctx, remaining, t.Branch)
		applied += len(pick.Applied)
		if err != nil {
			result.Message = fmt.Sprintf("cherry-pick onto %s after %d of %d commit(s): %v",
				t.Branch, applied, len(t.Commits), err)
			return result
		}
		if pick.Success {
			return e.finalize(ctx, driver, t, opts,
				fmt.Sprintf("applied %d commit(s) to %s", len(t.Commits), t.Branch), result)
		}

		sess, err := e.runSession(ctx, session.OpCherryPick, driver, t, pick.Conflicts)
		result.Session = sess
		if err != nil {
			result.Message = fmt.Sprintf("conflict session: %v", err)
			return result
		}
		if sess.Status != session.StatusResolved {
			return e.concludeConflict(ctx, driver, t, opts, sess, result)
		}

		rest := commitsAfter(remaining, pick.FailedAt)
		if !sess.Committed {
			result.Status = StatusSuccess
			result.Message = fmt.Sprintf("resolved %s, conclusion left to operator", shortCommit(pick.FailedAt))
			if len(rest) > 0 {
				result.Message += fmt.Sprintf("; %d commit(s) not applied", len(rest))
			}
			return result
		}

		applied++
		if len(rest) == 0 {
			return e.finalize(ctx, driver, t, opts,
				fmt.Sprintf("applied %d commit(s) to %s, %s resolved by hand", len(t.Commits), t.Branch, shortCommit(pick.FailedAt)), result)
		}
		remaining = rest
	}
}

// runSession builds and drives one conflict resolution session.
func (e *Engine) runSession(ctx context.Context, op session.Operation, driver git.Driver, t Target, conflicts []string) (*session.Session, error) {
	e.logger().Info("conflicts detected",
		"repo", t.Repo.Name, "operation", string(op), "files", len(conflicts))

	files, err := driver.ConflictedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect conflicted files: %w", err)
	}

	sess := session.New(session.Config{
		Repo:             t.Repo.Name,
		Operation:        op,
		Source:           t.Source,
		Target:           t.Branch,
		Files:            files,
		Driver:           driver,
		Prompter:         e.cfg.Prompter,
		Resolver:         e.cfg.Resolver,
		Mode:             e.cfg.Mode,
		EscalationPrefix: e.escalationPrefix(),
		Logger:           e.cfg.Logger,
	})
	if err := sess.Run(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// concludeConflict records a session that ended short of resolved. An
// escalation branch is pushed when the run wants it on the remote; push
// failure is cosmetic at this point, the conflict status already carries the
// session.
func (e *Engine) concludeConflict(ctx context.Context, driver git.Driver, t Target, opts Options, sess *session.Session, result Result) Result {
	result.Status = StatusConflict

	switch sess.Status {
	case session.StatusEscalated:
		result.Message = fmt.Sprintf("escalated to %s", sess.EscalationBranch)
		if opts.Push || opts.CreatePR {
			if err := driver.Push(ctx, t.Repo.RemoteName(), sess.EscalationBranch); err != nil {
				e.logger().Warn("escalation branch push failed",
					"repo", t.Repo.Name, "branch", sess.EscalationBranch, "error", err)
				result.Message += " (push failed)"
			}
		}
	case session.StatusPending:
		result.Message = fmt.Sprintf("%s aborted, %d file(s) were conflicted", sess.Operation, len(sess.Files))
	default:
		result.Message = fmt.Sprintf("left mid-%s, %d file(s) unresolved", sess.Operation, len(sess.Unresolved()))
	}
	return result
}

// finalize records a success, pushing the operated branch when requested.
func (e *Engine) finalize(ctx context.Context, driver git.Driver, t Target, opts Options, message string, result Result) Result {
	if opts.Push {
		if err := driver.Push(ctx, t.Repo.RemoteName(), t.Branch); err != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("push %s: %v", t.Branch, err)
			return result
		}
		e.logger().Info("branch pushed", "repo", t.Repo.Name, "branch", t.Branch)
	}
	result.Status = StatusSuccess
	result.Message = message
	return result
}

func (e *Engine) escalationPrefix() string {
	if e.cfg.EscalationPrefix != "" {
		return e.cfg.EscalationPrefix
	}
	return manifest.DefaultEscalationPrefix
}

// commitsAfter returns the commits past the failed one, preserving order.
func commitsAfter(commits []string, failedAt string) []string {
	for i, commit := range commits {
		if commit == failedAt {
			return commits[i+1:]
		}
	}
	return nil
}

func shortCommit(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func (e *Engine) prRetryDelay() time.Duration {
	if e.cfg.PRRetryDelay > 0 {
		return e.cfg.PRRetryDelay
	}
	return 2 * time.Second
}

// attachPullRequests opens a promotion PR for each success or conflict
// result whose repository has a remote URL. Failures here are cosmetic: they
// annotate the result message and never change its status.
func (e *Engine) attachPullRequests(ctx context.Context, op session.Operation, targets []Target, results []Result, opts Options) {
	client := e.cfg.PRClient
	if client == nil {
		e.logger().Warn("pull request creation requested but no client is configured")
		return
	}

	for i := range results {
		result := &results[i]
		if result.Status != StatusSuccess && result.Status != StatusConflict {
			continue
		}

		t := targets[i]
		if strings.TrimSpace(t.Repo.URL) == "" {
			e.logger().Info("pull request skipped: no remote url", "repo", t.Repo.Name)
			continue
		}
		remote, err := gh.ParseRemoteURL(t.Repo.URL)
		if err != nil {
			e.logger().Warn("pull request skipped: unrecognized remote url",
				"repo", t.Repo.Name, "url", t.Repo.URL, "error", err)
			continue
		}

		head, base, ok := e.promotionBranches(t, result)
		if !ok {
			e.logger().Info("pull request skipped: no next promotion stage",
				"repo", t.Repo.Name, "branch", t.Branch)
			continue
		}

		if err := client.EnsureBranchExists(ctx, remote.Owner, remote.Name, base); err != nil {
			if errors.Is(err, gh.ErrBranchNotFound) {
				e.logger().Warn("pull request skipped: base branch missing on remote",
					"repo", t.Repo.Name, "base", base)
				result.Message += fmt.Sprintf(" (pr skipped: %s missing on remote)", base)
				continue
			}
			e.logger().Warn("base branch check failed, attempting pull request anyway",
				"repo", t.Repo.Name, "base", base, "error", err)
		}

		if existing, err := client.FindOpenPR(ctx, remote.Owner, remote.Name, head, base); err != nil {
			e.logger().Warn("existing pull request lookup failed",
				"repo", t.Repo.Name, "error", err)
		} else if existing != nil {
			result.PRURL = existing.URL
			e.logger().Info("existing pull request reused",
				"repo", t.Repo.Name, "pr_url", existing.URL)
			continue
		}

		input := e.buildCreatePROptions(op, t, result, head, base, opts.PRLabels)
		created, err := client.CreatePR(ctx, remote.Owner, remote.Name, input)
		if err != nil && gh.IsRetryable(err) {
			e.logger().Warn("pull request creation hit a transient failure, retrying",
				"repo", t.Repo.Name, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(e.prRetryDelay()):
				created, err = client.CreatePR(ctx, remote.Owner, remote.Name, input)
			}
		}
		if err != nil {
			e.logger().Warn("pull request creation failed",
				"repo", t.Repo.Name, "head", head, "base", base, "error", err)
			result.Message += fmt.Sprintf(" (pr failed: %v)", err)
			continue
		}

		result.PRURL = created.URL
		e.logger().Info("pull request created",
			"repo", t.Repo.Name, "head", head, "base", base, "pr_number", created.Number, "pr_url", created.URL)
	}
}

// promotionBranches picks the head and base for a result's pull request: an
// escalated session promotes its escalation branch back into the operated
// branch, a plain success promotes the operated branch into the next stage.
func (e *Engine) promotionBranches(t Target, result *Result) (head, base string, ok bool) {
	if result.Session != nil && result.Session.EscalationBranch != "" {
		return result.Session.EscalationBranch, t.Branch, true
	}

	stage, ok := t.Repo.StageFor(t.Branch)
	if !ok {
		return "", "", false
	}
	next, ok := manifest.NextStage(stage)
	if !ok {
		return "", "", false
	}
	return t.Branch, t.Repo.ResolveBranch(next), true
}

func (e *Engine) buildCreatePROptions(op session.Operation, t Target, result *Result, head, base string, labels []string) gh.CreatePROptions {
	escalated := result.Session != nil && result.Session.EscalationBranch != ""

	var title string
	var body strings.Builder
	body.WriteString(gh.PromotionMarker(t.Repo.Name, head, base))
	body.WriteString("\n")

	if escalated {
		// Explicit-commit cherry-picks carry no source branch.
		if t.Source != "" {
			title = fmt.Sprintf("Resolve %s conflicts: %s -> %s", op, t.Source, t.Branch)
			body.WriteString(fmt.Sprintf("Escalated %s of `%s` into `%s` with unresolved conflicts.\n\n", op, t.Source, t.Branch))
		} else {
			title = fmt.Sprintf("Resolve %s conflicts on %s", op, t.Branch)
			body.WriteString(fmt.Sprintf("Escalated %s onto `%s` with unresolved conflicts.\n\n", op, t.Branch))
		}
		if unresolved := result.Session.Unresolved(); len(unresolved) > 0 {
			body.WriteString("Unresolved files:\n")
			for _, path := range unresolved {
				body.WriteString(fmt.Sprintf("- `%s`\n", path))
			}
			body.WriteString("\n")
		}
	} else {
		title = fmt.Sprintf("Promote %s to %s", head, base)
		body.WriteString(fmt.Sprintf("Promotion of `%s` after %s.\n\n", head, result.Message))
	}

	body.WriteString("--\n")
	body.WriteString("Opened by railyard.")

	return gh.CreatePROptions{
		Title:  title,
		Body:   body.String(),
		Head:   head,
		Base:   base,
		Labels: labels,
	}
}
