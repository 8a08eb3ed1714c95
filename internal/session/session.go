// Package session drives interactive conflict resolution for a single
// repository operation. A session owns the conflicted files of one merge or
// cherry-pick, walks the operator through per-file strategies, and ends in a
// well-defined terminal state: resolved, escalated, aborted back to pending,
// or left in place for out-of-band handling.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/railyardhq/railyard/internal/git"
	"github.com/railyardhq/railyard/internal/prompt"
	"github.com/railyardhq/railyard/internal/resolve"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusEscalated  Status = "escalated"
)

// Operation is the kind of version-control operation that conflicted.
type Operation string

const (
	OpMerge      Operation = "merge"
	OpCherryPick Operation = "cherry-pick"
)

// Strategy is a per-file resolution choice from the strategy menu.
type Strategy string

const (
	StrategyUseOurs   Strategy = "use-ours"
	StrategyUseTheirs Strategy = "use-theirs"
	StrategyAuto      Strategy = "ai-auto"
	StrategySuggest   Strategy = "ai-suggest"
	StrategyEdit      Strategy = "manual-edit"
	StrategyView      Strategy = "view-full-conflict"
	StrategySkip      Strategy = "skip"
)

// Choices offered once a pass over the files leaves some unresolved.
const (
	nextRetry    = "retry"
	nextAbort    = "abort"
	nextLeave    = "leave"
	nextEscalate = "escalate"
)

// Follow-up decisions for an AI-suggested resolution.
const (
	suggestAccept     = "accept"
	suggestAcceptEdit = "accept-and-edit"
	suggestReject     = "reject"
)

// Config carries everything a session needs. Driver and Prompter are
// required; Resolver defaults to resolve.Disabled.
type Config struct {
	Repo      string
	Operation Operation
	Source    string
	Target    string
	Files     []git.ConflictedFile

	Driver   git.Driver
	Prompter prompt.Prompter
	Resolver resolve.Resolver
	Mode     resolve.Mode

	// EscalationPrefix names the branch namespace used when escalating.
	// Empty falls back to the driver's default.
	EscalationPrefix string

	Logger *slog.Logger
}

// Session is the per-repository conflict resolution state machine.
type Session struct {
	ID        string
	Repo      string
	Operation Operation
	Source    string
	Target    string

	// Files is the ordered conflict set this session was created with.
	Files []git.ConflictedFile

	// ResolvedPaths lists files in the order they were resolved.
	ResolvedPaths []string

	// EscalationBranch is set only when the session escalates.
	EscalationBranch string

	// CommitID records the resolution or escalation commit, when one was made.
	CommitID string

	// Committed reports whether the resolution landed on the target branch:
	// the operator confirmed the merge commit or concluded the cherry-pick.
	// Declining leaves the working copy staged for inspection.
	Committed bool

	Status Status

	driver           git.Driver
	prompter         prompt.Prompter
	resolver         resolve.Resolver
	mode             resolve.Mode
	escalationPrefix string
	log              *slog.Logger

	resolved map[string]bool
}

// New builds a pending session over the given conflicted files.
func New(cfg Config) *Session {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = resolve.Disabled{}
	}
	return &Session{
		ID:               uuid.NewString(),
		Repo:             cfg.Repo,
		Operation:        cfg.Operation,
		Source:           cfg.Source,
		Target:           cfg.Target,
		Files:            cfg.Files,
		Status:           StatusPending,
		driver:           cfg.Driver,
		prompter:         cfg.Prompter,
		resolver:         resolver,
		mode:             cfg.Mode,
		escalationPrefix: cfg.EscalationPrefix,
		log:              cfg.Logger,
		resolved:         make(map[string]bool),
	}
}

func (s *Session) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// Unresolved returns the paths still conflicted, in file order.
func (s *Session) Unresolved() []string {
	var out []string
	for _, f := range s.Files {
		if !s.resolved[f.Path] {
			out = append(out, f.Path)
		}
	}
	return out
}

// Run drives the session to a terminal outcome. It returns an error only for
// driver or prompt failures; user-directed outcomes (resolved, escalated,
// aborted, left in place) are reported through Status.
func (s *Session) Run(ctx context.Context) error {
	if s.Status != StatusPending {
		return fmt.Errorf("session %s already %s", s.ID, s.Status)
	}
	s.Status = StatusInProgress
	s.logger().Info("conflict session started",
		"repo", s.Repo,
		"operation", string(s.Operation),
		"files", len(s.Files),
	)

	for {
		if len(s.Unresolved()) == 0 {
			return s.finish(ctx)
		}

		for i, file := range s.Files {
			if s.resolved[file.Path] {
				continue
			}
			if err := s.resolveFile(ctx, i, file); err != nil {
				return err
			}
		}

		remaining := s.Unresolved()
		if len(remaining) == 0 {
			return s.finish(ctx)
		}

		choice, err := s.exhaustionChoice(len(remaining))
		if err != nil {
			return err
		}
		switch choice {
		case nextRetry:
			continue
		case nextAbort:
			return s.abort(ctx)
		case nextLeave:
			s.logger().Info("conflicts left in place",
				"repo", s.Repo, "unresolved", len(remaining))
			return nil
		case nextEscalate:
			return s.escalate(ctx)
		default:
			return fmt.Errorf("unknown choice %q", choice)
		}
	}
}

// resolveFile loops over the strategy menu for one file until the file is
// resolved or skipped. Re-entrant choices (view, rejected suggestions,
// declined proposals) iterate instead of recursing so operator back-and-forth
// cannot grow the stack.
func (s *Session) resolveFile(ctx context.Context, index int, file git.ConflictedFile) error {
	title := fmt.Sprintf("%s: resolve %s (%d of %d)", s.Repo, file.Path, index+1, len(s.Files))

	for {
		choice, err := s.prompter.Select(title, s.strategyOptions())
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				s.logger().Info("file skipped", "repo", s.Repo, "path", file.Path)
				return nil
			}
			return err
		}

		switch Strategy(choice) {
		case StrategyUseOurs:
			if err := s.driver.ResolveUseOurs(ctx, file.Path); err != nil {
				return err
			}
			s.markResolved(file.Path, StrategyUseOurs)
			return nil

		case StrategyUseTheirs:
			if err := s.driver.ResolveUseTheirs(ctx, file.Path); err != nil {
				return err
			}
			s.markResolved(file.Path, StrategyUseTheirs)
			return nil

		case StrategyAuto:
			proposal, ok := s.propose(ctx, file, resolve.ModeAuto)
			if !ok {
				continue
			}
			if err := s.driver.ResolveFile(ctx, file.Path, proposal); err != nil {
				return err
			}
			s.markResolved(file.Path, StrategyAuto)
			return nil

		case StrategySuggest:
			done, err := s.suggest(ctx, file)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue

		case StrategyEdit:
			edited, err := s.prompter.Edit("Resolve "+file.Path, file.Ours)
			if err != nil {
				if errors.Is(err, prompt.ErrAborted) {
					continue
				}
				return err
			}
			if err := s.driver.ResolveFile(ctx, file.Path, edited); err != nil {
				return err
			}
			s.markResolved(file.Path, StrategyEdit)
			return nil

		case StrategyView:
			s.prompter.Show(file.Path, file.Content)
			continue

		case StrategySkip:
			s.logger().Info("file skipped", "repo", s.Repo, "path", file.Path)
			return nil

		default:
			return fmt.Errorf("unknown strategy %q", choice)
		}
	}
}

func (s *Session) strategyOptions() []prompt.Option {
	options := []prompt.Option{
		prompt.Opt("Use ours (keep the target branch version)", string(StrategyUseOurs)),
		prompt.Opt("Use theirs (take the incoming version)", string(StrategyUseTheirs)),
	}
	if s.mode.Enabled() {
		options = append(options,
			prompt.Opt("AI resolve (apply the result automatically)", string(StrategyAuto)),
			prompt.Opt("AI suggest (review before applying)", string(StrategySuggest)),
		)
	}
	return append(options,
		prompt.Opt("Edit manually", string(StrategyEdit)),
		prompt.Opt("View full conflict", string(StrategyView)),
		prompt.Opt("Skip this file for now", string(StrategySkip)),
	)
}

// suggest runs the propose-then-approve flow. It reports done=true when the
// file was resolved; done=false re-presents the strategy menu.
func (s *Session) suggest(ctx context.Context, file git.ConflictedFile) (bool, error) {
	proposal, ok := s.propose(ctx, file, resolve.ModeSuggest)
	if !ok {
		return false, nil
	}

	s.prompter.Show("Proposed resolution for "+file.Path, proposal)
	decision, err := s.prompter.Select("Apply this resolution?", []prompt.Option{
		prompt.Opt("Accept", suggestAccept),
		prompt.Opt("Accept and edit", suggestAcceptEdit),
		prompt.Opt("Reject", suggestReject),
	})
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return false, nil
		}
		return false, err
	}

	switch decision {
	case suggestAccept:
		if err := s.driver.ResolveFile(ctx, file.Path, proposal); err != nil {
			return false, err
		}
		s.markResolved(file.Path, StrategySuggest)
		return true, nil

	case suggestAcceptEdit:
		edited, err := s.prompter.Edit("Edit resolution for "+file.Path, proposal)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				return false, nil
			}
			return false, err
		}
		if err := s.driver.ResolveFile(ctx, file.Path, edited); err != nil {
			return false, err
		}
		s.markResolved(file.Path, StrategySuggest)
		return true, nil

	default:
		return false, nil
	}
}

// propose asks the resolver for full-file content. ok=false means there is
// no usable proposal and the strategy menu should be shown again; resolver
// failures never abort the session.
func (s *Session) propose(ctx context.Context, file git.ConflictedFile, mode resolve.Mode) (string, bool) {
	proposal, err := s.resolver.Resolve(ctx, file, mode)
	if err != nil {
		if errors.Is(err, resolve.ErrUnavailable) {
			s.logger().Warn("resolver unavailable", "repo", s.Repo, "path", file.Path, "error", err)
			s.prompter.Show("AI resolution", "The resolver is unavailable; choose another strategy.")
		} else {
			s.logger().Warn("resolver failed", "repo", s.Repo, "path", file.Path, "error", err)
			s.prompter.Show("AI resolution", "The resolver failed; choose another strategy.")
		}
		return "", false
	}
	if proposal == "" {
		s.logger().Info("resolver declined", "repo", s.Repo, "path", file.Path)
		s.prompter.Show("AI resolution", "No resolution was proposed for "+file.Path+".")
		return "", false
	}
	if git.HasConflictMarkers(proposal) {
		s.logger().Warn("resolver left conflict markers in proposal", "repo", s.Repo, "path", file.Path)
		s.prompter.Show("AI resolution", "The proposal still contains conflict markers and was discarded.")
		return "", false
	}
	return proposal, true
}

func (s *Session) markResolved(path string, strategy Strategy) {
	s.resolved[path] = true
	s.ResolvedPaths = append(s.ResolvedPaths, path)
	s.logger().Info("conflict resolved",
		"repo", s.Repo, "path", path, "strategy", string(strategy))
}

func (s *Session) exhaustionChoice(remaining int) (string, error) {
	title := fmt.Sprintf("%s: %d file(s) still conflicted", s.Repo, remaining)
	choice, err := s.prompter.Select(title, []prompt.Option{
		prompt.Opt("Retry the remaining files", nextRetry),
		prompt.Opt("Abort the whole operation", nextAbort),
		prompt.Opt("Leave conflicts in place and exit", nextLeave),
		prompt.Opt("Escalate to a rescue branch", nextEscalate),
	})
	if err != nil {
		// Backing out of this menu keeps the working copy untouched, the
		// same as choosing to leave.
		if errors.Is(err, prompt.ErrAborted) {
			return nextLeave, nil
		}
		return "", err
	}
	return choice, nil
}

// finish marks the session resolved and offers, never forces, a commit.
func (s *Session) finish(ctx context.Context) error {
	s.Status = StatusResolved
	s.logger().Info("all conflicts resolved",
		"repo", s.Repo, "files", len(s.ResolvedPaths))

	var question string
	if s.Operation == OpCherryPick {
		question = fmt.Sprintf("%s: conclude the cherry-pick now?", s.Repo)
	} else {
		question = fmt.Sprintf("%s: commit the resolved merge now?", s.Repo)
	}

	commit, err := s.prompter.Confirm(question, true)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		return err
	}
	if !commit {
		s.logger().Info("resolution left uncommitted", "repo", s.Repo)
		return nil
	}

	if s.Operation == OpCherryPick {
		if err := s.driver.CherryPickContinue(ctx); err != nil {
			return err
		}
		s.Committed = true
		s.logger().Info("cherry-pick concluded", "repo", s.Repo)
		return nil
	}

	message, err := s.prompter.Input("Commit message", s.defaultCommitMessage())
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return nil
		}
		return err
	}
	if message == "" {
		message = s.defaultCommitMessage()
	}
	id, err := s.driver.CommitResolution(ctx, message)
	if err != nil {
		return err
	}
	s.CommitID = id
	s.Committed = true
	s.logger().Info("resolution committed", "repo", s.Repo, "commit", id)
	return nil
}

func (s *Session) defaultCommitMessage() string {
	return fmt.Sprintf("Merge %s into %s", s.Source, s.Target)
}

// abort undoes the whole operation through the driver and returns the
// session to pending.
func (s *Session) abort(ctx context.Context) error {
	var err error
	if s.Operation == OpCherryPick {
		err = s.driver.CherryPickAbort(ctx)
	} else {
		err = s.driver.AbortMerge(ctx)
	}
	if err != nil {
		return fmt.Errorf("abort %s: %w", s.Operation, err)
	}
	s.Status = StatusPending
	s.logger().Info("operation aborted",
		"repo", s.Repo, "operation", string(s.Operation))
	return nil
}

// escalate preserves the mid-operation state on a fresh branch: partial
// resolutions and remaining markers are staged and committed there, leaving
// the target branch tip untouched.
func (s *Session) escalate(ctx context.Context) error {
	label := s.Repo + "-" + s.Target
	branch, err := s.driver.CreateEscalationBranch(ctx, s.escalationPrefix, label)
	if err != nil {
		return fmt.Errorf("create escalation branch: %w", err)
	}
	s.EscalationBranch = branch

	if err := s.driver.StageAll(ctx); err != nil {
		return fmt.Errorf("stage escalation state: %w", err)
	}
	message := fmt.Sprintf("WIP: unresolved %s conflicts (%s -> %s)", s.Operation, s.Source, s.Target)
	id, err := s.driver.CommitResolution(ctx, message)
	if err != nil {
		return fmt.Errorf("commit escalation state: %w", err)
	}
	s.CommitID = id
	s.Status = StatusEscalated
	s.logger().Info("session escalated",
		"repo", s.Repo, "branch", branch, "unresolved", len(s.Unresolved()))
	return nil
}
