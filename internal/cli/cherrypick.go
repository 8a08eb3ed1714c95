package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/railyardhq/railyard/internal/app"
	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/orchestrator"
	"github.com/railyardhq/railyard/internal/prompt"
)

// commitPickLimit caps how much branch history the interactive picker offers.
const commitPickLimit = 20

func newCherryPickCommand(ctx context.Context, root *rootOptions) *cobra.Command {
	return newCherryPickRunner(ctx, root).Command
}

type cherryPickRunner struct {
	ctx     context.Context
	root    *rootOptions
	Command *cobra.Command

	scope    scopeOptions
	commits  []string
	from     string
	push     bool
	createPR bool
	noFetch  bool
	dryRun   bool
}

func newCherryPickRunner(ctx context.Context, root *rootOptions) *cherryPickRunner {
	r := &cherryPickRunner{ctx: ctx, root: root}
	c := &cobra.Command{
		Use:   "cherry-pick <target>",
		Short: "Apply commits onto a target branch across the fleet",
		Long: `Cherry-pick applies an ordered list of commits onto the target branch of
every repository in scope. With --commits the listed ids are applied to a
single repository; without it, recent commits from the source branch are
offered in an interactive picker, one repository at a time.`,
		Example: `  railyard cherry-pick staging --repo api --commits 4f2c1aa,9d01b3c
  railyard cherry-pick staging --group backend --from develop`,
		Args: cobra.ExactArgs(1),
		RunE: r.runE,
	}
	addScopeFlags(c, &r.scope)
	c.Flags().StringSliceVar(&r.commits, "commits", nil, "commit ids to apply, in order (requires --repo)")
	c.Flags().StringVar(&r.from, "from", "", "branch the picker lists commits from (default: the repository's dev alias)")
	c.Flags().BoolVar(&r.push, "push", false, "push the target branch after a concluded cherry-pick")
	c.Flags().BoolVar(&r.createPR, "create-pr", false, "open a promotion pull request per repository")
	c.Flags().BoolVar(&r.noFetch, "no-fetch", false, "skip fetching remotes before picking")
	c.Flags().BoolVar(&r.dryRun, "dry-run", false, "report what would run without touching any working copy")
	r.Command = c
	return r
}

func (r *cherryPickRunner) runE(cmd *cobra.Command, args []string) error {
	target := manifest.NormalizeBranch(args[0])
	if err := manifest.ValidateBranchName(target); err != nil {
		return fmt.Errorf("branch %q: %w", target, err)
	}
	if r.from != "" {
		if err := manifest.ValidateBranchName(manifest.NormalizeBranch(r.from)); err != nil {
			return fmt.Errorf("branch %q: %w", r.from, err)
		}
	}

	commits := trimCommits(r.commits)
	if len(commits) > 0 && !r.scope.singleRepo() {
		return fmt.Errorf("--commits requires --repo: commit ids are repository-specific")
	}

	rt, err := r.root.runtime()
	if err != nil {
		return err
	}

	scope, err := r.scope.resolveScope(rt.Manifest)
	if err != nil {
		return err
	}

	var targets []orchestrator.Target
	if len(commits) > 0 {
		targets, err = orchestrator.BuildCherryPickTargets(rt.Registry, scope, r.from, target, commits)
	} else {
		targets, err = r.pickTargets(rt, scope, target)
	}
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no commits selected")
	}

	engine, err := rt.Engine(r.ctx, r.createPR)
	if err != nil {
		return err
	}

	results, err := engine.ExecuteCherryPick(r.ctx, targets, orchestrator.Options{
		SkipFetch: r.noFetch,
		Push:      r.push,
		CreatePR:  r.createPR,
		DryRun:    r.dryRun,
		PRLabels:  rt.PRLabels(),
	})
	if err != nil {
		return err
	}

	renderResults(cmd.OutOrStdout(), results)
	return errorFromResults(results)
}

// pickTargets offers each repository's recent source-branch history in a
// multi-select and builds a target from the chosen commits. Repositories
// where nothing can be listed, or nothing is chosen, are skipped.
func (r *cherryPickRunner) pickTargets(rt *app.Runtime, scope, target string) ([]orchestrator.Target, error) {
	repos, err := rt.Registry.Resolve(scope)
	if err != nil {
		return nil, err
	}

	prompter := rt.Prompter()
	targets := make([]orchestrator.Target, 0, len(repos))
	for _, repo := range repos {
		from := repo.ResolveBranch(manifest.StageDev)
		if r.from != "" {
			from = repo.ResolveBranch(r.from)
		}

		driver, err := rt.Registry.DriverFor(repo)
		if err != nil {
			rt.Log.Warn("repository skipped", "repo", repo.Name, "error", err)
			continue
		}

		commits, err := driver.ListCommits(r.ctx, from, commitPickLimit)
		if err != nil {
			rt.Log.Warn("commit listing failed, repository skipped", "repo", repo.Name, "branch", from, "error", err)
			continue
		}
		if len(commits) == 0 {
			rt.Log.Warn("no commits on source branch, repository skipped", "repo", repo.Name, "branch", from)
			continue
		}

		options := make([]prompt.Option, len(commits))
		for i, commit := range commits {
			options[i] = prompt.Opt(fmt.Sprintf("%s %s (%s)", commit.ShortID(), commit.Message, commit.Author), commit.ID)
		}

		title := fmt.Sprintf("%s: pick commits from %s to apply onto %s", repo.Name, from, target)
		picked, err := prompter.MultiSelect(title, options)
		if err != nil {
			if errors.Is(err, prompt.ErrAborted) {
				rt.Log.Info("selection aborted, repository skipped", "repo", repo.Name)
				continue
			}
			return nil, err
		}
		if len(picked) == 0 {
			rt.Log.Info("nothing selected, repository skipped", "repo", repo.Name)
			continue
		}

		// The menu lists newest first; apply oldest first.
		slices.Reverse(picked)
		targets = append(targets, orchestrator.NewCherryPickTarget(repo, from, target, picked))
	}

	return targets, nil
}

func trimCommits(raw []string) []string {
	commits := make([]string, 0, len(raw))
	for _, id := range raw {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			commits = append(commits, trimmed)
		}
	}
	return commits
}
