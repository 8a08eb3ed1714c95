package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/orchestrator"
)

func newMergeCommand(ctx context.Context, root *rootOptions) *cobra.Command {
	return newMergeRunner(ctx, root).Command
}

type mergeRunner struct {
	ctx     context.Context
	root    *rootOptions
	Command *cobra.Command

	scope    scopeOptions
	push     bool
	createPR bool
	noFetch  bool
	dryRun   bool
}

func newMergeRunner(ctx context.Context, root *rootOptions) *mergeRunner {
	r := &mergeRunner{ctx: ctx, root: root}
	c := &cobra.Command{
		Use:   "merge <source> <target>",
		Short: "Merge a source branch into a target branch across the fleet",
		Long: `Merge resolves the source and target through each repository's branch
aliases, then merges one repository at a time. A conflicted repository drops
into an interactive resolution session; the rest of the fleet still runs.`,
		Example: `  railyard merge dev staging
  railyard merge dev staging --group backend --push
  railyard merge staging prod --repo api --create-pr`,
		Args: cobra.ExactArgs(2),
		RunE: r.runE,
	}
	addScopeFlags(c, &r.scope)
	c.Flags().BoolVar(&r.push, "push", false, "push the target branch after a committed merge")
	c.Flags().BoolVar(&r.createPR, "create-pr", false, "open a promotion pull request per repository")
	c.Flags().BoolVar(&r.noFetch, "no-fetch", false, "skip fetching remotes before merging")
	c.Flags().BoolVar(&r.dryRun, "dry-run", false, "report what would run without touching any working copy")
	r.Command = c
	return r
}

func (r *mergeRunner) runE(cmd *cobra.Command, args []string) error {
	source := manifest.NormalizeBranch(args[0])
	target := manifest.NormalizeBranch(args[1])
	for _, branch := range []string{source, target} {
		if err := manifest.ValidateBranchName(branch); err != nil {
			return fmt.Errorf("branch %q: %w", branch, err)
		}
	}

	rt, err := r.root.runtime()
	if err != nil {
		return err
	}

	scope, err := r.scope.resolveScope(rt.Manifest)
	if err != nil {
		return err
	}

	targets, err := orchestrator.BuildMergeTargets(rt.Registry, scope, source, target)
	if err != nil {
		return err
	}

	engine, err := rt.Engine(r.ctx, r.createPR)
	if err != nil {
		return err
	}

	results, err := engine.ExecuteMerge(r.ctx, targets, orchestrator.Options{
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
