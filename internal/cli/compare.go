package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/railyardhq/railyard/internal/manifest"
)

func newCompareCommand(ctx context.Context, root *rootOptions) *cobra.Command {
	return newCompareRunner(ctx, root).Command
}

type compareRunner struct {
	ctx     context.Context
	root    *rootOptions
	Command *cobra.Command

	scope scopeOptions
}

func newCompareRunner(ctx context.Context, root *rootOptions) *compareRunner {
	r := &compareRunner{ctx: ctx, root: root}
	c := &cobra.Command{
		Use:   "compare <base> <head>",
		Short: "List commits on head that base is missing, per repository",
		Long: `Compare resolves both branches through each repository's aliases and lists
the commits reachable from head but not from base. Use it to preview what a
promotion would carry.`,
		Example: `  railyard compare staging dev
  railyard compare prod staging --group backend`,
		Args: cobra.ExactArgs(2),
		RunE: r.runE,
	}
	addScopeFlags(c, &r.scope)
	r.Command = c
	return r
}

func (r *compareRunner) runE(cmd *cobra.Command, args []string) error {
	base := manifest.NormalizeBranch(args[0])
	head := manifest.NormalizeBranch(args[1])
	for _, branch := range []string{base, head} {
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

	repos, err := rt.Registry.Resolve(scope)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"REPOSITORY", "COMMIT", "AUTHOR", "DATE", "SUBJECT"})

	for _, repo := range repos {
		baseBranch := repo.ResolveBranch(base)
		headBranch := repo.ResolveBranch(head)

		driver, err := rt.Registry.DriverFor(repo)
		if err != nil {
			rt.Log.Warn("repository skipped", "repo", repo.Name, "error", err)
			continue
		}

		commits, err := driver.CommitsBetween(r.ctx, baseBranch, headBranch)
		if err != nil {
			rt.Log.Warn("compare failed", "repo", repo.Name, "error", err)
			continue
		}

		if len(commits) == 0 {
			t.AppendRow(table.Row{repo.Name, "", "", "", fmt.Sprintf("%s is current with %s", baseBranch, headBranch)})
			continue
		}

		for _, commit := range commits {
			t.AppendRow(table.Row{
				repo.Name,
				commit.ShortID(),
				commit.Author,
				commit.Date.Format("2006-01-02"),
				commit.Message,
			})
		}
	}

	t.Render()
	return nil
}
