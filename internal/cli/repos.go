package cli

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newReposCommand(ctx context.Context, root *rootOptions) *cobra.Command {
	return newReposRunner(ctx, root).Command
}

type reposRunner struct {
	ctx     context.Context
	root    *rootOptions
	Command *cobra.Command

	tag string
}

func newReposRunner(ctx context.Context, root *rootOptions) *reposRunner {
	r := &reposRunner{ctx: ctx, root: root}
	c := &cobra.Command{
		Use:   "repos",
		Short: "Show the fleet: branch, dirtiness, and remote drift per repository",
		Args:  cobra.NoArgs,
		RunE:  r.runE,
	}
	c.Flags().StringVar(&r.tag, "tag", "", "only show repositories carrying the tag")
	r.Command = c
	return r
}

func (r *reposRunner) runE(cmd *cobra.Command, args []string) error {
	rt, err := r.root.runtime()
	if err != nil {
		return err
	}

	repos := rt.Manifest.FilterByTag(r.tag)
	if len(repos) == 0 {
		return fmt.Errorf("no repositories carry tag %q", r.tag)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"REPOSITORY", "PATH", "BRANCH", "DIRTY", "AHEAD/BEHIND"})

	for _, repo := range repos {
		driver, err := rt.Registry.DriverFor(repo)
		if err != nil {
			rt.Log.Debug("working copy unavailable", "repo", repo.Name, "error", err)
			t.AppendRow(table.Row{repo.Name, repo.Path, "(missing)", "", ""})
			continue
		}

		status, err := driver.Status(r.ctx)
		if err != nil {
			rt.Log.Warn("status failed", "repo", repo.Name, "error", err)
			t.AppendRow(table.Row{repo.Name, repo.Path, "(error)", "", ""})
			continue
		}

		dirty := ""
		if status.Dirty {
			dirty = "yes"
		}
		t.AppendRow(table.Row{
			repo.Name,
			repo.Path,
			status.Branch,
			dirty,
			fmt.Sprintf("%d/%d", status.Ahead, status.Behind),
		})
	}

	t.Render()
	return nil
}
