package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/railyardhq/railyard/internal/manifest"
)

func newInitCommand(ctx context.Context, root *rootOptions) *cobra.Command {
	return newInitRunner(ctx, root).Command
}

type initRunner struct {
	ctx     context.Context
	root    *rootOptions
	Command *cobra.Command
}

func newInitRunner(ctx context.Context, root *rootOptions) *initRunner {
	r := &initRunner{ctx: ctx, root: root}
	c := &cobra.Command{
		Use:   "init",
		Short: "Write a starter manifest",
		Long: `Init writes a starter railyard.yaml describing one example repository.
An existing manifest is never overwritten.`,
		Args: cobra.NoArgs,
		RunE: r.runE,
	}
	r.Command = c
	return r
}

func (r *initRunner) runE(cmd *cobra.Command, args []string) error {
	path := r.root.manifestPath
	if path == "" {
		path = manifest.DefaultFileName
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; edit it instead of re-initializing", path)
	}

	if err := starterManifest().Save(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Describe your fleet there, then run `railyard repos` to check it.\n", path)
	return nil
}

// starterManifest is a minimal but complete fleet description to edit from.
func starterManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Settings: manifest.Settings{
			EscalationPrefix: manifest.DefaultEscalationPrefix,
			PRLabels:         []string{"promotion"},
		},
		Repositories: []manifest.Repository{
			{
				Name: "api",
				Path: "~/src/api",
				URL:  "git@github.com:example/api.git",
				Branches: map[string]string{
					manifest.StageDev:     "develop",
					manifest.StageStaging: "staging",
					manifest.StageProd:    "main",
				},
				Tags: []string{"backend"},
			},
		},
		Groups: []manifest.Group{
			{Name: "backend", Repos: []string{"api"}},
		},
	}
}
