// Package cli assembles the railyard command tree. Each command lives in its
// own runner struct holding its flags; the root command carries the flags
// every command shares.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railyardhq/railyard/internal/app"
	"github.com/railyardhq/railyard/internal/manifest"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Execute runs the railyard command tree.
func Execute(ctx context.Context) error {
	return NewRootCommand(ctx).Execute()
}

// NewRootCommand builds the root command and attaches every subcommand.
func NewRootCommand(ctx context.Context) *cobra.Command {
	root := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "railyard",
		Short: "Promote branches across a fleet of git repositories",
		Long: `Railyard merges or cherry-picks branches across every repository in a
manifest-described fleet, one repository at a time. Conflicts drop into an
interactive resolution session instead of aborting the run.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&root.manifestPath, "manifest", "", "path to the fleet manifest (default: railyard.yaml, then the user config directory)")
	cmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&root.logFormat, "log-format", "", "log format: text, json")
	cmd.PersistentFlags().BoolVarP(&root.verbose, "verbose", "v", false, "shorthand for --log-level debug")

	cmd.AddCommand(
		newMergeCommand(ctx, root),
		newCherryPickCommand(ctx, root),
		newReposCommand(ctx, root),
		newCompareCommand(ctx, root),
		newInitCommand(ctx, root),
	)

	return cmd
}

// rootOptions carries the persistent flags into each command runner.
type rootOptions struct {
	manifestPath string
	logLevel     string
	logFormat    string
	verbose      bool
}

// config merges environment configuration with the persistent flags; flags
// win.
func (o *rootOptions) config() (app.Config, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, err
	}

	if o.manifestPath != "" {
		cfg.ManifestPath = o.manifestPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// runtime builds the shared Runtime for commands that need a loaded manifest.
func (o *rootOptions) runtime() (*app.Runtime, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return app.NewRuntime(cfg)
}

// scopeOptions are the flags selecting which repositories a command operates
// on. Neither flag means the whole fleet.
type scopeOptions struct {
	group string
	repo  string
}

func addScopeFlags(cmd *cobra.Command, opts *scopeOptions) {
	cmd.Flags().StringVarP(&opts.group, "group", "g", "", "limit the run to a named repository group")
	cmd.Flags().StringVarP(&opts.repo, "repo", "r", "", "limit the run to a single repository")
}

// resolveScope validates the scope flags against the manifest and returns the
// scope name the registry resolves.
func (o *scopeOptions) resolveScope(man *manifest.Manifest) (string, error) {
	switch {
	case o.group != "" && o.repo != "":
		return "", fmt.Errorf("--group and --repo are mutually exclusive")
	case o.group != "":
		if _, ok := man.Group(o.group); !ok {
			return "", fmt.Errorf("unknown group %q", o.group)
		}
		return o.group, nil
	case o.repo != "":
		if _, ok := man.Repository(o.repo); !ok {
			return "", fmt.Errorf("unknown repository %q", o.repo)
		}
		return o.repo, nil
	default:
		return manifest.ScopeAll, nil
	}
}

// singleRepo reports whether the scope flags name exactly one repository.
func (o *scopeOptions) singleRepo() bool {
	return o.repo != "" && o.group == ""
}
