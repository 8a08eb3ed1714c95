// Package app loads runtime configuration and assembles the services the
// CLI commands share: the manifest, the repository registry, the prompt
// surface, and the orchestration engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gh "github.com/railyardhq/railyard/internal/github"
	"github.com/railyardhq/railyard/internal/manifest"
	"github.com/railyardhq/railyard/internal/orchestrator"
	"github.com/railyardhq/railyard/internal/prompt"
	"github.com/railyardhq/railyard/internal/registry"
	"github.com/railyardhq/railyard/internal/resolve"
)

// Runtime glues together the manifest, registry, and engine for one command
// invocation.
type Runtime struct {
	Config   Config
	Log      *slog.Logger
	Manifest *manifest.Manifest
	Registry *registry.Registry

	// ManifestPath is the discovered location the manifest was loaded from.
	ManifestPath string

	ghFactory gh.Factory
	prompter  prompt.Prompter
}

// NewRuntime discovers and loads the manifest, then constructs the shared
// services around it.
func NewRuntime(cfg Config) (*Runtime, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	path, err := manifest.Discover(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	man, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}

	logger.Debug("manifest loaded",
		"path", path,
		"repositories", len(man.Repositories),
		"groups", len(man.Groups),
	)

	return &Runtime{
		Config:       cfg,
		Log:          logger,
		Manifest:     man,
		Registry:     registry.New(man, logger),
		ManifestPath: path,
		ghFactory:    gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL),
		prompter:     prompt.NewTerminal(),
	}, nil
}

// NewRuntimeWithDeps constructs a Runtime with injected dependencies for
// testing.
func NewRuntimeWithDeps(cfg Config, log *slog.Logger, man *manifest.Manifest, reg *registry.Registry, ghFactory gh.Factory, prompter prompt.Prompter) *Runtime {
	return &Runtime{
		Config:    cfg,
		Log:       log,
		Manifest:  man,
		Registry:  reg,
		ghFactory: ghFactory,
		prompter:  prompter,
	}
}

// Prompter returns the interactive surface shared by commands and sessions.
func (r *Runtime) Prompter() prompt.Prompter {
	return r.prompter
}

// Resolver returns the machine resolver for the configured mode, or the
// disabled resolver when machine resolution is off.
func (r *Runtime) Resolver() resolve.Resolver {
	if !r.Config.AIMode.Enabled() || r.Config.AICommand == "" {
		return resolve.Disabled{}
	}
	command, args := splitCommand(r.Config.AICommand)
	return &resolve.CommandResolver{Command: command, Args: args, Logger: r.Log}
}

// EscalationPrefix resolves the effective escalation branch prefix: the
// environment override wins, then the manifest setting.
func (r *Runtime) EscalationPrefix() string {
	if r.Config.EscalationPrefix != "" {
		return r.Config.EscalationPrefix
	}
	return r.Manifest.Settings.EscalationPrefix
}

// PRLabels returns the labels the manifest applies to every pull request.
func (r *Runtime) PRLabels() []string {
	return r.Manifest.Settings.PRLabels
}

// Engine builds the orchestration engine. A GitHub client is constructed only
// when withPR is set, since most runs never talk to the API.
func (r *Runtime) Engine(ctx context.Context, withPR bool) (*orchestrator.Engine, error) {
	cfg := orchestrator.Config{
		Registry:         r.Registry,
		Prompter:         r.prompter,
		Resolver:         r.Resolver(),
		Mode:             r.Config.AIMode,
		EscalationPrefix: r.EscalationPrefix(),
		Logger:           r.Log,
	}

	if withPR {
		if r.Config.GitHubToken == "" {
			return nil, fmt.Errorf("github token is required to create pull requests (set RAILYARD_GITHUB_TOKEN or GITHUB_TOKEN)")
		}
		client, err := r.ghFactory.New(ctx, r.Config.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("initialize github client: %w", err)
		}
		cfg.PRClient = client
	}

	return orchestrator.New(cfg), nil
}

// splitCommand separates a configured command line into binary and arguments.
// Quoting is not interpreted; commands that need shell features should point
// at a wrapper script.
func splitCommand(raw string) (string, []string) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
