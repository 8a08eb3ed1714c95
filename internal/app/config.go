package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/railyardhq/railyard/internal/resolve"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config captures runtime options sourced from RAILYARD_* environment
// variables. Command-line flags layer on top of these; per-repository
// settings come from the manifest.
type Config struct {
	ManifestPath     string
	LogLevel         string
	LogFormat        string
	Verbose          bool
	GitHubToken      string
	GitHubBaseURL    string
	GitHubUploadURL  string
	AIMode           resolve.Mode
	AICommand        string
	EscalationPrefix string
}

// LoadConfig reads the environment, applies defaults, and performs validation.
func LoadConfig() (Config, error) {
	cfg := Config{
		ManifestPath:     strings.TrimSpace(os.Getenv("RAILYARD_MANIFEST")),
		LogLevel:         strings.ToLower(strings.TrimSpace(envOrDefault("RAILYARD_LOG_LEVEL", defaultLogLevel))),
		LogFormat:        strings.ToLower(strings.TrimSpace(envOrDefault("RAILYARD_LOG_FORMAT", defaultLogFormat))),
		AICommand:        strings.TrimSpace(os.Getenv("RAILYARD_AI_COMMAND")),
		EscalationPrefix: strings.TrimSpace(os.Getenv("RAILYARD_ESCALATION_PREFIX")),
	}

	cfg.GitHubToken = strings.TrimSpace(os.Getenv("RAILYARD_GITHUB_TOKEN"))
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.GitHubBaseURL = strings.TrimSpace(os.Getenv("RAILYARD_GITHUB_BASE_URL"))
	cfg.GitHubUploadURL = strings.TrimSpace(os.Getenv("RAILYARD_GITHUB_UPLOAD_URL"))

	if rawVerbose := strings.TrimSpace(os.Getenv("RAILYARD_VERBOSE")); rawVerbose != "" {
		verbose, err := strconv.ParseBool(rawVerbose)
		if err != nil {
			return Config{}, fmt.Errorf("parse RAILYARD_VERBOSE: %w", err)
		}
		cfg.Verbose = verbose
	}

	mode, err := resolve.ParseMode(strings.ToLower(strings.TrimSpace(os.Getenv("RAILYARD_AI_MODE"))))
	if err != nil {
		return Config{}, fmt.Errorf("parse RAILYARD_AI_MODE: %w", err)
	}
	cfg.AIMode = mode

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return Config{}, fmt.Errorf("RAILYARD_GITHUB_BASE_URL and RAILYARD_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.AIMode.Enabled() && cfg.AICommand == "" {
		return Config{}, fmt.Errorf("resolution mode %q requires RAILYARD_AI_COMMAND", cfg.AIMode)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
