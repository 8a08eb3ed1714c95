package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/railyardhq/railyard/internal/git"
)

// DefaultTimeout is the maximum time to wait for the resolver command before
// treating it as unreachable. Model-backed commands routinely take tens of
// seconds on large files, so this is generous.
const DefaultTimeout = 2 * time.Minute

// Request is the JSON document written to the resolver command's stdin.
type Request struct {
	// Path is the conflicted file's path relative to the repository root.
	Path string `json:"path"`

	// Ours, Base, and Theirs are the three sides of the conflict. Base is
	// empty when the merge had no common ancestor for this file.
	Ours   string `json:"ours"`
	Base   string `json:"base,omitempty"`
	Theirs string `json:"theirs"`

	// Content is the raw working-copy content, conflict markers included.
	Content string `json:"content"`

	// Mode tells the command whether its answer will be applied unattended
	// ("auto") or reviewed first ("suggest").
	Mode string `json:"mode"`
}

// Response is the JSON document expected on the resolver command's stdout.
// An empty resolution means the command declined to propose one.
type Response struct {
	Resolution string  `json:"resolution"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// CommandResolver shells out to a configured command for each conflicted
// file, sending the conflict as JSON on stdin and reading the proposed
// resolution as JSON from stdout.
type CommandResolver struct {
	// Command is the resolver binary. Required.
	Command string

	// Args are passed to the command before the JSON exchange begins.
	Args []string

	// Timeout bounds a single resolution request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

func (r *CommandResolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *CommandResolver) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// Resolve runs the command for one conflicted file. Unreachable commands
// (missing binary, timeout) surface as ErrUnavailable; a command that runs
// but declines yields an empty proposal with a nil error.
func (r *CommandResolver) Resolve(ctx context.Context, file git.ConflictedFile, mode Mode) (string, error) {
	if strings.TrimSpace(r.Command) == "" {
		return "", ErrUnavailable
	}

	payload, err := json.Marshal(Request{
		Path:    file.Path,
		Ours:    file.Ours,
		Base:    file.Base,
		Theirs:  file.Theirs,
		Content: file.Content,
		Mode:    string(mode),
	})
	if err != nil {
		return "", fmt.Errorf("encode resolution request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Command, r.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			r.logger().Warn("resolver command timed out", "command", r.Command, "timeout", r.timeout())
			return "", fmt.Errorf("%w: %s timed out after %s", ErrUnavailable, r.Command, r.timeout())
		}
		if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s not found", ErrUnavailable, r.Command)
		}
		return "", fmt.Errorf("resolver command %s: %w\n%s", r.Command, runErr, strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		r.logger().Warn("resolver returned malformed output", "command", r.Command, "error", err)
		return "", fmt.Errorf("decode resolution for %s: %w", file.Path, err)
	}

	r.logger().Debug("resolution received",
		"path", file.Path,
		"proposed", resp.Resolution != "",
		"confidence", resp.Confidence,
		"elapsed", elapsed,
	)
	return resp.Resolution, nil
}
