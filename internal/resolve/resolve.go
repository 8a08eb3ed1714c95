// Package resolve produces machine-generated resolutions for conflicted
// files by delegating to an external command. The engine never talks to a
// model API directly; operators point the command at whatever assistant
// they run locally and the engine exchanges JSON with it over stdio.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/railyardhq/railyard/internal/git"
)

// Mode controls how machine resolutions are used during a session.
type Mode string

const (
	// ModeOff disables machine resolution entirely.
	ModeOff Mode = "off"

	// ModeAuto allows resolutions to be applied without review.
	ModeAuto Mode = "auto"

	// ModeSuggest proposes resolutions for the operator to accept, edit, or
	// reject.
	ModeSuggest Mode = "suggest"
)

// ParseMode validates a mode string from configuration. An empty string
// selects ModeOff.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeOff, nil
	case ModeOff, ModeAuto, ModeSuggest:
		return Mode(s), nil
	default:
		return ModeOff, fmt.Errorf("unknown resolution mode %q (want off, auto, or suggest)", s)
	}
}

// Enabled reports whether the mode permits asking for resolutions at all.
func (m Mode) Enabled() bool {
	return m == ModeAuto || m == ModeSuggest
}

// ErrUnavailable reports that no resolver is configured or the configured
// command cannot be reached. Callers fall back to manual resolution.
var ErrUnavailable = errors.New("resolver unavailable")

// Resolver proposes full-file resolutions for a conflict. An empty proposal
// with a nil error means the resolver declined to answer.
type Resolver interface {
	Resolve(ctx context.Context, file git.ConflictedFile, mode Mode) (string, error)
}

// Disabled is the Resolver used when no command is configured.
type Disabled struct{}

func (Disabled) Resolve(context.Context, git.ConflictedFile, Mode) (string, error) {
	return "", ErrUnavailable
}
