package orchestrator

import "github.com/railyardhq/railyard/internal/session"

// Status classifies one repository's outcome within a run.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
	StatusSkipped  Status = "skipped"
)

// Result captures per-repository orchestration outcomes. The engine emits
// exactly one Result per target, in target order, and the list is its whole
// contract with callers.
type Result struct {
	Repo    string
	Status  Status
	Message string

	// Session is populated whenever conflict resolution ran, including runs
	// that ended resolved.
	Session *session.Session

	// PRURL is set when a promotion pull request was created or reused.
	PRURL string
}
