package gh

import (
	"context"
	"errors"
	"fmt"
)

// PullRequest describes a promotion pull request, either freshly created or
// discovered as an existing open one.
type PullRequest struct {
	URL    string
	Number int
	Head   string
	Base   string
}

// CreatePROptions defines the metadata required to open a promotion PR.
type CreatePROptions struct {
	Title  string
	Body   string
	Head   string
	Base   string
	Draft  bool
	Labels []string
}

// Client exposes the GitHub operations required by the orchestration engine.
type Client interface {
	CreatePR(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error)
	FindOpenPR(ctx context.Context, owner, repo, head, base string) (*PullRequest, error)
	EnsureBranchExists(ctx context.Context, owner, repo, branch string) error
}

// Factory builds concrete GitHub clients (e.g., REST-backed) for the engine.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrBranchNotFound indicates the requested branch does not exist on the remote.
var ErrBranchNotFound = errors.New("github: branch not found")

// PromotionMarker returns the hidden body comment that identifies a promotion
// PR for a repository and branch pair, so later runs can find it again.
func PromotionMarker(repo, source, target string) string {
	return fmt.Sprintf("<!-- railyard-promotion: %s %s -> %s -->", repo, source, target)
}

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}

// Retryable marks an error as retryable for IsRetryable, preserving the
// original for errors.Is and errors.As.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}
