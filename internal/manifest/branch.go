package manifest

import (
	"errors"
	"strings"
)

// NormalizeBranch trims whitespace, removes leading/trailing slashes, and
// strips refs/heads prefixes from a branch name. It returns an empty string
// when the normalized branch would otherwise be empty.
func NormalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	if len(branch) >= len("refs/heads/") && strings.EqualFold(branch[:len("refs/heads/")], "refs/heads/") {
		branch = branch[len("refs/heads/"):]
	}

	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	return strings.TrimSpace(branch)
}

// ValidateBranchName applies simple safety checks so a configured or
// user-supplied branch name can be passed to git verbatim.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return errors.New("branch cannot be empty")
	}

	if strings.ContainsAny(branch, " \t\n\r") {
		return errors.New("branch cannot contain whitespace")
	}

	if strings.Contains(branch, "..") {
		return errors.New("branch cannot contain '..'")
	}

	if strings.ContainsAny(branch, "~^:?*[]@{\\") {
		return errors.New("branch contains forbidden git characters")
	}

	if strings.HasPrefix(branch, "-") {
		return errors.New("branch cannot start with '-'")
	}

	return nil
}
