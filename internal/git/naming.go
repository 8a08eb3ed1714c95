package git

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"
)

var disallowedBranchChars = regexp.MustCompile(`[^a-zA-Z0-9._/-]+`)

const maxLabelLength = 48

// EscalationBranchName computes the branch name used to preserve an
// unresolved operation: <prefix>/<label>-<unix timestamp>. The label is
// sanitized for git and length-limited; over-long labels keep a stable fnv
// hash suffix so distinct labels cannot collide after truncation.
func EscalationBranchName(prefix, label string, now time.Time) string {
	prefix = sanitizeBranchSegment(prefix, "escalation")
	label = sanitizeBranchSegment(label, "repo")
	if len(label) > maxLabelLength {
		label = shortenSegment(label, maxLabelLength)
	}
	return fmt.Sprintf("%s/%s-%d", prefix, label, now.Unix())
}

func sanitizeBranchSegment(segment, fallback string) string {
	segment = strings.TrimSpace(segment)
	segment = strings.ReplaceAll(segment, " ", "-")
	segment = disallowedBranchChars.ReplaceAllString(segment, "-")
	segment = strings.Trim(segment, "-/.")

	if segment == "" {
		segment = fallback
	}

	segment = strings.ToLower(segment)
	for strings.Contains(segment, "//") {
		segment = strings.ReplaceAll(segment, "//", "/")
	}
	for strings.Contains(segment, "--") {
		segment = strings.ReplaceAll(segment, "--", "-")
	}
	segment = strings.Trim(segment, "-")

	if segment == "" {
		segment = fallback
	}

	return segment
}

func shortenSegment(segment string, max int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(segment))
	suffix := fmt.Sprintf("-%08x", h.Sum32())

	keep := max - len(suffix)
	if keep < 1 {
		keep = 1
	}
	base := strings.TrimRight(segment[:keep], "-./")
	if base == "" {
		base = "repo"
	}
	return base + suffix
}
