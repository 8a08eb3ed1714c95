package git

import "strings"

// Conflict marker prefixes git writes into files during a failed merge.
const (
	markerOurs      = "<<<<<<<"
	markerBase      = "|||||||"
	markerSeparator = "======="
	markerTheirs    = ">>>>>>>"
)

type conflictState int

const (
	stateCommon conflictState = iota
	stateOurs
	stateBase
	stateTheirs
)

// ParseConflict splits a conflicted file's content into its merge inputs.
// Text outside conflict regions belongs to every side, so Ours and Theirs
// reconstruct what `checkout --ours` / `--theirs` would produce. Base stays
// empty unless diff3-style markers are present.
func ParseConflict(path, content string) ConflictedFile {
	file := ConflictedFile{Path: path, Content: content}

	var ours, base, theirs strings.Builder
	sawBase := false
	state := stateCommon

	for _, line := range splitAfterLines(content) {
		switch {
		case state == stateCommon && hasMarker(line, markerOurs):
			state = stateOurs
		case state == stateOurs && hasMarker(line, markerBase):
			state = stateBase
			sawBase = true
		case (state == stateOurs || state == stateBase) && hasMarker(line, markerSeparator):
			state = stateTheirs
		case state == stateTheirs && hasMarker(line, markerTheirs):
			state = stateCommon
		default:
			switch state {
			case stateCommon:
				ours.WriteString(line)
				base.WriteString(line)
				theirs.WriteString(line)
			case stateOurs:
				ours.WriteString(line)
			case stateBase:
				base.WriteString(line)
			case stateTheirs:
				theirs.WriteString(line)
			}
		}
	}

	file.Ours = ours.String()
	file.Theirs = theirs.String()
	if sawBase {
		file.Base = base.String()
	}
	return file
}

// HasConflictMarkers reports whether the content contains a begin marker,
// used to distinguish textual conflicts from binary or delete/modify ones.
func HasConflictMarkers(content string) bool {
	for _, line := range splitAfterLines(content) {
		if hasMarker(line, markerOurs) {
			return true
		}
	}
	return false
}

func hasMarker(line, marker string) bool {
	trimmed := strings.TrimRight(line, "\r\n")
	if marker == markerSeparator {
		return trimmed == marker
	}
	return trimmed == marker || strings.HasPrefix(trimmed, marker+" ")
}

// splitAfterLines splits content into lines keeping their terminators, so
// reassembling the pieces reproduces the input byte for byte.
func splitAfterLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
