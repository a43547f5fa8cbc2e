package taskindex

import (
	"regexp"
	"strings"
)

// cherryPickSuffix matches provenance notes that tools append to a subject
// when a commit is cherry-picked, e.g. "(cherry picked from commit 1a2b3c)".
var cherryPickSuffix = regexp.MustCompile(`(?i)\s*[\(\[]\s*cherry[- ]?picked\s+from\s+(?:commit\s+)?[0-9a-f]{4,40}\s*[\)\]]\s*$`)

// NormalizeLine reduces the first line of a commit message to the form used
// in identity keys: provenance suffixes and surrounding whitespace removed.
// The same function must be applied to both refs of a comparison.
func NormalizeLine(line string) string {
	line = strings.TrimSpace(line)
	for {
		stripped := cherryPickSuffix.ReplaceAllString(line, "")
		if stripped == line {
			break
		}
		line = strings.TrimSpace(stripped)
	}
	return line
}
