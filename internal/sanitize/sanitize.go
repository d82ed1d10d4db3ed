// Package sanitize provides identifier sanitization for the fields that
// participate in batch-root path composition. Every identifying input
// (project, controller, scenario, criterion name) is reduced to a safe
// character set so that no field can inject path separators or traversal
// sequences into the on-disk layout.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength is the maximum allowed length for a path-participating
// identifier after sanitization.
const MaxIdentifierLength = 128

// Pre-compiled regular expressions for performance.
var (
	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)

	// reRepeatedDots matches 2 or more consecutive dots, which covers the
	// ".." traversal sequence.
	reRepeatedDots = regexp.MustCompile(`\.{2,}`)
)

// Identifier sanitizes a batch-identifying field for use as a single path
// component. Only [a-zA-Z0-9._-] survive; path separators are dropped,
// repeated separator characters are collapsed, and the result is trimmed of
// leading/trailing dots and truncated to MaxIdentifierLength.
func Identifier(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = reRepeatedDots.ReplaceAllString(s, ".")

	// A bare "." or leading/trailing dots would still be path-meaningful.
	s = strings.Trim(s, ".")

	if len(s) > MaxIdentifierLength {
		s = s[:MaxIdentifierLength]
	}

	return s
}

// IsCleanIdentifier reports whether input survives Identifier unchanged.
// Callers reject unclean fields up front instead of silently rewriting them.
func IsCleanIdentifier(input string) bool {
	return input != "" && Identifier(input) == input
}
