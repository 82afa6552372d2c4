package slug

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases title, collapses every run of characters outside [a-z0-9]
// into a single hyphen and trims hyphens at both ends. The result may be empty.
func Make(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// ForTitle is Make with a random fallback for titles without any ASCII letters or digits.
func ForTitle(title string) string {
	if s := Make(title); s != "" {
		return s
	}
	return "diary-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
