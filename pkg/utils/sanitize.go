package utils

import (
	"net/url"
	"strings"
	"unicode"
)

const maxFilenameLength = 100

// SanitizeFilename turns an arbitrary string into a single safe path component.
// Runs of invalid characters collapse into one underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`<>:"/\|?*`, r) || r == '_' {
			if !lastUnderscore {
				b.WriteByte('_')
			}
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}

	sanitized := strings.TrimFunc(b.String(), func(r rune) bool { return r == '_' || unicode.IsSpace(r) })
	if len(sanitized) > maxFilenameLength {
		sanitized = strings.TrimFunc(sanitized[:maxFilenameLength], func(r rune) bool { return r == '_' || unicode.IsSpace(r) })
	}
	if sanitized == "" {
		return "untitled"
	}
	return sanitized
}

// RunLabel derives a filesystem-safe label for a crawl from its seed URL,
// e.g. "docs.example.com_guide" for https://docs.example.com/guide/.
func RunLabel(seedURL string) string {
	u, err := url.Parse(seedURL)
	if err != nil || u.Host == "" {
		return SanitizeFilename(seedURL)
	}
	return SanitizeFilename(u.Host + "_" + strings.Trim(u.Path, "/"))
}
