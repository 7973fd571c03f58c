package models

import (
	"strings"
	"unicode"
)

// NormalizeChannelName converts a display name to the canonical stored form:
// lowercase, with every run of whitespace collapsed to a single hyphen.
// "Exam Schedules" and "exam  schedules" both become "exam-schedules", so
// the unique constraint on channels.name catches them as duplicates.
//
// The function is idempotent: hyphens are not whitespace, so a second pass
// over an already-normalized name changes nothing.
func NormalizeChannelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte('-')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
