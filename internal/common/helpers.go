// Package common contains helpers shared across the project:
// money formatting, pluralization, string truncation and dates.
package common

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Truncate trims s and cuts it to at most max runes.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// FormatDateTime formats t as "02.01.2006 15:04" in loc.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
