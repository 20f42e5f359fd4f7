// Package dateutil parses compact annotation dates and renders them with
// moment-style format tokens.
package dateutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidFormat indicates an unusable format string.
var ErrInvalidFormat = errors.New("invalid date format")

// MaxFormatLength bounds format strings accepted from callers.
const MaxFormatLength = 64

var compactRe = regexp.MustCompile(`^20[0-9][0-9][0-2][0-9][0-3][0-9]$`)

// tokens maps moment-style tokens to Go layout fragments, longest first.
var tokens = []struct {
	token string
	goFmt string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"ddd", "Mon"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// IsCompact reports whether s is an 8-digit YYYYMMDD date in this century.
func IsCompact(s string) bool {
	return compactRe.MatchString(s)
}

// ParseCompact parses an 8-digit YYYYMMDD date.
func ParseCompact(s string) (time.Time, error) {
	if !IsCompact(s) {
		return time.Time{}, fmt.Errorf("dateutil: not a compact date: %q", s)
	}
	return time.Parse("20060102", s)
}

// Layout converts a moment-style format string to a Go time layout.
// Text inside brackets is copied literally; other characters pass through.
func Layout(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("%w: format cannot be empty", ErrInvalidFormat)
	}
	if len(format) > MaxFormatLength {
		return "", fmt.Errorf("%w: format exceeds %d characters", ErrInvalidFormat, MaxFormatLength)
	}

	var b strings.Builder
	b.Grow(len(format) + 8)

	for i := 0; i < len(format); {
		if format[i] == '[' {
			end := strings.IndexByte(format[i+1:], ']')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidFormat, i)
			}
			b.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, t := range tokens {
			if strings.HasPrefix(format[i:], t.token) {
				b.WriteString(t.goFmt)
				i += len(t.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String(), nil
}

// Format renders t with a moment-style format string.
func Format(t time.Time, format string) (string, error) {
	layout, err := Layout(format)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}
