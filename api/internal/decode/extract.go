package decode

import (
	"encoding/json"
	"errors"
	"strings"
)

const fence = "```"

// Extract recovers a JSON value from raw model text. The fallbacks run in a
// fixed order, safest first: fence stripping, direct parse, outermost brace
// span, backslash repair. When all of them fail the result is a
// MalformedOutput failure carrying the cleaned text.
func Extract(text string) (any, error) {
	cleaned := StripCodeFences(text)

	v, err := parseJSON(cleaned)
	if err == nil {
		return v, nil
	}
	firstErr := err

	candidate := cleaned
	if span, ok := braceSpan(cleaned); ok {
		if v, err := parseJSON(span); err == nil {
			return v, nil
		}
		candidate = span
	}

	if repaired := RepairBackslashes(candidate); repaired != candidate {
		if v, err := parseJSON(repaired); err == nil {
			return v, nil
		}
	}

	return nil, &Failure{Kind: MalformedOutput, Text: cleaned, Err: firstErr}
}

// StripCodeFences removes a markdown code fence (three backticks plus an
// optional language tag) wrapping the payload. Commentary before the opener
// and after the closer goes with it. A marker only counts as an opener at
// the start of a line and as a closer at the end of one; JSON strings cannot
// span lines, so backticks inside a string value are never taken for a fence.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	open := fenceOpener(s)
	if open < 0 {
		return s
	}
	rest := s[open+len(fence):]
	// A lone trailing marker is a closer without an opener.
	if strings.TrimSpace(rest) == "" {
		return strings.TrimSpace(s[:open])
	}
	body := rest[languageTagLen(rest):]
	if end := fenceCloser(body); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// fenceOpener returns the index of the first marker preceded on its line
// only by blanks, or -1.
func fenceOpener(s string) int {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], fence)
		if i < 0 {
			return -1
		}
		i += from
		j := i - 1
		for j >= 0 && (s[j] == ' ' || s[j] == '\t') {
			j--
		}
		if j < 0 || s[j] == '\n' {
			return i
		}
		from = i + 1
	}
	return -1
}

// fenceCloser returns the index of the last marker followed on its line
// only by blanks, or -1.
func fenceCloser(s string) int {
	for to := len(s); to > 0; {
		i := strings.LastIndex(s[:to], fence)
		if i < 0 {
			return -1
		}
		j := i + len(fence)
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r') {
			j++
		}
		if j == len(s) || s[j] == '\n' {
			return i
		}
		to = i + len(fence) - 1
	}
	return -1
}

func languageTagLen(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' || c == '+' || c == '.' {
			n++
			continue
		}
		break
	}
	return n
}

// braceSpan returns the text between the first '{' and the last '}' inclusive.
func braceSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// RepairBackslashes doubles every backslash that does not start a legal JSON
// escape. Escape pairs are consumed whole, so an existing `\\` survives as is.
// `\u` only counts as an escape when four hex digits follow.
func RepairBackslashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(s) && legalEscapeAt(s, i+1) {
			b.WriteByte('\\')
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteString(`\\`)
	}
	return b.String()
}

func legalEscapeAt(s string, i int) bool {
	switch s[i] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return true
	case 'u':
		if i+5 > len(s) {
			return false
		}
		for _, c := range []byte(s[i+1 : i+5]) {
			if !isHex(c) {
				return false
			}
		}
		return true
	}
	return false
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

var errEmpty = errors.New("empty input")

func parseJSON(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errEmpty
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}
