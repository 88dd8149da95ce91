package decode

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a model response could not be turned into a record.
type Kind int

const (
	// MalformedOutput: no JSON value survived any extraction heuristic.
	MalformedOutput Kind = iota + 1
	// MissingRequiredField: a required field resolved to nothing via key, alias or nested path.
	MissingRequiredField
	// UnsupportedValueShape: a field resolved to a value with no coercion to its declared shape.
	UnsupportedValueShape
)

func (k Kind) String() string {
	switch k {
	case MalformedOutput:
		return "malformed_output"
	case MissingRequiredField:
		return "missing_required_field"
	case UnsupportedValueShape:
		return "unsupported_value_shape"
	default:
		return "unknown"
	}
}

const excerptLimit = 240

// Failure is the typed error returned by Extract, Normalize and Decode.
type Failure struct {
	Kind Kind
	// Field is the dotted path of the offending field, e.g. "items[2].stem".
	Field string
	// Keys lists the keys present in the mapping where a required field was looked up.
	Keys []string
	// Text is the cleaned model text (MalformedOutput only).
	Text string
	Err  error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("decode: ")
	b.WriteString(f.Kind.String())
	if f.Field != "" {
		fmt.Fprintf(&b, " field=%q", f.Field)
	}
	if len(f.Keys) > 0 {
		fmt.Fprintf(&b, " keys=[%s]", strings.Join(f.Keys, ","))
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	if f.Text != "" {
		fmt.Fprintf(&b, " text=%q", Excerpt(f.Text, excerptLimit))
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf reports the failure kind carried by err, or 0 when err is not a *Failure.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// Excerpt shortens s to at most n runes, marking the cut.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
