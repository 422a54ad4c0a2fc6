// Package llmjson extracts JSON objects from free-form model completions.
//
// Completions often wrap the object in prose or markdown fences, and long ones get cut off before the final
// closing braces. Extraction runs an ordered list of strategies and stops at the first one that yields a
// well-formed object.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/myrjola/noirline/internal/errors"
)

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.NewSentinel("completion is not a JSON object")
	// ErrShape is matched by a *ParseError from Decode when the object was found but does not fit the target.
	ErrShape = errors.NewSentinel("completion object does not match the expected shape")
)

// Attempt records why a strategy did not produce an object.
type Attempt struct {
	Strategy string
	Err      error
}

// ParseError carries the raw completion and the outcome of every strategy for diagnostics.
type ParseError struct {
	Raw      string
	Attempts []Attempt
	// Shape is set when a well-formed object was extracted but could not be decoded into the target.
	Shape bool
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.Shape {
		sb.WriteString(ErrShape.Error())
	} else {
		sb.WriteString(ErrParse.Error())
	}
	for _, a := range e.Attempts {
		fmt.Fprintf(&sb, "; %s: %v", a.Strategy, a.Err)
	}
	return sb.String()
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse || (e.Shape && target == ErrShape) //nolint:errorlint // sentinel identity
}

// Strategy proposes a candidate object from the raw completion. ok is false when it has nothing to propose.
type Strategy struct {
	Name      string
	Candidate func(raw string) (candidate string, ok bool)
}

var errNoCandidate = errors.NewSentinel("no candidate")

// DefaultStrategies in the order they are tried.
var DefaultStrategies = []Strategy{
	{Name: "direct", Candidate: direct},
	{Name: "outer braces", Candidate: outerBraces},
	{Name: "leading object", Candidate: leadingObject},
	{Name: "balance tail", Candidate: balanceTail},
	{Name: "balance outer braces", Candidate: balanceOuterBraces},
}

// Extract returns the first well-formed JSON object found by DefaultStrategies.
func Extract(raw string) (json.RawMessage, error) {
	return ExtractWith(raw, DefaultStrategies)
}

// ExtractWith is Extract with a custom strategy list.
func ExtractWith(raw string, strategies []Strategy) (json.RawMessage, error) {
	perr := &ParseError{Raw: raw}
	for _, s := range strategies {
		candidate, ok := s.Candidate(raw)
		if !ok {
			perr.Attempts = append(perr.Attempts, Attempt{Strategy: s.Name, Err: errNoCandidate})
			continue
		}
		if err := validateObject(candidate); err != nil {
			perr.Attempts = append(perr.Attempts, Attempt{Strategy: s.Name, Err: err})
			continue
		}
		return json.RawMessage(candidate), nil
	}
	return nil, perr
}

// Decode extracts the object from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	obj, err := Extract(raw)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(obj, v); err != nil {
		return &ParseError{Raw: raw, Attempts: []Attempt{{Strategy: "decode", Err: err}}, Shape: true}
	}
	return nil
}

func validateObject(candidate string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return err //nolint:wrapcheck // recorded as attempt diagnostics
	}
	if obj == nil {
		return errors.NewSentinel("null is not an object")
	}
	return nil
}

func direct(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	return trimmed, trimmed != ""
}

func outerBraces(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// leadingObject is the first complete JSON value starting at the first '{', ignoring whatever follows it.
func leadingObject(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	var obj json.RawMessage
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&obj); err != nil {
		return "", false
	}
	return string(obj), true
}

// balanceTail closes the object that starts at the first '{' and runs to the end of the text.
func balanceTail(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	return closeBraces(strings.TrimSpace(raw[start:]))
}

func balanceOuterBraces(raw string) (string, bool) {
	span, ok := outerBraces(raw)
	if !ok {
		return "", false
	}
	return closeBraces(span)
}

// closeBraces appends the missing '}' characters. It has no candidate when nothing is missing.
func closeBraces(s string) (string, bool) {
	missing := UnclosedBraces(s)
	if missing <= 0 {
		return "", false
	}
	return s + strings.Repeat("}", missing), true
}

// UnclosedBraces counts '{' minus '}' outside string literals.
func UnclosedBraces(s string) int {
	var (
		balance  int
		inString bool
		escaped  bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{':
			balance++
		case r == '}':
			balance--
		}
	}
	return balance
}
