// Package parsers normalizes policy test tool output into per-test results.
package parsers

import (
	"fmt"
	"strings"

	m "regotest.dev/pkg/regotest/internal/model"
)

// Parser turns captured tool stdout into normalized results. Both strategies
// share the same output contract: ids are unique, every outcome is one of
// pass/fail/skip, and clean passes carry no diagnostics.
type Parser interface {
	// Name returns the parser name.
	Name() string
	// Format is the tool output format the parser understands.
	Format() m.OutputFormat
	// Parse returns the results found in output. An empty map means the
	// output held no tests.
	Parse(output string) (m.Results, error)
}

// OutputParseError reports structured output that could not be decoded.
// The raw payload is kept so it can be surfaced as diagnostics.
type OutputParseError struct {
	Raw string
	Err error
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("parse test output: %v", e.Err)
}

func (e *OutputParseError) Unwrap() error {
	return e.Err
}

// LoadError reports that the tool could not load the policy files at all.
type LoadError struct {
	Content string
}

func (e *LoadError) Error() string {
	return strings.TrimRight(e.Content, "\r\n")
}

// ForFormat returns the parser for format.
func ForFormat(format m.OutputFormat) Parser {
	if format == m.FormatText {
		return NewTextParser()
	}

	return NewJSONParser()
}

// splitTestID splits `data.pkg.sub.test_name` into package and name at the
// last dot.
func splitTestID(id string) (string, string) {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return "", id
	}

	return id[:idx], id[idx+1:]
}
