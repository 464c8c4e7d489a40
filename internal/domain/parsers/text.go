package parsers

import (
	"regexp"
	"strconv"
	"strings"

	m "regotest.dev/pkg/regotest/internal/model"
)

var (
	loadErrorPattern = regexp.MustCompile(`^\d+ errors? occurred during loading:`)
	resultPattern    = regexp.MustCompile(`^(\S+): (PASS|FAIL|SKIPPED|ERROR)(?: \((\d+\.?\d*)(µs|ms|s)\))?$`)
	summaryPattern   = regexp.MustCompile(`^(?:PASS|FAIL|SKIPPED|ERROR): \d+/\d+$`)
	dividerPattern   = regexp.MustCompile(`^-+$`)
	fileHeaderRegex  = regexp.MustCompile(`^(\S.*):$`)
	tracePattern     = regexp.MustCompile(`^[ \t]{2,}\S`)
)

type scanState int

const (
	stateNone scanState = iota
	stateInFile
	stateInResult
)

// TextParser reconstructs results from the human-readable verbose report.
// The report has no per-record envelope: results are found by scanning line
// by line and tracking the current file header and current result.
type TextParser struct{}

// NewTextParser constructs a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Name returns the parser name.
func (p *TextParser) Name() string {
	return "text"
}

// Format returns m.FormatText.
func (p *TextParser) Format() m.OutputFormat {
	return m.FormatText
}

// Parse scans output. Content that starts with a loading error preamble is
// returned as a *LoadError with no partial results.
func (p *TextParser) Parse(output string) (m.Results, error) {
	if loadErrorPattern.MatchString(output) {
		return nil, &LoadError{Content: output}
	}

	sc := textScanner{results: m.Results{}}

	for _, line := range strings.Split(output, "\n") {
		sc.feed(strings.TrimRight(line, "\r"))
	}

	return sc.results, nil
}

type textScanner struct {
	state       scanState
	currentFile string
	current     *m.Result
	results     m.Results
}

func (s *textScanner) feed(line string) {
	switch {
	case strings.TrimSpace(line) == "":
		return
	case tracePattern.MatchString(line):
		if s.state == stateInResult && s.current.Outcome != m.Pass {
			s.current.Diagnostics = append(s.current.Diagnostics, line)
		}
	case line == "FAILURES", line == "SUMMARY", dividerPattern.MatchString(line):
		s.endResult()
	case summaryPattern.MatchString(line):
		s.endResult()
	default:
		if match := resultPattern.FindStringSubmatch(line); match != nil {
			s.startResult(match[1], match[2], match[3], match[4])
			return
		}

		if match := fileHeaderRegex.FindStringSubmatch(line); match != nil {
			s.currentFile = match[1]
			s.current = nil
			s.state = stateInFile
		}
	}
}

func (s *textScanner) endResult() {
	s.current = nil

	if s.currentFile != "" {
		s.state = stateInFile
	} else {
		s.state = stateNone
	}
}

func (s *textScanner) startResult(id, outcome, duration, unit string) {
	result, seen := s.results[id]
	if !seen {
		pkg, name := splitTestID(id)
		result = &m.Result{
			TestID:         id,
			Package:        pkg,
			Name:           name,
			Outcome:        outcomeFromToken(outcome),
			DurationMillis: toMillis(duration, unit),
		}
		s.results[id] = result
	}

	if s.currentFile != "" && result.SourceFile == "" {
		result.SourceFile = s.currentFile
	}

	s.current = result
	s.state = stateInResult
}

func outcomeFromToken(token string) m.Outcome {
	switch token {
	case "FAIL", "ERROR":
		return m.Fail
	case "SKIPPED":
		return m.Skip
	default:
		return m.Pass
	}
}

// toMillis converts a report duration to milliseconds. A missing or
// unparsable value is zero.
func toMillis(value, unit string) float64 {
	if value == "" {
		return 0
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}

	switch unit {
	case "µs":
		return v / 1_000
	case "ms":
		return v
	default:
		return v * 1_000
	}
}
