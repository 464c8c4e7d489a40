package model

import "time"

// Outcome is the normalized verdict for one test.
type Outcome int

const (
	// Pass indicates the test passed.
	Pass Outcome = iota
	// Fail indicates the test failed or errored.
	Fail
	// Skip indicates the test was skipped.
	Skip
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	case Skip:
		return "skip"
	default:
		return "unknown"
	}
}

// Result is the normalized record for one test recovered from tool output.
type Result struct {
	TestID         string
	Package        string
	Name           string
	SourceFile     string
	DurationMillis float64
	Outcome        Outcome
	// Diagnostics holds trace or failure lines, in output order.
	Diagnostics []string
}

// Duration converts DurationMillis to a time.Duration.
func (r *Result) Duration() time.Duration {
	return time.Duration(r.DurationMillis * float64(time.Millisecond))
}

// Results maps test ids to their normalized record.
type Results map[string]*Result

// RunReport summarizes a finished run.
type RunReport struct {
	RunID     string        `yaml:"run_id"`
	StartedAt time.Time     `yaml:"started_at"`
	EndedAt   time.Time     `yaml:"ended_at"`
	Entries   []ReportEntry `yaml:"entries"`
}

// ReportEntry is the final state of one queued test.
type ReportEntry struct {
	TestID         string   `yaml:"test_id"`
	Outcome        string   `yaml:"outcome"`
	DurationMillis float64  `yaml:"duration_ms"`
	Messages       []string `yaml:"messages,omitempty"`
}

// Counts tallies entries by outcome.
func (r RunReport) Counts() (passed, failed, skipped int) {
	for _, entry := range r.Entries {
		switch entry.Outcome {
		case Pass.String():
			passed++
		case Fail.String():
			failed++
		case Skip.String():
			skipped++
		}
	}

	return passed, failed, skipped
}
