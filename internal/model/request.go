package model

import "time"

// Profile is an opaque run-configuration token passed through unmodified.
type Profile string

// RunRequest selects which tests a run covers.
type RunRequest struct {
	// Include selects nodes to run; nil means every test.
	Include NodeSet
	// Exclude removes nodes from the selection; nil means nothing excluded.
	Exclude    NodeSet
	Continuous bool
	Profile    Profile
}

// OutputFormat selects how the external tool reports results.
type OutputFormat string

const (
	// FormatJSON is the structured array-of-records output.
	FormatJSON OutputFormat = "json"
	// FormatText is the verbose human-readable report.
	FormatText OutputFormat = "text"
)

// RunConfig carries the settings one run is executed with.
type RunConfig struct {
	// Cwd is the working directory of the external tool.
	Cwd Path
	// Command is the external tool executable.
	Command string
	// PolicyTestDir is the test root passed to the tool.
	PolicyTestDir string
	// EnhancedErrors selects the text report instead of structured output.
	EnhancedErrors bool
	// Batch runs the whole test root once and only falls back to per-test
	// invocations for tests missing from the batch output.
	Batch bool
	// Timeout bounds a single invocation. Zero disables it.
	Timeout time.Duration
}

// Format returns the output format implied by the config.
func (c RunConfig) Format() OutputFormat {
	if c.EnhancedErrors {
		return FormatText
	}

	return FormatJSON
}
