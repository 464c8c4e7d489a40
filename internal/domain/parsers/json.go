package parsers

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	m "regotest.dev/pkg/regotest/internal/model"
)

const nanosPerMilli = 1e6

// jsonRecord is one element of `opa test --format=json` output.
type jsonRecord struct {
	Location struct {
		File string `json:"file"`
		Row  int    `json:"row"`
		Col  int    `json:"col"`
	} `json:"location"`
	Package  string          `json:"package"`
	Name     string          `json:"name"`
	Fail     bool            `json:"fail,omitempty"`
	Skip     bool            `json:"skip,omitempty"`
	// Duration is reported in nanoseconds.
	Duration float64         `json:"duration"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// JSONParser parses the structured array-of-records output.
type JSONParser struct{}

// NewJSONParser constructs a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Name returns the parser name.
func (p *JSONParser) Name() string {
	return "json"
}

// Format returns m.FormatJSON.
func (p *JSONParser) Format() m.OutputFormat {
	return m.FormatJSON
}

// Parse decodes output. A malformed payload yields a nil map and an
// *OutputParseError; the whole batch is lost in that case.
func (p *JSONParser) Parse(output string) (m.Results, error) {
	var records []jsonRecord
	if err := json.Unmarshal([]byte(output), &records); err != nil {
		return nil, &OutputParseError{Raw: output, Err: err}
	}

	results := make(m.Results, len(records))

	for _, record := range records {
		id := record.Package + "." + record.Name

		result := &m.Result{
			TestID:         id,
			Package:        record.Package,
			Name:           record.Name,
			SourceFile:     record.Location.File,
			DurationMillis: record.Duration / nanosPerMilli,
			Outcome:        m.Pass,
		}

		switch {
		case record.Fail || record.Error != nil:
			result.Outcome = m.Fail
		case record.Skip:
			result.Outcome = m.Skip
		}

		if record.Error != nil && record.Error.Message != "" {
			result.Diagnostics = append(result.Diagnostics, record.Error.Message)
		}

		if text := decodeOutput(record.Output); text != "" && result.Outcome != m.Pass {
			result.Diagnostics = append(result.Diagnostics, text)
		}

		if existing, ok := results[id]; ok {
			result.Diagnostics = append(existing.Diagnostics, result.Diagnostics...)
		}

		results[id] = result
	}

	return results, nil
}

// decodeOutput returns captured print output. The tool encodes it as a
// base64 byte string; plain strings are accepted as well.
func decodeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return strings.TrimSpace(string(raw))
	}

	if decoded, err := base64.StdEncoding.DecodeString(text); err == nil && utf8.Valid(decoded) {
		text = string(decoded)
	}

	return strings.TrimRight(text, "\n")
}
