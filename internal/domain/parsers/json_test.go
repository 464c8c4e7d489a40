package parsers

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "regotest.dev/pkg/regotest/internal/model"
)

func TestJSONParser_PassAndFail(t *testing.T) {
	// Arrange
	output := `[
  {"location":{"file":"policies/authz_test.rego","row":3,"col":1},"package":"data.authz_test","name":"test_allow","duration":1200500000},
  {"location":{"file":"policies/authz_test.rego","row":7,"col":1},"package":"data.authz_test","name":"test_deny","fail":true,"duration":80000000}
]`

	// Act
	results, err := NewJSONParser().Parse(output)

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)

	pass := results["data.authz_test.test_allow"]
	require.NotNil(t, pass)
	assert.Equal(t, m.Pass, pass.Outcome)
	assert.Equal(t, "data.authz_test", pass.Package)
	assert.Equal(t, "test_allow", pass.Name)
	assert.Equal(t, "policies/authz_test.rego", pass.SourceFile)
	assert.InDelta(t, 1200.5, pass.DurationMillis, 1e-9)
	assert.Empty(t, pass.Diagnostics)

	fail := results["data.authz_test.test_deny"]
	require.NotNil(t, fail)
	assert.Equal(t, m.Fail, fail.Outcome)
}

func TestJSONParser_DurationIsNanoseconds(t *testing.T) {
	output := `[{"location":{"file":"a_test.rego","row":3,"col":1},"package":"data.a","name":"test_x","duration":412083}]`

	results, err := NewJSONParser().Parse(output)
	require.NoError(t, err)

	r := results["data.a.test_x"]
	require.NotNil(t, r)
	assert.InDelta(t, 0.412083, r.DurationMillis, 1e-12)
	assert.InDelta(t, float64(412083*time.Nanosecond), float64(r.Duration()), 1)
}

func TestJSONParser_Malformed(t *testing.T) {
	raw := `[{"package": "data.x", "name": `

	results, err := NewJSONParser().Parse(raw)

	assert.Nil(t, results)

	var parseErr *OutputParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, raw, parseErr.Raw)
	assert.Contains(t, err.Error(), "parse test output")
}

func TestJSONParser_EmptyArray(t *testing.T) {
	results, err := NewJSONParser().Parse("[]")

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestJSONParser_SkipAndError(t *testing.T) {
	output := `[
  {"package":"data.p","name":"todo_test_later","skip":true},
  {"package":"data.p","name":"test_boom","error":{"code":"eval_error","message":"division by zero"}}
]`

	results, err := NewJSONParser().Parse(output)
	require.NoError(t, err)

	assert.Equal(t, m.Skip, results["data.p.todo_test_later"].Outcome)

	boom := results["data.p.test_boom"]
	assert.Equal(t, m.Fail, boom.Outcome)
	assert.Equal(t, []string{"division by zero"}, boom.Diagnostics)
}

func TestJSONParser_OutputOnFailure(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("note: input was empty\n"))
	output := fmt.Sprintf(`[
  {"package":"data.p","name":"test_a","fail":true,"output":%q},
  {"package":"data.p","name":"test_b","output":%q}
]`, encoded, encoded)

	results, err := NewJSONParser().Parse(output)
	require.NoError(t, err)

	assert.Equal(t, []string{"note: input was empty"}, results["data.p.test_a"].Diagnostics)
	assert.Empty(t, results["data.p.test_b"].Diagnostics)
}

func TestJSONParser_DuplicateAppendsDiagnostics(t *testing.T) {
	output := `[
  {"package":"data.p","name":"test_a","fail":true,"duration":1000000,"error":{"message":"first"}},
  {"package":"data.p","name":"test_a","fail":true,"duration":2000000,"error":{"message":"second"}}
]`

	results, err := NewJSONParser().Parse(output)
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results["data.p.test_a"]
	assert.InDelta(t, 2.0, r.DurationMillis, 1e-9)
	assert.Equal(t, []string{"first", "second"}, r.Diagnostics)
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", ``, ""},
		{"base64", `"aGVsbG8K"`, "hello"},
		{"plain", `"not base64!"`, "not base64!"},
		{"non string", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeOutput([]byte(tt.raw)))
		})
	}
}

func TestSplitTestID(t *testing.T) {
	pkg, name := splitTestID("data.a.b.test_c")
	assert.Equal(t, "data.a.b", pkg)
	assert.Equal(t, "test_c", name)

	pkg, name = splitTestID("test_c")
	assert.Empty(t, pkg)
	assert.Equal(t, "test_c", name)
}
