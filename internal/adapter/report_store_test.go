package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "regotest.dev/pkg/regotest/internal/model"
)

func TestYAMLReportStore_SaveAndLoad(t *testing.T) {
	path := m.Path(filepath.Join(t.TempDir(), "reports", "last.yaml"))
	store := NewReportStore()

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	report := m.RunReport{
		RunID:     "run-1",
		StartedAt: started,
		EndedAt:   started.Add(time.Second),
		Entries: []m.ReportEntry{
			{TestID: "data.sample_test.test_a", Outcome: "pass", DurationMillis: 7.5},
			{TestID: "data.sample_test.test_b", Outcome: "fail", Messages: []string{"boom"}},
		},
	}

	require.NoError(t, store.SaveReport(path, report))

	raw, err := os.ReadFile(string(path))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "test_id: data.sample_test.test_a")

	loaded, err := store.LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report, loaded)
}

func TestYAMLReportStore_LoadMissing(t *testing.T) {
	_, err := NewReportStore().LoadReport(m.Path(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}
