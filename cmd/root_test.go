package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "regotest.dev/pkg/regotest/internal/model"
)

func TestMain(tm *testing.M) {
	dir, err := os.MkdirTemp("", "regotest-cmd")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	viper.Set(logFilenameKey, filepath.Join(dir, "regotest.log"))

	code := tm.Run()

	_ = os.RemoveAll(dir)

	os.Exit(code)
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "regotest", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, rootLongDescription, cmd.Long)
	assert.NotNil(t, cmd.PersistentFlags().Lookup(workdirFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(verboseFlagName))
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd := newRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "Selectors pick the tests to run")
}

func TestInit(t *testing.T) {
	assert.NotNil(t, fsAdapter)
	assert.NotNil(t, processRunner)
	assert.NotNil(t, fileWatcher)
	assert.NotNil(t, reportStore)

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Subset(t, names, []string{"run", "watch", "list", "init", "version"})
}

func TestExecute_WithError(t *testing.T) {
	originalRootCmd := rootCmd
	defer func() {
		rootCmd = originalRootCmd
	}()

	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(_ *cobra.Command, _ []string) error {
			return fmt.Errorf("command failed")
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})
	mockCmd.SetArgs([]string{})

	rootCmd = mockCmd

	// Execute would call os.Exit(1), so the command is run directly.
	err := rootCmd.Execute()
	require.Error(t, err)
}

func TestSession_Resolve(t *testing.T) {
	dir := writeWorkspace(t)
	file := filepath.Join(dir, "authz_test.rego")

	resetFlagBindings()
	t.Setenv("REGOTEST_WORKDIR", dir)

	s, err := newSession(t.Context())
	require.NoError(t, err)

	tests := []struct {
		name      string
		selectors []string
		want      m.NodeSet
		wantErr   string
	}{
		{name: "none", selectors: nil, want: nil},
		{name: "test id", selectors: []string{"data.authz.test_allow"}, want: m.NewNodeSet("data.authz.test_allow")},
		{name: "file path", selectors: []string{file}, want: m.NewNodeSet(file)},
		{
			name:      "mixed",
			selectors: []string{file, "data.authz.test_deny"},
			want:      m.NewNodeSet(file, "data.authz.test_deny"),
		},
		{name: "unknown", selectors: []string{"data.authz.test_missing"}, wantErr: "no test or test file matches"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.resolve(tt.selectors)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSession_DiscoversTests(t *testing.T) {
	dir := writeWorkspace(t)

	resetFlagBindings()
	t.Setenv("REGOTEST_WORKDIR", dir)

	s, err := newSession(t.Context())
	require.NoError(t, err)

	assert.Equal(t, m.Path(dir), s.config.Cwd)
	assert.Equal(t, 3, s.tree.Len())

	_, ok := s.tree.Get("data.authz.test_allow")
	assert.True(t, ok)
}
