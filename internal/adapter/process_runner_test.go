package adapter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "regotest.dev/pkg/regotest/internal/model"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		args SpawnArgs
		want []string
	}{
		{
			name: "json without filter",
			args: SpawnArgs{TestRootDir: ".", Format: m.FormatJSON},
			want: []string{"test", ".", "--format=json"},
		},
		{
			name: "text with filter",
			args: SpawnArgs{TestRootDir: "policies", Filter: "data.sample_test.test_a", Format: m.FormatText},
			want: []string{"test", "policies", "--run", "data.sample_test.test_a", "--verbose"},
		},
		{
			name: "default format is json",
			args: SpawnArgs{TestRootDir: "."},
			want: []string{"test", ".", "--format=json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildArgs(tt.args))
		})
	}
}

func TestCommandLine_PlatformShell(t *testing.T) {
	name, args := commandLine("windows", "opa.exe", []string{"test", "."})
	assert.Equal(t, "cmd.exe", name)
	assert.Equal(t, []string{"/C", "opa.exe", "test", "."}, args)

	name, args = commandLine("linux", "opa", []string{"test", "."})
	assert.Equal(t, "opa", name)
	assert.Equal(t, []string{"test", "."}, args)
}

func TestLocalProcessRunner_Spawn_CapturesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX echo binary")
	}

	echo, err := exec.LookPath("echo")
	if err != nil {
		t.Skip("echo not available")
	}

	runner := NewLocalProcessRunner()

	proc, err := runner.Spawn(context.Background(), SpawnArgs{
		Cwd:         m.Path(t.TempDir()),
		Command:     echo,
		TestRootDir: ".",
		Filter:      "data.x.test_y",
	})
	require.NoError(t, err)

	captured, err := Capture(context.Background(), proc)
	require.NoError(t, err)

	assert.Equal(t, "test . --run data.x.test_y --format=json", strings.TrimSpace(captured.Stdout))
	assert.Empty(t, captured.Stderr)
	assert.Equal(t, 0, captured.Exit.Code)
}

func TestLocalProcessRunner_Spawn_NonZeroExitIsNotAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX false binary")
	}

	falseBin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}

	proc, err := NewLocalProcessRunner().Spawn(context.Background(), SpawnArgs{
		Cwd:     m.Path(t.TempDir()),
		Command: falseBin,
	})
	require.NoError(t, err)

	captured, err := Capture(context.Background(), proc)
	require.NoError(t, err)
	assert.NotEqual(t, 0, captured.Exit.Code)
}

func TestLocalProcessRunner_Spawn_MissingBinary(t *testing.T) {
	_, err := NewLocalProcessRunner().Spawn(context.Background(), SpawnArgs{
		Cwd:     m.Path(t.TempDir()),
		Command: "regotest-definitely-not-a-binary",
	})
	require.Error(t, err)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "regotest-definitely-not-a-binary", spawnErr.Command)
}

func TestLocalProcessRunner_Spawn_ReapedAfterTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on a POSIX shell script")
	}

	// The script floods stdout, then leaves a child holding the pipes.
	script := filepath.Join(t.TempDir(), "slowopa.sh")
	body := "#!/bin/sh\ndd if=/dev/zero bs=1024 count=3072 2>/dev/null\nsleep 30\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o700))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	proc, err := NewLocalProcessRunner().Spawn(ctx, SpawnArgs{
		Cwd:     m.Path(t.TempDir()),
		Command: script,
	})
	require.NoError(t, err)

	_, err = Capture(ctx, proc)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-proc.Done():
	case <-time.After(waitDelay + 5*time.Second):
		t.Fatal("process was not reaped after the timeout")
	}

	for range proc.Stdout() {
	}

	for range proc.Stderr() {
	}
}

type stubProcess struct {
	stdout chan []byte
	stderr chan []byte
	done   chan ExitStatus
}

func (p *stubProcess) Stdout() <-chan []byte   { return p.stdout }
func (p *stubProcess) Stderr() <-chan []byte   { return p.stderr }
func (p *stubProcess) Done() <-chan ExitStatus { return p.done }

func TestCapture_InterleavedChunks(t *testing.T) {
	proc := &stubProcess{
		stdout: make(chan []byte, 4),
		stderr: make(chan []byte, 4),
		done:   make(chan ExitStatus, 1),
	}

	proc.stdout <- []byte("[{")
	proc.stderr <- []byte("warning: ")
	proc.stdout <- []byte("}]")
	proc.stderr <- []byte("deprecated")
	close(proc.stdout)
	close(proc.stderr)
	proc.done <- ExitStatus{Code: 2}

	captured, err := Capture(context.Background(), proc)
	require.NoError(t, err)
	assert.Equal(t, "[{}]", captured.Stdout)
	assert.Equal(t, "warning: deprecated", captured.Stderr)
	assert.Equal(t, 2, captured.Exit.Code)
}

func TestCapture_ContextEnds(t *testing.T) {
	proc := &stubProcess{
		stdout: make(chan []byte),
		stderr: make(chan []byte),
		done:   make(chan ExitStatus),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Capture(ctx, proc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
