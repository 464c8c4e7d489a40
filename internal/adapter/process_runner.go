package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	m "regotest.dev/pkg/regotest/internal/model"
)

const chunkBufferSize = 16

const waitDelay = time.Second

// SpawnArgs describes one invocation of the external test tool.
type SpawnArgs struct {
	Cwd         m.Path
	Command     string
	TestRootDir string
	// Filter restricts the run to tests matching it; empty runs everything.
	Filter string
	Format m.OutputFormat
}

// ExitStatus is delivered once the process has exited and its streams are drained.
type ExitStatus struct {
	Code   int
	Signal string
	// Err holds a wait failure that is not a plain non-zero exit.
	Err error
}

// Process is a live handle on a spawned tool invocation. Stdout and Stderr
// deliver chunks as they are read and are closed before Done fires.
type Process interface {
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	Done() <-chan ExitStatus
}

// ProcessRunner spawns the external policy test tool.
type ProcessRunner interface {
	// Spawn starts the tool. A returned error means the process never started.
	Spawn(ctx context.Context, args SpawnArgs) (Process, error)
}

// SpawnError reports that the external command could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// LocalProcessRunner runs the tool with os/exec.
type LocalProcessRunner struct {
	goos string
}

// NewLocalProcessRunner constructs a LocalProcessRunner for the host platform.
func NewLocalProcessRunner() *LocalProcessRunner {
	return &LocalProcessRunner{goos: runtime.GOOS}
}

// BuildArgs assembles the tool arguments: `test <root> [--run <filter>] <format flag>`.
func BuildArgs(args SpawnArgs) []string {
	cmdArgs := []string{"test"}

	if args.TestRootDir != "" {
		cmdArgs = append(cmdArgs, args.TestRootDir)
	}

	if args.Filter != "" {
		cmdArgs = append(cmdArgs, "--run", args.Filter)
	}

	if args.Format == m.FormatText {
		cmdArgs = append(cmdArgs, "--verbose")
	} else {
		cmdArgs = append(cmdArgs, "--format=json")
	}

	return cmdArgs
}

// commandLine returns the executable and arguments for goos. Windows runs
// the tool through the command shell.
func commandLine(goos, command string, args []string) (string, []string) {
	if goos == "windows" {
		return "cmd.exe", append([]string{"/C", command}, args...)
	}

	return command, args
}

// Spawn starts the tool and returns immediately with a live handle.
func (r *LocalProcessRunner) Spawn(ctx context.Context, args SpawnArgs) (Process, error) {
	name, cmdArgs := commandLine(r.goos, args.Command, BuildArgs(args))

	cmd := exec.CommandContext(ctx, name, cmdArgs...)
	cmd.Dir = string(args.Cwd)
	cmd.Env = os.Environ()

	// Once ctx ends the child is killed; pipes still held by its own
	// children are closed after waitDelay so Wait always returns.
	cmd.WaitDelay = waitDelay

	proc := &localProcess{
		stdout: make(chan []byte, chunkBufferSize),
		stderr: make(chan []byte, chunkBufferSize),
		done:   make(chan ExitStatus, 1),
	}

	cmd.Stdout = &chunkWriter{out: proc.stdout, stop: ctx.Done()}
	cmd.Stderr = &chunkWriter{out: proc.stderr, stop: ctx.Done()}

	slog.Debug("Spawning test process", "command", name, "args", cmdArgs, "cwd", args.Cwd)

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to spawn test process", "command", name, "error", err)
		return nil, &SpawnError{Command: args.Command, Err: err}
	}

	go func() {
		// Wait returns only after both writers received their last chunk.
		status := exitStatus(cmd.Wait())

		close(proc.stdout)
		close(proc.stderr)

		proc.done <- status
		close(proc.done)
	}()

	return proc, nil
}

type localProcess struct {
	stdout chan []byte
	stderr chan []byte
	done   chan ExitStatus
}

func (p *localProcess) Stdout() <-chan []byte   { return p.stdout }
func (p *localProcess) Stderr() <-chan []byte   { return p.stderr }
func (p *localProcess) Done() <-chan ExitStatus { return p.done }

// chunkWriter forwards each write as a chunk. After stop is closed chunks
// are dropped so an abandoned process can still be reaped.
type chunkWriter struct {
	out  chan<- []byte
	stop <-chan struct{}
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	select {
	case w.out <- chunk:
	case <-w.stop:
	}

	return len(p), nil
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{Code: -1, Err: err}
	}

	status := ExitStatus{Code: exitErr.ExitCode()}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal().String()
	}

	return status
}

// Captured holds the buffered streams of a finished process.
type Captured struct {
	Stdout string
	Stderr string
	Exit   ExitStatus
}

// Capture drains both streams of p and waits for it to exit. It returns
// early with ctx's error if ctx ends first; the process keeps running.
func Capture(ctx context.Context, p Process) (Captured, error) {
	var stdout, stderr bytes.Buffer

	outCh, errCh := p.Stdout(), p.Stderr()

	for outCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Captured{}, ctx.Err()
		case chunk, ok := <-outCh:
			if !ok {
				outCh = nil
				continue
			}

			stdout.Write(chunk)
		case chunk, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			stderr.Write(chunk)
		}
	}

	select {
	case <-ctx.Done():
		return Captured{}, ctx.Err()
	case exit := <-p.Done():
		return Captured{Stdout: stdout.String(), Stderr: stderr.String(), Exit: exit}, nil
	}
}
