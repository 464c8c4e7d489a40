package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"regotest.dev/pkg/regotest/internal/adapter"
	"regotest.dev/pkg/regotest/internal/domain/parsers"
	m "regotest.dev/pkg/regotest/internal/model"
)

// ConfigFunc returns the settings for a run. It is called once at the start
// of every run so configuration changes apply to the next run.
type ConfigFunc func() (m.RunConfig, error)

// Orchestrator drives a test run end to end: it builds the queue, invokes
// the external tool and attributes parsed results to queued tests.
type Orchestrator interface {
	// StartRun executes req and reports progress to obs. Entries run one at
	// a time; once ctx is cancelled, entries that have not started are
	// skipped. obs.End is called exactly once. The returned id identifies
	// the run in logs and reports.
	StartRun(ctx context.Context, req m.RunRequest, obs RunObserver) (string, error)
}

type orchestrator struct {
	tree   *m.Tree
	runner adapter.ProcessRunner
	config ConfigFunc
}

// NewOrchestrator constructs an Orchestrator that runs tests found in tree
// with runner.
func NewOrchestrator(tree *m.Tree, runner adapter.ProcessRunner, config ConfigFunc) Orchestrator {
	return &orchestrator{
		tree:   tree,
		runner: runner,
		config: config,
	}
}

// batchOutcome is the result of the optional whole-root invocation.
type batchOutcome struct {
	results m.Results
	// err fails every queued entry when set.
	err error
}

func (o *orchestrator) StartRun(ctx context.Context, req m.RunRequest, obs RunObserver) (string, error) {
	runID := uuid.NewString()
	defer obs.End()

	cfg, err := o.config()
	if err != nil {
		slog.Error("Failed to load run configuration", "runID", runID, "error", err)
		return runID, fmt.Errorf("load run configuration: %w", err)
	}

	queue := BuildQueue(o.tree.Candidates(), req, obs)
	parser := parsers.ForFormat(cfg.Format())

	slog.Info("Starting test run", "runID", runID, "queued", len(queue), "format", parser.Name(), "batch", cfg.Batch)

	var batch *batchOutcome
	if cfg.Batch && len(queue) > 0 && ctx.Err() == nil {
		batch = o.runBatch(ctx, runID, cfg, parser, obs)
	}

	for _, node := range queue {
		obs.AppendOutput(fmt.Sprintf("Running %s\r\n", node.ID), nil)

		if ctx.Err() != nil {
			slog.Debug("Skipping test after cancellation", "runID", runID, "testID", node.ID)
			obs.Skipped(node)
		} else {
			obs.Started(node)
			o.runEntry(ctx, runID, cfg, parser, batch, node, obs)
		}

		obs.AppendOutput(fmt.Sprintf("Completed %s\r\n", node.ID), nil)
	}

	slog.Info("Finished test run", "runID", runID)

	return runID, nil
}

func (o *orchestrator) runBatch(ctx context.Context, runID string, cfg m.RunConfig, parser parsers.Parser, obs RunObserver) *batchOutcome {
	captured, err := o.invoke(ctx, cfg, "")
	if err != nil {
		slog.Error("Batch invocation failed", "runID", runID, "error", err)

		var spawnErr *adapter.SpawnError
		if errors.As(err, &spawnErr) {
			return &batchOutcome{err: err}
		}

		return &batchOutcome{}
	}

	if captured.Stderr != "" {
		obs.AppendOutput(captured.Stderr, nil)
	}

	results, err := parser.Parse(captured.Stdout)
	if err != nil {
		var loadErr *parsers.LoadError
		if errors.As(err, &loadErr) {
			slog.Error("Policies failed to load", "runID", runID, "error", err)
			return &batchOutcome{err: err}
		}

		slog.Warn("Falling back to per-test runs", "runID", runID, "error", err)
		o.reportParseFailure(err, nil, obs)

		return &batchOutcome{}
	}

	slog.Debug("Batch run parsed", "runID", runID, "results", len(results))

	return &batchOutcome{results: results}
}

func (o *orchestrator) runEntry(ctx context.Context, runID string, cfg m.RunConfig, parser parsers.Parser, batch *batchOutcome, node *m.Node, obs RunObserver) {
	if batch != nil {
		if batch.err != nil {
			obs.Failed(node, []string{batch.err.Error()}, 0)
			return
		}

		if result, ok := batch.results[node.ID]; ok {
			o.report(node, result, nil, obs)
			return
		}
	}

	captured, err := o.invoke(ctx, cfg, node.ID)
	if err != nil {
		slog.Error("Test invocation failed", "runID", runID, "testID", node.ID, "error", err)
		obs.Failed(node, []string{err.Error()}, 0)

		return
	}

	var messages []string

	if captured.Stderr != "" {
		obs.AppendOutput(captured.Stderr, node)
		messages = append(messages, captured.Stderr)
	}

	results, err := parser.Parse(captured.Stdout)
	if err != nil {
		slog.Error("Failed to parse test output", "runID", runID, "testID", node.ID, "error", err)

		var loadErr *parsers.LoadError
		if errors.As(err, &loadErr) {
			obs.Failed(node, append(messages, err.Error()), 0)
			return
		}

		obs.Failed(node, append(messages, o.reportParseFailure(err, node, obs)...), 0)

		return
	}

	o.report(node, results[node.ID], messages, obs)
}

// report maps a parsed record to the observer. A missing record fails the
// entry with zero duration.
func (o *orchestrator) report(node *m.Node, result *m.Result, messages []string, obs RunObserver) {
	if result == nil {
		obs.Failed(node, messages, 0)
		return
	}

	switch result.Outcome {
	case m.Fail:
		if len(result.Diagnostics) > 0 {
			messages = append(messages, strings.Join(result.Diagnostics, "\n"))
		}

		obs.Failed(node, messages, result.Duration())
	case m.Skip:
		obs.Skipped(node)
	default:
		obs.Passed(node, result.Duration())
	}
}

// reportParseFailure writes the raw payload and the parse error to the run
// output and returns them as diagnostics.
func (o *orchestrator) reportParseFailure(err error, node *m.Node, obs RunObserver) []string {
	var diagnostics []string

	var parseErr *parsers.OutputParseError
	if errors.As(err, &parseErr) && parseErr.Raw != "" {
		diagnostics = append(diagnostics, parseErr.Raw)
	}

	diagnostics = append(diagnostics, err.Error())

	for _, text := range diagnostics {
		obs.AppendOutput(text, node)
	}

	return diagnostics
}

// invoke runs the tool once and waits for it. Run cancellation does not
// interrupt a dispatched invocation; only the configured timeout does.
func (o *orchestrator) invoke(ctx context.Context, cfg m.RunConfig, filter string) (adapter.Captured, error) {
	ctx = context.WithoutCancel(ctx)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	proc, err := o.runner.Spawn(ctx, adapter.SpawnArgs{
		Cwd:         cfg.Cwd,
		Command:     cfg.Command,
		TestRootDir: cfg.PolicyTestDir,
		Filter:      filter,
		Format:      cfg.Format(),
	})
	if err != nil {
		return adapter.Captured{}, err
	}

	captured, err := adapter.Capture(ctx, proc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return adapter.Captured{}, fmt.Errorf("%s did not finish within %s", cfg.Command, cfg.Timeout)
		}

		return adapter.Captured{}, err
	}

	if captured.Exit.Err != nil {
		slog.Warn("Test tool wait failed", "command", cfg.Command, "error", captured.Exit.Err)
	}

	return captured, nil
}
