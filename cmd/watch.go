package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"regotest.dev/pkg/regotest/internal/controller"
	"regotest.dev/pkg/regotest/internal/domain"
	m "regotest.dev/pkg/regotest/internal/model"
)

// watchCmd represents the watch command.
var watchCmd = newWatchCmd()

func newWatchCmd() *cobra.Command {
	var exclude []string

	var plain bool

	cmd := &cobra.Command{
		Use:          "watch [selectors...]",
		Short:        "Re-run policy tests when test files change",
		Long:         watchLongDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindRunFlags(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := newSession(ctx)
			if err != nil {
				return err
			}

			req, err := s.request(args, exclude)
			if err != nil {
				return err
			}

			return s.watch(ctx, cmd, req, plain)
		},
	}

	configureRunFlags(cmd, &exclude, &plain)

	return cmd
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watch runs req once, registers it as a continuous request and dispatches
// file events until ctx ends. Runs are executed one at a time.
func (s *session) watch(ctx context.Context, cmd *cobra.Command, req m.RunRequest, plain bool) error {
	patterns := testFilePatterns()

	events, err := fileWatcher.Watch(ctx, s.config.Cwd, patterns)
	if err != nil {
		return fmt.Errorf("watch %s: %w", s.config.Cwd, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	var runMu sync.Mutex

	start := func(runCtx context.Context, runReq m.RunRequest) {
		g.Go(func() error {
			runMu.Lock()
			defer runMu.Unlock()

			if runCtx.Err() != nil {
				return nil
			}

			if _, err := s.execute(runCtx, cmd, runReq, plain); err != nil {
				slog.Error("Watched run failed", "error", err)
			}

			return nil
		})
	}

	dispatcher := domain.NewDispatcher(s.tree, domain.NewWatchState(), start)

	controller.NewSimpleUI(cmd).DisplayWatching(gctx, s.config.Cwd, patterns)

	dispatcher.HandleRunRequest(gctx, req)

	req.Continuous = true
	dispatcher.HandleRunRequest(gctx, req)

	for event := range events {
		changed, err := s.discovery.Apply(gctx, event)
		if err != nil {
			slog.Warn("Failed to apply file event", "path", event.Path, "op", event.Op.String(), "error", err)
			continue
		}

		if changed {
			dispatcher.HandleFileChanged(gctx, event.Path)
		}
	}

	return g.Wait()
}
