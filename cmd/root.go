// Package cmd provides the root command and CLI setup for regotest.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"regotest.dev/pkg/regotest/internal/adapter"
	"regotest.dev/pkg/regotest/internal/controller"
	"regotest.dev/pkg/regotest/internal/domain"
	m "regotest.dev/pkg/regotest/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var processRunner adapter.ProcessRunner
var fileWatcher adapter.FileWatcher
var reportStore adapter.ReportStore

func init() {
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	processRunner = adapter.NewLocalProcessRunner()
	fileWatcher = adapter.NewFSNotifyWatcher()
	reportStore = adapter.NewReportStore()
}

const selectorsHelp = `Selectors pick the tests to run:
  - data.pkg.test_name    a single test by id
  - policy/authz_test.rego  every test in a file
  - (none)                every discovered test`

const rootLongDescription = `Regotest discovers test_ rules in Rego policy files, runs them with
opa test and reports a normalized result for every test.

` + selectorsHelp

const runLongDescription = `Discover tests and run the selected ones once.

` + selectorsHelp

const watchLongDescription = `Run the selected tests, then run them again whenever a test file
under the working directory changes. Press Ctrl-C to stop.

` + selectorsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regotest",
		Short: "Rego policy test runner",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(workdirFlagName, "C", "", "working directory the tests are discovered in and run from")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(workdirFlagName), workdirKey)

	cmd.PersistentFlags().BoolP(verboseFlagName, "v", false, "write debug logs")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// session holds the tree and services of one command invocation.
type session struct {
	config       m.RunConfig
	tree         *m.Tree
	discovery    domain.Discovery
	orchestrator domain.Orchestrator
}

// newSession loads the config and discovers every test file under the
// working directory.
func newSession(ctx context.Context) (*session, error) {
	cfg, err := loadRunConfig()
	if err != nil {
		return nil, err
	}

	tree := m.NewTree()
	discovery := domain.NewDiscovery(tree, fsAdapter, cfg.Cwd)

	if _, err := discovery.Refresh(ctx, testFilePatterns()); err != nil {
		return nil, fmt.Errorf("discover tests: %w", err)
	}

	return &session{
		config:       cfg,
		tree:         tree,
		discovery:    discovery,
		orchestrator: domain.NewOrchestrator(tree, processRunner, loadRunConfig),
	}, nil
}

// request builds a run request from include and exclude selectors.
func (s *session) request(selectors, exclude []string) (m.RunRequest, error) {
	include, err := s.resolve(selectors)
	if err != nil {
		return m.RunRequest{}, err
	}

	excluded, err := s.resolve(exclude)
	if err != nil {
		return m.RunRequest{}, err
	}

	return m.RunRequest{Include: include, Exclude: excluded}, nil
}

// resolve maps selectors to node ids. A selector is a node id or a path to
// a discovered test file. No selectors yields a nil set.
func (s *session) resolve(selectors []string) (m.NodeSet, error) {
	if len(selectors) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(selectors))

	for _, selector := range selectors {
		if _, ok := s.tree.Get(selector); ok {
			ids = append(ids, selector)
			continue
		}

		abs, err := fsAdapter.Abs(m.Path(selector))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", selector, err)
		}

		if _, ok := s.tree.Get(string(abs)); !ok {
			return nil, fmt.Errorf("no test or test file matches %q", selector)
		}

		ids = append(ids, string(abs))
	}

	return m.NewNodeSet(ids...), nil
}

// execute runs req with a fresh view and prints the summary. Failed tests
// are not an error; callers inspect the returned report.
func (s *session) execute(ctx context.Context, cmd *cobra.Command, req m.RunRequest, plain bool) (m.RunReport, error) {
	ui := controller.NewUI(cmd, !plain && interactive(cmd))
	recorder := domain.NewRecorder()

	if err := ui.Start(ctx); err != nil {
		return m.RunReport{}, err
	}

	runID, err := s.orchestrator.StartRun(ctx, req, domain.Observers{ui, recorder})
	ui.Wait(ctx)

	if err != nil {
		return m.RunReport{}, fmt.Errorf("run tests: %w", err)
	}

	report := recorder.Report(runID)

	if err := ui.DisplaySummary(context.WithoutCancel(ctx), report); err != nil {
		return report, err
	}

	if path := viper.GetString(reportKey); path != "" {
		if err := reportStore.SaveReport(m.Path(path), report); err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
	}

	return report, nil
}

// interactive reports whether cmd writes to a terminal.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && controller.IsTTY(f)
}
