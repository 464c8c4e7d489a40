package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	var exclude []string

	var plain bool

	cmd := &cobra.Command{
		Use:          "run [selectors...]",
		Short:        "Run policy tests",
		Long:         runLongDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bindRunFlags(cmd)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			s, err := newSession(ctx)
			if err != nil {
				return err
			}

			req, err := s.request(args, exclude)
			if err != nil {
				return err
			}

			report, err := s.execute(ctx, cmd, req, plain)
			if err != nil {
				return err
			}

			if _, failed, _ := report.Counts(); failed > 0 {
				return fmt.Errorf("%d of %d tests failed", failed, len(report.Entries))
			}

			return nil
		},
	}

	configureRunFlags(cmd, &exclude, &plain)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// configureRunFlags registers the flags shared by run and watch.
func configureRunFlags(cmd *cobra.Command, exclude *[]string, plain *bool) {
	cmd.Flags().StringArrayVarP(exclude, excludeFlagName, "x", nil, "exclude a test id or test file (can be repeated)")
	cmd.Flags().BoolVar(plain, plainFlagName, false, "print plain lines instead of the live view")
	cmd.Flags().Bool(batchFlagName, false, "run the whole test root in one invocation")
	cmd.Flags().BoolP(enhancedErrorsFlagName, "e", false, "use the verbose text report for richer failure details")
	cmd.Flags().Int64(timeoutFlagName, int64(defaultTimeout.Seconds()), "seconds one invocation may take, 0 disables the limit")
	cmd.Flags().String(reportFlagName, "", "write a YAML run report to this file")
}

// bindRunFlags binds the config-backed flags of cmd. run and watch share the
// keys, so binding happens when a command executes rather than when it is built.
func bindRunFlags(cmd *cobra.Command) {
	bindFlagToConfig(cmd.Flags().Lookup(batchFlagName), batchKey)
	bindFlagToConfig(cmd.Flags().Lookup(enhancedErrorsFlagName), enhancedErrorsKey)
	bindFlagToConfig(cmd.Flags().Lookup(timeoutFlagName), timeoutKey)
	bindFlagToConfig(cmd.Flags().Lookup(reportFlagName), reportKey)
}
