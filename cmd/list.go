package cmd

import (
	"github.com/spf13/cobra"
	"regotest.dev/pkg/regotest/internal/controller"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List discovered policy tests",
		Long:         "Discover test files under the working directory and print every test with its file and line.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd.Context())
			if err != nil {
				return err
			}

			return controller.NewSimpleUI(cmd).DisplayTree(cmd.Context(), s.tree)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
