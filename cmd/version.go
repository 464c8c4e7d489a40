package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const versionLongDescription = `Displays the regotest build version, the Go version it was built with
and the opa executable test runs will invoke (opa.command, REGOTEST_OPA_COMMAND).`

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  versionLongDescription,
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			for _, line := range versionLines(info, ok, viper.GetString(opaCommandKey)) {
				cmd.Println(line)
			}
		},
	}
}

// versionLines renders the version report. The opa command is printed even
// when no build info is embedded.
func versionLines(info *debug.BuildInfo, ok bool, opaCommand string) []string {
	var lines []string

	if !ok || info == nil || info.Main.Version == "" {
		lines = append(lines, "version: unknown")
	} else {
		lines = append(lines,
			fmt.Sprintf("regotest version\t %s", info.Main.Version),
			fmt.Sprintf("go version\t %s", info.GoVersion),
		)
	}

	return append(lines, fmt.Sprintf("opa command\t %s", opaCommand))
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
