package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildInfo = struct {
	version, commit, time string
}{version: "dev"}

// SetVersion records the build metadata injected by the linker.
func SetVersion(version, commit, buildTime string) {
	buildInfo.version = version
	buildInfo.commit = commit
	buildInfo.time = buildTime
	rootCmd.Version = version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	s := "vmdisk-report " + buildInfo.version
	if buildInfo.commit != "" {
		s += " (" + buildInfo.commit + ")"
	}
	if buildInfo.time != "" {
		s += " built " + buildInfo.time
	}
	return s
}
