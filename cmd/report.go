package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
	"github.com/example/vmdisk-report/internal/deliver"
	logging "github.com/example/vmdisk-report/internal/log"
	"github.com/example/vmdisk-report/internal/prompt"
	"github.com/example/vmdisk-report/internal/runner"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [file]",
	Short: "Collect guest disk usage and deliver the report",
	Long: `Connect to the configured vSphere endpoint, collect guest disk capacity and
free space for every VM, and send the HTML report by email.

With --file (or the single argument "file") the report is written to the
system temp directory and opened instead; no mail settings or mail
credential are needed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toFile, _ := cmd.Flags().GetBool("file")
		format, _ := cmd.Flags().GetString("format")
		fileArg, err := parseFileArg(args)
		if err != nil {
			return ExitError{Code: exitConfig, Err: err}
		}
		return runReport(commandContext(cmd), toFile || fileArg, format)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolP("file", "f", false, "Write the report to a temp file and open it instead of mailing it")
	reportCmd.Flags().String("format", runner.FormatHTML, "File format in --file mode: html or md")
}

// parseFileArg accepts the positional form of --file.
func parseFileArg(args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	if args[0] != "file" {
		return false, fmt.Errorf("unknown argument %q (did you mean \"file\"?)", args[0])
	}
	return true, nil
}

func runReport(ctx context.Context, toFile bool, format string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	r := newRunner(cfg, toFile, format)
	if _, err := r.Run(ctx); err != nil {
		return ExitError{Code: exitCodeFor(err), Err: err}
	}
	return nil
}

func newRunner(cfg *config.Config, toFile bool, format string) *runner.Runner {
	return &runner.Runner{
		Config:   cfg,
		FileMode: toFile,
		Format:   format,
		Store:    credentialStore(cfg),
		Prompter: prompt.NewTerminal(),
		Connect:  connectVSphere,
		FileDispatcher: func(name string) runner.Dispatcher {
			return deliver.NewFileDispatcher(name)
		},
		MailDispatcher: func(mc config.MailConfig, cred credstore.Credential) runner.Dispatcher {
			return deliver.NewMailDispatcher(mc, cred)
		},
		Observer: runner.LogObserver{Log: logging.Logger},
	}
}
