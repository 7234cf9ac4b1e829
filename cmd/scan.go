package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/vmdisk-report/internal/credstore"
	"github.com/example/vmdisk-report/internal/inventory"
	logging "github.com/example/vmdisk-report/internal/log"
	"github.com/example/vmdisk-report/internal/prompt"
	"github.com/example/vmdisk-report/internal/report"
	"github.com/example/vmdisk-report/internal/runner"
	"github.com/example/vmdisk-report/internal/types"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Collect guest disk usage and print it as JSON",
	Long: `Connect to the configured vSphere endpoint and print one JSON record per
guest disk, in enumeration order. Nothing is rendered or delivered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return runScan(commandContext(cmd), output)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file for the JSON rows (default stdout)")
}

func runScan(ctx context.Context, output string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.VSphere.Validate(); err != nil {
		return ExitError{Code: exitConfig, Err: err}
	}

	rows, err := scanRows(ctx, cfg.VSphere.Host, credentialStore(cfg), prompt.NewTerminal())
	if err != nil {
		return ExitError{Code: exitCodeFor(err), Err: err}
	}

	if output == "" {
		return writeRows(os.Stdout, rows)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := writeRows(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	fmt.Printf("Rows written to %s\n", output)
	return nil
}

// scanRows connects with the stored vSphere credential and projects every
// guest disk into a row.
func scanRows(ctx context.Context, host string, store runner.CredentialStore, p prompt.Prompter) ([]types.DiskRow, error) {
	cred, err := runner.ResolveCredential(ctx, store, p, credstore.ScopeID(host), host)
	if err != nil {
		return nil, err
	}

	session, err := inventory.Connect(ctx, host, cred.Username, cred.Password)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Disconnect(context.WithoutCancel(ctx)); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("Disconnect failed")
		}
	}()

	vms, err := session.ListVMs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate virtual machines: %w", err)
	}
	return report.Rows(vms), nil
}

func writeRows(w io.Writer, rows []types.DiskRow) error {
	if rows == nil {
		rows = []types.DiskRow{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
