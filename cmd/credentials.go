package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
	logging "github.com/example/vmdisk-report/internal/log"
	"github.com/example/vmdisk-report/internal/prompt"
	"github.com/example/vmdisk-report/internal/runner"
)

const (
	targetVSphere = "vsphere"
	targetEmail   = "email"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage stored credentials",
}

var credentialsSetCmd = &cobra.Command{
	Use:       "set <vsphere|email>",
	Short:     "Prompt for a credential and replace the stored one",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{targetVSphere, targetEmail},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		scope, label, err := credentialTarget(cfg, args[0])
		if err != nil {
			return ExitError{Code: exitConfig, Err: err}
		}
		ctx := commandContext(cmd)
		if _, err := runner.PromptAndSave(ctx, credentialStore(cfg), prompt.NewTerminal(), scope, label); err != nil {
			return err
		}
		logging.Logger.Info().Str("scope", scope).Msg("Credential saved")
		return nil
	},
}

var credentialsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the credential directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := credentialStore(cfg).Dir()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsPathCmd)
}

// credentialTarget maps a command line target to its storage scope and
// prompt label.
func credentialTarget(cfg *config.Config, target string) (scope, label string, err error) {
	switch target {
	case targetVSphere:
		if err := cfg.VSphere.Validate(); err != nil {
			return "", "", err
		}
		return credstore.ScopeID(cfg.VSphere.Host), cfg.VSphere.Host, nil
	case targetEmail:
		return credstore.ScopeEmail, credstore.ScopeEmail, nil
	default:
		return "", "", fmt.Errorf("unknown credential target %q (want %s or %s)", target, targetVSphere, targetEmail)
	}
}
