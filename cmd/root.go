package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
	"github.com/example/vmdisk-report/internal/inventory"
	logging "github.com/example/vmdisk-report/internal/log"
	"github.com/example/vmdisk-report/internal/runner"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vmdisk-report",
	Short: "Report guest disk free space for every VM on a vSphere endpoint",
	Long: `vmdisk-report connects to vCenter or ESXi, reads the guest disk capacity
and free space VMware Tools reports for each virtual machine, and delivers
an HTML report by email or as a local file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.SetDebugMode()
		}
	},
}

type exitCoder interface {
	ExitCode() int
}

// ExitError allows commands to exit with a specific exit code.
// If Err is nil, no error message is printed.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) ExitCode() int { return e.Code }
func (e ExitError) Unwrap() error { return e.Err }
func (e ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Exit codes.
const (
	exitFailure    = 1
	exitConfig     = 2
	exitConnection = 3
)

// exitCodeFor maps a run error to the process exit code.
func exitCodeFor(err error) int {
	var ce *runner.ConfigError
	var conn *inventory.ConnectError
	switch {
	case errors.As(err, &ce):
		return exitConfig
	case errors.As(err, &conn):
		return exitConnection
	default:
		return exitFailure
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if ee, ok := err.(exitCoder); ok {
			if msg := strings.TrimSpace(err.Error()); msg != "" {
				logging.Logger.Error().Msg(msg)
			}
			stop()
			os.Exit(ee.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(exitFailure)
	}
}

var (
	configFile string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "vmdisk.yml", "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads the config file named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, ExitError{Code: exitConfig, Err: err}
	}
	return cfg, nil
}

// credentialStore opens the store at the configured directory, or at the
// per-user location for this platform.
func credentialStore(cfg *config.Config) *credstore.Store {
	return credstore.New(credentialResolver(cfg, runtime.GOOS))
}

func credentialResolver(cfg *config.Config, goos string) credstore.PathResolver {
	if cfg.Credentials.Dir != "" {
		return credstore.DirResolver(cfg.Credentials.Dir)
	}
	return credstore.ResolverFor(goos)
}

// commandContext attaches the process logger to the command's context.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithLogger(ctx, logging.Logger)
}

// connectVSphere adapts inventory.Connect to runner.ConnectFunc.
func connectVSphere(ctx context.Context, address string, cred credstore.Credential) (runner.Session, error) {
	s, err := inventory.Connect(ctx, address, cred.Username, cred.Password)
	if err != nil {
		return nil, err
	}
	return s, nil
}
