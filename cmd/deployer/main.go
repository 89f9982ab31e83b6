// Command deployer runs the deployment orchestration engine, either as an
// HTTP service or for a single artifact from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// execute runs the CLI and maps its error to an exit code.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)

	// Interrupts cancel a running workflow, which kills its processes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var sErr *ServerError
	if errors.As(err, &sErr) {
		if sErr.ExitCode != ExitRunFailed {
			fmt.Fprintf(stderr, "error: %v\n", sErr)
		}
		return sErr.ExitCode
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return ExitConfigError
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "deployer",
		Short: "Deployment orchestration engine",
		Long: `deployer drives infrastructure artifacts through tool-specific workflows.

Dockerfiles, Terraform configurations, Kubernetes manifests, Helm charts,
ArgoCD applications and Jenkinsfiles are written to a staging directory,
validated with their own toolchain and optionally built, planned, applied
or run. Every run produces a structured, fully logged report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	root.AddCommand(
		newServeCmd(flags),
		newRunCmd(flags),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads the configuration, tagging failures with the config exit
// code.
func loadConfig(flags *globalFlags) (*Config, error) {
	cfg, err := LoadConfig(flags.configPath, flags.envFile)
	if err != nil {
		return nil, &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	return cfg, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the deployment HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			logger := SetupLogger(cfg, cmd.OutOrStdout())
			logger.Info("starting deployer",
				"version", Version,
				"config", flags.configPath,
			)

			server, err := NewServer(cfg, logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deployer %s (built %s)\n", Version, BuildTime)
		},
	}
}
