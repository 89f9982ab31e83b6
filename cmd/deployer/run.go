package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
)

// errRunFailed marks a workflow that completed with success=false.
var errRunFailed = errors.New("deployment failed")

// runFlags are the flags of the run command.
type runFlags struct {
	tool     string
	file     string
	mode     string
	name     string
	port     int
	filename string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one deployment workflow and print its report",
		Long: `Run one deployment workflow and print the report as JSON.

The artifact is read from --file, or from standard input when --file is "-".
The exit code is 5 when the workflow reports failure.

Examples:
  # Validate a Dockerfile with an ephemeral build
  deployer run --tool docker --file Dockerfile --mode validate

  # Build and run it as a container on port 3010
  deployer run --tool docker --file Dockerfile --mode deploy-and-run --name web --port 3010

  # Plan a Terraform configuration read from stdin
  cat main.tf | deployer run --tool terraform --mode plan --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, flags, rf)
		},
	}

	cmd.Flags().StringVar(&rf.tool, "tool", "", "tool kind: docker, terraform, kubernetes, helm, argocd or jenkins")
	cmd.Flags().StringVar(&rf.file, "file", "", `artifact file, "-" for stdin`)
	cmd.Flags().StringVar(&rf.mode, "mode", "", "action: deploy, deploy-and-run, validate, plan or apply (default deploy)")
	cmd.Flags().StringVar(&rf.name, "name", "", "container name for deploy-and-run")
	cmd.Flags().IntVar(&rf.port, "port", 0, "port for deploy-and-run")
	cmd.Flags().StringVar(&rf.filename, "filename", "", "terraform file name for deploy")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runOnce(cmd *cobra.Command, flags *globalFlags, rf *runFlags) error {
	content, err := readArtifact(cmd.InOrStdin(), rf.file)
	if err != nil {
		return &ServerError{Op: "readArtifact", Err: err, ExitCode: ExitConfigError}
	}

	req := domain.Request{
		Tool:          domain.Tool(rf.tool),
		Content:       content,
		Mode:          domain.Action(rf.mode),
		ContainerName: rf.name,
		Port:          rf.port,
		Filename:      rf.filename,
		User:          currentUser(),
	}
	if _, err := req.Validate(); err != nil {
		// Invalid requests still print a report so scripts see one shape.
		if werr := writeReport(cmd.OutOrStdout(), report.Failure(err.Error())); werr != nil {
			return werr
		}
		return &ServerError{Op: "Validate", Err: err, ExitCode: ExitRunFailed}
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	// stdout carries the report only.
	logger := SetupLogger(cfg, cmd.ErrOrStderr())

	c, err := openComponents(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	rep := c.engine.Execute(cmd.Context(), req)
	if err := writeReport(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if !rep.Success {
		return &ServerError{Op: "Execute", Err: errRunFailed, ExitCode: ExitRunFailed}
	}
	return nil
}

func readArtifact(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeReport(w io.Writer, rep report.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// currentUser attributes CLI runs to the local account.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
