// Package process runs shell commands for workflow stages and captures their
// output as timestamped log entries.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures a ShellRunner.
type Config struct {
	// Shell interprets the command string with "-c".
	Shell string

	// Timeout applies when a caller passes no timeout of its own.
	Timeout time.Duration

	// ExtraPath directories are appended to PATH so host-mounted toolchains
	// (terraform, kubectl, helm) resolve.
	ExtraPath []string

	// MaxLogBytes bounds captured output per command. See logs.DefaultMaxBytes.
	MaxLogBytes int

	// WaitDelay bounds how long to wait for output pipes after the process
	// is killed.
	WaitDelay time.Duration
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() Config {
	return Config{
		Shell:       "sh",
		Timeout:     10 * time.Minute,
		ExtraPath:   []string{"/usr/local/bin", "/usr/bin", "/bin", "/usr/local/sbin", "/opt/homebrew/bin"},
		MaxLogBytes: logs.DefaultMaxBytes,
		WaitDelay:   2 * time.Second,
	}
}

// =============================================================================
// ShellRunner
// =============================================================================

// ShellRunner executes commands through a shell in their own process group.
type ShellRunner struct {
	cfg    Config
	logger *slog.Logger
}

// NewShellRunner creates a runner. Zero config fields take their defaults.
func NewShellRunner(cfg Config, logger *slog.Logger) *ShellRunner {
	def := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ExtraPath == nil {
		cfg.ExtraPath = def.ExtraPath
	}
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = def.MaxLogBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellRunner{cfg: cfg, logger: logger}
}

// Run executes command in workingDir and returns its captured output.
//
// Every chunk read from stdout or stderr becomes one log entry, followed by
// a final entry reporting the exit code. A command that cannot be started
// yields ExitCode -1 and a single entry describing why. When the timeout
// elapses or ctx is cancelled the whole process group is killed.
//
// Run never returns an error; every failure is described by the result.
func (r *ShellRunner) Run(ctx context.Context, command, workingDir string, timeout time.Duration) logs.CommandResult {
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := logs.NewBuffer(r.cfg.MaxLogBytes)

	cmd := exec.CommandContext(ctx, r.cfg.Shell, "-c", command)
	cmd.Dir = workingDir
	cmd.Env = WidenPath(os.Environ(), r.cfg.ExtraPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the whole process group.
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = r.cfg.WaitDelay
	cmd.Stdout = &chunkWriter{stream: logs.StreamStdout, buf: buf}
	cmd.Stderr = &chunkWriter{stream: logs.StreamStderr, buf: buf}

	r.logger.Debug("running command",
		"command", command,
		"dir", workingDir,
		"timeout", timeout,
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		r.logger.Warn("command failed to start",
			"command", command,
			"dir", workingDir,
			"error", err,
		)
		return logs.SpawnFailure(err)
	}

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			buf.Append(logs.Stderr(err.Error()))
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil && exitCode != 0 {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			buf.Append(logs.Stderr(fmt.Sprintf("Command timed out after %s", timeout)))
		} else {
			buf.Append(logs.Stderr("Command cancelled"))
		}
	}

	exitMsg := fmt.Sprintf("Process exited with code %d", exitCode)
	if exitCode == 0 {
		buf.Append(logs.Stdout(exitMsg))
	} else {
		buf.Append(logs.Stderr(exitMsg))
	}

	r.logger.Debug("command finished",
		"command", command,
		"exit_code", exitCode,
		"duration", time.Since(start),
	)

	return logs.CommandResult{
		Succeeded: exitCode == 0,
		Logs:      buf.Entries(),
		ExitCode:  exitCode,
	}
}

// chunkWriter turns each write from a process stream into one log entry.
type chunkWriter struct {
	stream logs.Stream
	buf    *logs.Buffer
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.buf.Append(logs.Entry{
		Stream:    w.stream,
		Message:   string(p),
		Timestamp: time.Now().UTC(),
	})
	return len(p), nil
}

// =============================================================================
// Environment
// =============================================================================

// WidenPath returns env with extra directories appended to PATH. Directories
// already present are not repeated. The input slice is not modified.
func WidenPath(env []string, extra []string) []string {
	out := make([]string, 0, len(env)+1)
	var current string
	found := false
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			current = v
			found = true
			continue
		}
		out = append(out, kv)
	}

	var dirs []string
	seen := make(map[string]bool)
	if found && current != "" {
		for _, d := range strings.Split(current, string(os.PathListSeparator)) {
			dirs = append(dirs, d)
			seen[d] = true
		}
	}
	for _, d := range extra {
		if d != "" && !seen[d] {
			dirs = append(dirs, d)
			seen[d] = true
		}
	}

	return append(out, "PATH="+strings.Join(dirs, string(os.PathListSeparator)))
}
