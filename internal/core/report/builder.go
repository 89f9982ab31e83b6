package report

import (
	"fmt"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
)

// Builder accumulates a run's logs and produces its Report.
type Builder struct {
	buf      *logs.Buffer
	state    domain.RunState
	report   Report
	warnings []string
}

// NewBuilder creates a builder whose log stream is bounded at maxLogBytes.
func NewBuilder(maxLogBytes int) *Builder {
	return &Builder{
		buf:   logs.NewBuffer(maxLogBytes),
		state: domain.RunPending,
	}
}

// State returns the current verdict.
func (b *Builder) State() domain.RunState {
	return b.state
}

// Append adds entries to the log stream.
func (b *Builder) Append(entries ...logs.Entry) {
	b.buf.Append(entries...)
}

// AppendResult adds a command's logs labeled with stage.
func (b *Builder) AppendResult(stage string, res logs.CommandResult) {
	b.buf.Append(logs.WithStage(res.Logs, stage)...)
}

// Stdout appends an informational entry.
func (b *Builder) Stdout(format string, args ...any) {
	b.buf.Append(logs.Stdout(fmt.Sprintf(format, args...)))
}

// Stderr appends an error entry.
func (b *Builder) Stderr(format string, args ...any) {
	b.buf.Append(logs.Stderr(fmt.Sprintf(format, args...)))
}

// Warn appends a stderr entry and records the warning on the report.
func (b *Builder) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.warnings = append(b.warnings, msg)
	b.buf.Append(logs.Stderr("⚠ " + msg))
}

// MarkCleanupIncomplete flags that a resource could not be cleaned up.
func (b *Builder) MarkCleanupIncomplete(resource string) {
	b.report.CleanupIncomplete = true
	b.warnings = append(b.warnings, "cleanup incomplete: "+resource)
}

// SetFilePath records where the artifact was written.
func (b *Builder) SetFilePath(path string) {
	b.report.FilePath = path
}

// SetContainer records the container a deploy-and-run started.
func (b *Builder) SetContainer(name, id string, port int, accessURL string) {
	b.report.ContainerName = name
	b.report.ContainerID = id
	if port > 0 {
		b.report.Port = fmt.Sprint(port)
	}
	b.report.AccessURL = accessURL
}

// Succeed finalizes the run as successful.
func (b *Builder) Succeed(message string) Report {
	return b.finish(true, message)
}

// Fail finalizes the run as failed and logs message to stderr.
func (b *Builder) Fail(message string) Report {
	if b.state == domain.RunPending {
		b.buf.Append(logs.Stderr("✗ " + message))
	}
	return b.finish(false, message)
}

// Resolve finalizes the run with an explicit verdict.
func (b *Builder) Resolve(success bool, message string) Report {
	if !success {
		return b.Fail(message)
	}
	return b.Succeed(message)
}

// finish sets the verdict once; later calls return the first verdict with
// the current logs.
func (b *Builder) finish(success bool, message string) Report {
	if b.state == domain.RunPending {
		b.report.Success = success
		b.report.Message = message
		if success {
			b.state = domain.RunSucceeded
		} else {
			b.state = domain.RunFailed
		}
	}

	r := b.report
	r.Logs = b.buf.Entries()
	if len(b.warnings) > 0 {
		r.Warnings = append([]string(nil), b.warnings...)
	}
	return r
}
