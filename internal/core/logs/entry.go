// Package logs defines the log entries produced by deployment runs.
//
// Entries are values: once created they are never mutated. A run collects
// entries from several sources (subprocess output, Docker build events,
// syntax diagnostics) into a single ordered stream.
package logs

import "time"

// =============================================================================
// Entry
// =============================================================================

// Stream identifies the origin of a log entry.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Entry is one captured chunk of output.
type Entry struct {
	Stream    Stream    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage,omitempty"`
}

// Stdout creates a stdout entry stamped with the current time.
func Stdout(message string) Entry {
	return Entry{Stream: StreamStdout, Message: message, Timestamp: time.Now().UTC()}
}

// Stderr creates a stderr entry stamped with the current time.
func Stderr(message string) Entry {
	return Entry{Stream: StreamStderr, Message: message, Timestamp: time.Now().UTC()}
}

// WithStage returns copies of entries labeled with stage.
// Entries that already carry a stage keep it.
func WithStage(entries []Entry, stage string) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if e.Stage == "" {
			e.Stage = stage
		}
		out[i] = e
	}
	return out
}

// =============================================================================
// CommandResult
// =============================================================================

// CommandResult is the outcome of a single command invocation.
type CommandResult struct {
	Succeeded bool    `json:"succeeded"`
	Logs      []Entry `json:"logs"`
	ExitCode  int     `json:"exitCode"`
}

// SpawnFailure builds the result for a command that never started.
func SpawnFailure(err error) CommandResult {
	return CommandResult{
		Succeeded: false,
		Logs:      []Entry{Stderr(err.Error())},
		ExitCode:  -1,
	}
}
