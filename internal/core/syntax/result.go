package syntax

import "github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"

// Result is the outcome of a static check.
type Result struct {
	Valid    bool
	Warnings int
	Logs     []logs.Entry
}

func (r *Result) pass(msg string) {
	r.Logs = append(r.Logs, logs.Stdout("✓ "+msg))
}

func (r *Result) fail(msg string) {
	r.Valid = false
	r.Logs = append(r.Logs, logs.Stderr("✗ "+msg))
}

func (r *Result) warn(msg string) {
	r.Warnings++
	r.Logs = append(r.Logs, logs.Stderr("✗ Warning: "+msg))
}
