package report

import (
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
)

// =============================================================================
// Report
// =============================================================================

// Report is the outcome of one workflow run.
type Report struct {
	Success           bool          `json:"success"`
	Message           string        `json:"message"`
	Logs              []logs.Entry  `json:"logs"`
	FilePath          string        `json:"filePath"`
	ContainerName     string        `json:"containerName,omitempty"`
	ContainerID       string        `json:"containerId,omitempty"`
	Port              string        `json:"port,omitempty"`
	AccessURL         string        `json:"accessUrl,omitempty"`
	RunID             string        `json:"runId,omitempty"`
	Tool              domain.Tool   `json:"tool,omitempty"`
	Action            domain.Action `json:"action,omitempty"`
	CleanupIncomplete bool          `json:"cleanupIncomplete,omitempty"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// Failure returns a failed report carrying message as its only log entry.
func Failure(message string) Report {
	return Report{
		Success: false,
		Message: message,
		Logs:    []logs.Entry{logs.Stderr(message)},
	}
}

// ResolveValidation applies a validation policy to a validation outcome.
// Under PolicyAdvisory the run succeeds either way and failMsg reports the
// downgrade; under PolicyStrict the outcome is the verdict.
func ResolveValidation(policy domain.ValidationPolicy, ok bool, okMsg, failMsg string) (bool, string) {
	if ok {
		return true, okMsg
	}
	if policy == domain.PolicyStrict {
		return false, failMsg
	}
	return true, failMsg
}
