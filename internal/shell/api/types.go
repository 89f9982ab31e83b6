package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
)

// =============================================================================
// Request Types
// =============================================================================

// DeploymentRequest is the request body for running a deployment workflow.
type DeploymentRequest struct {
	ToolKind      string `json:"toolKind"`
	Content       string `json:"content"`
	Mode          string `json:"mode,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
	Port          Port   `json:"port,omitempty"`
	Filename      string `json:"filename,omitempty"`
}

// toDomain converts the body to an engine request. Tool names are left
// unparsed so that Request.Validate reports unknown tools.
func (r DeploymentRequest) toDomain() domain.Request {
	return domain.Request{
		Tool:          domain.Tool(strings.TrimSpace(r.ToolKind)),
		Content:       r.Content,
		Mode:          domain.Action(strings.TrimSpace(r.Mode)),
		ContainerName: r.ContainerName,
		Port:          int(r.Port),
		Filename:      r.Filename,
	}
}

// Port accepts a JSON number or a numeric string.
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*p = 0
			return nil
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port must be a number, got %s", s)
	}
	*p = Port(n)
	return nil
}

// =============================================================================
// Response Types
// =============================================================================

// RunsResponse is the response for listing runs.
type RunsResponse struct {
	Runs   []report.Summary `json:"runs"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
