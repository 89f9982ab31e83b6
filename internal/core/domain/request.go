package domain

import (
	"fmt"
	"strings"
)

// DefaultContainerName is used by deploy-and-run when the caller gives none.
const DefaultContainerName = "deployed-app"

// =============================================================================
// Request
// =============================================================================

// Request is one deployment request as handed to the engine.
// User is the already-authenticated caller and is used for log attribution only.
type Request struct {
	Tool          Tool   `json:"toolKind"`
	Content       string `json:"content"`
	Mode          Action `json:"mode,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
	Port          int    `json:"port,omitempty"`
	Filename      string `json:"filename,omitempty"`
	User          string `json:"-"`
}

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// Validate checks the request and returns a normalized copy.
// The action defaults to deploy and deploy-and-run gets a default container name.
func (r Request) Validate() (Request, error) {
	if r.Tool == "" {
		return r, &ValidationError{Field: "toolKind", Message: "tool kind is required"}
	}
	tool, err := ParseTool(string(r.Tool))
	if err != nil {
		return r, &ValidationError{Field: "toolKind", Message: err.Error()}
	}
	r.Tool = tool

	if strings.TrimSpace(r.Content) == "" {
		return r, &ValidationError{Field: "content", Message: "content is required"}
	}

	if r.Mode == "" {
		r.Mode = ActionDeploy
	}
	r.Mode = Action(strings.ToLower(string(r.Mode)))
	if !r.Tool.Supports(r.Mode) {
		return r, &ValidationError{
			Field:   "mode",
			Message: fmt.Sprintf("%s: %s does not support %q", ErrUnsupportedAction, r.Tool, r.Mode),
		}
	}

	if r.Mode == ActionDeployAndRun {
		if r.Port == 0 {
			return r, &ValidationError{Field: "port", Message: "port is required for deploy-and-run"}
		}
		if r.Port < 1 || r.Port > 65535 {
			return r, &ValidationError{Field: "port", Message: fmt.Sprintf("port %d out of range 1-65535", r.Port)}
		}
		if strings.TrimSpace(r.ContainerName) == "" {
			r.ContainerName = DefaultContainerName
		}
	}

	return r, nil
}
