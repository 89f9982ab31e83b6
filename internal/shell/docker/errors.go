package docker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Container errors
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerAlreadyExists  = errors.New("container already exists")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")

	// Image errors
	ErrImageNotFound = errors.New("image not found")
	ErrBuildFailed   = errors.New("image build failed")

	// Connection errors
	ErrPortAlreadyAllocated = errors.New("port is already allocated")
	ErrConnectionFailed     = errors.New("docker connection failed")
	ErrUnavailable          = errors.New("container engine unavailable")
)

// DockerError wraps errors with additional context.
type DockerError struct {
	Op      string // Operation that failed
	Entity  string // Entity type (container, image)
	ID      string // Entity ID or reference if applicable
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a new DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// BuildError reports the error events of a failed image build.
type BuildError struct {
	Tag     string
	Message string // Last error message reported by the daemon
	Code    int    // Daemon error code, 0 when not reported
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build image %s: %s", e.Tag, e.Message)
}

func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

// =============================================================================
// Message Extraction
// =============================================================================

// ErrorMessage returns the most useful human-readable message for an error
// from this package. Build errors report the daemon's message, DockerErrors
// their Message field, and anything else its Error text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var buildErr *BuildError
	if errors.As(err, &buildErr) && buildErr.Message != "" {
		return buildErr.Message
	}

	var jsonErr *jsonmessage.JSONError
	if errors.As(err, &jsonErr) && jsonErr.Message != "" {
		return jsonErr.Message
	}

	var dockerErr *DockerError
	if errors.As(err, &dockerErr) && dockerErr.Message != "" {
		return dockerErr.Message
	}

	return strings.TrimSpace(err.Error())
}
