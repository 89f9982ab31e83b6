// Package docker provides a Docker client for image builds and container
// lifecycle management.
package docker

import (
	"context"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
type ContainerSpec struct {
	Name          string
	Image         string
	Command       []string
	Env           map[string]string
	Labels        map[string]string
	Ports         []PortBinding
	RestartPolicy RestartPolicy
}

// PortBinding defines a port mapping.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 for auto-assign
	Protocol      string // "tcp" or "udp"
	HostIP        string // "" for 0.0.0.0
}

// RestartPolicy defines the container restart policy.
type RestartPolicy struct {
	Name              string // "no", "always", "on-failure", "unless-stopped"
	MaximumRetryCount int
}

// RestartUnlessStopped keeps a container running across daemon restarts
// until it is stopped explicitly.
var RestartUnlessStopped = RestartPolicy{Name: "unless-stopped"}

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    ContainerStatus
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// Running reports whether the container is running or restarting.
func (c ContainerInfo) Running() bool {
	return c.Status == ContainerStatusRunning || c.Status == ContainerStatusRestarting
}

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// =============================================================================
// Image Types
// =============================================================================

// BuildSpec describes an image build from a directory on disk.
type BuildSpec struct {
	ContextDir string // Directory sent as the build context
	Dockerfile string // Relative to ContextDir; "" means "Dockerfile"
	Tag        string
	Labels     map[string]string
	NoCache    bool
}

// BuildEvent is one decoded message from a build stream.
type BuildEvent struct {
	Message string
	Error   bool
}

// ImageInfo contains information about a local image.
type ImageInfo struct {
	ID        string
	Tags      []string
	Size      int64
	CreatedAt time.Time
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker client interface.
type Client interface {
	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)

	// Image operations
	BuildImage(ctx context.Context, spec BuildSpec, onEvent func(BuildEvent)) error
	InspectImage(ctx context.Context, ref string) (*ImageInfo, error)
	ImageExists(ctx context.Context, ref string) (bool, error)
	RemoveImage(ctx context.Context, ref string, force bool) error

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged = "com.deployer.managed"
	LabelTool    = "com.deployer.tool"
	LabelPurpose = "com.deployer.purpose"
	LabelRunID   = "com.deployer.run"
)

// Values for LabelPurpose.
const (
	PurposeValidation = "validation"
	PurposeDeploy     = "deploy"
)

// ValidationDirPrefix names the temporary build contexts of validation builds.
const ValidationDirPrefix = "deployer-validate-"
