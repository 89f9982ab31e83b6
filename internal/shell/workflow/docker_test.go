package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stub Docker Client
// =============================================================================

type stubDocker struct {
	mu         sync.Mutex
	containers map[string]*docker.ContainerInfo
	nextID     int
	ops        []string
	specs      []docker.ContainerSpec
	builds     []docker.BuildSpec

	buildEvents []docker.BuildEvent
	buildErr    error
	startErr    error
}

func newStubDocker() *stubDocker {
	return &stubDocker{containers: make(map[string]*docker.ContainerInfo)}
}

func (s *stubDocker) record(op string) {
	s.ops = append(s.ops, op)
}

func (s *stubDocker) find(ref string) *docker.ContainerInfo {
	for _, c := range s.containers {
		if c.ID == ref || c.Name == ref {
			return c
		}
	}
	return nil
}

func (s *stubDocker) CreateContainer(ctx context.Context, spec docker.ContainerSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create")
	if _, exists := s.containers[spec.Name]; exists {
		return "", docker.NewDockerError("CreateContainer", "container", spec.Name, "container already exists", docker.ErrContainerAlreadyExists)
	}
	s.nextID++
	id := fmt.Sprintf("%064d", s.nextID)
	s.containers[spec.Name] = &docker.ContainerInfo{ID: id, Name: spec.Name, Image: spec.Image, Status: docker.ContainerStatusCreated, Labels: spec.Labels}
	s.specs = append(s.specs, spec)
	return id, nil
}

func (s *stubDocker) StartContainer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("start")
	if s.startErr != nil {
		return s.startErr
	}
	c := s.find(id)
	if c == nil {
		return docker.NewDockerError("StartContainer", "container", id, "container not found", docker.ErrContainerNotFound)
	}
	c.Status = docker.ContainerStatusRunning
	return nil
}

func (s *stubDocker) StopContainer(ctx context.Context, id string, timeout *time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("stop")
	c := s.find(id)
	if c == nil {
		return docker.NewDockerError("StopContainer", "container", id, "container not found", docker.ErrContainerNotFound)
	}
	if c.Status != docker.ContainerStatusRunning {
		return docker.NewDockerError("StopContainer", "container", id, "container is not running", docker.ErrContainerNotRunning)
	}
	c.Status = docker.ContainerStatusExited
	return nil
}

func (s *stubDocker) RemoveContainer(ctx context.Context, id string, opts docker.RemoveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("remove")
	c := s.find(id)
	if c == nil {
		return docker.NewDockerError("RemoveContainer", "container", id, "container not found", docker.ErrContainerNotFound)
	}
	delete(s.containers, c.Name)
	return nil
}

func (s *stubDocker) InspectContainer(ctx context.Context, id string) (*docker.ContainerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.find(id)
	if c == nil {
		return nil, docker.NewDockerError("InspectContainer", "container", id, "container not found", docker.ErrContainerNotFound)
	}
	info := *c
	return &info, nil
}

func (s *stubDocker) BuildImage(ctx context.Context, spec docker.BuildSpec, onEvent func(docker.BuildEvent)) error {
	s.mu.Lock()
	s.record("build")
	s.builds = append(s.builds, spec)
	s.mu.Unlock()
	for _, ev := range s.buildEvents {
		onEvent(ev)
	}
	return s.buildErr
}

func (s *stubDocker) InspectImage(ctx context.Context, ref string) (*docker.ImageInfo, error) {
	return &docker.ImageInfo{ID: "sha256:" + ref, Tags: []string{ref}}, nil
}

func (s *stubDocker) ImageExists(ctx context.Context, ref string) (bool, error) { return true, nil }

func (s *stubDocker) RemoveImage(ctx context.Context, ref string, force bool) error { return nil }

func (s *stubDocker) Ping(ctx context.Context) error { return nil }

func (s *stubDocker) Close() error { return nil }

const validDockerfile = "FROM node:18-alpine\nWORKDIR /app\nCOPY . .\nRUN npm install\nCMD [\"node\", \"server.js\"]\n"

func deployAndRunRequest() domain.Request {
	return domain.Request{
		Tool:          domain.ToolDocker,
		Content:       validDockerfile,
		Mode:          domain.ActionDeployAndRun,
		ContainerName: "test-app",
		Port:          3010,
	}
}

// =============================================================================
// Write and Validate
// =============================================================================

func TestDocker_MissingFromFailsBeforeBuild(t *testing.T) {
	d := newStubDocker()
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: "RUN echo hi", Mode: domain.ActionDeployAndRun, Port: 3010})

	assert.False(t, rep.Success)
	assert.True(t, containsMessage(rep.Logs, "Missing required FROM instruction"))
	assert.Empty(t, d.ops, "no build may be attempted after a syntax failure")
}

func TestDocker_DeployWritesDockerfile(t *testing.T) {
	var root string
	e := newTestEngine(t, &fakeRunner{}, func(c *Config) { root = c.StagingRoot })

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile})

	require.True(t, rep.Success, rep.Message)
	assert.Equal(t, filepath.Join(root, "docker", "Dockerfile"), rep.FilePath)
	data, err := os.ReadFile(rep.FilePath)
	require.NoError(t, err)
	assert.Equal(t, validDockerfile, string(data))
}

func TestDocker_DeployIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{}, nil)
	req := domain.Request{Tool: domain.ToolDocker, Content: validDockerfile}

	first := e.Execute(context.Background(), req)
	second := e.Execute(context.Background(), req)

	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, first.FilePath, second.FilePath)
	assert.Equal(t, messages(first.Logs), messages(second.Logs))
	assert.NotEqual(t, first.RunID, second.RunID)
}

// =============================================================================
// Build Verification
// =============================================================================

func TestDocker_ValidateUsesEphemeralBuild(t *testing.T) {
	v := &stubValidator{outcome: docker.Outcome{Success: true, Message: "Dockerfile builds successfully", Tag: "deployer-validate-1"}}
	e := newTestEngine(t, &fakeRunner{}, nil, WithValidator(v))

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile, Mode: domain.ActionValidate})

	assert.True(t, rep.Success)
	assert.Equal(t, "Dockerfile builds successfully", rep.Message)
	assert.Equal(t, 1, v.calls)
}

func TestDocker_ValidationBuildIsBounded(t *testing.T) {
	tests := []struct {
		name   string
		mode   domain.Action
		mutate func(*Config)
	}{
		{"validate action", domain.ActionValidate, func(c *Config) { c.BuildTimeout = 3 * time.Minute }},
		{"verify build", domain.ActionDeploy, func(c *Config) { c.BuildTimeout = 3 * time.Minute; c.VerifyBuild = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubValidator{outcome: docker.Outcome{Success: true, Message: "Dockerfile builds successfully"}}
			e := newTestEngine(t, &fakeRunner{}, tt.mutate, WithValidator(v))

			start := time.Now()
			rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile, Mode: tt.mode})

			require.True(t, rep.Success, rep.Message)
			require.Equal(t, 1, v.calls)
			require.False(t, v.deadline.IsZero(), "validation build must carry a deadline")
			assert.WithinDuration(t, start.Add(3*time.Minute), v.deadline, time.Minute)
		})
	}
}

func TestDocker_ValidationBuildReleasesStaging(t *testing.T) {
	var inner report.Report
	v := &stubValidator{outcome: docker.Outcome{Success: true, Message: "Dockerfile builds successfully"}}
	e := newTestEngine(t, &fakeRunner{}, nil, WithValidator(v))
	v.during = func(context.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		inner = e.Execute(ctx, domain.Request{Tool: domain.ToolDocker, Content: validDockerfile})
	}

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile, Mode: domain.ActionValidate})

	require.True(t, rep.Success, rep.Message)
	assert.True(t, inner.Success, "a deploy must not wait for a running validation build: %s", inner.Message)
}

func TestDocker_VerifyBuildFailureFailsDeploy(t *testing.T) {
	v := &stubValidator{outcome: docker.Outcome{Success: false, Message: "Docker build failed: unknown instruction"}}
	e := newTestEngine(t, &fakeRunner{}, func(c *Config) { c.VerifyBuild = true }, WithValidator(v))

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile})

	assert.False(t, rep.Success)
	assert.Equal(t, "Docker build failed: unknown instruction", rep.Message)
}

func TestDocker_VerifyBuildOffSkipsBuild(t *testing.T) {
	v := &stubValidator{}
	e := newTestEngine(t, &fakeRunner{}, nil, WithValidator(v))

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile})

	assert.True(t, rep.Success)
	assert.Equal(t, 0, v.calls)
}

func TestDocker_CleanupIncompleteIsReported(t *testing.T) {
	v := &stubValidator{outcome: docker.Outcome{
		Success:           true,
		Message:           "Dockerfile builds successfully",
		CleanupIncomplete: true,
		CleanupErrors:     []string{"image deployer-validate-1"},
	}}
	obs := &stubObserver{}
	e := newTestEngine(t, &fakeRunner{}, nil, WithValidator(v), WithObserver(obs))

	rep := e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile, Mode: domain.ActionValidate})

	assert.True(t, rep.Success, "cleanup failures never change the verdict")
	assert.True(t, rep.CleanupIncomplete)
	assert.Equal(t, []string{"image deployer-validate-1"}, obs.cleanups)
}

func TestDocker_NoEngine(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{}, nil)

	rep := e.Execute(context.Background(), deployAndRunRequest())
	assert.False(t, rep.Success)
	assert.Equal(t, "container engine unavailable", rep.Message)

	rep = e.Execute(context.Background(), domain.Request{Tool: domain.ToolDocker, Content: validDockerfile, Mode: domain.ActionValidate})
	assert.False(t, rep.Success)
	assert.Equal(t, "container engine unavailable", rep.Message)
}

// =============================================================================
// Deploy and Run
// =============================================================================

func TestDocker_DeployAndRun(t *testing.T) {
	d := newStubDocker()
	var root string
	e := newTestEngine(t, &fakeRunner{}, func(c *Config) {
		root = c.StagingRoot
		c.PublicHost = "example.test"
	}, WithDocker(d))

	rep := e.Execute(context.Background(), deployAndRunRequest())

	require.True(t, rep.Success, rep.Message)
	assert.NotEmpty(t, rep.ContainerID)
	assert.Equal(t, "test-app", rep.ContainerName)
	assert.Equal(t, "3010", rep.Port)
	assert.Equal(t, "http://example.test:3010", rep.AccessURL)
	assert.Equal(t, []string{"build", "create", "start"}, d.ops)

	require.Len(t, d.builds, 1)
	assert.Equal(t, "test-app:latest", d.builds[0].Tag)
	assert.Equal(t, filepath.Join(root, "docker", "app"), d.builds[0].ContextDir)

	require.Len(t, d.specs, 1)
	spec := d.specs[0]
	assert.Equal(t, "test-app:latest", spec.Image)
	assert.Equal(t, "3010", spec.Env["PORT"])
	assert.Equal(t, docker.RestartUnlessStopped, spec.RestartPolicy)
	assert.Equal(t, []docker.PortBinding{{ContainerPort: 3010, HostPort: 3010, Protocol: "tcp"}}, spec.Ports)
	assert.Equal(t, rep.RunID, spec.Labels[docker.LabelRunID])

	for _, name := range []string{"package.json", "server.js", "Dockerfile"} {
		_, err := os.Stat(filepath.Join(root, "docker", "app", name))
		assert.NoError(t, err, name)
	}
}

func TestDocker_DeployAndRunReplacesExistingContainer(t *testing.T) {
	d := newStubDocker()
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))

	first := e.Execute(context.Background(), deployAndRunRequest())
	require.True(t, first.Success, first.Message)

	d.ops = nil
	second := e.Execute(context.Background(), deployAndRunRequest())

	require.True(t, second.Success, second.Message)
	assert.NotEqual(t, first.ContainerID, second.ContainerID)
	assert.Equal(t, []string{"build", "stop", "remove", "create", "start"}, d.ops)

	stop := indexOf(second.Logs, "Stopped container test-app")
	remove := indexOf(second.Logs, "Removed container test-app")
	start := indexOf(second.Logs, "Container test-app started")
	require.True(t, stop >= 0 && remove >= 0 && start >= 0, messages(second.Logs))
	assert.Less(t, stop, remove)
	assert.Less(t, remove, start)
}

func TestDocker_DeployAndRunToleratesStoppedContainer(t *testing.T) {
	d := newStubDocker()
	d.containers["test-app"] = &docker.ContainerInfo{ID: "old", Name: "test-app", Status: docker.ContainerStatusExited}
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))

	rep := e.Execute(context.Background(), deployAndRunRequest())

	require.True(t, rep.Success, rep.Message)
	assert.True(t, containsMessage(rep.Logs, "was already stopped"))
	assert.True(t, containsMessage(rep.Logs, "Removed container test-app"))
}

func TestDocker_DeployAndRunSanitizesName(t *testing.T) {
	d := newStubDocker()
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))
	req := deployAndRunRequest()
	req.ContainerName = "My App!"

	rep := e.Execute(context.Background(), req)

	require.True(t, rep.Success, rep.Message)
	assert.Equal(t, "my-app", rep.ContainerName)
	assert.Equal(t, "my-app:latest", d.builds[0].Tag)
}

func TestDocker_DeployAndRunBuildFailure(t *testing.T) {
	d := newStubDocker()
	d.buildEvents = []docker.BuildEvent{
		{Message: "Step 1/5 : FROM node:18-alpine\n"},
		{Message: "pull access denied", Error: true},
	}
	d.buildErr = &docker.BuildError{Tag: "test-app:latest", Message: "pull access denied"}
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))

	rep := e.Execute(context.Background(), deployAndRunRequest())

	assert.False(t, rep.Success)
	assert.Equal(t, "Docker build failed: pull access denied", rep.Message)
	assert.True(t, containsMessage(rep.Logs, "Step 1/5"))
	assert.Equal(t, []string{"build"}, d.ops)
	assert.Empty(t, rep.ContainerID)
}

func TestDocker_DeployAndRunPortInUse(t *testing.T) {
	d := newStubDocker()
	d.startErr = docker.NewDockerError("StartContainer", "container", "x", "Bind for 0.0.0.0:3010 failed: port is already allocated", docker.ErrPortAlreadyAllocated)
	e := newTestEngine(t, &fakeRunner{}, nil, WithDocker(d))

	rep := e.Execute(context.Background(), deployAndRunRequest())

	assert.False(t, rep.Success)
	assert.Equal(t, "Failed to start container: port 3010 is already in use", rep.Message)
	assert.NotEmpty(t, rep.ContainerID, "the created container is reported; there is no rollback")
}
