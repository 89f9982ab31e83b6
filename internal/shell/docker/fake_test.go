package docker

import (
	"context"
	"sync"
	"time"
)

// fakeClient is an in-memory Client for unit tests.
type fakeClient struct {
	mu sync.Mutex

	images     map[string]bool
	containers map[string]*ContainerInfo

	buildEvents    []BuildEvent
	buildErr       error
	buildPanics    bool
	skipTagOnBuild bool
	inspectErr     error
	removeImageErr error

	builtContexts []string
	removedImages []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		images:     make(map[string]bool),
		containers: make(map[string]*ContainerInfo),
	}
}

func (f *fakeClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[spec.Name]; ok {
		return "", NewDockerError("CreateContainer", "container", spec.Name, "container already exists", ErrContainerAlreadyExists)
	}
	id := "id-" + spec.Name
	f.containers[spec.Name] = &ContainerInfo{ID: id, Name: spec.Name, Image: spec.Image, Status: ContainerStatusCreated, Labels: spec.Labels}
	return id, nil
}

func (f *fakeClient) StartContainer(ctx context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.ID == containerID {
			c.Status = ContainerStatusRunning
			return nil
		}
	}
	return NewDockerError("StartContainer", "container", containerID, "container not found", ErrContainerNotFound)
}

func (f *fakeClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	return nil
}

func (f *fakeClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	return nil
}

func (f *fakeClient) InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	return nil, NewDockerError("InspectContainer", "container", containerID, "container not found", ErrContainerNotFound)
}

func (f *fakeClient) BuildImage(ctx context.Context, spec BuildSpec, onEvent func(BuildEvent)) error {
	if f.buildPanics {
		panic("daemon exploded")
	}
	f.mu.Lock()
	f.builtContexts = append(f.builtContexts, spec.ContextDir)
	if !f.skipTagOnBuild {
		f.images[spec.Tag] = true
	}
	f.mu.Unlock()

	for _, ev := range f.buildEvents {
		onEvent(ev)
	}
	return f.buildErr
}

func (f *fakeClient) InspectImage(ctx context.Context, ref string) (*ImageInfo, error) {
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[ref] {
		return nil, NewDockerError("InspectImage", "image", ref, "image not found", ErrImageNotFound)
	}
	return &ImageInfo{ID: "sha256:" + ref, Tags: []string{ref}}, nil
}

func (f *fakeClient) ImageExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[ref], nil
}

func (f *fakeClient) RemoveImage(ctx context.Context, ref string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedImages = append(f.removedImages, ref)
	if f.removeImageErr != nil {
		return f.removeImageErr
	}
	if !f.images[ref] {
		return NewDockerError("RemoveImage", "image", ref, "image not found", ErrImageNotFound)
	}
	delete(f.images, ref)
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                   { return nil }
