package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/deployment"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/scaffold"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/syntax"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/docker"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/staging"
)

// =============================================================================
// Docker Workflow
// =============================================================================

const (
	dockerfileName = "Dockerfile"
	appSubdir      = "app"

	// stopTimeout is how long a replaced container gets to exit.
	stopTimeout = 10 * time.Second
)

// runDocker writes the Dockerfile, checks its syntax and branches on the
// requested action.
func (e *Engine) runDocker(ctx context.Context, r *run) report.Report {
	dir, err := e.acquire(ctx, r)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare docker workspace: %v", err))
	}
	defer dir.Release()

	// 1. Write
	path, err := dir.Write(dockerfileName, r.req.Content)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to write Dockerfile: %v", err))
	}
	r.b.SetFilePath(path)
	r.b.Stdout("Dockerfile saved to %s", path)

	// 2. Validate
	res := syntax.CheckDockerfile(r.req.Content)
	r.b.Append(res.Logs...)
	if !res.Valid {
		return r.b.Fail("Dockerfile validation failed")
	}

	// 3. Branch
	if r.req.Mode == domain.ActionDeployAndRun {
		return e.deployAndRun(ctx, r, dir)
	}

	// Validation builds use their own temp context, so the staging
	// directory is not needed past this point.
	dir.Release()

	if r.req.Mode == domain.ActionValidate {
		ok, msg := e.ephemeralBuild(ctx, r)
		return r.b.Resolve(ok, msg)
	}
	if e.cfg.VerifyBuild {
		if ok, msg := e.ephemeralBuild(ctx, r); !ok {
			return r.b.Fail(msg)
		}
	}
	return r.b.Succeed("Dockerfile saved and validated successfully")
}

// ephemeralBuild proves the Dockerfile builds and forwards leaked resources
// to the observer.
func (e *Engine) ephemeralBuild(ctx context.Context, r *run) (bool, string) {
	if e.validator == nil {
		return false, docker.ErrUnavailable.Error()
	}

	buildCtx, cancel := context.WithTimeout(ctx, e.cfg.BuildTimeout)
	defer cancel()

	r.b.Stdout("Running validation build")
	out := e.validator.Validate(buildCtx, r.req.Content)
	r.b.Append(logs.WithStage(out.Output, "build")...)
	for _, resource := range out.CleanupErrors {
		e.cleanupIncomplete(r, resource)
	}
	r.logger.Info("validation build finished",
		"tag", out.Tag,
		"success", out.Success,
		"cleanup_incomplete", out.CleanupIncomplete,
	)
	return out.Success, out.Message
}

// deployAndRun builds the scaffolded application and replaces any container
// of the same name with a fresh one. There is no rollback: a failure after
// the old container was removed leaves no container running.
func (e *Engine) deployAndRun(ctx context.Context, r *run, dir *staging.Dir) report.Report {
	if e.docker == nil {
		return r.b.Fail(docker.ErrUnavailable.Error())
	}

	name := deployment.SanitizeContainerName(r.req.ContainerName)
	tag := deployment.ImageTag(name)
	port := r.req.Port
	labels := map[string]string{
		docker.LabelManaged: "true",
		docker.LabelTool:    string(domain.ToolDocker),
		docker.LabelPurpose: docker.PurposeDeploy,
		docker.LabelRunID:   r.id,
	}

	// 1. Scaffold
	appDir, err := dir.Reset(appSubdir)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare application directory: %v", err))
	}
	for _, f := range scaffold.Generate(port) {
		if _, err := dir.Write(appSubdir+"/"+f.Name, f.Content); err != nil {
			return r.b.Fail(fmt.Sprintf("Failed to write %s: %v", f.Name, err))
		}
	}
	r.b.Stdout("Generated application for port %d in %s", port, appDir)

	// 2. Build
	r.b.Stdout("Building image %s", tag)
	buildCtx, cancel := context.WithTimeout(ctx, e.cfg.BuildTimeout)
	err = e.docker.BuildImage(buildCtx, docker.BuildSpec{
		ContextDir: appDir,
		Tag:        tag,
		Labels:     labels,
	}, func(ev docker.BuildEvent) {
		entry := logs.Stdout(ev.Message)
		if ev.Error {
			entry = logs.Stderr(ev.Message)
		}
		entry.Stage = "build"
		r.b.Append(entry)
	})
	cancel()
	if err != nil {
		r.logger.Info("image build failed", "tag", tag, "error", err)
		return r.b.Fail("Docker build failed: " + docker.ErrorMessage(err))
	}
	r.b.Stdout("✓ Image %s built", tag)

	// 3. Replace the previous container
	if err := e.replaceContainer(ctx, r, name); err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to remove existing container %s: %s", name, docker.ErrorMessage(err)))
	}

	// 4. Create and start
	id, err := e.docker.CreateContainer(ctx, docker.ContainerSpec{
		Name:   name,
		Image:  tag,
		Env:    map[string]string{"PORT": strconv.Itoa(port)},
		Labels: labels,
		Ports: []docker.PortBinding{{
			ContainerPort: port,
			HostPort:      port,
			Protocol:      "tcp",
		}},
		RestartPolicy: docker.RestartUnlessStopped,
	})
	if err != nil {
		return r.b.Fail("Failed to create container: " + docker.ErrorMessage(err))
	}
	r.b.Stdout("Created container %s (%s)", name, shortID(id))

	if err := e.docker.StartContainer(ctx, id); err != nil {
		r.b.SetContainer(name, id, port, "")
		if errors.Is(err, docker.ErrPortAlreadyAllocated) {
			return r.b.Fail(fmt.Sprintf("Failed to start container: port %d is already in use", port))
		}
		return r.b.Fail("Failed to start container: " + docker.ErrorMessage(err))
	}

	url := fmt.Sprintf("http://%s:%d", e.cfg.PublicHost, port)
	r.b.Stdout("✓ Container %s started on port %d", name, port)
	r.b.SetContainer(name, id, port, url)
	r.logger.Info("container started", "container_id", id, "container_name", name, "port", port)
	return r.b.Succeed(fmt.Sprintf("Container %s is running at %s", name, url))
}

// replaceContainer stops and force-removes the container called name if it
// exists. A container that is already stopped or already gone is fine.
func (e *Engine) replaceContainer(ctx context.Context, r *run, name string) error {
	info, err := e.docker.InspectContainer(ctx, name)
	if err != nil {
		if errors.Is(err, docker.ErrContainerNotFound) {
			return nil
		}
		return err
	}

	r.b.Stdout("Stopping existing container %s", name)
	timeout := stopTimeout
	if err := e.docker.StopContainer(ctx, info.ID, &timeout); err != nil {
		switch {
		case errors.Is(err, docker.ErrContainerNotRunning):
			r.b.Stdout("Container %s was already stopped", name)
		case errors.Is(err, docker.ErrContainerNotFound):
			r.b.Stdout("Container %s no longer exists", name)
			return nil
		default:
			r.b.Stderr("Failed to stop container %s: %s", name, docker.ErrorMessage(err))
		}
	} else {
		r.b.Stdout("Stopped container %s", name)
	}

	r.b.Stdout("Removing existing container %s", name)
	if err := e.docker.RemoveContainer(ctx, info.ID, docker.RemoveOptions{Force: true}); err != nil {
		if !errors.Is(err, docker.ErrContainerNotFound) {
			return err
		}
	}
	r.b.Stdout("Removed container %s", name)
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
