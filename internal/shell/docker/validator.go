package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/deployment"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
)

// =============================================================================
// Ephemeral Build Validation
// =============================================================================

// ValidationStage is a step of an ephemeral validation build.
type ValidationStage string

const (
	StageStage   ValidationStage = "stage"
	StageBuild   ValidationStage = "build"
	StageInspect ValidationStage = "inspect"
	StageRemove  ValidationStage = "remove"
	StageDone    ValidationStage = "done"
)

// cleanupTimeout bounds image and directory removal. Cleanup runs on a
// context detached from the caller so a cancelled request still cleans up.
const cleanupTimeout = 30 * time.Second

// Outcome is the result of an ephemeral validation build.
type Outcome struct {
	Success bool
	Message string
	Output  []logs.Entry
	Tag     string

	// CleanupIncomplete is set when the image or the temporary directory
	// could not be removed. It never changes Success.
	CleanupIncomplete bool
	CleanupErrors     []string
}

// EphemeralValidator proves a Dockerfile builds by building it in a throwaway
// context and removing everything it created before returning.
type EphemeralValidator struct {
	docker   Client
	tempRoot string
	logger   *slog.Logger
	now      func() time.Time
}

// NewEphemeralValidator creates a validator. tempRoot "" uses the system temp dir.
func NewEphemeralValidator(d Client, tempRoot string, logger *slog.Logger) *EphemeralValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EphemeralValidator{
		docker:   d,
		tempRoot: tempRoot,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate runs STAGE, BUILD, INSPECT and REMOVE for content.
//
// Once a build has been attempted the image is force-removed on every path,
// and the staging directory is always removed. Cleanup failures are logged
// and reported in the outcome but never change its verdict.
func (v *EphemeralValidator) Validate(ctx context.Context, content string) (out Outcome) {
	out.Tag = deployment.ValidationTag(v.now(), uuid.NewString()[:8])
	record := func(e logs.Entry) { out.Output = append(out.Output, e) }
	fail := func(msg string) {
		out.Success = false
		out.Message = msg
		record(logs.Stderr("✗ " + msg))
	}

	v.enter(StageStage, out.Tag)
	dir, err := os.MkdirTemp(v.tempRoot, ValidationDirPrefix)
	if err != nil {
		fail(fmt.Sprintf("failed to create build context: %v", err))
		return out
	}

	buildAttempted := false
	defer func() {
		v.cleanup(ctx, dir, out.Tag, buildAttempted, &out)
	}()
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation build panicked", "tag", out.Tag, "panic", r)
			fail(fmt.Sprintf("validation aborted: %v", r))
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(content), 0644); err != nil {
		fail(fmt.Sprintf("failed to write Dockerfile: %v", err))
		return out
	}
	record(logs.Stdout(fmt.Sprintf("Building validation image %s", out.Tag)))

	v.enter(StageBuild, out.Tag)
	buildAttempted = true
	buildErr := v.docker.BuildImage(ctx, BuildSpec{
		ContextDir: dir,
		Tag:        out.Tag,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelPurpose: PurposeValidation,
		},
	}, func(ev BuildEvent) {
		if ev.Error {
			record(logs.Stderr(ev.Message))
		} else {
			record(logs.Stdout(ev.Message))
		}
	})
	if buildErr != nil {
		v.logger.Info("validation build failed", "tag", out.Tag, "error", buildErr)
		fail("Docker build failed: " + ErrorMessage(buildErr))
		return out
	}

	v.enter(StageInspect, out.Tag)
	if _, err := v.docker.InspectImage(ctx, out.Tag); err != nil {
		if errors.Is(err, ErrImageNotFound) {
			fail("image not found after successful build")
		} else {
			fail("image inspect failed: " + ErrorMessage(err))
		}
		return out
	}

	out.Success = true
	out.Message = "Dockerfile builds successfully"
	record(logs.Stdout("✓ Dockerfile builds successfully"))
	return out
}

func (v *EphemeralValidator) enter(stage ValidationStage, tag string) {
	v.logger.Debug("validation stage", "stage", stage, "tag", tag)
}

// cleanup removes the validation image and the staging directory.
func (v *EphemeralValidator) cleanup(ctx context.Context, dir, tag string, removeImage bool, out *Outcome) {
	v.enter(StageRemove, tag)
	defer v.enter(StageDone, tag)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	incomplete := func(resource string, err error) {
		v.logger.Warn("validation cleanup incomplete",
			"resource", resource,
			"error", err,
		)
		out.CleanupIncomplete = true
		out.CleanupErrors = append(out.CleanupErrors, resource)
		out.Output = append(out.Output, logs.Stderr(fmt.Sprintf("⚠ cleanup incomplete: %s: %s", resource, ErrorMessage(err))))
	}

	if removeImage {
		if err := v.docker.RemoveImage(ctx, tag, true); err != nil && !errors.Is(err, ErrImageNotFound) {
			incomplete("image "+tag, err)
		} else {
			v.logger.Debug("removed validation image", "tag", tag)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		incomplete("directory "+dir, err)
	}
}
