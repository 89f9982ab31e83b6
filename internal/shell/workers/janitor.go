// Package workers contains background workers for the deployer.
package workers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/docker"
)

// ImageSweeper lists and removes images. docker.DockerClient implements it.
type ImageSweeper interface {
	ListImages(ctx context.Context, labels map[string]string) ([]docker.ImageInfo, error)
	RemoveImage(ctx context.Context, ref string, force bool) error
}

// JanitorConfig configures the janitor worker.
type JanitorConfig struct {
	// Interval is the time between sweeps.
	// Default: 10 minutes.
	Interval time.Duration

	// MaxAge is how old a leftover must be before it is removed. It must
	// exceed the longest validation build.
	// Default: 1 hour.
	MaxAge time.Duration

	// TempRoot is where validation build contexts are created.
	// Default: the system temp dir.
	TempRoot string
}

// DefaultJanitorConfig returns the default configuration.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval: 10 * time.Minute,
		MaxAge:   time.Hour,
	}
}

// Janitor removes what validation builds leave behind when the process dies
// mid-run: temporary build contexts and labelled validation images.
type Janitor struct {
	images ImageSweeper // nil sweeps directories only
	config JanitorConfig
	logger *slog.Logger
	now    func() time.Time

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Dirs   int
	Images int
	Errors int
}

// NewJanitor creates a new janitor worker.
func NewJanitor(images ImageSweeper, config JanitorConfig, logger *slog.Logger) *Janitor {
	def := DefaultJanitorConfig()
	if config.Interval == 0 {
		config.Interval = def.Interval
	}
	if config.MaxAge == 0 {
		config.MaxAge = def.MaxAge
	}
	if config.TempRoot == "" {
		config.TempRoot = os.TempDir()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Janitor{
		images: images,
		config: config,
		logger: logger.With("component", "janitor"),
		now:    time.Now,
	}
}

// Start begins the janitor background goroutine.
func (j *Janitor) Start() {
	j.ctx, j.cancel = context.WithCancel(context.Background())

	j.wg.Add(1)
	go j.run()

	j.logger.Info("janitor started",
		"interval", j.config.Interval,
		"max_age", j.config.MaxAge,
		"temp_root", j.config.TempRoot,
	)
}

// Stop stops the janitor and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.logger.Info("janitor stopped")
}

// run is the main loop that sweeps periodically.
func (j *Janitor) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.Sweep(j.ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(j.ctx)
		}
	}
}

// Sweep removes leftovers older than MaxAge once.
func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	cutoff := j.now().Add(-j.config.MaxAge)

	j.sweepDirs(cutoff, &res)
	if j.images != nil {
		j.sweepImages(ctx, cutoff, &res)
	}

	if res.Dirs > 0 || res.Images > 0 || res.Errors > 0 {
		j.logger.Info("sweep completed",
			"dirs_removed", res.Dirs,
			"images_removed", res.Images,
			"errors", res.Errors,
		)
	}
	return res
}

func (j *Janitor) sweepDirs(cutoff time.Time, res *SweepResult) {
	entries, err := os.ReadDir(j.config.TempRoot)
	if err != nil {
		j.logger.Error("failed to read temp root", "error", err)
		res.Errors++
		return
	}

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), docker.ValidationDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.config.TempRoot, e.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("failed to remove build context", "path", path, "error", err)
			res.Errors++
			continue
		}
		j.logger.Debug("removed build context", "path", path)
		res.Dirs++
	}
}

func (j *Janitor) sweepImages(ctx context.Context, cutoff time.Time, res *SweepResult) {
	images, err := j.images.ListImages(ctx, map[string]string{
		docker.LabelManaged: "true",
		docker.LabelPurpose: docker.PurposeValidation,
	})
	if err != nil {
		j.logger.Error("failed to list validation images", "error", err)
		res.Errors++
		return
	}

	for _, img := range images {
		if !img.CreatedAt.Before(cutoff) {
			continue
		}
		if err := j.images.RemoveImage(ctx, img.ID, true); err != nil {
			j.logger.Warn("failed to remove validation image", "image_id", img.ID, "error", err)
			res.Errors++
			continue
		}
		j.logger.Debug("removed validation image", "image_id", img.ID, "tags", img.Tags)
		res.Images++
	}
}
