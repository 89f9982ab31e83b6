package report

import (
	"encoding/hex"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"golang.org/x/crypto/blake2b"
)

// Summary is the durable record of a run. Logs are not retained, only
// their count.
type Summary struct {
	RunID         string        `json:"id" db:"id"`
	Tool          domain.Tool   `json:"tool" db:"tool"`
	Action        domain.Action `json:"action" db:"action"`
	Success       bool          `json:"success" db:"success"`
	Message       string        `json:"message" db:"message"`
	FilePath      string        `json:"filePath" db:"file_path"`
	ContainerName string        `json:"containerName,omitempty" db:"container_name"`
	ContainerID   string        `json:"containerId,omitempty" db:"container_id"`
	ContentDigest string        `json:"contentDigest" db:"content_digest"`
	LogCount      int           `json:"logCount" db:"log_count"`
	Cleanup       bool          `json:"cleanupIncomplete" db:"cleanup_incomplete"`
	User          string        `json:"user,omitempty" db:"user_id"`
	StartedAt     time.Time     `json:"startedAt" db:"started_at"`
	FinishedAt    time.Time     `json:"finishedAt" db:"finished_at"`
}

// Duration returns how long the run took.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summarize flattens a finished run into a Summary.
func Summarize(runID string, req domain.Request, rep Report, started, finished time.Time) Summary {
	return Summary{
		RunID:         runID,
		Tool:          req.Tool,
		Action:        req.Mode,
		Success:       rep.Success,
		Message:       rep.Message,
		FilePath:      rep.FilePath,
		ContainerName: rep.ContainerName,
		ContainerID:   rep.ContainerID,
		ContentDigest: ContentDigest(req.Content),
		LogCount:      len(rep.Logs),
		Cleanup:       rep.CleanupIncomplete,
		User:          req.User,
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
	}
}

// ContentDigest returns the hex BLAKE2b-256 digest of artifact content.
// Identical artifacts share a digest across runs.
func ContentDigest(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
