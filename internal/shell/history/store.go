package history

import (
	"context"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store records and queries run summaries.
type Store interface {
	RecordRun(ctx context.Context, s report.Summary) error
	GetRun(ctx context.Context, id string) (*report.Summary, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]report.Summary, error)
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Options
// =============================================================================

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ListOptions defines pagination and filtering options.
// Runs are listed newest first.
type ListOptions struct {
	Limit  int
	Offset int
	Tool   domain.Tool // "" lists every tool
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > maxLimit {
		o.Limit = maxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
