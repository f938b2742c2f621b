package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/mediakit/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")
)

type Store interface {
	ExportJobStore
	ExportStore
	ShareLinkStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type ExportJobStore interface {
	// CreateExportJob persists a new job.
	CreateExportJob(ctx context.Context, job *model.ExportJob) error
	// GetExportJob retrieves a job by queue id.
	GetExportJob(ctx context.Context, queueID string) (*model.ExportJob, error)
	// NextQueuedExportJob returns the highest priority queued job, oldest first.
	NextQueuedExportJob(ctx context.Context) (*model.ExportJob, error)
	// ClaimExportJob moves a queued job to processing. It reports false when
	// another worker claimed the job first.
	ClaimExportJob(ctx context.Context, queueID string, at time.Time) (bool, error)
	// CompleteExportJob records the artifact and marks the job completed.
	CompleteExportJob(ctx context.Context, queueID string, export *model.Export) error
	// FailExportJob marks a processing job failed with a message.
	FailExportJob(ctx context.Context, queueID string, message string, at time.Time) error
	// ListExportJobs lists the jobs of a context, newest first.
	ListExportJobs(ctx context.Context, contextID string) ([]*model.ExportJob, error)
	// CountExportJobs counts jobs by status.
	CountExportJobs(ctx context.Context) (map[model.ExportJobStatus]int64, error)
	// DeleteExportJobsBefore removes terminal jobs created before the given time.
	DeleteExportJobsBefore(ctx context.Context, before time.Time) (int64, error)
}

type ExportStore interface {
	// GetExport retrieves an artifact record by id.
	GetExport(ctx context.Context, id string) (*model.Export, error)
	// ListExportsBefore lists artifact records created before the given time.
	ListExportsBefore(ctx context.Context, before time.Time) ([]*model.Export, error)
	// DeleteExport removes an artifact record.
	DeleteExport(ctx context.Context, id string) error
}

type ShareLinkStore interface {
	// CreateShareLink persists a new share link.
	CreateShareLink(ctx context.Context, link *model.ShareLink) error
	// GetShareLink retrieves a link by share id.
	GetShareLink(ctx context.Context, shareID string) (*model.ShareLink, error)
	// GetShareLinkByContext retrieves the link of a context.
	GetShareLinkByContext(ctx context.Context, contextID string) (*model.ShareLink, error)
	// DeleteShareLinkByContext removes the link of a context.
	DeleteShareLinkByContext(ctx context.Context, contextID string) error
	// MoveShareLink reassigns a context's link to another context.
	MoveShareLink(ctx context.Context, from, to string) error
	// IncrementShareViews adds one to the view count of a link.
	IncrementShareViews(ctx context.Context, shareID string) error
	// DeleteExpiredShareLinks removes links that expired before now.
	DeleteExpiredShareLinks(ctx context.Context, now time.Time) (int64, error)
}
