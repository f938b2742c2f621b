package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExportJobStatus is the lifecycle state of an export job.
type ExportJobStatus string

const (
	ExportJobQueued     ExportJobStatus = "queued"
	ExportJobProcessing ExportJobStatus = "processing"
	ExportJobCompleted  ExportJobStatus = "completed"
	ExportJobFailed     ExportJobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s ExportJobStatus) Terminal() bool {
	return s == ExportJobCompleted || s == ExportJobFailed
}

// ExportJob is a queued request to render a document snapshot.
// queued -> processing -> completed | failed; jobs never return to queued.
type ExportJob struct {
	QueueID       string         `gorm:"primaryKey;size:64"`
	ContextID     string         `gorm:"size:255;not null;index"`
	Format        string         `gorm:"size:16;not null"`
	Filename      string         `gorm:"not null"`
	StateSnapshot datatypes.JSON `gorm:"not null"`
	Options       datatypes.JSON
	Watermark     bool            `gorm:"not null"`
	Status        ExportJobStatus `gorm:"size:16;not null;index:idx_export_jobs_claim,priority:1"`
	Priority      int             `gorm:"not null;index:idx_export_jobs_claim,priority:2"`
	CreatedAt     time.Time       `gorm:"index:idx_export_jobs_claim,priority:3"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ExportID      *string `gorm:"size:64"`
	ErrorMessage  *string
}

func (ExportJob) TableName() string {
	return "export_jobs"
}
