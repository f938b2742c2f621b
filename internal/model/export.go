package model

import "time"

// Export is a rendered artifact produced by a completed export job.
type Export struct {
	ID          string `gorm:"primaryKey;size:64"`
	QueueID     string `gorm:"size:64;not null;index"`
	ContextID   string `gorm:"size:255;not null;index"`
	Format      string `gorm:"size:16;not null"`
	Filename    string `gorm:"not null"`
	Path        string `gorm:"not null"`
	URL         string
	MimeType    string `gorm:"size:64"`
	Size        int64
	Watermarked bool
	CreatedAt   time.Time `gorm:"index"`
}

func (Export) TableName() string {
	return "exports"
}
