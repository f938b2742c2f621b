package model

import "time"

// ShareAccess controls who may resolve a share link.
type ShareAccess string

const (
	ShareAccessPublic   ShareAccess = "public"
	ShareAccessPassword ShareAccess = "password"
	ShareAccessPrivate  ShareAccess = "private"
)

// ShareLink maps an opaque share id to a document context.
type ShareLink struct {
	ShareID      string      `gorm:"primaryKey;size:10"`
	ContextID    string      `gorm:"size:255;not null;uniqueIndex"`
	AccessType   ShareAccess `gorm:"size:16;not null;default:public"`
	PasswordHash string      `json:"-"`
	ExpiresAt    *time.Time  `gorm:"index"`
	ViewCount    int64       `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ShareLink) TableName() string {
	return "share_links"
}

// Expired reports whether the link has expired at the given time.
func (s *ShareLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
