package models

import "time"

// UploadedFile records an object written to storage so unreferenced uploads can be reclaimed.
type UploadedFile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Path        string    `gorm:"size:1024;not null" json:"path"` // storage key
	URL         string    `gorm:"size:1024;not null;index" json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
