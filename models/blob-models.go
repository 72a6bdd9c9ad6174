package models

import "time"

// Blob is a completed upload in the blob store. Its ID is the storage id
// handed back to the client.
type Blob struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	ObjectKey   string    `json:"object_key" gorm:"not null"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
