package models

import (
	"time"
)

// Image is a user's uploaded image and its classification. A nil
// Classification means the worker has not finished yet.
type Image struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	StorageID      string    `json:"storage_id" gorm:"not null;size:36"`
	UserID         uint      `json:"user_id" gorm:"not null;index:idx_images_user_created,priority:1"`
	Prompt         *string   `json:"prompt,omitempty"`
	Classification *string   `json:"classification,omitempty"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_images_user_created,priority:2,sort:desc"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (i *Image) Pending() bool {
	return i.Classification == nil
}
