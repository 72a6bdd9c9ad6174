package models

import (
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email    string `json:"email" gorm:"not null;uniqueIndex"`
	Username string `json:"username" gorm:"not null;uniqueIndex"`
	FullName string `json:"name"`
	Password string `json:"-" gorm:"not null"`
}
