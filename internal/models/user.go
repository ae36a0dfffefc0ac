package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Username  string    `gorm:"type:varchar(50);not null;uniqueIndex:users_username_ux;column:username" json:"username"`
	Email     string    `gorm:"type:varchar(255);not null;column:email" json:"email"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"createdAt"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}
