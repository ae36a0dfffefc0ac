package models

import (
	"time"
)

// MaxContentLength bounds post content, matching the posts.content column.
const MaxContentLength = 2000

// Post represents a published post. Posts are immutable once created;
// cached copies are read-only snapshots with their own expiry.
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UserID    int64     `gorm:"not null;index;column:user_id" json:"userId"`
	Content   string    `gorm:"type:varchar(2000);not null;column:content" json:"content"`
	CreatedAt time.Time `gorm:"not null;column:created_at" json:"createdAt"`

	// Relationships
	Media []PostMedia `gorm:"foreignKey:PostID;references:ID" json:"media"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// MediaURLs returns the post's media references in declared order.
func (p *Post) MediaURLs() []string {
	urls := make([]string, len(p.Media))
	for i, m := range p.Media {
		urls[i] = m.URL
	}
	return urls
}

// PostMedia represents a single ordered media reference on a post
type PostMedia struct {
	PostID   int64  `gorm:"primaryKey;column:post_id" json:"-"`
	Position int    `gorm:"primaryKey;column:position" json:"position"`
	URL      string `gorm:"type:varchar(1024);not null;column:media_url" json:"url"`
}

// TableName specifies the table name for PostMedia
func (PostMedia) TableName() string {
	return "post_media_urls"
}
