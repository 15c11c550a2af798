package model

import "time"

// UnsetOwner is stored when a link is created without an owning username.
const UnsetOwner = "no-name"

// ShortLink maps a caller-chosen slug to a target URL.
type ShortLink struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey"`
	Slug      string    `json:"slug" gorm:"column:slug;uniqueIndex;not null"`
	URL       string    `json:"url" gorm:"column:url;type:text;not null"`
	Owner     string    `json:"owner" gorm:"column:owner;not null;default:no-name"`
	Warning   bool      `json:"warning" gorm:"column:warning;not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the historical table name.
func (ShortLink) TableName() string {
	return "short_urls"
}
