package models

import (
	"encoding/json"
	"time"
)

// DiaryModel is a travel diary entry. Content and cover images can be large,
// so they are sized to MEDIUMTEXT on MySQL.
type DiaryModel struct {
	Base
	Title         string          `json:"title"         gorm:"size:200;not null"`
	Slug          string          `json:"slug"          gorm:"size:191;uniqueIndex;not null"`
	Content       string          `json:"content"       gorm:"size:16777215;not null"`
	CoverImage    string          `json:"coverImage"    gorm:"column:cover_image;size:16777215"`
	Images        StringArray     `json:"images"        gorm:"size:16777215"`
	Location      string          `json:"location"      gorm:"size:255"`
	WeatherAtTime json.RawMessage `json:"weatherAtTime" gorm:"column:weather_at_time;type:text;serializer:json"`
	IsPublic      bool            `json:"isPublic"      gorm:"default:false;not null;index"`
	Likes         int             `json:"likes"         gorm:"default:0;not null"`
	AuthorID      string          `json:"authorId"      gorm:"type:char(36);index;not null"`
	Author        *UserModel      `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}

func (DiaryModel) TableName() string { return "diaries" }

// DiaryLikeModel records that a user liked a diary. One row per (user, diary).
type DiaryLikeModel struct {
	UserID    string    `json:"userId"    gorm:"type:char(36);primaryKey"`
	DiaryID   string    `json:"diaryId"   gorm:"type:char(36);primaryKey;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (DiaryLikeModel) TableName() string { return "diary_likes" }
