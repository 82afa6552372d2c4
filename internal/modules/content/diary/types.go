package diary

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/traveldiary/server/internal/models"
)

var (
	ErrDiaryNotFound = errors.New("diary not found")
	ErrUserNotFound  = errors.New("user not found or inactive")
	ErrInvalidAuthor = errors.New("invalid author")
	ErrForbidden     = errors.New("forbidden")
	ErrSlugTaken     = errors.New("a diary with this title already exists")
	ErrImageTooLarge = errors.New("cover image exceeds 5MB")
	ErrInvalidImage  = errors.New("cover image is not a valid base64 data URI")
)

const (
	maxCoverImageBytes = 5 * 1024 * 1024
	maxSlugLength      = 191
)

type CreateDiaryDTO struct {
	Title         string          `json:"title"         binding:"required,max=200"`
	Content       string          `json:"content"       binding:"required"`
	CoverImage    string          `json:"coverImage"`
	Images        []string        `json:"images"        binding:"omitempty,max=50,dive,max=2048"`
	Location      string          `json:"location"      binding:"omitempty,max=255"`
	WeatherAtTime json.RawMessage `json:"weatherAtTime"`
	IsPublic      *bool           `json:"isPublic"`
	AuthorID      string          `json:"authorId"      binding:"omitempty,uuid"`
}

// UpdateDiaryDTO holds optional replacements. A nil field is left unchanged;
// an explicit null weatherAtTime clears it.
type UpdateDiaryDTO struct {
	Title         *string         `json:"title"         binding:"omitempty,max=200"`
	Content       *string         `json:"content"`
	CoverImage    *string         `json:"coverImage"`
	Images        []string        `json:"images"        binding:"omitempty,max=50,dive,max=2048"`
	Location      *string         `json:"location"      binding:"omitempty,max=255"`
	WeatherAtTime json.RawMessage `json:"weatherAtTime"`
	IsPublic      *bool           `json:"isPublic"`
}

type LikeDTO struct {
	UserID string `json:"userId" binding:"omitempty,uuid"`
}

// LikeResult is the state after a toggle.
type LikeResult struct {
	Liked   bool   `json:"liked"`
	Likes   int    `json:"likes"`
	Message string `json:"message"`
}

type diaryAuthor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage"`
}

type diaryResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Content       string          `json:"content"`
	CoverImage    string          `json:"coverImage"`
	Images        []string        `json:"images"`
	Location      string          `json:"location"`
	WeatherAtTime json.RawMessage `json:"weatherAtTime"`
	IsPublic      bool            `json:"isPublic"`
	Likes         int             `json:"likes"`
	AuthorID      string          `json:"authorId"`
	Author        *diaryAuthor    `json:"author,omitempty"`
	Liked         *bool           `json:"liked,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toResponse(d *models.DiaryModel) diaryResponse {
	images := []string(d.Images)
	if images == nil {
		images = []string{}
	}
	out := diaryResponse{
		ID:            d.ID,
		Title:         d.Title,
		Slug:          d.Slug,
		Content:       d.Content,
		CoverImage:    d.CoverImage,
		Images:        images,
		Location:      d.Location,
		WeatherAtTime: d.WeatherAtTime,
		IsPublic:      d.IsPublic,
		Likes:         d.Likes,
		AuthorID:      d.AuthorID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.Author != nil {
		out.Author = &diaryAuthor{
			ID:           d.Author.ID,
			Name:         d.Author.Name,
			Username:     d.Author.Username,
			ProfileImage: d.Author.ProfileImage,
		}
	}
	return out
}

func toResponses(items []models.DiaryModel) []diaryResponse {
	out := make([]diaryResponse, len(items))
	for i := range items {
		out[i] = toResponse(&items[i])
	}
	return out
}

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
