package diary

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/traveldiary/server/internal/database"
	"github.com/traveldiary/server/internal/models"
	"github.com/traveldiary/server/internal/modules/gateway/gateway"
	"github.com/traveldiary/server/internal/pkg/pagination"
	"github.com/traveldiary/server/internal/pkg/response"
	"github.com/traveldiary/server/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier pushes diary changes to connected clients.
type Notifier interface {
	Broadcast(event string, payload interface{})
	BroadcastUser(userID, event string, payload interface{})
}

// WeatherSnapshotter captures the current weather at a location.
type WeatherSnapshotter interface {
	Snapshot(ctx context.Context, location string) (json.RawMessage, error)
}

type Service struct {
	db       *gorm.DB
	weather  WeatherSnapshotter
	notifier Notifier
	log      *zap.Logger
}

// NewService wires the diary store. weather and notifier are optional.
func NewService(db *gorm.DB, weather WeatherSnapshotter, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, weather: weather, notifier: notifier, log: log}
}

// activeUser returns ErrUserNotFound unless id names an active account.
func (s *Service) activeUser(ctx context.Context, id string) error {
	var u models.UserModel
	err := s.db.WithContext(ctx).Select("id", "is_active").First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) authorScope(ctx context.Context, authorID, viewerID string) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.DiaryModel{}).Where("author_id = ?", authorID)
	if viewerID != authorID {
		tx = tx.Where("is_public = ?", true)
	}
	return tx.Order("created_at DESC").Order("id DESC")
}

// List pages through an author's diaries, newest first. Viewers other than
// the author only see public entries.
func (s *Service) List(ctx context.Context, authorID, viewerID string, q pagination.Query) ([]models.DiaryModel, response.Pagination, error) {
	if err := s.activeUser(ctx, authorID); err != nil {
		return nil, response.Pagination{}, err
	}
	var items []models.DiaryModel
	pag, err := pagination.Paginate(s.authorScope(ctx, authorID, viewerID), q, &items)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, pag, nil
}

// ListAll returns every diary of an author visible to the viewer.
func (s *Service) ListAll(ctx context.Context, authorID, viewerID string) ([]models.DiaryModel, error) {
	if err := s.activeUser(ctx, authorID); err != nil {
		return nil, err
	}
	var items []models.DiaryModel
	if err := s.authorScope(ctx, authorID, viewerID).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, id string) (*models.DiaryModel, error) {
	var d models.DiaryModel
	if err := tx.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDiaryNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Get returns a diary with its author. Private diaries are only visible to their author.
func (s *Service) Get(ctx context.Context, id, viewerID string) (*models.DiaryModel, error) {
	d, err := s.find(ctx, s.db.Preload("Author"), id)
	if err != nil {
		return nil, err
	}
	if !d.IsPublic && d.AuthorID != viewerID {
		return nil, ErrForbidden
	}
	return d, nil
}

// LikedBy reports whether userID has liked the diary.
func (s *Service) LikedBy(ctx context.Context, diaryID, userID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DiaryLikeModel{}).
		Where("user_id = ? AND diary_id = ?", userID, diaryID).
		Count(&n).Error
	return n > 0, err
}

// Create stores a new diary for callerID. dto.AuthorID, when set, must match the caller.
func (s *Service) Create(ctx context.Context, callerID string, dto *CreateDiaryDTO) (*models.DiaryModel, error) {
	authorID := strings.TrimSpace(dto.AuthorID)
	if authorID == "" {
		authorID = callerID
	}
	if authorID != callerID {
		return nil, ErrForbidden
	}
	if err := s.activeUser(ctx, authorID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidAuthor
		}
		return nil, err
	}

	coverImage := strings.TrimSpace(dto.CoverImage)
	if err := checkCoverImage(coverImage); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(dto.Title)
	d := models.DiaryModel{
		Title:      title,
		Slug:       slugFor(title),
		Content:    strings.TrimSpace(dto.Content),
		CoverImage: coverImage,
		Images:     models.StringArray(cleanImages(dto.Images)),
		Location:   strings.TrimSpace(dto.Location),
		IsPublic:   dto.IsPublic != nil && *dto.IsPublic,
		AuthorID:   authorID,
	}
	if !isNull(dto.WeatherAtTime) {
		d.WeatherAtTime = dto.WeatherAtTime
	} else if d.Location != "" && s.weather != nil {
		snap, err := s.weather.Snapshot(ctx, d.Location)
		if err != nil {
			s.log.Warn("weather snapshot failed", zap.String("location", d.Location), zap.Error(err))
		} else {
			d.WeatherAtTime = snap
		}
	}

	taken, err := s.slugTaken(ctx, d.Slug, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlugTaken
	}

	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("create diary: %w", err)
	}

	s.publish(&d, gateway.EventDiaryCreate, toResponse(&d))
	return &d, nil
}

// Update applies dto to a diary owned by callerID. A changed title re-derives the slug.
func (s *Service) Update(ctx context.Context, id, callerID string, dto *UpdateDiaryDTO) (*models.DiaryModel, error) {
	d, err := s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if d.AuthorID != callerID {
		return nil, ErrForbidden
	}
	wasPublic := d.IsPublic

	var cols []string
	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		if title != d.Title {
			next := slugFor(title)
			if next != d.Slug {
				taken, err := s.slugTaken(ctx, next, d.ID)
				if err != nil {
					return nil, err
				}
				if taken {
					return nil, ErrSlugTaken
				}
				d.Slug = next
				cols = append(cols, "slug")
			}
			d.Title = title
			cols = append(cols, "title")
		}
	}
	if dto.Content != nil {
		d.Content = strings.TrimSpace(*dto.Content)
		cols = append(cols, "content")
	}
	if dto.CoverImage != nil {
		cover := strings.TrimSpace(*dto.CoverImage)
		if err := checkCoverImage(cover); err != nil {
			return nil, err
		}
		d.CoverImage = cover
		cols = append(cols, "cover_image")
	}
	if dto.Images != nil {
		d.Images = models.StringArray(cleanImages(dto.Images))
		cols = append(cols, "images")
	}
	if dto.Location != nil {
		d.Location = strings.TrimSpace(*dto.Location)
		cols = append(cols, "location")
	}
	if dto.WeatherAtTime != nil {
		d.WeatherAtTime = nil
		if !isNull(dto.WeatherAtTime) {
			d.WeatherAtTime = dto.WeatherAtTime
		}
		cols = append(cols, "weather_at_time")
	}
	if dto.IsPublic != nil {
		d.IsPublic = *dto.IsPublic
		cols = append(cols, "is_public")
	}

	if len(cols) > 0 {
		if err := s.db.WithContext(ctx).Model(d).Select(cols).Updates(d).Error; err != nil {
			if database.IsDuplicateKey(err) {
				return nil, ErrSlugTaken
			}
			return nil, fmt.Errorf("update diary %s: %w", id, err)
		}
	}

	d, err = s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if wasPublic && !d.IsPublic && s.notifier != nil {
		s.notifier.Broadcast(gateway.EventDiaryDelete, idPayload(d.ID))
	}
	s.publish(d, gateway.EventDiaryUpdate, toResponse(d))
	return d, nil
}

// Delete removes a diary owned by callerID together with its likes.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	var deleted *models.DiaryModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if d.AuthorID != callerID {
			return ErrForbidden
		}
		if err := tx.Where("diary_id = ?", id).Delete(&models.DiaryLikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.DiaryModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		deleted = d
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(deleted, gateway.EventDiaryDelete, idPayload(deleted.ID))
	return nil
}

// ToggleLike flips userID's like on a diary. The counter moves by exactly one
// in the same transaction as the like row, so concurrent toggles stay consistent.
func (s *Service) ToggleLike(ctx context.Context, id, userID string) (*LikeResult, error) {
	var (
		result LikeResult
		diary  *models.DiaryModel
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if !d.IsPublic && d.AuthorID != userID {
			return ErrForbidden
		}
		diary = d

		removed := tx.Where("user_id = ? AND diary_id = ?", userID, id).Delete(&models.DiaryLikeModel{})
		if removed.Error != nil {
			return removed.Error
		}

		if removed.RowsAffected > 0 {
			if err := tx.Model(&models.DiaryModel{}).
				Where("id = ? AND likes > 0", id).
				UpdateColumn("likes", gorm.Expr("likes - ?", 1)).Error; err != nil {
				return err
			}
		} else {
			inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.DiaryLikeModel{UserID: userID, DiaryID: id})
			if inserted.Error != nil {
				return inserted.Error
			}
			if inserted.RowsAffected > 0 {
				if err := tx.Model(&models.DiaryModel{}).
					Where("id = ?", id).
					UpdateColumn("likes", gorm.Expr("likes + ?", 1)).Error; err != nil {
					return err
				}
			}
			result.Liked = true
		}

		return tx.Model(&models.DiaryModel{}).Select("likes").Where("id = ?", id).Scan(&result.Likes).Error
	})
	if err != nil {
		return nil, err
	}

	result.Message = "Diary unliked"
	if result.Liked {
		result.Message = "Diary liked"
	}
	diary.Likes = result.Likes
	s.publish(diary, gateway.EventDiaryLike, map[string]interface{}{"id": diary.ID, "likes": result.Likes})
	return &result, nil
}

const reconcileLikesSQL = `UPDATE diaries SET likes = (
	SELECT COUNT(*) FROM diary_likes WHERE diary_likes.diary_id = diaries.id
) WHERE likes <> (
	SELECT COUNT(*) FROM diary_likes WHERE diary_likes.diary_id = diaries.id
)`

// ReconcileLikes resets every counter that drifted from its like rows and
// returns how many diaries changed.
func (s *Service) ReconcileLikes(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Exec(reconcileLikesSQL)
	if res.Error != nil {
		return 0, fmt.Errorf("reconcile likes: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("like counters reconciled", zap.Int64("diaries", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *Service) slugTaken(ctx context.Context, value, exceptID string) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&models.DiaryModel{}).Where("slug = ?", value)
	if exceptID != "" {
		tx = tx.Where("id <> ?", exceptID)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// publish sends public diary events to everyone and private ones to the author only.
func (s *Service) publish(d *models.DiaryModel, event string, payload interface{}) {
	if s.notifier == nil || d == nil {
		return
	}
	if d.IsPublic {
		s.notifier.Broadcast(event, payload)
		return
	}
	s.notifier.BroadcastUser(d.AuthorID, event, payload)
}

func idPayload(id string) map[string]string {
	return map[string]string{"id": id}
}

func slugFor(title string) string {
	s := slug.ForTitle(title)
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	return s
}

func cleanImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, img := range in {
		if img = strings.TrimSpace(img); img != "" {
			out = append(out, img)
		}
	}
	return out
}

// checkCoverImage bounds inline data URIs. Plain URLs pass unchanged.
func checkCoverImage(cover string) error {
	if !strings.HasPrefix(cover, "data:image/") {
		return nil
	}
	comma := strings.IndexByte(cover, ',')
	if comma < 0 || !strings.HasSuffix(cover[:comma], ";base64") {
		return ErrInvalidImage
	}
	payload := cover[comma+1:]
	if base64.StdEncoding.DecodedLen(len(payload)) > maxCoverImageBytes+2 {
		return ErrImageTooLarge
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidImage
	}
	if len(decoded) > maxCoverImageBytes {
		return ErrImageTooLarge
	}
	return nil
}
