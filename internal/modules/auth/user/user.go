// Package user serves the account directory.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/traveldiary/server/internal/models"
	"github.com/traveldiary/server/internal/pkg/response"
	"gorm.io/gorm"
)

type listItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type publicUserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Bio          string    `json:"bio"`
	ProfileImage string    `json:"profileImage"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// List returns every account, newest first.
func (s *Service) List(ctx context.Context) ([]models.UserModel, error) {
	var users []models.UserModel
	err := s.db.WithContext(ctx).
		Select("id", "name", "email", "is_active", "created_at").
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	users := rg.Group("/users")
	users.GET("", authMW, h.list)
	users.GET("/:id", h.get)
}

func (h *Handler) list(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	items := make([]listItem, len(users))
	for i, u := range users {
		items[i] = listItem{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			IsActive:  u.IsActive,
			CreatedAt: u.CreatedAt,
		}
	}
	response.OK(c, gin.H{"users": items, "count": len(items)})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, "Invalid user ID")
		return
	}
	u, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil || !u.IsActive {
		response.NotFoundMsg(c, "User not found")
		return
	}
	response.OK(c, publicUserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Location:     u.Location,
		CreatedAt:    u.CreatedAt,
	})
}
