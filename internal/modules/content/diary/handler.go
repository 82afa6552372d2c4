package diary

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/modules/processing/markdown"
	"github.com/traveldiary/server/internal/pkg/pagination"
	"github.com/traveldiary/server/internal/pkg/response"
	"github.com/traveldiary/server/internal/pkg/validate"
)

const (
	createReplayWindow = 60 * time.Second
	likeReplayWindow   = 2 * time.Second
)

// Guard builds a replay guard for a mutating route. With keyedOnly set it
// only rejects repeats of an explicit client key.
type Guard func(ttl time.Duration, keyedOnly bool) gin.HandlerFunc

type Handler struct {
	svc   *Service
	guard Guard
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// WithGuard installs a replay guard on create and like.
func (h *Handler) WithGuard(g Guard) *Handler {
	h.guard = g
	return h
}

func (h *Handler) guarded(ttl time.Duration, keyedOnly bool) []gin.HandlerFunc {
	if h.guard == nil {
		return nil
	}
	return []gin.HandlerFunc{h.guard(ttl, keyedOnly)}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	diaries := rg.Group("/diary")

	diaries.GET("", h.list)
	diaries.GET("/:id", h.get)
	diaries.GET("/:id/html", h.html)
	diaries.GET("/:id/diaries", h.listByAuthor)

	authed := diaries.Group("", authMW)
	authed.POST("", append(h.guarded(createReplayWindow, false), h.create)...)
	authed.PUT("/:id", h.update)
	authed.DELETE("/:id", h.delete)
	authed.POST("/:id/like", append(h.guarded(likeReplayWindow, true), h.like)...)

	rg.GET("/users/:id/diaries", h.listByAuthor)
}

func (h *Handler) list(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		response.BadRequest(c, "User ID is required")
		return
	}
	if _, err := uuid.Parse(userID); err != nil {
		response.BadRequest(c, "Invalid user ID")
		return
	}

	items, pag, err := h.svc.List(c.Request.Context(), userID, middleware.CurrentUserID(c), pagination.FromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Paged(c, "diaries", toResponses(items), pag)
}

func (h *Handler) listByAuthor(c *gin.Context) {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		response.BadRequest(c, "Invalid user ID")
		return
	}
	items, err := h.svc.ListAll(c.Request.Context(), userID, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"diaries": toResponses(items), "count": len(items)})
}

func (h *Handler) get(c *gin.Context) {
	viewer := middleware.CurrentUserID(c)
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := toResponse(d)
	if viewer != "" {
		liked, err := h.svc.LikedBy(c.Request.Context(), d.ID, viewer)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		out.Liked = &liked
	}
	response.OK(c, out)
}

func (h *Handler) html(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	body := markdown.Render(d.Content)

	if c.Query("format") == "document" {
		var parts []string
		if d.Author != nil && d.Author.Name != "" {
			parts = append(parts, d.Author.Name)
		}
		if d.Location != "" {
			parts = append(parts, d.Location)
		}
		info := strings.Join(parts, " · ")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(markdown.Document(d.Title, info, body)))
		return
	}
	response.OK(c, gin.H{"id": d.ID, "title": d.Title, "html": body})
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDiaryDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	if strings.TrimSpace(dto.Title) == "" {
		response.ValidationFailed(c, validate.Field("title", "is required"))
		return
	}
	if strings.TrimSpace(dto.Content) == "" {
		response.ValidationFailed(c, validate.Field("content", "is required"))
		return
	}

	d, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, toResponse(d))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateDiaryDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	if dto.Title != nil && strings.TrimSpace(*dto.Title) == "" {
		response.ValidationFailed(c, validate.Field("title", "is required"))
		return
	}
	if dto.Content != nil && strings.TrimSpace(*dto.Content) == "" {
		response.ValidationFailed(c, validate.Field("content", "is required"))
		return
	}

	d, err := h.svc.Update(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, toResponse(d))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Diary deleted successfully"})
}

func (h *Handler) like(c *gin.Context) {
	caller := middleware.CurrentUserID(c)

	var dto LikeDTO
	if c.Request.ContentLength != 0 {
		if !validate.BindJSON(c, &dto) {
			return
		}
	}
	if dto.UserID != "" && dto.UserID != caller {
		response.ForbiddenMsg(c, "You can only like as yourself")
		return
	}

	res, err := h.svc.ToggleLike(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// fail maps service errors to responses.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDiaryNotFound):
		response.NotFoundMsg(c, "Diary not found")
	case errors.Is(err, ErrUserNotFound):
		response.NotFoundMsg(c, "User not found or inactive")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(c)
	case errors.Is(err, ErrInvalidAuthor):
		response.BadRequest(c, "Invalid author")
	case errors.Is(err, ErrSlugTaken):
		response.Conflict(c, "A diary with this title already exists")
	case errors.Is(err, ErrImageTooLarge):
		response.ValidationFailed(c, validate.Field("coverImage", "Image size must be less than 5MB"))
	case errors.Is(err, ErrInvalidImage):
		response.ValidationFailed(c, validate.Field("coverImage", "must be a valid base64 image"))
	default:
		response.InternalError(c, err)
	}
}
