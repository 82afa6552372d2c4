package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/pkg/response"
	"github.com/traveldiary/server/internal/pkg/validate"
)

type Handler struct {
	svc          *Service
	secureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")
	g.POST("/signup", h.signup)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)

	authed := g.Group("", authMW)
	authed.GET("/me", h.me)
	authed.PATCH("/me", h.updateMe)
}

func (h *Handler) signup(c *gin.Context) {
	var dto SignupDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	u, err := h.svc.Signup(c.Request.Context(), &dto)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			response.ConflictFields(c, "User already exists", conflict.Fields)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, signupResponse{
		Message:  "Account created successfully",
		UID:      u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
	})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	token, u, err := h.svc.Login(c.Request.Context(), dto.Email, dto.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.UnauthorizedMsg(c, "Invalid email or password")
		return
	case errors.Is(err, ErrAccountInactive):
		response.ForbiddenMsg(c, "Account is inactive")
		return
	case err != nil:
		response.InternalError(c, err)
		return
	}

	h.setTokenCookie(c, token, int(h.svc.TokenTTL().Seconds()))
	response.OK(c, loginResponse{
		Message:  "Signed in successfully",
		UID:      u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
		Token:    token,
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.setTokenCookie(c, "", -1)
	response.OK(c, gin.H{"message": "Signed out"})
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.GetByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFoundMsg(c, "User not found")
		return
	}
	response.OK(c, toProfile(u))
}

func (h *Handler) updateMe(c *gin.Context) {
	var dto UpdateProfileDTO
	if !validate.BindJSON(c, &dto) {
		return
	}
	u, err := h.svc.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFoundMsg(c, "User not found")
		return
	}
	response.OK(c, toProfile(u))
}

func (h *Handler) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", h.secureCookie, true)
}
