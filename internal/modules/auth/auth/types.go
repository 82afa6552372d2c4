package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/traveldiary/server/internal/models"
)

type SignupDTO struct {
	Name         string `json:"name"         binding:"required,min=2,max=100"`
	Username     string `json:"username"     binding:"required,min=3,max=50,username"`
	Email        string `json:"email"        binding:"required,email,max=191"`
	MobileNumber string `json:"mobileNumber" binding:"required,min=10,max=32"`
	Password     string `json:"password"     binding:"required,min=6,max=72"`
}

type LoginDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileDTO struct {
	Name         *string `json:"name"         binding:"omitempty,min=2,max=100"`
	Bio          *string `json:"bio"          binding:"omitempty,max=500"`
	ProfileImage *string `json:"profileImage" binding:"omitempty,max=1024"`
	Location     *string `json:"location"     binding:"omitempty,max=255"`
}

type signupResponse struct {
	Message  string `json:"message"`
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type loginResponse struct {
	Message  string `json:"message"`
	UID      string `json:"uid"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type profileResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	MobileNumber     string     `json:"mobileNumber"`
	Role             string     `json:"role"`
	IsActive         bool       `json:"isActive"`
	IsEmailVerified  bool       `json:"isEmailVerified"`
	IsMobileVerified bool       `json:"isMobileVerified"`
	Bio              string     `json:"bio"`
	ProfileImage     string     `json:"profileImage"`
	Location         string     `json:"location"`
	LastLoginAt      *time.Time `json:"lastLoginAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toProfile(u *models.UserModel) profileResponse {
	return profileResponse{
		ID:               u.ID,
		Name:             u.Name,
		Username:         u.Username,
		Email:            u.Email,
		MobileNumber:     u.MobileNumber,
		Role:             u.Role,
		IsActive:         u.IsActive,
		IsEmailVerified:  u.IsEmailVerified,
		IsMobileVerified: u.IsMobileVerified,
		Bio:              u.Bio,
		ProfileImage:     u.ProfileImage,
		Location:         u.Location,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is inactive")
)

// ConflictError lists the unique fields already taken by another account.
type ConflictError struct {
	Fields []string
}

func (e *ConflictError) Error() string {
	return ErrUserExists.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *ConflictError) Unwrap() error { return ErrUserExists }

func (dto *SignupDTO) normalize() {
	dto.Name = strings.TrimSpace(dto.Name)
	dto.Username = strings.ToLower(strings.TrimSpace(dto.Username))
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	dto.MobileNumber = strings.TrimSpace(dto.MobileNumber)
}
