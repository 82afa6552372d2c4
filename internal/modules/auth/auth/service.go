package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/traveldiary/server/internal/database"
	"github.com/traveldiary/server/internal/models"
	"github.com/traveldiary/server/internal/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultHashCost = 12

type Service struct {
	db       *gorm.DB
	tokenTTL time.Duration
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(db *gorm.DB, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = jwt.DefaultTTL
	}
	return &Service{db: db, tokenTTL: tokenTTL, hashCost: defaultHashCost}
}

// TokenTTL is the lifetime of issued tokens.
func (s *Service) TokenTTL() time.Duration { return s.tokenTTL }

// Signup creates an active account. Email and username are stored lowercased.
func (s *Service) Signup(ctx context.Context, dto *SignupDTO) (*models.UserModel, error) {
	dto.normalize()

	fields, err := s.conflicts(ctx, dto)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, &ConflictError{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := models.UserModel{
		Name:         dto.Name,
		Username:     dto.Username,
		Email:        dto.Email,
		MobileNumber: dto.MobileNumber,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if database.IsDuplicateKey(err) {
			fields, qerr := s.conflicts(ctx, dto)
			if qerr != nil {
				return nil, fmt.Errorf("look up signup conflicts: %w", qerr)
			}
			return nil, &ConflictError{Fields: fields}
		}
		return nil, err
	}
	return &u, nil
}

// conflicts returns which of email, username and mobileNumber are already taken.
func (s *Service) conflicts(ctx context.Context, dto *SignupDTO) ([]string, error) {
	var existing []models.UserModel
	err := s.db.WithContext(ctx).
		Select("email", "username", "mobile_number").
		Where("email = ? OR username = ? OR mobile_number = ?", dto.Email, dto.Username, dto.MobileNumber).
		Find(&existing).Error
	if err != nil {
		return nil, err
	}

	var email, username, mobile bool
	for _, u := range existing {
		email = email || u.Email == dto.Email
		username = username || u.Username == dto.Username
		mobile = mobile || u.MobileNumber == dto.MobileNumber
	}

	fields := make([]string, 0, 3)
	if email {
		fields = append(fields, "email")
	}
	if username {
		fields = append(fields, "username")
	}
	if mobile {
		fields = append(fields, "mobileNumber")
	}
	return fields, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.UserModel, error) {
	var u models.UserModel
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// keep timing comparable to a wrong password
			_ = bcrypt.CompareHashAndPassword(s.fakeHash(), []byte(password))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return "", nil, ErrAccountInactive
	}

	token, err := jwt.Sign(u.ID, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&u).UpdateColumn("last_login_at", now).Error; err != nil {
		return "", nil, err
	}
	u.LastLoginAt = &now
	return token, &u, nil
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

func (s *Service) UpdateProfile(ctx context.Context, id string, dto *UpdateProfileDTO) (*models.UserModel, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = trimmed(*dto.Name)
		u.Name = trimmed(*dto.Name)
	}
	if dto.Bio != nil {
		updates["bio"] = trimmed(*dto.Bio)
		u.Bio = trimmed(*dto.Bio)
	}
	if dto.ProfileImage != nil {
		updates["profile_image"] = trimmed(*dto.ProfileImage)
		u.ProfileImage = trimmed(*dto.ProfileImage)
	}
	if dto.Location != nil {
		updates["location"] = trimmed(*dto.Location)
		u.Location = trimmed(*dto.Location)
	}
	if len(updates) == 0 {
		return u, nil
	}
	return u, s.db.WithContext(ctx).Model(u).Updates(updates).Error
}

func (s *Service) fakeHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
	})
	return s.dummyHash
}
