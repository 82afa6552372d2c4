package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserModel is a diary author account.
type UserModel struct {
	Base
	Name             string     `json:"name"             gorm:"size:100;not null"`
	Username         string     `json:"username"         gorm:"size:50;uniqueIndex;not null"`
	Email            string     `json:"email"            gorm:"size:191;uniqueIndex;not null"`
	MobileNumber     string     `json:"mobileNumber"     gorm:"column:mobile_number;size:32;uniqueIndex;not null"`
	PasswordHash     string     `json:"-"                gorm:"column:password_hash;not null"`
	Role             string     `json:"role"             gorm:"size:16;default:user;not null"`
	IsActive         bool       `json:"isActive"         gorm:"default:true;not null"`
	IsEmailVerified  bool       `json:"isEmailVerified"  gorm:"default:false;not null"`
	IsMobileVerified bool       `json:"isMobileVerified" gorm:"default:false;not null"`
	Bio              string     `json:"bio"              gorm:"type:text"`
	ProfileImage     string     `json:"profileImage"     gorm:"size:1024"`
	Location         string     `json:"location"         gorm:"size:255"`
	LastLoginAt      *time.Time `json:"lastLoginAt"`
}

func (UserModel) TableName() string { return "users" }
