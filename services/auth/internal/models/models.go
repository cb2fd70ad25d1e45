package models

import "time"

const PurposeLogin = "login"

type User struct {
	ID               uint       `gorm:"primaryKey;autoIncrement"  json:"id"`
	Email            string     `gorm:"uniqueIndex;not null"      json:"email"`
	Name             string     `gorm:"not null"                  json:"name"`
	PasswordHash     string     `gorm:"column:hashed_password;not null" json:"-"`
	IsActive         bool       `gorm:"not null;default:true"     json:"is_active"`
	TwoFactorEnabled bool       `gorm:"not null;default:true"     json:"two_factor_enabled"`
	LastLoginAt      *time.Time `                                 json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null"                  json:"created_at"`

	Roles []Role `gorm:"many2many:user_roles;" json:"-"`
}

type Role struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"name"`
	Code        string `gorm:"uniqueIndex;not null"     json:"code"`
	Description string `                                json:"description,omitempty"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
}

type Permission struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string `gorm:"uniqueIndex;not null"     json:"code"`
	Module      string `gorm:"not null"                 json:"module"`
	Action      string `gorm:"not null"                 json:"action"`
	Description string `                                json:"description,omitempty"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	UserID    uint      `gorm:"index;not null"        json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null"  json:"-"`
	CreatedAt time.Time `gorm:"not null"              json:"created_at"`
	ExpiresAt time.Time `gorm:"not null"              json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false" json:"revoked"`
}

// TwoFactorCode is one emailed OTP challenge. Code holds the sha256 of the digits.
type TwoFactorCode struct {
	ID         uint       `gorm:"primaryKey"                json:"id"`
	UserID     uint       `gorm:"index;not null"            json:"user_id"`
	Code       string     `gorm:"size:64;not null"          json:"-"`
	Purpose    string     `gorm:"not null;default:login"    json:"purpose"`
	SentTo     string     `gorm:"not null"                  json:"sent_to"`
	CreatedAt  time.Time  `gorm:"not null"                  json:"created_at"`
	ExpiresAt  time.Time  `gorm:"not null"                  json:"expires_at"`
	ConsumedAt *time.Time `                                 json:"consumed_at,omitempty"`
}

func (TwoFactorCode) TableName() string {
	return "two_factor_codes"
}

func (c *TwoFactorCode) Usable(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}

func All() []any {
	return []any{&User{}, &Role{}, &Permission{}, &RefreshToken{}, &TwoFactorCode{}}
}
