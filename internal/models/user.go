package models

import "time"

// 用户角色
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User 用户
type User struct {
	ID            int64      `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	FullName      string     `json:"full_name" db:"full_name"`
	Phone         *string    `json:"phone,omitempty" db:"phone"`
	AvatarURL     *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Role          string     `json:"role" db:"role"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	LastLogin     *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// UserPreferences 用户偏好设置
type UserPreferences struct {
	ID                   int64     `json:"id" db:"id"`
	UserID               int64     `json:"user_id" db:"user_id"`
	Theme                string    `json:"theme" db:"theme"`
	Language             string    `json:"language" db:"language"`
	Currency             string    `json:"currency" db:"currency"`
	Timezone             string    `json:"timezone" db:"timezone"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	EmailNotifications   bool      `json:"email_notifications" db:"email_notifications"`
	PushNotifications    bool      `json:"push_notifications" db:"push_notifications"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultPreferences 新用户的默认偏好
func DefaultPreferences(userID int64) *UserPreferences {
	return &UserPreferences{
		UserID:               userID,
		Theme:                "system",
		Language:             "id",
		Currency:             "IDR",
		Timezone:             "Asia/Jakarta",
		NotificationsEnabled: true,
		EmailNotifications:   true,
		PushNotifications:    true,
	}
}
