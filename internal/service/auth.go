package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/meterbook/internal/auth"
	"github.com/langchou/meterbook/internal/models"
	"github.com/langchou/meterbook/internal/repository"
)

// RegisterInput 注册请求
type RegisterInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
}

// LoginInput 登录请求
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput 资料更新请求
type ProfileInput struct {
	FullName  string  `json:"full_name"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}

// ChangePasswordInput 修改密码请求
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PreferencesInput 偏好设置的部分更新
type PreferencesInput struct {
	Theme                *string `json:"theme"`
	Language             *string `json:"language"`
	Currency             *string `json:"currency"`
	Timezone             *string `json:"timezone"`
	NotificationsEnabled *bool   `json:"notifications_enabled"`
	EmailNotifications   *bool   `json:"email_notifications"`
	PushNotifications    *bool   `json:"push_notifications"`
}

// Session 登录会话
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService 认证与用户服务
type AuthService struct {
	logger   *zap.Logger
	users    UserStore
	tokens   *auth.TokenService
	attempts auth.AttemptStore
	now      func() time.Time
}

// NewAuthService 创建认证服务
func NewAuthService(logger *zap.Logger, users UserStore, tokens *auth.TokenService, attempts auth.AttemptStore) *AuthService {
	return &AuthService{
		logger:   logger,
		users:    users,
		tokens:   tokens,
		attempts: attempts,
		now:      time.Now,
	}
}

func (s *AuthService) issue(u *models.User) (*Session, error) {
	token, err := s.tokens.Generate(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: s.now().Add(s.tokens.TTL()), User: u}, nil
}

// Register 注册新用户并创建默认偏好
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	if email == "" || in.Password == "" || fullName == "" {
		return nil, invalid("email, password and full name are required")
	}
	if !auth.ValidEmail(email) {
		return nil, invalid("invalid email format")
	}
	if problems := auth.PasswordProblems(in.Password); len(problems) > 0 {
		return nil, invalid("password does not meet requirements", problems...)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Phone:        in.Phone,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u, models.DefaultPreferences(0)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", u.ID))
	return s.issue(u)
}

// Login 校验凭据并签发会话，失败次数受 AttemptStore 限制
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, invalid("email and password are required")
	}

	key := auth.AttemptKey(in.Email)
	if err := s.attempts.Check(ctx, key); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, in.Password) {
		if err := s.attempts.Record(ctx, key, false); err != nil {
			s.logger.Warn("Failed to record login attempt", zap.Error(err))
		}
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := s.attempts.Record(ctx, key, true); err != nil {
		s.logger.Warn("Failed to reset login attempts", zap.Error(err))
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	u.LastLogin = &now

	s.logger.Info("User logged in", zap.Int64("user_id", u.ID))
	return s.issue(u)
}

// Authenticate 校验会话令牌
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	return s.tokens.Verify(token)
}

// Profile 获取用户资料
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile 更新用户资料
func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, invalid("full name is required")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.FullName = fullName
	u.Phone = in.Phone
	u.AvatarURL = in.AvatarURL
	if err := s.users.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword 校验当前密码后修改密码
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return invalid("current and new password are required")
	}
	if problems := auth.PasswordProblems(in.NewPassword); len(problems) > 0 {
		return invalid("password does not meet requirements", problems...)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, in.CurrentPassword) {
		return invalid("current password is incorrect")
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("User changed password", zap.Int64("user_id", userID))
	return nil
}

// Preferences 获取偏好设置，不存在时创建默认值
func (s *AuthService) Preferences(ctx context.Context, userID int64) (*models.UserPreferences, error) {
	prefs, err := s.users.GetPreferences(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	prefs = models.DefaultPreferences(userID)
	if err := s.users.CreatePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdatePreferences 部分更新偏好设置
func (s *AuthService) UpdatePreferences(ctx context.Context, userID int64, in PreferencesInput) (*models.UserPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Theme != nil {
		switch *in.Theme {
		case "light", "dark", "system":
			prefs.Theme = *in.Theme
		default:
			return nil, invalid("theme must be one of light, dark, system")
		}
	}
	if in.Language != nil {
		prefs.Language = *in.Language
	}
	if in.Currency != nil {
		prefs.Currency = *in.Currency
	}
	if in.Timezone != nil {
		if _, err := time.LoadLocation(*in.Timezone); err != nil {
			return nil, invalid("unknown timezone")
		}
		prefs.Timezone = *in.Timezone
	}
	if in.NotificationsEnabled != nil {
		prefs.NotificationsEnabled = *in.NotificationsEnabled
	}
	if in.EmailNotifications != nil {
		prefs.EmailNotifications = *in.EmailNotifications
	}
	if in.PushNotifications != nil {
		prefs.PushNotifications = *in.PushNotifications
	}

	if err := s.users.UpdatePreferences(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}
