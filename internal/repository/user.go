package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/langchou/meterbook/internal/models"
)

// ErrDuplicate 违反唯一约束
var ErrDuplicate = errors.New("record already exists")

const userColumns = `id, email, password_hash, full_name, phone, avatar_url, role, is_active, email_verified, last_login, created_at, updated_at`

// UserRepository 用户仓库
type UserRepository struct {
	db *DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Phone,
		&u.AvatarURL,
		&u.Role,
		&u.IsActive,
		&u.EmailVerified,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// isUniqueViolation 判断是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create 在同一事务中创建用户及其偏好设置
func (r *UserRepository) Create(ctx context.Context, u *models.User, prefs *models.UserPreferences) error {
	now := time.Now()
	u.Email = strings.ToLower(u.Email)
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO users (email, password_hash, full_name, phone, role, is_active, email_verified, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			u.Email,
			u.PasswordHash,
			u.FullName,
			u.Phone,
			u.Role,
			u.IsActive,
			u.EmailVerified,
			now,
			now,
		).Scan(&u.ID)
		if err != nil {
			return err
		}
		if prefs == nil {
			return nil
		}

		prefs.UserID = u.ID
		return insertPreferences(ctx, tx, prefs, now)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID 通过 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", notFound(err))
	}
	return u, nil
}

// GetByEmail 通过邮箱获取用户（不区分大小写）
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.Pool.QueryRow(ctx, query, strings.ToLower(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", notFound(err))
	}
	return u, nil
}

// UpdateProfile 更新用户资料
func (r *UserRepository) UpdateProfile(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	query := `
		UPDATE users SET full_name = $1, phone = $2, avatar_url = $3, updated_at = $4
		WHERE id = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query, u.FullName, u.Phone, u.AvatarURL, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user profile: %w", ErrNotFound)
	}
	return nil
}

// UpdatePassword 更新密码哈希
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user password: %w", ErrNotFound)
	}
	return nil
}

// TouchLastLogin 记录最近登录时间
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if _, err := r.db.Pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func insertPreferences(ctx context.Context, tx pgx.Tx, p *models.UserPreferences, now time.Time) error {
	query := `
		INSERT INTO user_preferences
		(user_id, theme, language, currency, timezone, notifications_enabled, email_notifications, push_notifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		p.UserID,
		p.Theme,
		p.Language,
		p.Currency,
		p.Timezone,
		p.NotificationsEnabled,
		p.EmailNotifications,
		p.PushNotifications,
		now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert user preferences: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPreferences 获取用户偏好
func (r *UserRepository) GetPreferences(ctx context.Context, userID int64) (*models.UserPreferences, error) {
	query := `
		SELECT id, user_id, theme, language, currency, timezone, notifications_enabled, email_notifications,
			push_notifications, created_at, updated_at
		FROM user_preferences WHERE user_id = $1
	`
	p := &models.UserPreferences{}
	err := r.db.Pool.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.UserID,
		&p.Theme,
		&p.Language,
		&p.Currency,
		&p.Timezone,
		&p.NotificationsEnabled,
		&p.EmailNotifications,
		&p.PushNotifications,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user preferences: %w", notFound(err))
	}
	return p, nil
}

// CreatePreferences 创建用户偏好
func (r *UserRepository) CreatePreferences(ctx context.Context, p *models.UserPreferences) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		return insertPreferences(ctx, tx, p, time.Now())
	})
}

// UpdatePreferences 更新用户偏好
func (r *UserRepository) UpdatePreferences(ctx context.Context, p *models.UserPreferences) error {
	p.UpdatedAt = time.Now()
	query := `
		UPDATE user_preferences SET
			theme = $1,
			language = $2,
			currency = $3,
			timezone = $4,
			notifications_enabled = $5,
			email_notifications = $6,
			push_notifications = $7,
			updated_at = $8
		WHERE user_id = $9
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		p.Theme,
		p.Language,
		p.Currency,
		p.Timezone,
		p.NotificationsEnabled,
		p.EmailNotifications,
		p.PushNotifications,
		p.UpdatedAt,
		p.UserID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("update user preferences: %w", notFound(err))
	}
	return nil
}
