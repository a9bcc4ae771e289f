package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping 健康检查
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InTx 在事务中执行 fn，出错时回滚
func (db *DB) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, db.Pool, fn)
}

// notFound 将 pgx.ErrNoRows 转换为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateUsers,
		migrationCreateUserPreferences,
		migrationCreateElectricitySettings,
		migrationCreateMeterReadings,
		migrationCreateBillingDetails,
		migrationCreateBudgetPlans,
		migrationCreateBudgetTracking,
		migrationCreateBudgetAlerts,
		migrationSingleActiveTariff,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateUsers = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    full_name VARCHAR(255) NOT NULL,
    phone VARCHAR(32),
    avatar_url TEXT,
    role VARCHAR(16) NOT NULL DEFAULT 'user',
    is_active BOOLEAN NOT NULL DEFAULT true,
    email_verified BOOLEAN NOT NULL DEFAULT false,
    email_verification_token VARCHAR(64),
    last_login TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateUserPreferences = `
CREATE TABLE IF NOT EXISTS user_preferences (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    theme VARCHAR(16) NOT NULL DEFAULT 'system',
    language VARCHAR(8) NOT NULL DEFAULT 'id',
    currency VARCHAR(8) NOT NULL DEFAULT 'IDR',
    timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Jakarta',
    notifications_enabled BOOLEAN NOT NULL DEFAULT true,
    email_notifications BOOLEAN NOT NULL DEFAULT true,
    push_notifications BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateElectricitySettings = `
CREATE TABLE IF NOT EXISTS electricity_settings (
    id BIGSERIAL PRIMARY KEY,
    tariff_name VARCHAR(255) NOT NULL,
    base_tariff DOUBLE PRECISION NOT NULL DEFAULT 0,
    first_block_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
    first_block_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    second_block_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
    second_block_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    third_block_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
    third_block_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    admin_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
    vat_percentage DOUBLE PRECISION NOT NULL DEFAULT 10,
    is_active BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

const migrationCreateMeterReadings = `
CREATE TABLE IF NOT EXISTS meter_readings (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    reading_date DATE NOT NULL,
    meter_value DOUBLE PRECISION NOT NULL,
    previous_reading DOUBLE PRECISION NOT NULL DEFAULT 0,
    usage_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_meter_readings_user_date ON meter_readings(user_id, reading_date);
`

const migrationCreateBillingDetails = `
CREATE TABLE IF NOT EXISTS billing_details (
    id BIGSERIAL PRIMARY KEY,
    meter_reading_id BIGINT NOT NULL REFERENCES meter_readings(id) ON DELETE CASCADE,
    block_number SMALLINT NOT NULL CHECK (block_number BETWEEN 1 AND 3),
    kwh_used DOUBLE PRECISION NOT NULL,
    rate_per_kwh DOUBLE PRECISION NOT NULL,
    subtotal DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_billing_details_reading_id ON billing_details(meter_reading_id);
`

const migrationCreateBudgetPlans = `
CREATE TABLE IF NOT EXISTS budget_plans (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name VARCHAR(255) NOT NULL,
    monthly_budget DOUBLE PRECISION NOT NULL,
    target_usage_kwh DOUBLE PRECISION NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE,
    is_active BOOLEAN NOT NULL DEFAULT true,
    description TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_budget_plans_user_id ON budget_plans(user_id);
`

const migrationCreateBudgetTracking = `
CREATE TABLE IF NOT EXISTS budget_tracking (
    id BIGSERIAL PRIMARY KEY,
    budget_plan_id BIGINT NOT NULL REFERENCES budget_plans(id) ON DELETE CASCADE,
    month_year CHAR(7) NOT NULL,
    actual_usage_kwh DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    budget_remaining DOUBLE PRECISION NOT NULL DEFAULT 0,
    usage_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    cost_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
    status VARCHAR(16) NOT NULL DEFAULT 'on_track',
    notes TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE (budget_plan_id, month_year)
);
`

const migrationCreateBudgetAlerts = `
CREATE TABLE IF NOT EXISTS budget_alerts (
    id BIGSERIAL PRIMARY KEY,
    budget_plan_id BIGINT NOT NULL REFERENCES budget_plans(id) ON DELETE CASCADE,
    alert_type VARCHAR(32) NOT NULL,
    threshold_percentage DOUBLE PRECISION NOT NULL,
    is_enabled BOOLEAN NOT NULL DEFAULT true,
    message TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_budget_alerts_plan_id ON budget_alerts(budget_plan_id);
`

// 数据库层面保证最多只有一个启用的电价方案
const migrationSingleActiveTariff = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_electricity_settings_single_active
    ON electricity_settings ((is_active)) WHERE is_active;
`
