package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/meterbook/internal/models"
)

const tariffColumns = `id, tariff_name, base_tariff, first_block_kwh, first_block_rate, second_block_kwh, second_block_rate,
	third_block_kwh, third_block_rate, admin_fee, vat_percentage, is_active, created_at, updated_at`

// TariffRepository 电价方案仓库
type TariffRepository struct {
	db *DB
}

// NewTariffRepository 创建电价方案仓库
func NewTariffRepository(db *DB) *TariffRepository {
	return &TariffRepository{db: db}
}

func scanTariff(row pgx.Row) (*models.TariffSchedule, error) {
	s := &models.TariffSchedule{}
	err := row.Scan(
		&s.ID,
		&s.TariffName,
		&s.BaseTariff,
		&s.FirstBlockKwh,
		&s.FirstBlockRate,
		&s.SecondBlockKwh,
		&s.SecondBlockRate,
		&s.ThirdBlockKwh,
		&s.ThirdBlockRate,
		&s.AdminFee,
		&s.VatPercentage,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List 获取所有电价方案（启用的排在最前）
func (r *TariffRepository) List(ctx context.Context) ([]*models.TariffSchedule, error) {
	query := `SELECT ` + tariffColumns + ` FROM electricity_settings ORDER BY is_active DESC, created_at DESC`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	defer rows.Close()

	var schedules []*models.TariffSchedule
	for rows.Next() {
		s, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tariff: %w", err)
		}
		schedules = append(schedules, s)
	}

	return schedules, rows.Err()
}

// GetByID 通过 ID 获取电价方案
func (r *TariffRepository) GetByID(ctx context.Context, id int64) (*models.TariffSchedule, error) {
	query := `SELECT ` + tariffColumns + ` FROM electricity_settings WHERE id = $1`
	s, err := scanTariff(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", notFound(err))
	}
	return s, nil
}

// GetActive 获取当前启用的电价方案
func (r *TariffRepository) GetActive(ctx context.Context) (*models.TariffSchedule, error) {
	query := `SELECT ` + tariffColumns + ` FROM electricity_settings WHERE is_active = true LIMIT 1`
	s, err := scanTariff(r.db.Pool.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("get active tariff: %w", notFound(err))
	}
	return s, nil
}

// Count 统计电价方案数量
func (r *TariffRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM electricity_settings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tariffs: %w", err)
	}
	return count, nil
}

// Create 创建电价方案；若为启用状态，在同一事务中停用其他方案
func (r *TariffRepository) Create(ctx context.Context, s *models.TariffSchedule) error {
	now := time.Now()
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if s.IsActive {
			if _, err := tx.Exec(ctx, `UPDATE electricity_settings SET is_active = false, updated_at = $1 WHERE is_active`, now); err != nil {
				return fmt.Errorf("deactivate tariffs: %w", err)
			}
		}

		query := `
			INSERT INTO electricity_settings
			(tariff_name, base_tariff, first_block_kwh, first_block_rate, second_block_kwh, second_block_rate,
			 third_block_kwh, third_block_rate, admin_fee, vat_percentage, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`
		return tx.QueryRow(ctx, query,
			s.TariffName,
			s.BaseTariff,
			s.FirstBlockKwh,
			s.FirstBlockRate,
			s.SecondBlockKwh,
			s.SecondBlockRate,
			s.ThirdBlockKwh,
			s.ThirdBlockRate,
			s.AdminFee,
			s.VatPercentage,
			s.IsActive,
			now,
			now,
		).Scan(&s.ID)
	})
	if err != nil {
		return fmt.Errorf("insert tariff: %w", err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// Update 更新电价方案；若为启用状态，在同一事务中停用其他方案
func (r *TariffRepository) Update(ctx context.Context, s *models.TariffSchedule) error {
	s.UpdatedAt = time.Now()
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if s.IsActive {
			if _, err := tx.Exec(ctx, `UPDATE electricity_settings SET is_active = false, updated_at = $2 WHERE id <> $1 AND is_active`, s.ID, s.UpdatedAt); err != nil {
				return fmt.Errorf("deactivate tariffs: %w", err)
			}
		}

		query := `
			UPDATE electricity_settings SET
				tariff_name = $1, base_tariff = $2, first_block_kwh = $3, first_block_rate = $4,
				second_block_kwh = $5, second_block_rate = $6, third_block_kwh = $7, third_block_rate = $8,
				admin_fee = $9, vat_percentage = $10, is_active = $11, updated_at = $12
			WHERE id = $13
			RETURNING created_at
		`
		return tx.QueryRow(ctx, query,
			s.TariffName,
			s.BaseTariff,
			s.FirstBlockKwh,
			s.FirstBlockRate,
			s.SecondBlockKwh,
			s.SecondBlockRate,
			s.ThirdBlockKwh,
			s.ThirdBlockRate,
			s.AdminFee,
			s.VatPercentage,
			s.IsActive,
			s.UpdatedAt,
			s.ID,
		).Scan(&s.CreatedAt)
	})
	if err != nil {
		return fmt.Errorf("update tariff: %w", notFound(err))
	}
	return nil
}

// Delete 删除电价方案
func (r *TariffRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM electricity_settings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tariff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete tariff: %w", ErrNotFound)
	}
	return nil
}
