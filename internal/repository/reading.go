package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/meterbook/internal/models"
)

const readingColumns = `id, user_id, reading_date, meter_value, previous_reading, usage_kwh, total_cost, notes, created_at, updated_at`

// ReadingRepository 电表读数仓库
type ReadingRepository struct {
	db *DB
}

// NewReadingRepository 创建读数仓库
func NewReadingRepository(db *DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

func scanReading(row pgx.Row) (*models.MeterReading, error) {
	m := &models.MeterReading{}
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.ReadingDate,
		&m.MeterValue,
		&m.PreviousReading,
		&m.UsageKwh,
		&m.TotalCost,
		&m.Notes,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// insertDetails 写入计费明细
func insertDetails(ctx context.Context, tx pgx.Tx, readingID int64, details []*models.BillingDetail, now time.Time) error {
	query := `
		INSERT INTO billing_details (meter_reading_id, block_number, kwh_used, rate_per_kwh, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for _, d := range details {
		d.MeterReadingID = readingID
		d.CreatedAt = now
		err := tx.QueryRow(ctx, query,
			readingID,
			d.BlockNumber,
			d.KwhUsed,
			d.RatePerKwh,
			d.Subtotal,
			now,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert billing detail: %w", err)
		}
	}
	return nil
}

// Create 在同一事务中写入读数与计费明细
func (r *ReadingRepository) Create(ctx context.Context, m *models.MeterReading) error {
	now := time.Now()
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO meter_readings (user_id, reading_date, meter_value, previous_reading, usage_kwh, total_cost, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			m.UserID,
			m.ReadingDate,
			m.MeterValue,
			m.PreviousReading,
			m.UsageKwh,
			m.TotalCost,
			m.Notes,
			now,
			now,
		).Scan(&m.ID)
		if err != nil {
			return err
		}
		return insertDetails(ctx, tx, m.ID, m.BillingDetails, now)
	})
	if err != nil {
		return fmt.Errorf("insert meter reading: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// Update 更新读数并整体替换计费明细
func (r *ReadingRepository) Update(ctx context.Context, m *models.MeterReading) error {
	m.UpdatedAt = time.Now()
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE meter_readings SET
				reading_date = $1,
				meter_value = $2,
				previous_reading = $3,
				usage_kwh = $4,
				total_cost = $5,
				notes = $6,
				updated_at = $7
			WHERE id = $8 AND user_id = $9
			RETURNING created_at
		`
		err := tx.QueryRow(ctx, query,
			m.ReadingDate,
			m.MeterValue,
			m.PreviousReading,
			m.UsageKwh,
			m.TotalCost,
			m.Notes,
			m.UpdatedAt,
			m.ID,
			m.UserID,
		).Scan(&m.CreatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM billing_details WHERE meter_reading_id = $1`, m.ID); err != nil {
			return fmt.Errorf("delete billing details: %w", err)
		}
		return insertDetails(ctx, tx, m.ID, m.BillingDetails, m.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("update meter reading: %w", notFound(err))
	}
	return nil
}

// Delete 删除读数及其计费明细
func (r *ReadingRepository) Delete(ctx context.Context, userID, id int64) error {
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM billing_details
			WHERE meter_reading_id IN (SELECT id FROM meter_readings WHERE id = $1 AND user_id = $2)
		`, id, userID); err != nil {
			return fmt.Errorf("delete billing details: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM meter_readings WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete meter reading: %w", err)
	}
	return nil
}

// GetByID 获取读数（含按阶梯排序的计费明细）
func (r *ReadingRepository) GetByID(ctx context.Context, userID, id int64) (*models.MeterReading, error) {
	query := `SELECT ` + readingColumns + ` FROM meter_readings WHERE id = $1 AND user_id = $2`
	m, err := scanReading(r.db.Pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		return nil, fmt.Errorf("get meter reading: %w", notFound(err))
	}

	details, err := r.ListDetails(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	m.BillingDetails = details
	return m, nil
}

// ListDetails 获取读数的计费明细
func (r *ReadingRepository) ListDetails(ctx context.Context, readingID int64) ([]*models.BillingDetail, error) {
	query := `
		SELECT id, meter_reading_id, block_number, kwh_used, rate_per_kwh, subtotal, created_at
		FROM billing_details WHERE meter_reading_id = $1 ORDER BY block_number
	`
	rows, err := r.db.Pool.Query(ctx, query, readingID)
	if err != nil {
		return nil, fmt.Errorf("list billing details: %w", err)
	}
	defer rows.Close()

	var details []*models.BillingDetail
	for rows.Next() {
		d := &models.BillingDetail{}
		if err := rows.Scan(
			&d.ID,
			&d.MeterReadingID,
			&d.BlockNumber,
			&d.KwhUsed,
			&d.RatePerKwh,
			&d.Subtotal,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan billing detail: %w", err)
		}
		details = append(details, d)
	}

	return details, rows.Err()
}

// List 获取用户读数列表（最新在前）
func (r *ReadingRepository) List(ctx context.Context, userID int64, limit, offset int) ([]*models.MeterReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM meter_readings WHERE user_id = $1
		ORDER BY reading_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list meter readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.MeterReading
	for rows.Next() {
		m, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meter reading: %w", err)
		}
		readings = append(readings, m)
	}

	return readings, rows.Err()
}

// Count 统计用户读数数量
func (r *ReadingRepository) Count(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM meter_readings WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count meter readings: %w", err)
	}
	return count, nil
}

// Latest 获取用户最近一次读数
func (r *ReadingRepository) Latest(ctx context.Context, userID int64) (*models.MeterReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM meter_readings WHERE user_id = $1
		ORDER BY reading_date DESC, created_at DESC LIMIT 1`
	m, err := scanReading(r.db.Pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("get latest meter reading: %w", notFound(err))
	}
	return m, nil
}

// PreviousBefore 获取指定日期之前的最近读数（排除正在编辑的记录）
func (r *ReadingRepository) PreviousBefore(ctx context.Context, userID, excludeID int64, before time.Time) (*models.MeterReading, error) {
	query := `SELECT ` + readingColumns + `
		FROM meter_readings
		WHERE user_id = $1 AND id <> $2 AND reading_date < $3
		ORDER BY reading_date DESC, created_at DESC LIMIT 1`
	m, err := scanReading(r.db.Pool.QueryRow(ctx, query, userID, excludeID, before))
	if err != nil {
		return nil, fmt.Errorf("get previous meter reading: %w", notFound(err))
	}
	return m, nil
}

// SumBetween 汇总 [from, to) 区间内的用电量与费用
func (r *ReadingRepository) SumBetween(ctx context.Context, userID int64, from, to time.Time) (usage, cost float64, err error) {
	query := `
		SELECT COALESCE(SUM(usage_kwh), 0), COALESCE(SUM(total_cost), 0)
		FROM meter_readings
		WHERE user_id = $1 AND reading_date >= $2 AND reading_date < $3
	`
	if err := r.db.Pool.QueryRow(ctx, query, userID, from, to).Scan(&usage, &cost); err != nil {
		return 0, 0, fmt.Errorf("sum meter readings: %w", err)
	}
	return usage, cost, nil
}
