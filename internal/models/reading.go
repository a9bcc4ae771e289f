package models

import "time"

// MeterReading 电表读数记录
// UsageKwh / TotalCost 在创建或更新时快照，之后修改电价方案不会回溯
type MeterReading struct {
	ID              int64            `json:"id" db:"id"`
	UserID          int64            `json:"user_id" db:"user_id"`
	ReadingDate     time.Time        `json:"reading_date" db:"reading_date"`
	MeterValue      float64          `json:"meter_value" db:"meter_value"`
	PreviousReading float64          `json:"previous_reading" db:"previous_reading"`
	UsageKwh        float64          `json:"usage_kwh" db:"usage_kwh"`
	TotalCost       float64          `json:"total_cost" db:"total_cost"`
	Notes           *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
	BillingDetails  []*BillingDetail `json:"billing_details,omitempty" db:"-"`
}

// BillingDetail 单个阶梯的计费明细
type BillingDetail struct {
	ID             int64     `json:"id" db:"id"`
	MeterReadingID int64     `json:"meter_reading_id" db:"meter_reading_id"`
	BlockNumber    int       `json:"block_number" db:"block_number"`
	KwhUsed        float64   `json:"kwh_used" db:"kwh_used"`
	RatePerKwh     float64   `json:"rate_per_kwh" db:"rate_per_kwh"`
	Subtotal       float64   `json:"subtotal" db:"subtotal"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
