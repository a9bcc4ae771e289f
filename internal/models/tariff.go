package models

import "time"

// TariffSchedule 电价方案（三段阶梯 + 管理费 + 增值税）
type TariffSchedule struct {
	ID              int64     `json:"id" db:"id" yaml:"id,omitempty" toml:"id,omitempty"`
	TariffName      string    `json:"tariff_name" db:"tariff_name" yaml:"tariff_name" toml:"tariff_name"`
	BaseTariff      float64   `json:"base_tariff" db:"base_tariff" yaml:"base_tariff" toml:"base_tariff"` // 历史字段，不参与计算
	FirstBlockKwh   float64   `json:"first_block_kwh" db:"first_block_kwh" yaml:"first_block_kwh" toml:"first_block_kwh"`
	FirstBlockRate  float64   `json:"first_block_rate" db:"first_block_rate" yaml:"first_block_rate" toml:"first_block_rate"`
	SecondBlockKwh  float64   `json:"second_block_kwh" db:"second_block_kwh" yaml:"second_block_kwh" toml:"second_block_kwh"`
	SecondBlockRate float64   `json:"second_block_rate" db:"second_block_rate" yaml:"second_block_rate" toml:"second_block_rate"`
	ThirdBlockKwh   float64   `json:"third_block_kwh" db:"third_block_kwh" yaml:"third_block_kwh" toml:"third_block_kwh"`
	ThirdBlockRate  float64   `json:"third_block_rate" db:"third_block_rate" yaml:"third_block_rate" toml:"third_block_rate"`
	AdminFee        float64   `json:"admin_fee" db:"admin_fee" yaml:"admin_fee" toml:"admin_fee"`
	VatPercentage   float64   `json:"vat_percentage" db:"vat_percentage" yaml:"vat_percentage" toml:"vat_percentage"` // 10 表示 10%
	IsActive        bool      `json:"is_active" db:"is_active" yaml:"is_active" toml:"is_active"`
	CreatedAt       time.Time `json:"created_at" db:"created_at" yaml:"-" toml:"-"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at" yaml:"-" toml:"-"`
}

// Block 阶梯定义
type Block struct {
	Number   int
	LimitKwh float64 // 0 表示该阶梯停用
	Rate     float64
}

// Blocks 按顺序返回三个阶梯
func (s TariffSchedule) Blocks() [3]Block {
	return [3]Block{
		{Number: 1, LimitKwh: s.FirstBlockKwh, Rate: s.FirstBlockRate},
		{Number: 2, LimitKwh: s.SecondBlockKwh, Rate: s.SecondBlockRate},
		{Number: 3, LimitKwh: s.ThirdBlockKwh, Rate: s.ThirdBlockRate},
	}
}
