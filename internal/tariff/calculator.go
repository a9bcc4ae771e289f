package tariff

import (
	"errors"
	"fmt"

	"github.com/langchou/meterbook/internal/models"
)

// ErrUnpricedUsage 用电量超出所有启用阶梯的总容量（仅严格模式返回）
var ErrUnpricedUsage = errors.New("usage exceeds total block capacity")

// LineItem 单个阶梯的计费结果
type LineItem struct {
	Block    int     `json:"block"`
	Kwh      float64 `json:"kwh"`
	Rate     float64 `json:"rate"`
	Subtotal float64 `json:"subtotal"`
}

// Result 计费结果
type Result struct {
	TotalCost float64    `json:"total_cost"`
	Breakdown []LineItem `json:"breakdown"`
	VatAmount float64    `json:"vat_amount"`
	Unpriced  float64    `json:"unpriced_kwh"` // 超出三个阶梯容量、未计价的用电量
}

// DefaultVatPercentage 未填写税率时使用的默认值
const DefaultVatPercentage = 10.0

// Compute 按阶梯顺序分配用电量并计算总费用
// 调用方负责保证 usageKwh >= 0；超出所有阶梯容量的部分不计费
func Compute(usageKwh float64, s models.TariffSchedule) Result {
	res := Result{Breakdown: []LineItem{}}
	remaining := usageKwh
	total := 0.0

	for _, b := range s.Blocks() {
		// limit 为 0 的阶梯视为停用，直接跳过；NaN 不参与分配
		if !(remaining > 0) || !(b.LimitKwh > 0) {
			continue
		}
		used := min(remaining, b.LimitKwh)
		subtotal := used * b.Rate
		res.Breakdown = append(res.Breakdown, LineItem{
			Block:    b.Number,
			Kwh:      used,
			Rate:     b.Rate,
			Subtotal: subtotal,
		})
		total += subtotal
		remaining -= used
	}

	if remaining > 0 {
		res.Unpriced = remaining
	}

	total += s.AdminFee
	res.VatAmount = total * s.VatPercentage / 100
	total += res.VatAmount
	res.TotalCost = total

	return res
}

// ComputeStrict 与 Compute 相同，但存在未计价用电量时返回 ErrUnpricedUsage
func ComputeStrict(usageKwh float64, s models.TariffSchedule) (Result, error) {
	res := Compute(usageKwh, s)
	if res.Unpriced > 0 {
		return res, fmt.Errorf("%w: %.2f kWh above capacity of %.2f kWh", ErrUnpricedUsage, res.Unpriced, Capacity(s))
	}
	return res, nil
}

// Capacity 所有启用阶梯的总容量
func Capacity(s models.TariffSchedule) float64 {
	var c float64
	for _, b := range s.Blocks() {
		if b.LimitKwh > 0 {
			c += b.LimitKwh
		}
	}
	return c
}

// DefaultSchedule PLN R1/TR 900 VA 默认电价
func DefaultSchedule() models.TariffSchedule {
	return models.TariffSchedule{
		TariffName:     "Tarif PLN R1/TR 900 VA",
		FirstBlockKwh:  900,
		FirstBlockRate: 1352,
		VatPercentage:  DefaultVatPercentage,
		IsActive:       true,
	}
}
