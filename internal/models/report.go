package models

import "time"

// UsagePeriod 按周期聚合的用电数据
type UsagePeriod struct {
	Period       string  `json:"period"`
	TotalUsage   float64 `json:"total_usage"`
	TotalCost    float64 `json:"total_cost"`
	ReadingCount int64   `json:"reading_count"`
	AvgUsage     float64 `json:"avg_usage"`
	MinUsage     float64 `json:"min_usage"`
	MaxUsage     float64 `json:"max_usage"`
}

// UsageStatistics 全部历史统计
type UsageStatistics struct {
	TotalReadings     int64      `json:"total_readings"`
	TotalUsageAllTime float64    `json:"total_usage_all_time"`
	TotalCostAllTime  float64    `json:"total_cost_all_time"`
	AvgUsageAllTime   float64    `json:"avg_usage_all_time"`
	MinUsageAllTime   float64    `json:"min_usage_all_time"`
	MaxUsageAllTime   float64    `json:"max_usage_all_time"`
	FirstReadingDate  *time.Time `json:"first_reading_date"`
	LastReadingDate   *time.Time `json:"last_reading_date"`
}

// Trend 环比趋势
type Trend struct {
	Current    float64 `json:"current"`
	Previous   float64 `json:"previous"`
	Change     float64 `json:"change"`
	ChangeType string  `json:"changeType"`
}

// Trends 用电量与费用趋势
type Trends struct {
	Usage Trend `json:"usage"`
	Cost  Trend `json:"cost"`
}

// Report 用电报告
type Report struct {
	Period         string          `json:"period"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	UsageData      []*UsagePeriod  `json:"usageData"`
	RecentReadings []*MeterReading `json:"recentReadings"`
	Statistics     UsageStatistics `json:"statistics"`
	Trends         Trends          `json:"trends"`
}
