package models

import "time"

// VehiclePrice 本地保存的已发布价格
type VehiclePrice struct {
	ID           int64     `json:"id" db:"id"`
	YieldingDate time.Time `json:"yielding_date" db:"yielding_date"` // 定价日期
	CarGroup     string    `json:"car_group" db:"car_group"`
	Type         string    `json:"type" db:"type"` // UDA / PEAK
	StartDate    time.Time `json:"start_date" db:"start_date"`
	EndDate      time.Time `json:"end_date" db:"end_date"`
	Yield        string    `json:"yield" db:"yield"`
	YieldCode    string    `json:"yield_code" db:"yield_code"` // P<n> / I<n>
	Price        *float64  `json:"price,omitempty" db:"price"`
	Pool         string    `json:"pool" db:"pool"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// PriceMatch 删除时的精确匹配条件
//
// Yield / YieldCode 为 nil 时不会匹配任何记录。
type PriceMatch struct {
	CarGroup     string
	Type         string
	StartDate    time.Time
	EndDate      time.Time
	Pool         string
	YieldingDate time.Time
	Yield        *string
	YieldCode    *string
}

// PriceFilter 查询条件，零值表示不过滤
type PriceFilter struct {
	Pool         string
	YieldingDate *time.Time
	Limit        int
}
