package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/langchou/price-updater/internal/models"
)

// DefaultListLimit List 默认条数
const DefaultListLimit = 1000

// PriceRepository 本地价格数据仓库
type PriceRepository struct {
	db *DB
}

// NewPriceRepository 创建价格仓库
func NewPriceRepository(db *DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Create 保存价格记录
func (r *PriceRepository) Create(ctx context.Context, price *models.VehiclePrice) error {
	query := `
		INSERT INTO vehicle_prices (yielding_date, car_group, type, start_date, end_date, yield, yield_code, price, pool, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		price.YieldingDate,
		price.CarGroup,
		price.Type,
		price.StartDate,
		price.EndDate,
		price.Yield,
		price.YieldCode,
		price.Price,
		price.Pool,
		now,
		now,
	).Scan(&price.ID)

	if err != nil {
		return fmt.Errorf("insert vehicle price: %w", err)
	}

	price.CreatedAt = now
	price.UpdatedAt = now
	return nil
}

// DeleteMatching 删除所有精确匹配的记录，返回删除条数
func (r *PriceRepository) DeleteMatching(ctx context.Context, m models.PriceMatch) (int64, error) {
	query := `
		DELETE FROM vehicle_prices
		WHERE car_group = $1
		  AND type = $2
		  AND start_date = $3
		  AND end_date = $4
		  AND pool = $5
		  AND yielding_date = $6
		  AND yield = $7
		  AND yield_code = $8
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		m.CarGroup,
		m.Type,
		m.StartDate,
		m.EndDate,
		m.Pool,
		m.YieldingDate,
		m.Yield,
		m.YieldCode,
	)
	if err != nil {
		return 0, fmt.Errorf("delete vehicle prices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List 按 pool / 定价日期查询价格记录
func (r *PriceRepository) List(ctx context.Context, filter models.PriceFilter) ([]*models.VehiclePrice, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Pool != "" {
		args = append(args, filter.Pool)
		conds = append(conds, fmt.Sprintf("pool = $%d", len(args)))
	}
	if filter.YieldingDate != nil {
		args = append(args, *filter.YieldingDate)
		conds = append(conds, fmt.Sprintf("yielding_date = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	query := `
		SELECT id, yielding_date, car_group, type, start_date, end_date, yield, yield_code, price, pool, created_at, updated_at
		FROM vehicle_prices
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY yielding_date DESC, car_group, start_date LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicle prices: %w", err)
	}
	defer rows.Close()

	var prices []*models.VehiclePrice
	for rows.Next() {
		p := &models.VehiclePrice{}
		if err := rows.Scan(
			&p.ID,
			&p.YieldingDate,
			&p.CarGroup,
			&p.Type,
			&p.StartDate,
			&p.EndDate,
			&p.Yield,
			&p.YieldCode,
			&p.Price,
			&p.Pool,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan vehicle price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicle prices: %w", err)
	}

	return prices, nil
}
