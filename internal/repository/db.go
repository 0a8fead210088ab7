package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool 连接池需要的方法，*pgxpool.Pool 和 pgxmock 都满足
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB 数据库连接池封装
type DB struct {
	Pool Pool
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
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// NewWithPool 使用已有连接池
func NewWithPool(pool Pool) *DB {
	return &DB{Pool: pool}
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping 检查数据库连接
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateVehiclePrices,
		migrationIndexVehiclePrices,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateVehiclePrices = `
CREATE TABLE IF NOT EXISTS vehicle_prices (
    id BIGSERIAL PRIMARY KEY,
    yielding_date DATE NOT NULL,
    car_group VARCHAR(50) NOT NULL,
    type VARCHAR(10) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    yield VARCHAR(50) NOT NULL,
    yield_code VARCHAR(50) NOT NULL,
    price NUMERIC(10,4),
    pool VARCHAR(50) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// 删除按 car_group + 日期精确匹配，查询按 pool + 定价日期
const migrationIndexVehiclePrices = `
CREATE INDEX IF NOT EXISTS idx_vehicle_prices_match ON vehicle_prices(car_group, type, start_date, end_date);
CREATE INDEX IF NOT EXISTS idx_vehicle_prices_pool_yielding ON vehicle_prices(pool, yielding_date);
`
