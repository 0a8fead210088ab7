package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/metrics"
	"github.com/langchou/price-updater/internal/models"
	"github.com/langchou/price-updater/internal/steering"
)

// PriceRepository 本地价格记录的存储
type PriceRepository interface {
	Create(ctx context.Context, price *models.VehiclePrice) error
	DeleteMatching(ctx context.Context, match models.PriceMatch) (int64, error)
	List(ctx context.Context, filter models.PriceFilter) ([]*models.VehiclePrice, error)
}

// StoreResult 批量保存结果
type StoreResult struct {
	StoredCount int      `json:"stored_count"`
	TotalCount  int      `json:"total_count"`
	Errors      []string `json:"errors"`
}

// DeleteResult 批量删除结果
type DeleteResult struct {
	DeletedCount int64    `json:"deleted_count"`
	TotalCount   int      `json:"total_count"`
	Errors       []string `json:"errors"`
}

// PriceStore 本地价格记录的保存与删除
//
// 每条记录单独处理，单条失败只记入 Errors，不中断整批，也不回滚已处理的记录。
type PriceStore struct {
	repo   PriceRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewPriceStore 创建价格存储服务
func NewPriceStore(repo PriceRepository, logger *zap.Logger) *PriceStore {
	return &PriceStore{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Store 保存发布成功的价格记录
func (s *PriceStore) Store(ctx context.Context, records []steering.PriceDataRecord) StoreResult {
	result := StoreResult{TotalCount: len(records), Errors: []string{}}

	for i, rec := range records {
		if field := rec.MissingField(); field != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Record %d: Missing required field '%s'", i, field))
			metrics.PriceRecords.WithLabelValues("store", "skipped").Inc()
			continue
		}

		price, err := toVehiclePrice(rec)
		if err == nil {
			err = s.repo.Create(ctx, price)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Record %d: %s", i, err.Error()))
			metrics.PriceRecords.WithLabelValues("store", "failed").Inc()
			s.logger.Error("Failed to store price record",
				zap.Int("record", i),
				zap.String("car_group", rec.CarGroup.String),
				zap.Error(err),
			)
			continue
		}

		result.StoredCount++
		metrics.PriceRecords.WithLabelValues("store", "stored").Inc()
	}

	if len(result.Errors) > 0 {
		s.logger.Warn("Some price records failed to store",
			zap.Int("stored_count", result.StoredCount),
			zap.Int("total_count", result.TotalCount),
			zap.Strings("errors", result.Errors),
		)
	}

	return result
}

func toVehiclePrice(rec steering.PriceDataRecord) (*models.VehiclePrice, error) {
	price, err := steering.NormalizePrice(rec.Price.String)
	if err != nil {
		return nil, err
	}
	yieldingDate, err := steering.ParseDay(rec.YieldingDate.String)
	if err != nil {
		return nil, err
	}
	startDate, err := steering.ParseDay(rec.StartDate.String)
	if err != nil {
		return nil, err
	}
	endDate, err := steering.ParseDay(rec.EndDate.String)
	if err != nil {
		return nil, err
	}

	return &models.VehiclePrice{
		YieldingDate: yieldingDate,
		CarGroup:     rec.CarGroup.String,
		Type:         rec.Type.String,
		StartDate:    startDate,
		EndDate:      endDate,
		Yield:        rec.Yield.String,
		YieldCode:    rec.YieldCode.String,
		Price:        &price,
		Pool:         rec.Pool.String,
	}, nil
}

// Delete 删除与条件精确匹配的本地记录，同一条件匹配多条时全部删除
func (s *PriceStore) Delete(ctx context.Context, criteria []steering.DeleteCriterion) DeleteResult {
	result := DeleteResult{TotalCount: len(criteria), Errors: []string{}}

	for i, c := range criteria {
		if !c.SteerFrom.Present() || !c.SteerTo.Present() || !c.CarGroup.Present() {
			result.Errors = append(result.Errors, fmt.Sprintf("Record %d: Missing required fields for deletion", i))
			metrics.PriceRecords.WithLabelValues("delete", "skipped").Inc()
			continue
		}

		match, err := s.toMatch(c)
		var deleted int64
		if err == nil {
			deleted, err = s.repo.DeleteMatching(ctx, match)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Record %d: %s", i, err.Error()))
			metrics.PriceRecords.WithLabelValues("delete", "failed").Inc()
			s.logger.Error("Failed to delete price records for steering record",
				zap.Int("record", i),
				zap.String("car_group", c.CarGroup.String),
				zap.Error(err),
			)
			continue
		}

		result.DeletedCount += deleted
		metrics.PriceRecords.WithLabelValues("delete", "deleted").Add(float64(deleted))
		s.logger.Info("Deleted price records",
			zap.Int64("deleted", deleted),
			zap.String("car_group", match.CarGroup),
			zap.String("type", match.Type),
			zap.Time("start_date", match.StartDate),
			zap.Time("end_date", match.EndDate),
			zap.String("pool", match.Pool),
			zap.Time("yielding_date", match.YieldingDate),
			zap.Stringp("yield", match.Yield),
			zap.Stringp("yield_code", match.YieldCode),
		)
	}

	if len(result.Errors) > 0 {
		s.logger.Warn("Some price records failed to delete",
			zap.Int64("deleted_count", result.DeletedCount),
			zap.Int("total_count", result.TotalCount),
			zap.Strings("errors", result.Errors),
		)
	}

	return result
}

func (s *PriceStore) toMatch(c steering.DeleteCriterion) (models.PriceMatch, error) {
	startDate, err := steering.ParseDay(c.SteerFrom.String)
	if err != nil {
		return models.PriceMatch{}, err
	}
	endDate, err := steering.ParseDay(c.SteerTo.String)
	if err != nil {
		return models.PriceMatch{}, err
	}

	// 未提供定价日期时按当天处理
	now := s.now()
	yieldingDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if c.YieldingDate.Present() {
		if yieldingDate, err = steering.ParseDay(c.YieldingDate.String); err != nil {
			return models.PriceMatch{}, err
		}
	}

	return models.PriceMatch{
		CarGroup:     c.CarGroup.String,
		Type:         c.PriceType(),
		StartDate:    startDate,
		EndDate:      endDate,
		Pool:         c.Pool.String,
		YieldingDate: yieldingDate,
		Yield:        c.Value.Ptr(),
		YieldCode:    c.YieldCode.Ptr(),
	}, nil
}

// List 查询本地价格记录
func (s *PriceStore) List(ctx context.Context, filter models.PriceFilter) ([]*models.VehiclePrice, error) {
	prices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list vehicle prices: %w", err)
	}
	return prices, nil
}
