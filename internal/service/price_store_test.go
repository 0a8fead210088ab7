package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/price-updater/internal/models"
	"github.com/langchou/price-updater/internal/steering"
)

// memoryRepo 内存实现，匹配语义与 SQL 一致（nil 不匹配任何值）
type memoryRepo struct {
	mu        sync.Mutex
	rows      []*models.VehiclePrice
	nextID    int64
	createErr error
}

func (r *memoryRepo) Create(_ context.Context, p *models.VehiclePrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	r.rows = append(r.rows, p)
	return nil
}

func (r *memoryRepo) DeleteMatching(_ context.Context, m models.PriceMatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Yield == nil || m.YieldCode == nil {
		return 0, nil
	}

	var kept []*models.VehiclePrice
	var deleted int64
	for _, p := range r.rows {
		if p.CarGroup == m.CarGroup && p.Type == m.Type &&
			p.StartDate.Equal(m.StartDate) && p.EndDate.Equal(m.EndDate) &&
			p.Pool == m.Pool && p.YieldingDate.Equal(m.YieldingDate) &&
			p.Yield == *m.Yield && p.YieldCode == *m.YieldCode {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	r.rows = kept
	return deleted, nil
}

func (r *memoryRepo) List(_ context.Context, filter models.PriceFilter) ([]*models.VehiclePrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VehiclePrice
	for _, p := range r.rows {
		if filter.Pool != "" && p.Pool != filter.Pool {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func priceRecord(carGroup, typ, pool string) steering.PriceDataRecord {
	return steering.PriceDataRecord{
		YieldingDate: steering.NewText("2025-03-11"),
		CarGroup:     steering.NewText(carGroup),
		Type:         steering.NewText(typ),
		StartDate:    steering.NewText("2025-06-01"),
		EndDate:      steering.NewText("2025-06-30"),
		Yield:        steering.NewText("49"),
		YieldCode:    steering.NewText("P51"),
		Price:        steering.NewText("205,4703"),
		Pool:         steering.NewText(pool),
	}
}

func criterion(carGroup, steerType, pool string) steering.DeleteCriterion {
	return steering.DeleteCriterion{
		SteerFrom:    steering.NewText("2025-06-01 00:00"),
		SteerTo:      steering.NewText("2025-06-30 23:59"),
		CarGroup:     steering.NewText(carGroup),
		SteerType:    steering.NewText(steerType),
		Pool:         steering.NewText(pool),
		YieldingDate: steering.NewText("2025-03-11"),
		Value:        steering.NewText("49"),
		YieldCode:    steering.NewText("P51"),
	}
}

func TestStoreSkipsRecordsWithMissingFields(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())

	invalid := priceRecord("CDMR", "UDA", "123")
	invalid.YieldCode = steering.Text{}

	result := store.Store(context.Background(), []steering.PriceDataRecord{
		priceRecord("MDMR", "UDA", "123"),
		invalid,
		priceRecord("MDMR", "PEAK", "123"),
	})

	assert.Equal(t, 2, result.StoredCount)
	assert.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Record 1: Missing required field 'yield_code'", result.Errors[0])
	assert.Equal(t, 2, repo.count())
}

func TestStoreConvertsFields(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())

	rec := priceRecord("MDMR", "UDA", "")
	rec.YieldingDate = steering.NewText("11/03/2025")
	result := store.Store(context.Background(), []steering.PriceDataRecord{rec})
	require.Equal(t, 1, result.StoredCount)
	assert.Empty(t, result.Errors)

	rows, err := store.List(context.Background(), models.PriceFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	p := rows[0]
	require.NotNil(t, p.Price)
	assert.InDelta(t, 205.4703, *p.Price, 1e-9)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), p.YieldingDate)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), p.StartDate)
	assert.Equal(t, "", p.Pool)
}

func TestStoreRecordsRowErrors(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())

	badPrice := priceRecord("MDMR", "UDA", "123")
	badPrice.Price = steering.NewText("n/a")

	result := store.Store(context.Background(), []steering.PriceDataRecord{badPrice, priceRecord("EDMR", "UDA", "123")})
	assert.Equal(t, 1, result.StoredCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Record 0: invalid price")

	repo.createErr = errors.New("connection refused")
	result = store.Store(context.Background(), []steering.PriceDataRecord{priceRecord("CDMR", "UDA", "123")})
	assert.Equal(t, 0, result.StoredCount)
	assert.Equal(t, []string{"Record 0: connection refused"}, result.Errors)
}

func TestDeleteExactMatch(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())
	ctx := context.Background()

	stored := store.Store(ctx, []steering.PriceDataRecord{priceRecord("MDMR", "UDA", "123")})
	require.Equal(t, 1, stored.StoredCount)

	// pool 不同，不删除
	result := store.Delete(ctx, []steering.DeleteCriterion{criterion("MDMR", steering.SteerTypeUDA, "456")})
	assert.Equal(t, int64(0), result.DeletedCount)
	assert.Equal(t, 1, result.TotalCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, repo.count())

	result = store.Delete(ctx, []steering.DeleteCriterion{criterion("MDMR", steering.SteerTypeUDA, "123")})
	assert.Equal(t, int64(1), result.DeletedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, repo.count())
}

func TestDeleteDerivesType(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())
	ctx := context.Background()

	store.Store(ctx, []steering.PriceDataRecord{
		priceRecord("MDMR", "PEAK", "123"),
		priceRecord("MDMR", "PEAK", "123"),
		priceRecord("MDMR", "UDA", "123"),
	})

	result := store.Delete(ctx, []steering.DeleteCriterion{criterion("MDMR", steering.SteerTypePeak, "123")})
	assert.Equal(t, int64(2), result.DeletedCount)
	assert.Equal(t, 1, repo.count())

	// 其他 steer type 按 UDA 处理
	result = store.Delete(ctx, []steering.DeleteCriterion{criterion("MDMR", "STEER_TYPE_OTHER", "123")})
	assert.Equal(t, int64(1), result.DeletedCount)
	assert.Equal(t, 0, repo.count())
}

func TestDeleteMissingFields(t *testing.T) {
	store := NewPriceStore(&memoryRepo{}, zap.NewNop())

	noFrom := criterion("MDMR", steering.SteerTypeUDA, "123")
	noFrom.SteerFrom = steering.NewText("")
	noGroup := criterion("MDMR", steering.SteerTypeUDA, "123")
	noGroup.CarGroup = steering.Text{}
	badDate := criterion("MDMR", steering.SteerTypeUDA, "123")
	badDate.SteerTo = steering.NewText("someday")

	result := store.Delete(context.Background(), []steering.DeleteCriterion{noFrom, noGroup, badDate})
	assert.Equal(t, int64(0), result.DeletedCount)
	assert.Equal(t, 3, result.TotalCount)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "Record 0: Missing required fields for deletion", result.Errors[0])
	assert.Equal(t, "Record 1: Missing required fields for deletion", result.Errors[1])
	assert.Contains(t, result.Errors[2], "Record 2:")
}

func TestDeleteDefaultsYieldingDateToToday(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())
	store.now = func() time.Time { return time.Date(2025, 3, 11, 15, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	store.Store(ctx, []steering.PriceDataRecord{priceRecord("MDMR", "UDA", "")})

	c := criterion("MDMR", steering.SteerTypeUDA, "")
	c.YieldingDate = steering.Text{}
	c.Pool = steering.Text{}

	result := store.Delete(ctx, []steering.DeleteCriterion{c})
	assert.Equal(t, int64(1), result.DeletedCount)
}

func TestDeleteMissingYieldMatchesNothing(t *testing.T) {
	repo := &memoryRepo{}
	store := NewPriceStore(repo, zap.NewNop())
	ctx := context.Background()

	store.Store(ctx, []steering.PriceDataRecord{priceRecord("MDMR", "UDA", "123")})

	c := criterion("MDMR", steering.SteerTypeUDA, "123")
	c.Value = steering.Text{}

	result := store.Delete(ctx, []steering.DeleteCriterion{c})
	assert.Equal(t, int64(0), result.DeletedCount)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, repo.count())
}
