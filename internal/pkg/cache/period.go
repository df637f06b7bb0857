package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/redis/go-redis/v9"
)

const periodKeyPrefix = "payroll:periods:"

// PeriodCache caches payroll periods under payroll:periods:{school}:{period}.
type PeriodCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewPeriodCache(rdb redis.Cmdable, ttl time.Duration) *PeriodCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PeriodCache{rdb: rdb, ttl: ttl}
}

func PeriodKey(schoolID, periodID string) string {
	return fmt.Sprintf("%s%s:%s", periodKeyPrefix, schoolID, periodID)
}

// SchoolPattern matches every cached period of a school.
func SchoolPattern(schoolID string) string {
	return periodKeyPrefix + schoolID + "*"
}

func (c *PeriodCache) GetPeriod(ctx context.Context, schoolID, periodID string) (payroll.PayrollPeriod, bool, error) {
	var period payroll.PayrollPeriod
	found, err := getJSON(ctx, c.rdb, PeriodKey(schoolID, periodID), &period)
	if err != nil || !found {
		return payroll.PayrollPeriod{}, false, err
	}
	return period, true, nil
}

func (c *PeriodCache) SetPeriod(ctx context.Context, period payroll.PayrollPeriod) error {
	return setJSON(ctx, c.rdb, PeriodKey(period.SchoolID, period.ID), period, c.ttl)
}

func (c *PeriodCache) InvalidatePeriods(ctx context.Context, schoolID string) error {
	return deleteByPattern(ctx, c.rdb, SchoolPattern(schoolID))
}
