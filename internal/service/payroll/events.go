package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// BatchProcessedEvent is emitted once a period reaches PENDING_APPROVAL.
type BatchProcessedEvent struct {
	SchoolID    string
	PeriodID    string
	Month       int
	Year        int
	ProcessedBy string
	Totals      payroll.PeriodTotals
	FailedCount int
}

type EventPublisher interface {
	PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent)
}

// CacheInvalidator drops cached period reads of a school.
type CacheInvalidator interface {
	InvalidatePeriods(ctx context.Context, schoolID string) error
}

// AsyncPublisher fans a processed batch out to the period cache and the
// notification queue on its own goroutine. Failures are logged only. Close
// must run before the notification service is stopped.
type AsyncPublisher struct {
	cache         CacheInvalidator
	notifications notification.Service
	timeout       time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncPublisher(cache CacheInvalidator, notifications notification.Service, logger *slog.Logger) *AsyncPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncPublisher{
		cache:         cache,
		notifications: notifications,
		timeout:       10 * time.Second,
		logger:        logger,
	}
}

func (p *AsyncPublisher) PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("payroll event publisher closed, dropping batch event",
			slog.String("school_id", event.SchoolID),
			slog.String("period_id", event.PeriodID))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.dispatch(context.WithoutCancel(ctx), event)
	}()
}

// Close stops accepting events and waits for in-flight dispatches.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *AsyncPublisher) dispatch(ctx context.Context, event BatchProcessedEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.cache != nil {
		if err := p.cache.InvalidatePeriods(ctx, event.SchoolID); err != nil {
			p.logger.Warn("failed to invalidate payroll period cache",
				slog.String("school_id", event.SchoolID),
				slog.String("error", err.Error()))
		}
	}

	if p.notifications == nil || event.ProcessedBy == "" {
		return
	}

	req := notification.CreateNotificationRequest{
		SchoolID:    event.SchoolID,
		RecipientID: event.ProcessedBy,
		Type:        notification.TypePayrollProcessed,
		Title:       "Payroll processed",
		Message: fmt.Sprintf("Payroll for %02d/%d is ready for approval: %d employees, net %s",
			event.Month, event.Year, event.Totals.TotalEmployees, event.Totals.TotalNetSalary.StringFixed(2)),
		Data: map[string]interface{}{
			"period_id":        event.PeriodID,
			"total_employees":  event.Totals.TotalEmployees,
			"total_net_salary": event.Totals.TotalNetSalary.String(),
			"failed":           event.FailedCount,
		},
	}
	if err := p.notifications.QueueNotification(ctx, req); err != nil {
		p.logger.Warn("failed to queue payroll notification",
			slog.String("period_id", event.PeriodID),
			slog.String("error", err.Error()))
	}
}
