package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// PeriodInvalidator drops cached periods of a school
type PeriodInvalidator interface {
	InvalidatePeriods(ctx context.Context, schoolID string) error
}

// AutoPeriodReport summarizes one run of the auto period job
type AutoPeriodReport struct {
	Created []payroll.PayrollPeriod
	Skipped []string // school IDs that already had a period
	Errors  map[string]error
}

type PayrollJobs struct {
	configRepo       payroll.ConfigRepository
	periodRepo       payroll.PeriodRepository
	notificationRepo notification.Repository
	notificationSvc  notification.Service
	cache            PeriodInvalidator
	loc              *time.Location
	logger           *slog.Logger
	now              func() time.Time
}

func NewPayrollJobs(
	configRepo payroll.ConfigRepository,
	periodRepo payroll.PeriodRepository,
	notificationRepo notification.Repository,
	notificationSvc notification.Service,
	cache PeriodInvalidator,
	loc *time.Location,
	logger *slog.Logger,
) *PayrollJobs {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollJobs{
		configRepo:       configRepo,
		periodRepo:       periodRepo,
		notificationRepo: notificationRepo,
		notificationSvc:  notificationSvc,
		cache:            cache,
		loc:              loc,
		logger:           logger,
		now:              time.Now,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler, spec string) error {
	return scheduler.AddJob("payroll_auto_period_creation", spec, j.CreateDuePeriods)
}

// CreateDuePeriods creates the current month's DRAFT period for every school
// whose pay cycle day is today in the payroll time zone. One school failing
// does not stop the others.
func (j *PayrollJobs) CreateDuePeriods(ctx context.Context) error {
	report, err := j.createDuePeriods(ctx, j.now())
	if err != nil {
		return err
	}

	j.logger.Info("Cron: payroll auto period creation finished",
		"created", len(report.Created),
		"skipped", len(report.Skipped),
		"errors", len(report.Errors))

	if len(report.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(report.Errors))
	for schoolID, err := range report.Errors {
		errs = append(errs, fmt.Errorf("school %s: %w", schoolID, err))
	}
	return errors.Join(errs...)
}

func (j *PayrollJobs) createDuePeriods(ctx context.Context, today time.Time) (AutoPeriodReport, error) {
	report := AutoPeriodReport{Errors: make(map[string]error)}
	today = today.In(j.loc)

	configs, err := j.configRepo.ListAutoPeriodEnabled(ctx, today.Day())
	if err != nil {
		return report, fmt.Errorf("failed to list payroll configs: %w", err)
	}

	month, year := int(today.Month()), today.Year()
	for _, cfg := range configs {
		if cfg.PayCycleDay != today.Day() {
			continue
		}

		period, created, err := j.ensurePeriod(ctx, cfg.SchoolID, month, year)
		if err != nil {
			j.logger.Error("Cron: failed to create payroll period", "school_id", cfg.SchoolID, "error", err)
			report.Errors[cfg.SchoolID] = err
			continue
		}
		if !created {
			report.Skipped = append(report.Skipped, cfg.SchoolID)
			continue
		}

		report.Created = append(report.Created, period)
		j.afterCreate(ctx, period)
	}

	return report, nil
}

func (j *PayrollJobs) ensurePeriod(ctx context.Context, schoolID string, month, year int) (payroll.PayrollPeriod, bool, error) {
	existing, err := j.periodRepo.GetBySchoolMonth(ctx, schoolID, month, year)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, payroll.ErrPeriodNotFound) {
		return payroll.PayrollPeriod{}, false, err
	}

	workingDays, sundays := payroll.MonthWorkingDays(year, month)
	period, err := j.periodRepo.Create(ctx, payroll.NewDraftPeriod(schoolID, month, year, workingDays, 0, sundays))
	if errors.Is(err, payroll.ErrPeriodAlreadyExists) {
		// created concurrently by an admin
		return payroll.PayrollPeriod{}, false, nil
	}
	if err != nil {
		return payroll.PayrollPeriod{}, false, err
	}
	return period, true, nil
}

// afterCreate invalidates the cache and notifies school admins. Failures
// are logged only.
func (j *PayrollJobs) afterCreate(ctx context.Context, period payroll.PayrollPeriod) {
	if j.cache != nil {
		if err := j.cache.InvalidatePeriods(ctx, period.SchoolID); err != nil {
			j.logger.Warn("Cron: failed to invalidate payroll period cache", "school_id", period.SchoolID, "error", err)
		}
	}

	if j.notificationSvc == nil || j.notificationRepo == nil {
		return
	}

	recipients, err := j.notificationRepo.ListRecipientIDs(ctx, period.SchoolID, notification.PayrollAdminRoles)
	if err != nil {
		j.logger.Warn("Cron: failed to list payroll admins", "school_id", period.SchoolID, "error", err)
		return
	}

	label := fmt.Sprintf("%s %d", time.Month(period.Month).String(), period.Year)
	reqs := make([]notification.CreateNotificationRequest, 0, len(recipients))
	for _, userID := range recipients {
		reqs = append(reqs, notification.CreateNotificationRequest{
			SchoolID:    period.SchoolID,
			RecipientID: userID,
			Type:        notification.TypePayrollPeriodCreated,
			Title:       "New Payroll Period Created",
			Message:     fmt.Sprintf("Payroll period for %s has been created. Please process payroll at your convenience.", label),
			Data: map[string]interface{}{
				"period_id": period.ID,
				"month":     period.Month,
				"year":      period.Year,
			},
		})
	}
	if err := j.notificationSvc.QueueBulkNotification(ctx, reqs); err != nil {
		j.logger.Warn("Cron: failed to queue payroll period notifications", "school_id", period.SchoolID, "error", err)
	}
}
