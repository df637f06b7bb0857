package cron

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/notification"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfigRepo struct {
	configs []payroll.PayrollConfig
	err     error
}

func (r *stubConfigRepo) GetBySchoolID(ctx context.Context, schoolID string) (payroll.PayrollConfig, error) {
	return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
}

func (r *stubConfigRepo) Upsert(ctx context.Context, cfg payroll.PayrollConfig) (payroll.PayrollConfig, error) {
	return cfg, nil
}

func (r *stubConfigRepo) ListAutoPeriodEnabled(ctx context.Context, payCycleDay int) ([]payroll.PayrollConfig, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []payroll.PayrollConfig
	for _, c := range r.configs {
		if c.EnableAutoPeriodCreation && c.PayCycleDay == payCycleDay {
			out = append(out, c)
		}
	}
	return out, nil
}

type stubPeriodRepo struct {
	mu        sync.Mutex
	periods   []payroll.PayrollPeriod
	failFor   map[string]error
	raceFor   map[string]bool
	createHit int
}

func (r *stubPeriodRepo) Create(ctx context.Context, p payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createHit++
	if err := r.failFor[p.SchoolID]; err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if r.raceFor[p.SchoolID] {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodAlreadyExists
	}
	p.ID = "period-" + p.SchoolID
	r.periods = append(r.periods, p)
	return p, nil
}

func (r *stubPeriodRepo) GetByID(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
}

func (r *stubPeriodRepo) GetBySchoolMonth(ctx context.Context, schoolID string, month, year int) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.periods {
		if p.SchoolID == schoolID && p.Month == month && p.Year == year {
			return p, nil
		}
	}
	return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
}

func (r *stubPeriodRepo) TransitionStatus(ctx context.Context, id string, from, to payroll.PeriodStatus) (bool, error) {
	return false, nil
}

func (r *stubPeriodRepo) Complete(ctx context.Context, id string, totals payroll.PeriodTotals, processedBy string, processedAt time.Time) (bool, error) {
	return false, nil
}

type stubNotificationRepo struct {
	notification.Repository
	recipients map[string][]string
}

func (r *stubNotificationRepo) ListRecipientIDs(ctx context.Context, schoolID string, roles []string) ([]string, error) {
	return r.recipients[schoolID], nil
}

type stubNotificationService struct {
	notification.Service
	mu     sync.Mutex
	queued []notification.CreateNotificationRequest
	err    error
}

func (s *stubNotificationService) QueueBulkNotification(ctx context.Context, reqs []notification.CreateNotificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.queued = append(s.queued, reqs...)
	return nil
}

type stubInvalidator struct {
	schools []string
}

func (s *stubInvalidator) InvalidatePeriods(ctx context.Context, schoolID string) error {
	s.schools = append(s.schools, schoolID)
	return nil
}

func autoConfig(schoolID string, day int) payroll.PayrollConfig {
	return payroll.PayrollConfig{SchoolID: schoolID, EnableAutoPeriodCreation: true, PayCycleDay: day}
}

func newTestJobs(configs *stubConfigRepo, periods *stubPeriodRepo) (*PayrollJobs, *stubNotificationService, *stubInvalidator) {
	return newTestJobsIn(configs, periods, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestJobsIn(configs *stubConfigRepo, periods *stubPeriodRepo, loc *time.Location, logger *slog.Logger) (*PayrollJobs, *stubNotificationService, *stubInvalidator) {
	notifs := &stubNotificationService{}
	cache := &stubInvalidator{}
	jobs := NewPayrollJobs(
		configs,
		periods,
		&stubNotificationRepo{recipients: map[string][]string{"s1": {"admin-1", "principal-1"}}},
		notifs,
		cache,
		loc,
		logger,
	)
	return jobs, notifs, cache
}

func TestCreateDuePeriods(t *testing.T) {
	configs := &stubConfigRepo{configs: []payroll.PayrollConfig{
		autoConfig("s1", 5),
		autoConfig("s2", 5),
		autoConfig("s3", 6),
		{SchoolID: "s4", PayCycleDay: 5},
	}}
	periods := &stubPeriodRepo{}
	jobs, notifs, cache := newTestJobs(configs, periods)

	today := time.Date(2025, time.March, 5, 1, 0, 0, 0, time.UTC)
	report, err := jobs.createDuePeriods(context.Background(), today)
	require.NoError(t, err)

	require.Len(t, report.Created, 2)
	assert.Empty(t, report.Errors)

	created := report.Created[0]
	assert.Equal(t, "s1", created.SchoolID)
	assert.Equal(t, 3, created.Month)
	assert.Equal(t, 2025, created.Year)
	assert.Equal(t, payroll.PeriodStatusDraft, created.Status)
	assert.Equal(t, 26, created.TotalWorkingDays)
	assert.Equal(t, 5, created.Weekends)
	assert.Equal(t, "2025-03-31", created.EndDate.Format("2006-01-02"))

	assert.Equal(t, []string{"s1", "s2"}, cache.schools)

	require.Len(t, notifs.queued, 2)
	assert.Equal(t, "admin-1", notifs.queued[0].RecipientID)
	assert.Equal(t, notification.TypePayrollPeriodCreated, notifs.queued[0].Type)
	assert.Equal(t, "Payroll period for March 2025 has been created. Please process payroll at your convenience.", notifs.queued[0].Message)
	assert.Equal(t, "period-s1", notifs.queued[0].Data["period_id"])
}

func TestCreateDuePeriods_SkipsExistingAndRaces(t *testing.T) {
	existing := payroll.NewDraftPeriod("s1", 3, 2025, 26, 0, 5)
	existing.ID = "manual"
	configs := &stubConfigRepo{configs: []payroll.PayrollConfig{autoConfig("s1", 5), autoConfig("s2", 5)}}
	periods := &stubPeriodRepo{
		periods: []payroll.PayrollPeriod{existing},
		raceFor: map[string]bool{"s2": true},
	}
	jobs, notifs, _ := newTestJobs(configs, periods)

	report, err := jobs.createDuePeriods(context.Background(), time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, report.Created)
	assert.ElementsMatch(t, []string{"s1", "s2"}, report.Skipped)
	assert.Equal(t, 1, periods.createHit)
	assert.Empty(t, notifs.queued)
}

func TestCreateDuePeriods_OneSchoolFailing(t *testing.T) {
	configs := &stubConfigRepo{configs: []payroll.PayrollConfig{autoConfig("s1", 5), autoConfig("s2", 5)}}
	periods := &stubPeriodRepo{failFor: map[string]error{"s1": errors.New("insert failed")}}
	jobs, _, _ := newTestJobs(configs, periods)
	jobs.now = func() time.Time { return time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC) }

	err := jobs.CreateDuePeriods(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "school s1: insert failed")

	_, err = periods.GetBySchoolMonth(context.Background(), "s2", 3, 2025)
	assert.NoError(t, err)
}

func TestCreateDuePeriods_UsesPayrollTimeZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	configs := &stubConfigRepo{configs: []payroll.PayrollConfig{autoConfig("s1", 1), autoConfig("s2", 31)}}
	periods := &stubPeriodRepo{}
	jobs, _, _ := newTestJobsIn(configs, periods, ist, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// 01:00 IST on 1 April is still 31 March in UTC
	fire := time.Date(2025, time.April, 1, 1, 0, 0, 0, ist).UTC()
	require.Equal(t, 31, fire.Day())
	jobs.now = func() time.Time { return fire }

	require.NoError(t, jobs.CreateDuePeriods(context.Background()))
	assert.Equal(t, 1, periods.createHit)

	created, err := periods.GetBySchoolMonth(context.Background(), "s1", 4, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-30", created.EndDate.Format("2006-01-02"))
	assert.Equal(t, 26, created.TotalWorkingDays)
	_, err = periods.GetBySchoolMonth(context.Background(), "s2", 3, 2025)
	assert.ErrorIs(t, err, payroll.ErrPeriodNotFound)
}

func TestCreateDuePeriods_NotificationQueueFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	configs := &stubConfigRepo{configs: []payroll.PayrollConfig{autoConfig("s1", 5)}}
	periods := &stubPeriodRepo{}
	jobs, notifs, _ := newTestJobsIn(configs, periods, time.UTC, slog.New(slog.NewTextHandler(&logs, nil)))
	notifs.err = errors.New("queue closed")

	report, err := jobs.createDuePeriods(context.Background(), time.Date(2025, 3, 5, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, report.Created, 1)
	assert.Contains(t, logs.String(), "failed to queue payroll period notifications")
	assert.Contains(t, logs.String(), "queue closed")
}

func TestCreateDuePeriods_ListFailure(t *testing.T) {
	jobs, _, _ := newTestJobs(&stubConfigRepo{err: errors.New("timeout")}, &stubPeriodRepo{})

	_, err := jobs.createDuePeriods(context.Background(), time.Now())
	assert.ErrorContains(t, err, "failed to list payroll configs")
}

func TestScheduler_RejectsInvalidSpec(t *testing.T) {
	s := NewScheduler(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, s.AddJob("bad", "not a cron spec", func(ctx context.Context) error { return nil }))

	var runs int
	require.NoError(t, s.AddJob("payroll", "0 1 * * *", func(ctx context.Context) error {
		runs++
		return nil
	}))
	s.RunOnce(context.Background())
	assert.Equal(t, 1, runs)
}
