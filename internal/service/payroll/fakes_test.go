package payroll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========== PERIODS ==========

type fakePeriodRepo struct {
	mu          sync.Mutex
	periods     map[string]payroll.PayrollPeriod
	seq         int
	getErr      error
	completeErr error
}

func newFakePeriodRepo(periods ...payroll.PayrollPeriod) *fakePeriodRepo {
	r := &fakePeriodRepo{periods: make(map[string]payroll.PayrollPeriod), seq: 100}
	for _, p := range periods {
		r.periods[p.ID] = p
	}
	return r
}

func (r *fakePeriodRepo) Create(ctx context.Context, period payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.periods {
		if p.SchoolID == period.SchoolID && p.Month == period.Month && p.Year == period.Year {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodAlreadyExists
		}
	}
	r.seq++
	period.ID = fmt.Sprintf("period-%d", r.seq)
	r.periods[period.ID] = period
	return period, nil
}

func (r *fakePeriodRepo) GetByID(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return payroll.PayrollPeriod{}, r.getErr
	}
	p, ok := r.periods[id]
	if !ok {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (r *fakePeriodRepo) GetBySchoolMonth(ctx context.Context, schoolID string, month, year int) (payroll.PayrollPeriod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.periods {
		if p.SchoolID == schoolID && p.Month == month && p.Year == year {
			return p, nil
		}
	}
	return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
}

func (r *fakePeriodRepo) TransitionStatus(ctx context.Context, id string, from, to payroll.PeriodStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	r.periods[id] = p
	return true, nil
}

func (r *fakePeriodRepo) Complete(ctx context.Context, id string, totals payroll.PeriodTotals, processedBy string, processedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return false, r.completeErr
	}
	p, ok := r.periods[id]
	if !ok || p.Status != payroll.PeriodStatusProcessing {
		return false, nil
	}
	p.Status = payroll.PeriodStatusPendingApproval
	p.TotalEmployees = totals.TotalEmployees
	p.TotalGrossSalary = totals.TotalGrossSalary
	p.TotalDeductions = totals.TotalDeductions
	p.TotalNetSalary = totals.TotalNetSalary
	p.ProcessedAt = &processedAt
	if processedBy != "" {
		p.ProcessedBy = &processedBy
	}
	r.periods[id] = p
	return true, nil
}

func (r *fakePeriodRepo) status(id string) payroll.PeriodStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.periods[id].Status
}

func (r *fakePeriodRepo) setStatus(id string, status payroll.PeriodStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.periods[id]
	p.Status = status
	r.periods[id] = p
}

// ========== CONFIG ==========

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[string]payroll.PayrollConfig
	listErr error
}

func newFakeConfigRepo(configs ...payroll.PayrollConfig) *fakeConfigRepo {
	r := &fakeConfigRepo{configs: make(map[string]payroll.PayrollConfig)}
	for _, c := range configs {
		r.configs[c.SchoolID] = c
	}
	return r
}

func (r *fakeConfigRepo) GetBySchoolID(ctx context.Context, schoolID string) (payroll.PayrollConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.configs[schoolID]
	if !ok {
		return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
	}
	return c, nil
}

func (r *fakeConfigRepo) Upsert(ctx context.Context, config payroll.PayrollConfig) (payroll.PayrollConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.configs[config.SchoolID]; ok {
		config.ID = existing.ID
	} else {
		config.ID = "config-" + config.SchoolID
	}
	r.configs[config.SchoolID] = config
	return config, nil
}

func (r *fakeConfigRepo) ListAutoPeriodEnabled(ctx context.Context, payCycleDay int) ([]payroll.PayrollConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []payroll.PayrollConfig
	for _, c := range r.configs {
		if c.EnableAutoPeriodCreation && c.PayCycleDay == payCycleDay {
			out = append(out, c)
		}
	}
	return out, nil
}

// ========== ROSTER ==========

type fakeRosterRepo struct {
	profiles []payroll.EmployeePayrollProfile
	err      error
}

func (r *fakeRosterRepo) ListActiveProfiles(ctx context.Context, schoolID string, period payroll.PayrollPeriod) ([]payroll.EmployeePayrollProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []payroll.EmployeePayrollProfile
	for _, p := range r.profiles {
		if p.SchoolID == schoolID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ========== ITEMS ==========

type fakeItemRepo struct {
	mu         sync.Mutex
	items      map[string]payroll.PayrollItem
	order      []string
	failFor    map[string]error
	sumErr     error
	upsertHits int
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: make(map[string]payroll.PayrollItem), failFor: make(map[string]error)}
}

func itemKey(periodID, employeeID string) string {
	return periodID + "/" + employeeID
}

func (r *fakeItemRepo) Upsert(ctx context.Context, item payroll.PayrollItem) (payroll.PayrollItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertHits++
	if err := r.failFor[item.EmployeeID]; err != nil {
		return payroll.PayrollItem{}, err
	}
	key := itemKey(item.PeriodID, item.EmployeeID)
	if existing, ok := r.items[key]; ok {
		item.ID = existing.ID
	} else {
		item.ID = fmt.Sprintf("item-%d", len(r.order)+1)
		r.order = append(r.order, key)
	}
	r.items[key] = item
	return item, nil
}

func (r *fakeItemRepo) GetByPeriodEmployee(ctx context.Context, periodID, employeeID string) (payroll.PayrollItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemKey(periodID, employeeID)]
	if !ok {
		return payroll.PayrollItem{}, payroll.ErrItemNotFound
	}
	return it, nil
}

func (r *fakeItemRepo) ListByPeriod(ctx context.Context, periodID string) ([]payroll.PayrollItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.PayrollItem
	for _, key := range r.order {
		if it := r.items[key]; it.PeriodID == periodID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) SumByPeriod(ctx context.Context, periodID string) (payroll.PeriodTotals, error) {
	if r.sumErr != nil {
		return payroll.PeriodTotals{}, r.sumErr
	}
	items, _ := r.ListByPeriod(ctx, periodID)
	totals := payroll.PeriodTotals{
		TotalEmployees:   len(items),
		TotalGrossSalary: decimal.Zero,
		TotalDeductions:  decimal.Zero,
		TotalNetSalary:   decimal.Zero,
	}
	for _, it := range items {
		totals.TotalGrossSalary = totals.TotalGrossSalary.Add(it.GrossEarnings)
		totals.TotalDeductions = totals.TotalDeductions.Add(it.TotalDeductions)
		totals.TotalNetSalary = totals.TotalNetSalary.Add(it.NetSalary)
	}
	return totals, nil
}

func (r *fakeItemRepo) count(periodID string) int {
	items, _ := r.ListByPeriod(context.Background(), periodID)
	return len(items)
}

// ========== LOANS / TX ==========

type fakeLoanRepo struct {
	mu     sync.Mutex
	marked map[string]string
	calls  int
	err    error
}

func newFakeLoanRepo() *fakeLoanRepo {
	return &fakeLoanRepo{marked: make(map[string]string)}
}

func (r *fakeLoanRepo) MarkRepaymentsDeducted(ctx context.Context, repaymentIDs []string, periodID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	for _, id := range repaymentIDs {
		r.marked[id] = periodID
	}
	return nil
}

type txKey struct{}

type fakeTransactor struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// ========== ATTENDANCE / LEAVE ==========

type fakeAttendanceRepo struct {
	records  map[string][]attendance.Attendance
	errFor   map[string]error
	panicFor map[string]bool
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		records:  make(map[string][]attendance.Attendance),
		errFor:   make(map[string]error),
		panicFor: make(map[string]bool),
	}
}

func (r *fakeAttendanceRepo) ListByUserInRange(ctx context.Context, schoolID, userID string, from, to time.Time) ([]attendance.Attendance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.panicFor[userID] {
		panic("attendance store exploded")
	}
	if err := r.errFor[userID]; err != nil {
		return nil, err
	}
	var out []attendance.Attendance
	for _, rec := range r.records[userID] {
		if rec.SchoolID == "" || rec.SchoolID == schoolID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func presentDays(userID string, n int) []attendance.Attendance {
	out := make([]attendance.Attendance, n)
	for i := range out {
		out[i] = attendance.Attendance{
			ID:     fmt.Sprintf("%s-att-%d", userID, i),
			UserID: userID,
			Date:   time.Date(2025, 6, i+1, 0, 0, 0, 0, time.UTC),
			Status: attendance.StatusPresent,
		}
	}
	return out
}

type fakeLeaveRepo struct {
	leaves map[string][]leave.LeaveRequest
}

func (r *fakeLeaveRepo) ListApprovedOverlapping(ctx context.Context, userID string, from, to time.Time) ([]leave.LeaveRequest, error) {
	if r.leaves == nil {
		return nil, nil
	}
	return r.leaves[userID], nil
}

// ========== EVENTS / CACHE ==========

type fakeEvents struct {
	mu     sync.Mutex
	events []BatchProcessedEvent
}

func (f *fakeEvents) PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEvents) published() []BatchProcessedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatchProcessedEvent(nil), f.events...)
}

type fakePeriodCache struct {
	mu          sync.Mutex
	periods     map[string]payroll.PayrollPeriod
	getErr      error
	gets        int
	sets        int
	invalidated []string
}

func newFakePeriodCache() *fakePeriodCache {
	return &fakePeriodCache{periods: make(map[string]payroll.PayrollPeriod)}
}

func (c *fakePeriodCache) GetPeriod(ctx context.Context, schoolID, periodID string) (payroll.PayrollPeriod, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return payroll.PayrollPeriod{}, false, c.getErr
	}
	p, ok := c.periods[schoolID+":"+periodID]
	return p, ok, nil
}

func (c *fakePeriodCache) SetPeriod(ctx context.Context, period payroll.PayrollPeriod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.periods[period.SchoolID+":"+period.ID] = period
	return nil
}

func (c *fakePeriodCache) InvalidatePeriods(ctx context.Context, schoolID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, schoolID)
	for k, p := range c.periods {
		if p.SchoolID == schoolID {
			delete(c.periods, k)
		}
	}
	return nil
}

// ========== FIXTURE ==========

const (
	testSchoolID = "school-1"
	testUserID   = "admin-1"
)

type fixture struct {
	periods    *fakePeriodRepo
	configs    *fakeConfigRepo
	roster     *fakeRosterRepo
	items      *fakeItemRepo
	loans      *fakeLoanRepo
	tx         *fakeTransactor
	attendance *fakeAttendanceRepo
	leaves     *fakeLeaveRepo
	events     *fakeEvents
	processor  *BatchProcessor
	period     payroll.PayrollPeriod
}

// newFixture seeds a DRAFT June 2025 period with 26 working days and the
// statutory config of the test school.
func newFixture(profiles ...payroll.EmployeePayrollProfile) *fixture {
	period := testPeriod()
	period.SchoolID = testSchoolID

	f := &fixture{
		periods:    newFakePeriodRepo(period),
		configs:    newFakeConfigRepo(withSchool(statutoryConfig())),
		roster:     &fakeRosterRepo{profiles: profiles},
		items:      newFakeItemRepo(),
		loans:      newFakeLoanRepo(),
		tx:         &fakeTransactor{},
		attendance: newFakeAttendanceRepo(),
		leaves:     &fakeLeaveRepo{},
		events:     &fakeEvents{},
		period:     period,
	}
	f.processor = NewBatchProcessor(
		f.periods, f.configs, f.roster, f.items, f.loans, f.tx,
		f.attendance, f.leaves, f.events,
		ProcessorConfig{FetchTimeout: time.Second},
		discardLogger(),
	)
	return f
}

func withSchool(cfg payroll.PayrollConfig) payroll.PayrollConfig {
	cfg.SchoolID = testSchoolID
	return cfg
}

func (f *fixture) process() (payroll.PayrollPeriod, payroll.BatchResult, error) {
	return f.processor.Process(context.Background(), testSchoolID, f.period.ID, testUserID)
}

// readyEmployee has a 16000 gross structure and complete bank details.
func readyEmployee(id string) payroll.EmployeePayrollProfile {
	account, ifsc := "00112233", "HDFC0000001"
	return payroll.EmployeePayrollProfile{
		ID:       id,
		UserID:   "user-" + id,
		SchoolID: testSchoolID,
		Name:     "Employee " + id,
		SalaryStructure: &payroll.SalaryStructure{
			ID:               "struct-" + id,
			BasicSalary:      d("12000"),
			HRAPercent:       d("10"),
			DAPercent:        d("5"),
			TAAmount:         d("1000"),
			MedicalAllowance: d("500"),
			SpecialAllowance: d("700"),
			GrossSalary:      d("16000"),
		},
		AccountNumber: &account,
		IFSCCode:      &ifsc,
	}
}
