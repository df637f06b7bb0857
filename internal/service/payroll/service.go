package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/go-chi/jwtauth/v5"
)

// PeriodCache is a read-through cache of single periods keyed by school.
type PeriodCache interface {
	CacheInvalidator
	GetPeriod(ctx context.Context, schoolID, periodID string) (payroll.PayrollPeriod, bool, error)
	SetPeriod(ctx context.Context, period payroll.PayrollPeriod) error
}

type PayrollServiceImpl struct {
	configs    payroll.ConfigRepository
	periods    payroll.PeriodRepository
	roster     payroll.RosterRepository
	items      payroll.ItemRepository
	attendance attendance.AttendanceRepository
	leaves     leave.LeaveRequestRepository
	processor  *BatchProcessor
	cache      PeriodCache
	logger     *slog.Logger
}

func NewPayrollService(
	configs payroll.ConfigRepository,
	periods payroll.PeriodRepository,
	roster payroll.RosterRepository,
	items payroll.ItemRepository,
	attendanceRepo attendance.AttendanceRepository,
	leaves leave.LeaveRequestRepository,
	processor *BatchProcessor,
	cache PeriodCache,
	logger *slog.Logger,
) payroll.PayrollService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayrollServiceImpl{
		configs:    configs,
		periods:    periods,
		roster:     roster,
		items:      items,
		attendance: attendanceRepo,
		leaves:     leaves,
		processor:  processor,
		cache:      cache,
		logger:     logger,
	}
}

// Helper to get school_id and user_id from JWT context
func getClaimsFromContext(ctx context.Context) (schoolID, userID string, err error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	schoolID, ok := claims["school_id"].(string)
	if !ok || schoolID == "" {
		return "", "", payroll.ErrSchoolIDRequired
	}

	userID, _ = claims["user_id"].(string)

	return schoolID, userID, nil
}

// ========== CONFIG ==========

func (s *PayrollServiceImpl) GetConfig(ctx context.Context) (payroll.ConfigResponse, error) {
	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ConfigResponse{}, err
	}

	cfg, err := s.configs.GetBySchoolID(ctx, schoolID)
	if err != nil {
		return payroll.ConfigResponse{}, err
	}
	return toConfigResponse(cfg), nil
}

func (s *PayrollServiceImpl) UpsertConfig(ctx context.Context, req payroll.UpsertConfigRequest) (payroll.ConfigResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ConfigResponse{}, err
	}

	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ConfigResponse{}, err
	}

	cfg, err := s.configs.Upsert(ctx, payroll.PayrollConfig{
		SchoolID:                 schoolID,
		EnablePF:                 req.EnablePF,
		EnableESI:                req.EnableESI,
		EnableProfessionalTax:    req.EnableProfessionalTax,
		EnableTDS:                req.EnableTDS,
		LatePenaltyEnabled:       req.LatePenaltyEnabled,
		PFEmployeePercent:        req.PFEmployeePercent,
		PFEmployerPercent:        req.PFEmployerPercent,
		PFWageLimit:              req.PFWageLimit,
		ESIEmployeePercent:       req.ESIEmployeePercent,
		ESIEmployerPercent:       req.ESIEmployerPercent,
		ESIWageLimit:             req.ESIWageLimit,
		AllowedLateCount:         req.AllowedLateCount,
		LatesPerLOP:              req.LatesPerLOP,
		EnableAutoPeriodCreation: req.EnableAutoPeriodCreation,
		PayCycleDay:              req.PayCycleDay,
	})
	if err != nil {
		return payroll.ConfigResponse{}, err
	}
	return toConfigResponse(cfg), nil
}

func toConfigResponse(cfg payroll.PayrollConfig) payroll.ConfigResponse {
	return payroll.ConfigResponse{
		ID:                       cfg.ID,
		SchoolID:                 cfg.SchoolID,
		EnablePF:                 cfg.EnablePF,
		EnableESI:                cfg.EnableESI,
		EnableProfessionalTax:    cfg.EnableProfessionalTax,
		EnableTDS:                cfg.EnableTDS,
		LatePenaltyEnabled:       cfg.LatePenaltyEnabled,
		PFEmployeePercent:        cfg.PFEmployeePercent,
		PFEmployerPercent:        cfg.PFEmployerPercent,
		PFWageLimit:              cfg.PFWageLimit,
		ESIEmployeePercent:       cfg.ESIEmployeePercent,
		ESIEmployerPercent:       cfg.ESIEmployerPercent,
		ESIWageLimit:             cfg.ESIWageLimit,
		AllowedLateCount:         cfg.AllowedLateCount,
		LatesPerLOP:              cfg.LatesPerLOP,
		EnableAutoPeriodCreation: cfg.EnableAutoPeriodCreation,
		PayCycleDay:              cfg.PayCycleDay,
		UpdatedAt:                cfg.UpdatedAt,
	}
}

// ========== PERIODS ==========

func (s *PayrollServiceImpl) CreatePeriod(ctx context.Context, req payroll.CreatePeriodRequest) (payroll.PeriodResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PeriodResponse{}, err
	}

	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}

	_, err = s.periods.GetBySchoolMonth(ctx, schoolID, req.Month, req.Year)
	if err == nil {
		return payroll.PeriodResponse{}, payroll.ErrPeriodAlreadyExists
	}
	if !errors.Is(err, payroll.ErrPeriodNotFound) {
		return payroll.PeriodResponse{}, err
	}

	created, err := s.periods.Create(ctx, payroll.NewDraftPeriod(schoolID, req.Month, req.Year, req.TotalWorkingDays, req.Holidays, req.Weekends))
	if err != nil {
		return payroll.PeriodResponse{}, err
	}

	s.invalidate(ctx, schoolID)
	return payroll.NewPeriodResponse(created), nil
}

func (s *PayrollServiceImpl) GetPeriod(ctx context.Context, periodID string) (payroll.PeriodResponse, error) {
	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}

	period, err := s.loadPeriod(ctx, schoolID, periodID)
	if err != nil {
		return payroll.PeriodResponse{}, err
	}
	return payroll.NewPeriodResponse(period), nil
}

// loadPeriod reads through the period cache. Cache failures fall back to
// the database.
func (s *PayrollServiceImpl) loadPeriod(ctx context.Context, schoolID, periodID string) (payroll.PayrollPeriod, error) {
	if s.cache != nil {
		period, ok, err := s.cache.GetPeriod(ctx, schoolID, periodID)
		if err != nil {
			s.logger.Warn("payroll period cache read failed",
				slog.String("period_id", periodID),
				slog.String("error", err.Error()))
		} else if ok {
			return period, nil
		}
	}

	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return payroll.PayrollPeriod{}, err
	}
	if period.SchoolID != schoolID {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodForbidden
	}

	if s.cache != nil {
		if err := s.cache.SetPeriod(ctx, period); err != nil {
			s.logger.Warn("payroll period cache write failed",
				slog.String("period_id", periodID),
				slog.String("error", err.Error()))
		}
	}
	return period, nil
}

func (s *PayrollServiceImpl) ProcessPeriod(ctx context.Context, periodID string) (payroll.ProcessPeriodResponse, error) {
	schoolID, userID, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.ProcessPeriodResponse{}, err
	}

	period, result, err := s.processor.Process(ctx, schoolID, periodID, userID)
	if err != nil {
		// a read during the run may have cached the PROCESSING status
		s.invalidate(ctx, schoolID)
		return payroll.ProcessPeriodResponse{}, err
	}

	return payroll.ProcessPeriodResponse{
		Period:  payroll.NewPeriodResponse(period),
		Results: result,
	}, nil
}

// ========== ITEMS ==========

func (s *PayrollServiceImpl) ListItems(ctx context.Context, periodID string) ([]payroll.ItemResponse, error) {
	_, items, err := s.ListPeriodItems(ctx, periodID)
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.ItemResponse, len(items))
	for i, it := range items {
		responses[i] = payroll.NewItemResponse(it)
	}
	return responses, nil
}

func (s *PayrollServiceImpl) ListPeriodItems(ctx context.Context, periodID string) (payroll.PayrollPeriod, []payroll.PayrollItem, error) {
	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollPeriod{}, nil, err
	}

	period, err := s.loadPeriod(ctx, schoolID, periodID)
	if err != nil {
		return payroll.PayrollPeriod{}, nil, err
	}

	items, err := s.items.ListByPeriod(ctx, period.ID)
	if err != nil {
		return payroll.PayrollPeriod{}, nil, err
	}
	return period, items, nil
}

func (s *PayrollServiceImpl) GetItem(ctx context.Context, periodID, employeeID string) (payroll.PayrollPeriod, payroll.PayrollItem, error) {
	schoolID, _, err := getClaimsFromContext(ctx)
	if err != nil {
		return payroll.PayrollPeriod{}, payroll.PayrollItem{}, err
	}

	period, err := s.loadPeriod(ctx, schoolID, periodID)
	if err != nil {
		return payroll.PayrollPeriod{}, payroll.PayrollItem{}, err
	}

	item, err := s.items.GetByPeriodEmployee(ctx, period.ID, employeeID)
	if err != nil {
		return payroll.PayrollPeriod{}, payroll.PayrollItem{}, err
	}
	return period, item, nil
}

func (s *PayrollServiceImpl) invalidate(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePeriods(ctx, schoolID); err != nil {
		s.logger.Warn("failed to invalidate payroll period cache",
			slog.String("school_id", schoolID),
			slog.String("error", err.Error()))
	}
}
