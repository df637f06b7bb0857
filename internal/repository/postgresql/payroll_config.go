package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollConfigRepository struct {
	db *database.DB
}

func NewPayrollConfigRepository(db *database.DB) payroll.ConfigRepository {
	return &payrollConfigRepository{db: db}
}

const payrollConfigColumns = `
	id, school_id, enable_pf, enable_esi, enable_professional_tax, enable_tds,
	late_penalty_enabled, pf_employee_percent, pf_employer_percent, pf_wage_limit,
	esi_employee_percent, esi_employer_percent, esi_wage_limit,
	allowed_late_count, lates_per_lop, enable_auto_period_creation, pay_cycle_day,
	created_at, updated_at`

func scanPayrollConfig(row pgx.Row) (payroll.PayrollConfig, error) {
	var c payroll.PayrollConfig
	err := row.Scan(
		&c.ID, &c.SchoolID, &c.EnablePF, &c.EnableESI, &c.EnableProfessionalTax, &c.EnableTDS,
		&c.LatePenaltyEnabled, &c.PFEmployeePercent, &c.PFEmployerPercent, &c.PFWageLimit,
		&c.ESIEmployeePercent, &c.ESIEmployerPercent, &c.ESIWageLimit,
		&c.AllowedLateCount, &c.LatesPerLOP, &c.EnableAutoPeriodCreation, &c.PayCycleDay,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *payrollConfigRepository) GetBySchoolID(ctx context.Context, schoolID string) (payroll.PayrollConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollConfigColumns + ` FROM payroll_configs WHERE school_id = $1`

	c, err := scanPayrollConfig(q.QueryRow(ctx, query, schoolID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollConfig{}, payroll.ErrConfigNotFound
		}
		return payroll.PayrollConfig{}, fmt.Errorf("failed to get payroll config: %w", err)
	}
	return c, nil
}

func (r *payrollConfigRepository) Upsert(ctx context.Context, config payroll.PayrollConfig) (payroll.PayrollConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_configs (
			school_id, enable_pf, enable_esi, enable_professional_tax, enable_tds,
			late_penalty_enabled, pf_employee_percent, pf_employer_percent, pf_wage_limit,
			esi_employee_percent, esi_employer_percent, esi_wage_limit,
			allowed_late_count, lates_per_lop, enable_auto_period_creation, pay_cycle_day
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (school_id) DO UPDATE SET
			enable_pf = EXCLUDED.enable_pf,
			enable_esi = EXCLUDED.enable_esi,
			enable_professional_tax = EXCLUDED.enable_professional_tax,
			enable_tds = EXCLUDED.enable_tds,
			late_penalty_enabled = EXCLUDED.late_penalty_enabled,
			pf_employee_percent = EXCLUDED.pf_employee_percent,
			pf_employer_percent = EXCLUDED.pf_employer_percent,
			pf_wage_limit = EXCLUDED.pf_wage_limit,
			esi_employee_percent = EXCLUDED.esi_employee_percent,
			esi_employer_percent = EXCLUDED.esi_employer_percent,
			esi_wage_limit = EXCLUDED.esi_wage_limit,
			allowed_late_count = EXCLUDED.allowed_late_count,
			lates_per_lop = EXCLUDED.lates_per_lop,
			enable_auto_period_creation = EXCLUDED.enable_auto_period_creation,
			pay_cycle_day = EXCLUDED.pay_cycle_day,
			updated_at = NOW()
		RETURNING ` + payrollConfigColumns

	c, err := scanPayrollConfig(q.QueryRow(ctx, query,
		config.SchoolID, config.EnablePF, config.EnableESI, config.EnableProfessionalTax, config.EnableTDS,
		config.LatePenaltyEnabled, config.PFEmployeePercent, config.PFEmployerPercent, config.PFWageLimit,
		config.ESIEmployeePercent, config.ESIEmployerPercent, config.ESIWageLimit,
		config.AllowedLateCount, config.LatesPerLOP, config.EnableAutoPeriodCreation, config.PayCycleDay,
	))
	if err != nil {
		return payroll.PayrollConfig{}, fmt.Errorf("failed to upsert payroll config: %w", err)
	}
	return c, nil
}

func (r *payrollConfigRepository) ListAutoPeriodEnabled(ctx context.Context, payCycleDay int) ([]payroll.PayrollConfig, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollConfigColumns + `
		FROM payroll_configs
		WHERE enable_auto_period_creation = TRUE AND pay_cycle_day = $1
		ORDER BY school_id`

	rows, err := q.Query(ctx, query, payCycleDay)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll configs: %w", err)
	}
	defer rows.Close()

	var configs []payroll.PayrollConfig
	for rows.Next() {
		c, err := scanPayrollConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}
