package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ========== PERIODS ==========

type payrollPeriodRepository struct {
	db *database.DB
}

func NewPayrollPeriodRepository(db *database.DB) payroll.PeriodRepository {
	return &payrollPeriodRepository{db: db}
}

const payrollPeriodColumns = `
	id, school_id, month, year, start_date, end_date,
	total_working_days, holidays, weekends, status,
	total_employees, total_gross_salary, total_deductions, total_net_salary,
	processed_at, processed_by, created_at, updated_at`

func scanPayrollPeriod(row pgx.Row) (payroll.PayrollPeriod, error) {
	var p payroll.PayrollPeriod
	var status string
	err := row.Scan(
		&p.ID, &p.SchoolID, &p.Month, &p.Year, &p.StartDate, &p.EndDate,
		&p.TotalWorkingDays, &p.Holidays, &p.Weekends, &status,
		&p.TotalEmployees, &p.TotalGrossSalary, &p.TotalDeductions, &p.TotalNetSalary,
		&p.ProcessedAt, &p.ProcessedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Status = payroll.PeriodStatus(status)
	return p, err
}

func (r *payrollPeriodRepository) Create(ctx context.Context, period payroll.PayrollPeriod) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_periods (
			school_id, month, year, start_date, end_date,
			total_working_days, holidays, weekends, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + payrollPeriodColumns

	created, err := scanPayrollPeriod(q.QueryRow(ctx, query,
		period.SchoolID, period.Month, period.Year, period.StartDate, period.EndDate,
		period.TotalWorkingDays, period.Holidays, period.Weekends, string(period.Status),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodAlreadyExists
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to create payroll period: %w", err)
	}
	return created, nil
}

func (r *payrollPeriodRepository) GetByID(ctx context.Context, id string) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollPeriodColumns + ` FROM payroll_periods WHERE id = $1`

	p, err := scanPayrollPeriod(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to get payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollPeriodRepository) GetBySchoolMonth(ctx context.Context, schoolID string, month, year int) (payroll.PayrollPeriod, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollPeriodColumns + `
		FROM payroll_periods
		WHERE school_id = $1 AND month = $2 AND year = $3`

	p, err := scanPayrollPeriod(q.QueryRow(ctx, query, schoolID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
		}
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to get payroll period: %w", err)
	}
	return p, nil
}

func (r *payrollPeriodRepository) TransitionStatus(ctx context.Context, id string, from, to payroll.PeriodStatus) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := q.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update payroll period status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *payrollPeriodRepository) Complete(ctx context.Context, id string, totals payroll.PeriodTotals, processedBy string, processedAt time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_periods
		SET status = $2,
			total_employees = $3,
			total_gross_salary = $4,
			total_deductions = $5,
			total_net_salary = $6,
			processed_by = NULLIF($7, '')::uuid,
			processed_at = $8,
			updated_at = NOW()
		WHERE id = $1 AND status = $9
	`

	tag, err := q.Exec(ctx, query,
		id, string(payroll.PeriodStatusPendingApproval),
		totals.TotalEmployees, totals.TotalGrossSalary, totals.TotalDeductions, totals.TotalNetSalary,
		processedBy, processedAt, string(payroll.PeriodStatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete payroll period: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ========== ROSTER ==========

type payrollRosterRepository struct {
	db *database.DB
}

func NewPayrollRosterRepository(db *database.DB) payroll.RosterRepository {
	return &payrollRosterRepository{db: db}
}

func (r *payrollRosterRepository) ListActiveProfiles(ctx context.Context, schoolID string, period payroll.PayrollPeriod) ([]payroll.EmployeePayrollProfile, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT e.id, e.user_id, e.school_id, e.full_name,
			   e.account_number, e.ifsc_code, e.bank_name,
			   e.pending_bank_details, e.pending_id_details,
			   s.id, s.name, s.basic_salary, s.hra_percent, s.da_percent,
			   s.ta_amount, s.medical_allowance, s.special_allowance, s.gross_salary
		FROM employees e
		LEFT JOIN salary_structures s ON s.id = e.salary_structure_id
		WHERE e.school_id = $1 AND e.is_active = TRUE AND e.deleted_at IS NULL
		ORDER BY e.full_name, e.id
	`

	rows, err := q.Query(ctx, query, schoolID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll roster: %w", err)
	}
	defer rows.Close()

	var profiles []payroll.EmployeePayrollProfile
	for rows.Next() {
		var p payroll.EmployeePayrollProfile
		var (
			structureID, structureName                           *string
			basic, hra, da, ta, medical, special, structureGross decimal.NullDecimal
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.SchoolID, &p.Name,
			&p.AccountNumber, &p.IFSCCode, &p.BankName,
			&p.PendingBankDetails, &p.PendingIDDetails,
			&structureID, &structureName, &basic, &hra, &da,
			&ta, &medical, &special, &structureGross,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll roster: %w", err)
		}
		if structureID != nil {
			p.SalaryStructure = &payroll.SalaryStructure{
				ID:               *structureID,
				BasicSalary:      basic.Decimal,
				HRAPercent:       hra.Decimal,
				DAPercent:        da.Decimal,
				TAAmount:         ta.Decimal,
				MedicalAllowance: medical.Decimal,
				SpecialAllowance: special.Decimal,
				GrossSalary:      structureGross.Decimal,
			}
			if structureName != nil {
				p.SalaryStructure.Name = *structureName
			}
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll roster: %w", err)
	}
	if len(profiles) == 0 {
		return profiles, nil
	}

	ids := make([]string, len(profiles))
	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		index[p.ID] = i
	}

	loans, err := r.listLoans(ctx, q, ids, period)
	if err != nil {
		return nil, err
	}
	for employeeID, list := range loans {
		profiles[index[employeeID]].Loans = list
	}

	deductions, err := r.listDeductions(ctx, q, ids, period)
	if err != nil {
		return nil, err
	}
	for employeeID, list := range deductions {
		profiles[index[employeeID]].Deductions = list
	}

	return profiles, nil
}

// listLoans returns active loans with the repayments scheduled in the
// period that are still pending or were deducted by this same period.
func (r *payrollRosterRepository) listLoans(ctx context.Context, q database.Querier, employeeIDs []string, period payroll.PayrollPeriod) (map[string][]payroll.Loan, error) {
	query := `
		SELECT l.employee_id, l.id, l.emi_amount,
			   lr.id, lr.month, lr.year, lr.amount, lr.status
		FROM loans l
		JOIN loan_repayments lr ON lr.loan_id = l.id
		WHERE l.employee_id = ANY($1)
		  AND l.status = 'ACTIVE'
		  AND lr.month = $2 AND lr.year = $3
		  AND (lr.status = 'PENDING' OR (lr.status = 'DEDUCTED' AND lr.deducted_period_id = $4))
		ORDER BY l.employee_id, l.id, lr.id
	`

	rows, err := q.Query(ctx, query, employeeIDs, period.Month, period.Year, period.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]payroll.Loan)
	for rows.Next() {
		var employeeID, status string
		var loan payroll.Loan
		var rp payroll.LoanRepayment
		if err := rows.Scan(
			&employeeID, &loan.ID, &loan.EMIAmount,
			&rp.ID, &rp.Month, &rp.Year, &rp.Amount, &status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		rp.LoanID = loan.ID
		rp.Status = payroll.LoanRepaymentStatus(status)

		list := result[employeeID]
		if n := len(list); n > 0 && list[n-1].ID == loan.ID {
			list[n-1].Repayments = append(list[n-1].Repayments, rp)
		} else {
			loan.Repayments = []payroll.LoanRepayment{rp}
			list = append(list, loan)
		}
		result[employeeID] = list
	}
	return result, rows.Err()
}

func (r *payrollRosterRepository) listDeductions(ctx context.Context, q database.Querier, employeeIDs []string, period payroll.PayrollPeriod) (map[string][]payroll.Deduction, error) {
	query := `
		SELECT employee_id, id, description, amount, frequency, start_date, end_date
		FROM employee_deductions
		WHERE employee_id = ANY($1)
		  AND is_active = TRUE
		  AND start_date <= $3
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY employee_id, start_date, id
	`

	rows, err := q.Query(ctx, query, employeeIDs, period.StartDate, period.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list deductions: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]payroll.Deduction)
	for rows.Next() {
		var employeeID, frequency string
		var d payroll.Deduction
		if err := rows.Scan(&employeeID, &d.ID, &d.Description, &d.Amount, &frequency, &d.StartDate, &d.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan deduction: %w", err)
		}
		d.Frequency = payroll.DeductionFrequency(frequency)
		result[employeeID] = append(result[employeeID], d)
	}
	return result, rows.Err()
}

// ========== ITEMS ==========

type payrollItemRepository struct {
	db *database.DB
}

func NewPayrollItemRepository(db *database.DB) payroll.ItemRepository {
	return &payrollItemRepository{db: db}
}

const payrollItemColumns = `
	pi.id, pi.period_id, pi.employee_id,
	pi.days_worked, pi.days_absent, pi.days_leave, pi.days_holiday,
	pi.late_count, pi.half_day_count, pi.unpaid_leave_days,
	pi.basic_earned, pi.hra_earned, pi.da_earned, pi.ta_earned,
	pi.medical_earned, pi.special_earned, pi.gross_earnings,
	pi.pf_employee, pi.pf_employer, pi.esi_employee, pi.esi_employer,
	pi.professional_tax, pi.tds, pi.loan_deduction,
	pi.other_deductions, pi.other_deduction_lines, pi.loss_of_pay, pi.total_deductions,
	pi.readiness, pi.hold_reason, pi.net_salary, pi.payment_status,
	pi.created_at, pi.updated_at`

func scanPayrollItem(row pgx.Row, extra ...any) (payroll.PayrollItem, error) {
	var it payroll.PayrollItem
	var linesJSON []byte
	var readiness, paymentStatus string
	dest := []any{
		&it.ID, &it.PeriodID, &it.EmployeeID,
		&it.DaysWorked, &it.DaysAbsent, &it.DaysLeave, &it.DaysHoliday,
		&it.LateCount, &it.HalfDayCount, &it.UnpaidLeaveDays,
		&it.BasicEarned, &it.HRAEarned, &it.DAEarned, &it.TAEarned,
		&it.MedicalEarned, &it.SpecialEarned, &it.GrossEarnings,
		&it.PFEmployee, &it.PFEmployer, &it.ESIEmployee, &it.ESIEmployer,
		&it.ProfessionalTax, &it.TDS, &it.LoanDeduction,
		&it.OtherDeductions, &linesJSON, &it.LossOfPay, &it.TotalDeductions,
		&readiness, &it.HoldReason, &it.NetSalary, &paymentStatus,
		&it.CreatedAt, &it.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return payroll.PayrollItem{}, err
	}
	it.Readiness = payroll.Readiness(readiness)
	it.PaymentStatus = payroll.PaymentStatus(paymentStatus)
	if len(linesJSON) > 0 {
		if err := json.Unmarshal(linesJSON, &it.OtherDeductionLines); err != nil {
			return payroll.PayrollItem{}, fmt.Errorf("failed to decode deduction lines: %w", err)
		}
	}
	return it, nil
}

// Upsert writes the item keyed by (period_id, employee_id), replacing every
// computed field of an existing row.
func (r *payrollItemRepository) Upsert(ctx context.Context, item payroll.PayrollItem) (payroll.PayrollItem, error) {
	q := GetQuerier(ctx, r.db)

	lines := item.OtherDeductionLines
	if lines == nil {
		lines = []payroll.DeductionLine{}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return payroll.PayrollItem{}, fmt.Errorf("failed to encode deduction lines: %w", err)
	}

	query := `
		INSERT INTO payroll_items AS pi (
			period_id, employee_id,
			days_worked, days_absent, days_leave, days_holiday,
			late_count, half_day_count, unpaid_leave_days,
			basic_earned, hra_earned, da_earned, ta_earned,
			medical_earned, special_earned, gross_earnings,
			pf_employee, pf_employer, esi_employee, esi_employer,
			professional_tax, tds, loan_deduction,
			other_deductions, other_deduction_lines, loss_of_pay, total_deductions,
			readiness, hold_reason, net_salary, payment_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)
		ON CONFLICT (period_id, employee_id) DO UPDATE SET
			days_worked = EXCLUDED.days_worked,
			days_absent = EXCLUDED.days_absent,
			days_leave = EXCLUDED.days_leave,
			days_holiday = EXCLUDED.days_holiday,
			late_count = EXCLUDED.late_count,
			half_day_count = EXCLUDED.half_day_count,
			unpaid_leave_days = EXCLUDED.unpaid_leave_days,
			basic_earned = EXCLUDED.basic_earned,
			hra_earned = EXCLUDED.hra_earned,
			da_earned = EXCLUDED.da_earned,
			ta_earned = EXCLUDED.ta_earned,
			medical_earned = EXCLUDED.medical_earned,
			special_earned = EXCLUDED.special_earned,
			gross_earnings = EXCLUDED.gross_earnings,
			pf_employee = EXCLUDED.pf_employee,
			pf_employer = EXCLUDED.pf_employer,
			esi_employee = EXCLUDED.esi_employee,
			esi_employer = EXCLUDED.esi_employer,
			professional_tax = EXCLUDED.professional_tax,
			tds = EXCLUDED.tds,
			loan_deduction = EXCLUDED.loan_deduction,
			other_deductions = EXCLUDED.other_deductions,
			other_deduction_lines = EXCLUDED.other_deduction_lines,
			loss_of_pay = EXCLUDED.loss_of_pay,
			total_deductions = EXCLUDED.total_deductions,
			readiness = EXCLUDED.readiness,
			hold_reason = EXCLUDED.hold_reason,
			net_salary = EXCLUDED.net_salary,
			payment_status = EXCLUDED.payment_status,
			updated_at = NOW()
		RETURNING ` + payrollItemColumns

	saved, err := scanPayrollItem(q.QueryRow(ctx, query,
		item.PeriodID, item.EmployeeID,
		item.DaysWorked, item.DaysAbsent, item.DaysLeave, item.DaysHoliday,
		item.LateCount, item.HalfDayCount, item.UnpaidLeaveDays,
		item.BasicEarned, item.HRAEarned, item.DAEarned, item.TAEarned,
		item.MedicalEarned, item.SpecialEarned, item.GrossEarnings,
		item.PFEmployee, item.PFEmployer, item.ESIEmployee, item.ESIEmployer,
		item.ProfessionalTax, item.TDS, item.LoanDeduction,
		item.OtherDeductions, linesJSON, item.LossOfPay, item.TotalDeductions,
		string(item.Readiness), item.HoldReason, item.NetSalary, string(item.PaymentStatus),
	))
	if err != nil {
		return payroll.PayrollItem{}, fmt.Errorf("failed to upsert payroll item: %w", err)
	}
	saved.EmployeeName = item.EmployeeName
	return saved, nil
}

func (r *payrollItemRepository) GetByPeriodEmployee(ctx context.Context, periodID, employeeID string) (payroll.PayrollItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollItemColumns + `, e.full_name
		FROM payroll_items pi
		LEFT JOIN employees e ON e.id = pi.employee_id
		WHERE pi.period_id = $1 AND pi.employee_id = $2`

	var name *string
	it, err := scanPayrollItem(q.QueryRow(ctx, query, periodID, employeeID), &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollItem{}, payroll.ErrItemNotFound
		}
		return payroll.PayrollItem{}, fmt.Errorf("failed to get payroll item: %w", err)
	}
	it.EmployeeName = name
	return it, nil
}

func (r *payrollItemRepository) ListByPeriod(ctx context.Context, periodID string) ([]payroll.PayrollItem, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollItemColumns + `, e.full_name
		FROM payroll_items pi
		LEFT JOIN employees e ON e.id = pi.employee_id
		WHERE pi.period_id = $1
		ORDER BY e.full_name, pi.employee_id`

	rows, err := q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll items: %w", err)
	}
	defer rows.Close()

	items := []payroll.PayrollItem{}
	for rows.Next() {
		var name *string
		it, err := scanPayrollItem(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll item: %w", err)
		}
		it.EmployeeName = name
		items = append(items, it)
	}
	return items, rows.Err()
}

// SumByPeriod aggregates every stored item of the period, including
// skipped and fallback rows.
func (r *payrollItemRepository) SumByPeriod(ctx context.Context, periodID string) (payroll.PeriodTotals, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(gross_earnings), 0),
			   COALESCE(SUM(total_deductions), 0),
			   COALESCE(SUM(net_salary), 0)
		FROM payroll_items
		WHERE period_id = $1
	`

	var t payroll.PeriodTotals
	if err := q.QueryRow(ctx, query, periodID).Scan(
		&t.TotalEmployees, &t.TotalGrossSalary, &t.TotalDeductions, &t.TotalNetSalary,
	); err != nil {
		return payroll.PeriodTotals{}, fmt.Errorf("failed to sum payroll items: %w", err)
	}
	return t, nil
}

// ========== LOANS ==========

type loanRepository struct {
	db *database.DB
}

func NewLoanRepository(db *database.DB) payroll.LoanRepository {
	return &loanRepository{db: db}
}

// MarkRepaymentsDeducted records that periodID deducted the repayments.
// Rows already deducted by the same period are left as they are.
func (r *loanRepository) MarkRepaymentsDeducted(ctx context.Context, repaymentIDs []string, periodID string) error {
	if len(repaymentIDs) == 0 {
		return nil
	}

	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE loan_repayments
		SET status = 'DEDUCTED', deducted_period_id = $2, deducted_at = NOW()
		WHERE id = ANY($1) AND status = 'PENDING'
	`

	if _, err := q.Exec(ctx, query, repaymentIDs, periodID); err != nil {
		return fmt.Errorf("failed to mark loan repayments deducted: %w", err)
	}
	return nil
}
