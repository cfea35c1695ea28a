package payroll

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lgu-hrms/internal/payroll"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateEmployee(ctx context.Context, tenantID string, employee Employee) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (tenant_id, employee_number, first_name, last_name, department, position, classification,
                           monthly_salary, daily_rate, representation_allowance, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10::numeric,$11)
    RETURNING id
  `, tenantID, employee.EmployeeNumber, employee.FirstName, employee.LastName, employee.Department, employee.Position,
		employee.Classification, employee.MonthlySalary.String(), decimalArg(employee.DailyRate),
		decimalArg(employee.RepresentationAllowance), EmployeeStatusActive).Scan(&id)
	if isPgCode(err, pgUniqueViolation) {
		return "", ErrEmployeeExists
	}
	return id, err
}

func (s *Store) CountEmployees(ctx context.Context, tenantID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM employees WHERE tenant_id = $1`, tenantID).Scan(&total)
	return total, err
}

const employeeColumns = `id, employee_number, first_name, last_name, department, position, classification,
           monthly_salary::text, daily_rate::text, representation_allowance::text`

func (s *Store) ListEmployees(ctx context.Context, tenantID string, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE tenant_id = $1
    ORDER BY employee_number
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmployees(rows)
}

func scanEmployees(rows pgx.Rows) ([]Employee, error) {
	out := []Employee{}
	for rows.Next() {
		var e Employee
		var monthly string
		var daily, rata *string
		if err := rows.Scan(&e.ID, &e.EmployeeNumber, &e.FirstName, &e.LastName, &e.Department, &e.Position,
			&e.Classification, &monthly, &daily, &rata); err != nil {
			return nil, err
		}
		var err error
		if e.MonthlySalary, err = decimal.NewFromString(monthly); err != nil {
			return nil, err
		}
		if e.DailyRate, err = optionalDecimal(daily); err != nil {
			return nil, err
		}
		if e.RepresentationAllowance, err = optionalDecimal(rata); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CreatePeriod(ctx context.Context, tenantID string, in PeriodInput) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_periods (tenant_id, year, month, sequence, start_date, end_date, pay_date, working_days, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, tenantID, in.Year, in.Month, in.Sequence, in.StartDate, in.EndDate, in.PayDate, in.WorkingDays, PeriodStatusDraft).Scan(&id)
	if isPgCode(err, pgUniqueViolation) {
		return "", ErrPeriodExists
	}
	return id, err
}

func (s *Store) CountPeriods(ctx context.Context, tenantID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM payroll_periods WHERE tenant_id = $1`, tenantID).Scan(&total)
	return total, err
}

const periodColumns = `id, year, month, sequence, start_date, end_date, pay_date, working_days, status, created_at, finalized_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Year, &p.Month, &p.Sequence, &p.StartDate, &p.EndDate, &p.PayDate, &p.WorkingDays,
		&p.Status, &p.CreatedAt, &p.FinalizedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, ErrPeriodNotFound
	}
	return p, err
}

func (s *Store) ListPeriods(ctx context.Context, tenantID string, limit, offset int) ([]Period, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+periodColumns+`
    FROM payroll_periods
    WHERE tenant_id = $1
    ORDER BY year DESC, month DESC, sequence DESC
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Period{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	return scanPeriod(s.DB.QueryRow(ctx, `
    SELECT `+periodColumns+`
    FROM payroll_periods
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, periodID))
}

const resultColumns = `r.period_id, r.employee_id, e.employee_number, r.status,
           r.basic_pay::text, r.total_allowances::text, r.gross::text, r.deductions::text,
           r.taxable_income::text, r.net::text, r.warnings_json, r.errors_json, r.breakdown_json,
           r.failure, r.tax_table`

func scanResult(row pgx.Row) (StoredResult, error) {
	var r StoredResult
	var basic, allowances, gross, deductions, taxable, net string
	var warningsJSON, errorsJSON, breakdownJSON []byte
	err := row.Scan(&r.PeriodID, &r.EmployeeID, &r.EmployeeNumber, &r.Status, &basic, &allowances, &gross,
		&deductions, &taxable, &net, &warningsJSON, &errorsJSON, &breakdownJSON, &r.Failure, &r.TaxTable)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredResult{}, ErrResultNotFound
	}
	if err != nil {
		return StoredResult{}, err
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{basic, &r.BasicPay}, {allowances, &r.TotalAllowances}, {gross, &r.Gross},
		{deductions, &r.Deductions}, {taxable, &r.TaxableIncome}, {net, &r.Net},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return StoredResult{}, err
		}
	}
	if err := json.Unmarshal(warningsJSON, &r.Warnings); err != nil {
		return StoredResult{}, err
	}
	if err := json.Unmarshal(errorsJSON, &r.Errors); err != nil {
		return StoredResult{}, err
	}
	if len(breakdownJSON) > 0 {
		var breakdown payroll.Breakdown
		if err := json.Unmarshal(breakdownJSON, &breakdown); err != nil {
			return StoredResult{}, err
		}
		r.Breakdown = &breakdown
	}
	return r, nil
}

func (s *Store) ListResults(ctx context.Context, tenantID, periodID string) ([]StoredResult, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+resultColumns+`
    FROM payroll_results r
    JOIN employees e ON r.employee_id = e.id
    WHERE r.tenant_id = $1 AND r.period_id = $2
    ORDER BY e.employee_number
  `, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetResult(ctx context.Context, tenantID, periodID, employeeID string) (StoredResult, error) {
	return scanResult(s.DB.QueryRow(ctx, `
    SELECT `+resultColumns+`
    FROM payroll_results r
    JOIN employees e ON r.employee_id = e.id
    WHERE r.tenant_id = $1 AND r.period_id = $2 AND r.employee_id = $3
  `, tenantID, periodID, employeeID))
}

func (s *Store) GetPayslip(ctx context.Context, tenantID, payslipID string) (Payslip, error) {
	var p Payslip
	err := s.DB.QueryRow(ctx, `
    SELECT id, period_id, employee_id, file_url, encrypted, created_at
    FROM payslips
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, payslipID).Scan(&p.ID, &p.PeriodID, &p.EmployeeID, &p.FileURL, &p.Encrypted, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payslip{}, ErrPayslipNotFound
	}
	return p, err
}

func (s *Store) UpdatePayslipFile(ctx context.Context, payslipID, fileURL string, encrypted bool) error {
	_, err := s.DB.Exec(ctx, `UPDATE payslips SET file_url = $1, encrypted = $2 WHERE id = $3`, fileURL, encrypted, payslipID)
	return err
}

func (s *Store) WithPeriodLock(ctx context.Context, tenantID, periodID string, fn func(PeriodTx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`, "payroll_period:"+periodID).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		return ErrRunInProgress
	}
	if err := fn(&periodTx{tx: tx, tenantID: tenantID, periodID: periodID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type periodTx struct {
	tx       pgx.Tx
	tenantID string
	periodID string
}

func (t *periodTx) Period(ctx context.Context) (Period, error) {
	return scanPeriod(t.tx.QueryRow(ctx, `
    SELECT `+periodColumns+`
    FROM payroll_periods
    WHERE tenant_id = $1 AND id = $2
    FOR UPDATE
  `, t.tenantID, t.periodID))
}

func (t *periodTx) SetStatus(ctx context.Context, status string) error {
	var finalizedAt any
	if status == PeriodStatusFinalized {
		finalizedAt = time.Now().UTC()
	}
	tag, err := t.tx.Exec(ctx, `
    UPDATE payroll_periods
    SET status = $1,
        reviewed_at = CASE WHEN $1 = 'reviewed' THEN now() ELSE reviewed_at END,
        finalized_at = $2
    WHERE tenant_id = $3 AND id = $4
  `, status, finalizedAt, t.tenantID, t.periodID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (t *periodTx) LoadRunInputs(ctx context.Context) (RunInputs, error) {
	period, err := t.Period(ctx)
	if err != nil {
		return RunInputs{}, err
	}
	in := RunInputs{
		Period:     period,
		Attendance: map[string]Attendance{},
		Deductions: map[string][]AdHocDeduction{},
	}

	rows, err := t.tx.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE tenant_id = $1 AND status = $2
    ORDER BY employee_number
  `, t.tenantID, EmployeeStatusActive)
	if err != nil {
		return RunInputs{}, err
	}
	in.Employees, err = scanEmployees(rows)
	rows.Close()
	if err != nil {
		return RunInputs{}, err
	}

	rows, err = t.tx.Query(ctx, `
    SELECT employee_id, days_present::float8, days_lwop::float8, days_paid_leave::float8, basic_pay_override::text
    FROM payroll_attendance
    WHERE tenant_id = $1 AND period_id = $2
  `, t.tenantID, t.periodID)
	if err != nil {
		return RunInputs{}, err
	}
	for rows.Next() {
		var a Attendance
		var override *string
		if err := rows.Scan(&a.EmployeeID, &a.DaysPresent, &a.DaysLWOP, &a.DaysPaidLeave, &override); err != nil {
			rows.Close()
			return RunInputs{}, err
		}
		if a.BasicPayOverride, err = optionalDecimal(override); err != nil {
			rows.Close()
			return RunInputs{}, err
		}
		in.Attendance[a.EmployeeID] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return RunInputs{}, err
	}

	rows, err = t.tx.Query(ctx, `
    SELECT id, employee_id, code, name, amount::text, reference
    FROM payroll_adhoc_deductions
    WHERE tenant_id = $1 AND period_id = $2
    ORDER BY created_at, id
  `, t.tenantID, t.periodID)
	if err != nil {
		return RunInputs{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var d AdHocDeduction
		var code, amount string
		if err := rows.Scan(&d.ID, &d.EmployeeID, &code, &d.Name, &amount, &d.Reference); err != nil {
			return RunInputs{}, err
		}
		d.Code = payroll.Code(code)
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return RunInputs{}, err
		}
		in.Deductions[d.EmployeeID] = append(in.Deductions[d.EmployeeID], d)
	}
	return in, rows.Err()
}

func (t *periodTx) ReplaceResults(ctx context.Context, results []StoredResult) error {
	if _, err := t.DeleteResults(ctx); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		warningsJSON, err := json.Marshal(r.Warnings)
		if err != nil {
			return err
		}
		errorsJSON, err := json.Marshal(r.Errors)
		if err != nil {
			return err
		}
		var breakdownJSON []byte
		if r.Breakdown != nil {
			if breakdownJSON, err = json.Marshal(r.Breakdown); err != nil {
				return err
			}
		}
		batch.Queue(`
      INSERT INTO payroll_results (tenant_id, period_id, employee_id, status, basic_pay, total_allowances, gross,
                                   deductions, taxable_income, net, warnings_json, errors_json, breakdown_json,
                                   failure, tax_table)
      VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11,$12,$13,$14,$15)
    `, t.tenantID, t.periodID, r.EmployeeID, r.Status, r.BasicPay.String(), r.TotalAllowances.String(),
			r.Gross.String(), r.Deductions.String(), r.TaxableIncome.String(), r.Net.String(),
			warningsJSON, errorsJSON, breakdownJSON, r.Failure, r.TaxTable)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *periodTx) CountComputed(ctx context.Context) (int, error) {
	var total int
	err := t.tx.QueryRow(ctx, `
    SELECT COUNT(1) FROM payroll_results
    WHERE tenant_id = $1 AND period_id = $2 AND status = $3
  `, t.tenantID, t.periodID, ResultStatusComputed).Scan(&total)
	return total, err
}

func (t *periodTx) UpsertAttendance(ctx context.Context, a Attendance) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO payroll_attendance (tenant_id, period_id, employee_id, days_present, days_lwop, days_paid_leave, basic_pay_override)
    VALUES ($1,$2,$3,$4,$5,$6,$7::numeric)
    ON CONFLICT (period_id, employee_id) DO UPDATE
    SET days_present = EXCLUDED.days_present,
        days_lwop = EXCLUDED.days_lwop,
        days_paid_leave = EXCLUDED.days_paid_leave,
        basic_pay_override = EXCLUDED.basic_pay_override,
        updated_at = now()
  `, t.tenantID, t.periodID, a.EmployeeID, a.DaysPresent, a.DaysLWOP, a.DaysPaidLeave, decimalArg(a.BasicPayOverride))
	if isPgCode(err, pgForeignKeyViolation) {
		return ErrEmployeeNotFound
	}
	return err
}

func (t *periodTx) CreateDeduction(ctx context.Context, d AdHocDeduction) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
    INSERT INTO payroll_adhoc_deductions (tenant_id, period_id, employee_id, code, name, amount, reference)
    VALUES ($1,$2,$3,$4,$5,$6::numeric,$7)
    RETURNING id
  `, t.tenantID, t.periodID, d.EmployeeID, string(d.Code), d.Name, d.Amount.String(), d.Reference).Scan(&id)
	if isPgCode(err, pgForeignKeyViolation) {
		return "", ErrEmployeeNotFound
	}
	return id, err
}

// CreatePayslips inserts one payslip per computed result and returns them all,
// including any that already existed.
func (t *periodTx) CreatePayslips(ctx context.Context) ([]Payslip, error) {
	if _, err := t.tx.Exec(ctx, `
    INSERT INTO payslips (tenant_id, period_id, employee_id)
    SELECT tenant_id, period_id, employee_id
    FROM payroll_results
    WHERE tenant_id = $1 AND period_id = $2 AND status = $3
    ON CONFLICT (period_id, employee_id) DO NOTHING
  `, t.tenantID, t.periodID, ResultStatusComputed); err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
    SELECT id, period_id, employee_id, file_url, encrypted, created_at
    FROM payslips
    WHERE tenant_id = $1 AND period_id = $2
  `, t.tenantID, t.periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Payslip{}
	for rows.Next() {
		var p Payslip
		if err := rows.Scan(&p.ID, &p.PeriodID, &p.EmployeeID, &p.FileURL, &p.Encrypted, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteResults removes results and payslips for the period.
func (t *periodTx) DeleteResults(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
    DELETE FROM payslips
    WHERE tenant_id = $1 AND period_id = $2
    RETURNING file_url
  `, t.tenantID, t.periodID)
	if err != nil {
		return nil, err
	}
	files, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	files = slices.DeleteFunc(files, func(f string) bool { return f == "" })

	if _, err := t.tx.Exec(ctx, `DELETE FROM payroll_results WHERE tenant_id = $1 AND period_id = $2`, t.tenantID, t.periodID); err != nil {
		return nil, err
	}
	return files, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func optionalDecimal(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
