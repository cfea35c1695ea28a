package payroll

import "context"

type StoreAPI interface {
	CreateEmployee(ctx context.Context, tenantID string, employee Employee) (string, error)
	CountEmployees(ctx context.Context, tenantID string) (int, error)
	ListEmployees(ctx context.Context, tenantID string, limit, offset int) ([]Employee, error)
	CreatePeriod(ctx context.Context, tenantID string, in PeriodInput) (string, error)
	CountPeriods(ctx context.Context, tenantID string) (int, error)
	ListPeriods(ctx context.Context, tenantID string, limit, offset int) ([]Period, error)
	GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error)
	ListResults(ctx context.Context, tenantID, periodID string) ([]StoredResult, error)
	GetResult(ctx context.Context, tenantID, periodID, employeeID string) (StoredResult, error)
	GetPayslip(ctx context.Context, tenantID, payslipID string) (Payslip, error)
	UpdatePayslipFile(ctx context.Context, payslipID, fileURL string, encrypted bool) error
	// WithPeriodLock runs fn in a transaction holding the period's advisory
	// lock. It returns ErrRunInProgress when another transaction holds it.
	WithPeriodLock(ctx context.Context, tenantID, periodID string, fn func(PeriodTx) error) error
}

// PeriodTx is the view of the store available while the period lock is held.
type PeriodTx interface {
	Period(ctx context.Context) (Period, error)
	SetStatus(ctx context.Context, status string) error
	LoadRunInputs(ctx context.Context) (RunInputs, error)
	ReplaceResults(ctx context.Context, results []StoredResult) error
	CountComputed(ctx context.Context) (int, error)
	UpsertAttendance(ctx context.Context, attendance Attendance) error
	CreateDeduction(ctx context.Context, deduction AdHocDeduction) (string, error)
	CreatePayslips(ctx context.Context) ([]Payslip, error)
	// DeleteResults returns the file locations of the payslips it removed.
	DeleteResults(ctx context.Context) ([]string, error)
}
