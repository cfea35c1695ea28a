package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"lgu-hrms/internal/payroll"
	cryptoutil "lgu-hrms/internal/platform/crypto"
	"lgu-hrms/internal/platform/metrics"
)

const defaultWorkers = 8

var validate = validator.New(validator.WithRequiredStructEnabled())

type Service struct {
	store      StoreAPI
	engine     *payroll.Engine
	crypto     *cryptoutil.Service
	metrics    *metrics.Collector
	workers    int
	payslipDir string
}

type Option func(*Service)

// WithWorkers bounds how many employees a run computes concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithPayslipDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.payslipDir = dir
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store StoreAPI, engine *payroll.Engine, crypto *cryptoutil.Service, opts ...Option) *Service {
	s := &Service{
		store:      store,
		engine:     engine,
		crypto:     crypto,
		workers:    defaultWorkers,
		payslipDir: filepath.Join("storage", "payslips"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TaxTable() payroll.TaxTable {
	return s.engine.TaxTable()
}

func (s *Service) CreateEmployee(ctx context.Context, tenantID string, employee Employee) (Employee, error) {
	if err := validateEmployee(employee); err != nil {
		return Employee{}, err
	}
	id, err := s.store.CreateEmployee(ctx, tenantID, employee)
	if err != nil {
		return Employee{}, err
	}
	employee.ID = id
	return employee, nil
}

func (s *Service) ListEmployees(ctx context.Context, tenantID string, limit, offset int) ([]Employee, int, error) {
	total, err := s.store.CountEmployees(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	employees, err := s.store.ListEmployees(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

func (s *Service) CreatePeriod(ctx context.Context, tenantID string, in PeriodInput) (Period, error) {
	if err := validateStruct(ErrInvalidPeriod, in); err != nil {
		return Period{}, err
	}
	id, err := s.store.CreatePeriod(ctx, tenantID, in)
	if err != nil {
		return Period{}, err
	}
	return s.store.GetPeriod(ctx, tenantID, id)
}

func (s *Service) ListPeriods(ctx context.Context, tenantID string, limit, offset int) ([]Period, int, error) {
	total, err := s.store.CountPeriods(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	periods, err := s.store.ListPeriods(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return periods, total, nil
}

func (s *Service) GetPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	return s.store.GetPeriod(ctx, tenantID, periodID)
}

// UpsertAttendance replaces the attendance facts for one employee. Editing a
// reviewed period sends it back to draft so it must be run again.
func (s *Service) UpsertAttendance(ctx context.Context, tenantID, periodID string, attendance Attendance) error {
	if err := validateStruct(ErrInvalidAttendance, attendance); err != nil {
		return err
	}
	if attendance.BasicPayOverride != nil && attendance.BasicPayOverride.IsNegative() {
		return &ValidationError{Err: ErrInvalidAttendance, Fields: []payroll.FieldError{{Field: "basicPayOverride", Reason: "must not be negative"}}}
	}
	return s.store.WithPeriodLock(ctx, tenantID, periodID, func(tx PeriodTx) error {
		if err := editable(ctx, tx); err != nil {
			return err
		}
		return tx.UpsertAttendance(ctx, attendance)
	})
}

func (s *Service) AddDeduction(ctx context.Context, tenantID, periodID string, deduction AdHocDeduction) (AdHocDeduction, error) {
	if deduction.Code == "" {
		deduction.Code = payroll.CodeAdHoc
	}
	if deduction.Name == "" {
		deduction.Name = deduction.Code.Name()
	}
	var fields []payroll.FieldError
	if deduction.EmployeeID == "" {
		fields = append(fields, payroll.FieldError{Field: "employeeId", Reason: "required"})
	}
	if deduction.Amount.IsNegative() {
		fields = append(fields, payroll.FieldError{Field: "amount", Reason: "must not be negative"})
	}
	if len(fields) > 0 {
		return AdHocDeduction{}, &ValidationError{Err: ErrInvalidDeduction, Fields: fields}
	}

	err := s.store.WithPeriodLock(ctx, tenantID, periodID, func(tx PeriodTx) error {
		if err := editable(ctx, tx); err != nil {
			return err
		}
		id, err := tx.CreateDeduction(ctx, deduction)
		if err != nil {
			return err
		}
		deduction.ID = id
		return nil
	})
	if err != nil {
		return AdHocDeduction{}, err
	}
	return deduction, nil
}

func editable(ctx context.Context, tx PeriodTx) error {
	period, err := tx.Period(ctx)
	if err != nil {
		return err
	}
	switch period.Status {
	case PeriodStatusFinalized:
		return ErrPeriodFinalized
	case PeriodStatusReviewed:
		return tx.SetStatus(ctx, PeriodStatusDraft)
	}
	return nil
}

// RunPeriod computes every active employee for the period and replaces its
// stored results. Employees whose data fails validation are stored as failed
// rows; the rest of the batch still completes.
func (s *Service) RunPeriod(ctx context.Context, tenantID, periodID string) (RunSummary, error) {
	var summary RunSummary
	err := s.store.WithPeriodLock(ctx, tenantID, periodID, func(tx PeriodTx) error {
		in, err := tx.LoadRunInputs(ctx)
		if err != nil {
			return err
		}
		if in.Period.Status == PeriodStatusFinalized {
			return ErrPeriodFinalized
		}
		results, err := s.computeAll(ctx, in)
		if err != nil {
			return err
		}
		if err := tx.ReplaceResults(ctx, results); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, PeriodStatusReviewed); err != nil {
			return err
		}
		summary = summarize(in.Period.ID, PeriodStatusReviewed, s.engine.TaxTable().Label(), results)
		return nil
	})
	if err != nil {
		return RunSummary{}, err
	}

	s.metrics.RecordPayrollRun(summary.Computed, summary.Failed, summary.Anomalies[payroll.ErrorNegativeNetClamped], summary.Anomalies)
	slog.Info("payroll run completed",
		"tenantId", tenantID,
		"periodId", periodID,
		"employees", summary.Employees,
		"computed", summary.Computed,
		"failed", summary.Failed,
		"withErrors", len(summary.EmployeesWithErrors),
	)
	return summary, nil
}

func (s *Service) computeAll(ctx context.Context, in RunInputs) ([]StoredResult, error) {
	period := in.Period.EnginePeriod()
	results := make([]StoredResult, len(in.Employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, employee := range in.Employees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			req := payroll.Request{
				Profile:     employee.Profile(),
				Period:      period,
				WorkingDays: in.Period.WorkingDays,
			}
			if attendance, ok := in.Attendance[employee.ID]; ok {
				req.Attendance = attendance.Facts()
			}
			for _, d := range in.Deductions[employee.ID] {
				req.Deductions = append(req.Deductions, d.Request())
			}

			res, err := s.engine.Compute(req)
			if errors.Is(err, payroll.ErrInvalidInput) {
				slog.Warn("payroll input rejected", "periodId", in.Period.ID, "employeeId", employee.ID, "err", err)
				results[i] = failedResult(in.Period.ID, employee, err)
				return nil
			}
			if err != nil {
				return fmt.Errorf("compute employee %s: %w", employee.ID, err)
			}
			results[i] = newStoredResult(in.Period.ID, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Preview computes a single request without touching storage.
func (s *Service) Preview(req payroll.Request) (Preview, error) {
	res, err := s.engine.Compute(req)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Result: res, Breakdown: payroll.BuildBreakdown(res)}, nil
}

func (s *Service) PeriodSummary(ctx context.Context, tenantID, periodID string) (PeriodSummary, error) {
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	results, err := s.store.ListResults(ctx, tenantID, periodID)
	if err != nil {
		return PeriodSummary{}, err
	}
	return summarize(period.ID, period.Status, "", results), nil
}

func (s *Service) GetResult(ctx context.Context, tenantID, periodID, employeeID string) (StoredResult, error) {
	return s.store.GetResult(ctx, tenantID, periodID, employeeID)
}

// FinalizePeriod locks a reviewed period and issues payslips. PDF rendering
// happens after commit; a payslip that fails to render is rendered again on
// first download.
func (s *Service) FinalizePeriod(ctx context.Context, tenantID, periodID string) (FinalizeOutcome, error) {
	var payslips []Payslip
	err := s.store.WithPeriodLock(ctx, tenantID, periodID, func(tx PeriodTx) error {
		period, err := tx.Period(ctx)
		if err != nil {
			return err
		}
		if period.Status == PeriodStatusFinalized {
			return ErrPeriodFinalized
		}
		if period.Status != PeriodStatusReviewed {
			return ErrFinalizeInvalidState
		}
		computed, err := tx.CountComputed(ctx)
		if err != nil {
			return err
		}
		if computed == 0 {
			return ErrFinalizeNoResults
		}
		if err := tx.SetStatus(ctx, PeriodStatusFinalized); err != nil {
			return err
		}
		payslips, err = tx.CreatePayslips(ctx)
		return err
	})
	if err != nil {
		return FinalizeOutcome{}, err
	}

	var rendered atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, p := range payslips {
		g.Go(func() error {
			if _, err := s.renderPayslip(ctx, tenantID, p); err != nil {
				slog.Warn("payslip render failed", "payslipId", p.ID, "periodId", periodID, "err", err)
				return nil
			}
			rendered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return FinalizeOutcome{
		PeriodID: periodID,
		Status:   PeriodStatusFinalized,
		Payslips: len(payslips),
		Rendered: int(rendered.Load()),
	}, nil
}

// ReopenPeriod returns a reviewed or finalized period to draft and discards its
// results and payslips.
func (s *Service) ReopenPeriod(ctx context.Context, tenantID, periodID string) (Period, error) {
	var (
		before Period
		files  []string
	)
	err := s.store.WithPeriodLock(ctx, tenantID, periodID, func(tx PeriodTx) error {
		period, err := tx.Period(ctx)
		if err != nil {
			return err
		}
		if period.Status != PeriodStatusReviewed && period.Status != PeriodStatusFinalized {
			return ErrReopenInvalidState
		}
		before = period
		if files, err = tx.DeleteResults(ctx); err != nil {
			return err
		}
		return tx.SetStatus(ctx, PeriodStatusDraft)
	})
	if err != nil {
		return before, err
	}

	// Payslip files are removed only after the delete has committed.
	for _, file := range files {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("payslip file not removed", "periodId", periodID, "file", file, "err", err)
		}
	}
	return before, nil
}

// PayslipFile returns the plain PDF for a payslip, rendering it again when the
// stored file is missing.
func (s *Service) PayslipFile(ctx context.Context, tenantID, payslipID string) ([]byte, Payslip, error) {
	p, err := s.store.GetPayslip(ctx, tenantID, payslipID)
	if err != nil {
		return nil, Payslip{}, err
	}
	if p.FileURL != "" {
		data, err := os.ReadFile(p.FileURL)
		switch {
		case err == nil:
			if !p.Encrypted {
				return data, p, nil
			}
			if !s.crypto.Configured() {
				return nil, p, ErrPayslipUnavailable
			}
			plain, err := s.crypto.Decrypt(data, []byte(p.ID))
			if err != nil {
				return nil, p, fmt.Errorf("decrypt payslip: %w", err)
			}
			return plain, p, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, p, err
		}
	}

	plain, err := s.renderPayslip(ctx, tenantID, p)
	if err != nil {
		return nil, p, err
	}
	return plain, p, nil
}

// renderPayslip writes the payslip PDF under payslipDir and records its path.
// It returns the unencrypted PDF.
func (s *Service) renderPayslip(ctx context.Context, tenantID string, p Payslip) ([]byte, error) {
	res, err := s.store.GetResult(ctx, tenantID, p.PeriodID, p.EmployeeID)
	if err != nil {
		return nil, err
	}
	if res.Breakdown == nil {
		return nil, ErrPayslipUnavailable
	}
	pdf, err := RenderPayslipPDF(*res.Breakdown)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.payslipDir, 0o755); err != nil {
		return nil, err
	}
	encrypted := s.crypto.Configured()
	data := pdf
	path := filepath.Join(s.payslipDir, p.ID+".pdf")
	if encrypted {
		if data, err = s.crypto.Encrypt(pdf, []byte(p.ID)); err != nil {
			return nil, err
		}
		path += ".enc"
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePayslipFile(ctx, p.ID, path, encrypted); err != nil {
		return nil, err
	}
	return pdf, nil
}

func validateEmployee(employee Employee) error {
	var fields []payroll.FieldError
	if err := validate.Struct(employee); err != nil {
		fields = fieldErrors(err)
	}
	if employee.MonthlySalary.IsNegative() {
		fields = append(fields, payroll.FieldError{Field: "monthlySalary", Reason: "must not be negative"})
	}
	if employee.DailyRate != nil && employee.DailyRate.IsNegative() {
		fields = append(fields, payroll.FieldError{Field: "dailyRate", Reason: "must not be negative"})
	}
	if employee.RepresentationAllowance != nil && employee.RepresentationAllowance.IsNegative() {
		fields = append(fields, payroll.FieldError{Field: "representationAllowance", Reason: "must not be negative"})
	}
	if len(fields) > 0 {
		return &ValidationError{Err: ErrInvalidEmployee, Fields: fields}
	}
	return nil
}

func validateStruct(sentinel error, value any) error {
	if err := validate.Struct(value); err != nil {
		return &ValidationError{Err: sentinel, Fields: fieldErrors(err)}
	}
	return nil
}

func fieldErrors(err error) []payroll.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []payroll.FieldError{{Field: "", Reason: err.Error()}}
	}
	out := make([]payroll.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		out = append(out, payroll.FieldError{Field: fe.Field(), Reason: reason})
	}
	return out
}

// RegeneratePayslip renders the payslip PDF again from the stored breakdown.
func (s *Service) RegeneratePayslip(ctx context.Context, tenantID, payslipID string) (Payslip, error) {
	p, err := s.store.GetPayslip(ctx, tenantID, payslipID)
	if err != nil {
		return Payslip{}, err
	}
	if _, err := s.renderPayslip(ctx, tenantID, p); err != nil {
		return Payslip{}, err
	}
	return s.store.GetPayslip(ctx, tenantID, payslipID)
}

// Register lists the stored results of a period for export.
func (s *Service) Register(ctx context.Context, tenantID, periodID string) (Period, []StoredResult, error) {
	period, err := s.store.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return Period{}, nil, err
	}
	results, err := s.store.ListResults(ctx, tenantID, periodID)
	if err != nil {
		return Period{}, nil, err
	}
	return period, results, nil
}
