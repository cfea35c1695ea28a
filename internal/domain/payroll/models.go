package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lgu-hrms/internal/payroll"
)

type Period struct {
	ID          string     `json:"id"`
	Year        int        `json:"year"`
	Month       int        `json:"month"`
	Sequence    int        `json:"sequence"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	PayDate     *time.Time `json:"payDate,omitempty"`
	WorkingDays int        `json:"workingDays"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
}

func (p Period) Label() string {
	return fmt.Sprintf("%04d-%02d-%d", p.Year, p.Month, p.Sequence)
}

func (p Period) EnginePeriod() payroll.PayPeriod {
	out := payroll.PayPeriod{
		ID:          p.ID,
		Year:        p.Year,
		Month:       p.Month,
		Sequence:    p.Sequence,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		WorkingDays: p.WorkingDays,
	}
	if p.PayDate != nil {
		out.PayDate = *p.PayDate
	}
	return out
}

type PeriodInput struct {
	Year        int        `json:"year" validate:"gte=1900,lte=9999"`
	Month       int        `json:"month" validate:"min=1,max=12"`
	Sequence    int        `json:"sequence" validate:"oneof=1 2"`
	StartDate   time.Time  `json:"startDate" validate:"required"`
	EndDate     time.Time  `json:"endDate" validate:"required,gtefield=StartDate"`
	PayDate     *time.Time `json:"payDate,omitempty"`
	WorkingDays int        `json:"workingDays" validate:"gt=0,lte=31"`
}

type Employee struct {
	ID                      string           `json:"id"`
	EmployeeNumber          string           `json:"employeeNumber" validate:"required,max=32"`
	FirstName               string           `json:"firstName" validate:"required"`
	LastName                string           `json:"lastName" validate:"required"`
	Department              string           `json:"department"`
	Position                string           `json:"position"`
	Classification          string           `json:"classification"`
	MonthlySalary           decimal.Decimal  `json:"monthlySalary"`
	DailyRate               *decimal.Decimal `json:"dailyRate,omitempty"`
	RepresentationAllowance *decimal.Decimal `json:"representationAllowance,omitempty"`
}

func (e Employee) Profile() payroll.EmployeeProfile {
	return payroll.EmployeeProfile{
		ID:                      e.ID,
		Name:                    e.FirstName + " " + e.LastName,
		EmployeeNumber:          e.EmployeeNumber,
		MonthlySalary:           e.MonthlySalary,
		DailyRate:               e.DailyRate,
		RepresentationAllowance: e.RepresentationAllowance,
		Department:              e.Department,
		Position:                e.Position,
		Classification:          e.Classification,
	}
}

type Attendance struct {
	EmployeeID       string           `json:"employeeId" validate:"required"`
	DaysPresent      *float64         `json:"daysPresent,omitempty" validate:"omitempty,gte=0,lte=31"`
	DaysLWOP         float64          `json:"daysLwop" validate:"gte=0,lte=31"`
	DaysPaidLeave    float64          `json:"daysPaidLeave" validate:"gte=0,lte=31"`
	BasicPayOverride *decimal.Decimal `json:"basicPayOverride,omitempty"`
}

func (a Attendance) Facts() *payroll.AttendanceFacts {
	return &payroll.AttendanceFacts{
		DaysPresent:      a.DaysPresent,
		DaysLWOP:         a.DaysLWOP,
		DaysPaidLeave:    a.DaysPaidLeave,
		BasicPayOverride: a.BasicPayOverride,
	}
}

type AdHocDeduction struct {
	ID         string          `json:"id"`
	EmployeeID string          `json:"employeeId"`
	Code       payroll.Code    `json:"code"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
}

func (d AdHocDeduction) Request() payroll.DeductionRequest {
	return payroll.DeductionRequest{Code: d.Code, Name: d.Name, Amount: d.Amount, Reference: d.Reference}
}

// RunInputs is everything a period run reads, loaded under the run lock.
type RunInputs struct {
	Period     Period
	Employees  []Employee
	Attendance map[string]Attendance
	Deductions map[string][]AdHocDeduction
}

type StoredResult struct {
	PeriodID        string             `json:"periodId"`
	EmployeeID      string             `json:"employeeId"`
	EmployeeNumber  string             `json:"employeeNumber,omitempty"`
	Status          string             `json:"status"`
	BasicPay        decimal.Decimal    `json:"basicPay"`
	TotalAllowances decimal.Decimal    `json:"totalAllowances"`
	Gross           decimal.Decimal    `json:"gross"`
	Deductions      decimal.Decimal    `json:"deductions"`
	TaxableIncome   decimal.Decimal    `json:"taxableIncome"`
	Net             decimal.Decimal    `json:"net"`
	Warnings        []payroll.Notice   `json:"warnings"`
	Errors          []payroll.Notice   `json:"errors"`
	Breakdown       *payroll.Breakdown `json:"breakdown,omitempty"`
	Failure         string             `json:"failure,omitempty"`
	TaxTable        string             `json:"taxTable,omitempty"`
}

func newStoredResult(periodID string, res payroll.Result) StoredResult {
	breakdown := payroll.BuildBreakdown(res)
	return StoredResult{
		PeriodID:        periodID,
		EmployeeID:      res.Employee.ID,
		EmployeeNumber:  res.Employee.EmployeeNumber,
		Status:          ResultStatusComputed,
		BasicPay:        res.BasicPay,
		TotalAllowances: res.TotalAllowances,
		Gross:           res.GrossPay,
		Deductions:      res.TotalDeductions,
		TaxableIncome:   res.TaxableIncome,
		Net:             res.NetPay,
		Warnings:        res.Warnings,
		Errors:          res.Errors,
		Breakdown:       &breakdown,
		TaxTable:        res.TaxTable,
	}
}

func failedResult(periodID string, employee Employee, err error) StoredResult {
	return StoredResult{
		PeriodID:       periodID,
		EmployeeID:     employee.ID,
		EmployeeNumber: employee.EmployeeNumber,
		Status:         ResultStatusFailed,
		Warnings:       []payroll.Notice{},
		Errors:         []payroll.Notice{},
		Failure:        err.Error(),
	}
}

type RunSummary struct {
	PeriodID            string          `json:"periodId"`
	Status              string          `json:"status"`
	Employees           int             `json:"employees"`
	Computed            int             `json:"computed"`
	Failed              int             `json:"failed"`
	TotalGross          decimal.Decimal `json:"totalGross"`
	TotalDeductions     decimal.Decimal `json:"totalDeductions"`
	TotalNet            decimal.Decimal `json:"totalNet"`
	Anomalies           map[string]int  `json:"anomalies"`
	EmployeesWithErrors []string        `json:"employeesWithErrors"`
	FailedEmployees     []string        `json:"failedEmployees"`
	TaxTable            string          `json:"taxTable"`
}

// PeriodSummary has the same shape as RunSummary but is rebuilt from stored results.
type PeriodSummary = RunSummary

func summarize(periodID, status, taxTable string, results []StoredResult) RunSummary {
	out := RunSummary{
		PeriodID:            periodID,
		Status:              status,
		Employees:           len(results),
		TotalGross:          decimal.Zero,
		TotalDeductions:     decimal.Zero,
		TotalNet:            decimal.Zero,
		Anomalies:           map[string]int{},
		EmployeesWithErrors: []string{},
		FailedEmployees:     []string{},
		TaxTable:            taxTable,
	}
	for _, r := range results {
		if r.Status == ResultStatusFailed {
			out.Failed++
			out.FailedEmployees = append(out.FailedEmployees, r.EmployeeID)
			continue
		}
		out.Computed++
		out.TotalGross = out.TotalGross.Add(r.Gross)
		out.TotalDeductions = out.TotalDeductions.Add(r.Deductions)
		out.TotalNet = out.TotalNet.Add(r.Net)
		for _, n := range r.Warnings {
			out.Anomalies[n.Code]++
		}
		for _, n := range r.Errors {
			out.Anomalies[n.Code]++
		}
		if len(r.Errors) > 0 {
			out.EmployeesWithErrors = append(out.EmployeesWithErrors, r.EmployeeID)
		}
		if out.TaxTable == "" {
			out.TaxTable = r.TaxTable
		}
	}
	return out
}

type Payslip struct {
	ID         string    `json:"id"`
	PeriodID   string    `json:"periodId"`
	EmployeeID string    `json:"employeeId"`
	FileURL    string    `json:"-"`
	Encrypted  bool      `json:"encrypted"`
	CreatedAt  time.Time `json:"createdAt"`
}

type FinalizeOutcome struct {
	PeriodID string `json:"periodId"`
	Status   string `json:"status"`
	Payslips int    `json:"payslips"`
	Rendered int    `json:"rendered"`
}

type Preview struct {
	Result    payroll.Result    `json:"result"`
	Breakdown payroll.Breakdown `json:"breakdown"`
}
