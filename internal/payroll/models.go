package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type Code string

const (
	CodePERA           Code = "PERA"
	CodeRATA           Code = "RATA"
	CodeHazard         Code = "HAZARD"
	CodeGSIS           Code = "GSIS"
	CodePagIBIG        Code = "PAGIBIG"
	CodePhilHealth     Code = "PHILHEALTH"
	CodeWithholdingTax Code = "WTAX"
	CodeLoan           Code = "LOAN"
	CodeAdHoc          Code = "ADHOC"
)

var codeNames = map[Code]string{
	CodePERA:           "Personnel Economic Relief Allowance",
	CodeRATA:           "Representation and Transportation Allowance",
	CodeHazard:         "Hazard Pay",
	CodeGSIS:           "GSIS Personal Share",
	CodePagIBIG:        "Pag-IBIG Contribution",
	CodePhilHealth:     "PhilHealth Contribution",
	CodeWithholdingTax: "Withholding Tax",
	CodeLoan:           "Loan Repayment",
	CodeAdHoc:          "Other Deduction",
}

// Name returns the display name registered for a known code, or the code itself.
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return string(c)
}

// EmployeeProfile is supplied by the employee directory and never mutated by the engine.
type EmployeeProfile struct {
	ID                      string           `json:"id"`
	Name                    string           `json:"name"`
	EmployeeNumber          string           `json:"employeeNumber"`
	MonthlySalary           decimal.Decimal  `json:"monthlySalary"`
	DailyRate               *decimal.Decimal `json:"dailyRate,omitempty"`
	RepresentationAllowance *decimal.Decimal `json:"representationAllowance,omitempty"`
	Department              string           `json:"department,omitempty"`
	Position                string           `json:"position,omitempty"`
	Classification          string           `json:"classification,omitempty"`
}

type PayPeriod struct {
	ID          string    `json:"id"`
	Year        int       `json:"year" validate:"omitempty,gte=1900,lte=9999"`
	Month       int       `json:"month" validate:"omitempty,min=1,max=12"`
	Sequence    int       `json:"sequence" validate:"omitempty,oneof=1 2"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate" validate:"omitempty,gtefield=StartDate"`
	PayDate     time.Time `json:"payDate"`
	WorkingDays int       `json:"workingDays" validate:"gte=0"`
}

// AttendanceFacts defaults to full attendance when nil. A nil DaysPresent means
// every working day not covered by leave was attended.
type AttendanceFacts struct {
	DaysPresent      *float64         `json:"daysPresent,omitempty" validate:"omitempty,gte=0"`
	DaysLWOP         float64          `json:"daysLwop" validate:"gte=0"`
	DaysPaidLeave    float64          `json:"daysPaidLeave" validate:"gte=0"`
	BasicPayOverride *decimal.Decimal `json:"basicPayOverride,omitempty"`
}

type DeductionRequest struct {
	Code      Code            `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type Request struct {
	Profile     EmployeeProfile    `json:"profile"`
	Period      PayPeriod          `json:"period"`
	WorkingDays int                `json:"workingDays" validate:"gte=0"`
	Attendance  *AttendanceFacts   `json:"attendance,omitempty"`
	Deductions  []DeductionRequest `json:"deductions,omitempty"`
}

type LineItem struct {
	Code    Code            `json:"code"`
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Basis   string          `json:"basis"`
	Taxable bool            `json:"taxable"`
}

type Notice struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
}

const (
	WarningZeroAttendance       = "zero_attendance"
	WarningAttendanceExceeds    = "attendance_exceeds_working_days"
	WarningSalaryMissing        = "monthly_salary_missing"
	WarningDailyRateDerived     = "daily_rate_derived"
	WarningWorkingDaysDefaulted = "working_days_defaulted"
	WarningLWOPExceedsPay       = "lwop_exceeds_basic_pay"
	WarningContributionClamped  = "contribution_clamped"
	WarningTaxableFloored       = "taxable_income_floored"
	WarningAllowanceRuleFailed  = "allowance_rule_failed"

	ErrorNegativeNetClamped = "negative_net_clamped"
)

type EmployeeRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmployeeNumber string `json:"employeeNumber"`
	Department     string `json:"department,omitempty"`
	Position       string `json:"position,omitempty"`
	Classification string `json:"classification,omitempty"`
}

type PeriodRef struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Sequence  int       `json:"sequence"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	PayDate   time.Time `json:"payDate"`
}

// ResolvedAttendance is the attendance actually used after defaults and clamping.
type ResolvedAttendance struct {
	WorkingDays   int     `json:"workingDays"`
	DaysPresent   float64 `json:"daysPresent"`
	DaysLWOP      float64 `json:"daysLwop"`
	DaysPaidLeave float64 `json:"daysPaidLeave"`
	Defaulted     bool    `json:"defaulted"`
	Overridden    bool    `json:"overridden"`
}

// PaidDays counts the days that earn basic pay.
func (a ResolvedAttendance) PaidDays() float64 {
	return a.DaysPresent + a.DaysPaidLeave
}

type Result struct {
	Employee        EmployeeRef        `json:"employee"`
	Period          PeriodRef          `json:"period"`
	Rates           Rates              `json:"rates"`
	Attendance      ResolvedAttendance `json:"attendance"`
	ProratedPay     decimal.Decimal    `json:"proratedPay"`
	BasicPay        decimal.Decimal    `json:"basicPay"`
	LWOPDeduction   decimal.Decimal    `json:"lwopDeduction"`
	Allowances      []LineItem         `json:"allowances"`
	TotalAllowances decimal.Decimal    `json:"totalAllowances"`
	Deductions      []LineItem         `json:"deductions"`
	TotalDeductions decimal.Decimal    `json:"totalDeductions"`
	GrossPay        decimal.Decimal    `json:"grossPay"`
	TaxableIncome   decimal.Decimal    `json:"taxableIncome"`
	NetPay          decimal.Decimal    `json:"netPay"`
	TaxTable        string             `json:"taxTable"`
	Warnings        []Notice           `json:"warnings"`
	Errors          []Notice           `json:"errors"`
}

func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}
