package payroll

import (
	"errors"
	"strings"

	"lgu-hrms/internal/payroll"
)

var (
	ErrPeriodNotFound       = errors.New("payroll period not found")
	ErrPeriodExists         = errors.New("payroll period already exists")
	ErrPeriodFinalized      = errors.New("payroll period is finalized")
	ErrRunInProgress        = errors.New("payroll run already in progress for period")
	ErrFinalizeInvalidState = errors.New("payroll period must be reviewed before finalize")
	ErrFinalizeNoResults    = errors.New("payroll period has no computed payroll results")
	ErrReopenInvalidState   = errors.New("only reviewed or finalized periods can be reopened")
	ErrResultNotFound       = errors.New("payroll result not found")
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrEmployeeExists       = errors.New("employee number already exists")
	ErrPayslipNotFound      = errors.New("payslip not found")
	ErrPayslipUnavailable   = errors.New("payslip file not available")
	ErrInvalidPeriod        = errors.New("invalid payroll period")
	ErrInvalidEmployee      = errors.New("invalid employee")
	ErrInvalidAttendance    = errors.New("invalid attendance")
	ErrInvalidDeduction     = errors.New("invalid deduction")
)

// ValidationError carries field-level reasons for one of the ErrInvalid* sentinels.
type ValidationError struct {
	Err    error
	Fields []payroll.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return e.Err.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
