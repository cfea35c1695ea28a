package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("invalid payroll input")

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// InputError reports contract violations that indicate corrupt upstream data.
// Business-rule anomalies never produce an InputError.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateRequest(req Request) error {
	var fields []FieldError
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, fe := range verrs {
			reason := fe.Tag()
			if fe.Param() != "" {
				reason += "=" + fe.Param()
			}
			fields = append(fields, FieldError{Field: strings.TrimPrefix(fe.Namespace(), "Request."), Reason: reason})
		}
	}

	if start, end := req.Period.StartDate, req.Period.EndDate; start.IsZero() != end.IsZero() {
		if start.IsZero() {
			fields = append(fields, FieldError{Field: "Period.StartDate", Reason: "required_with=EndDate"})
		} else {
			fields = append(fields, FieldError{Field: "Period.EndDate", Reason: "required_with=StartDate"})
		}
	}
	if req.Profile.MonthlySalary.IsNegative() {
		fields = append(fields, FieldError{Field: "Profile.MonthlySalary", Reason: "must not be negative"})
	}
	if req.Profile.DailyRate != nil && req.Profile.DailyRate.IsNegative() {
		fields = append(fields, FieldError{Field: "Profile.DailyRate", Reason: "must not be negative"})
	}
	if req.Profile.RepresentationAllowance != nil && req.Profile.RepresentationAllowance.IsNegative() {
		fields = append(fields, FieldError{Field: "Profile.RepresentationAllowance", Reason: "must not be negative"})
	}
	if req.Attendance != nil && req.Attendance.BasicPayOverride != nil && req.Attendance.BasicPayOverride.IsNegative() {
		fields = append(fields, FieldError{Field: "Attendance.BasicPayOverride", Reason: "must not be negative"})
	}
	for i, d := range req.Deductions {
		if d.Amount.IsNegative() {
			fields = append(fields, FieldError{Field: fmt.Sprintf("Deductions[%d].Amount", i), Reason: "must not be negative"})
		}
	}

	if len(fields) > 0 {
		return &InputError{Fields: fields}
	}
	return nil
}
