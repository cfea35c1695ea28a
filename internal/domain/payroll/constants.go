package payroll

const (
	PeriodStatusDraft     = "draft"
	PeriodStatusReviewed  = "reviewed"
	PeriodStatusFinalized = "finalized"

	ResultStatusComputed = "computed"
	ResultStatusFailed   = "failed"

	EmployeeStatusActive = "active"
)
