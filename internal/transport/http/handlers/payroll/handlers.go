package payrollhandler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"lgu-hrms/internal/domain/audit"
	"lgu-hrms/internal/domain/auth"
	payrolldomain "lgu-hrms/internal/domain/payroll"
	"lgu-hrms/internal/payroll"
	"lgu-hrms/internal/platform/jobs"
	"lgu-hrms/internal/requestctx"
	"lgu-hrms/internal/transport/http/api"
	"lgu-hrms/internal/transport/http/middleware"
	"lgu-hrms/internal/transport/http/shared"
)

const endpointFinalize = "payroll.finalize"

// PayrollService is the subset of the payroll domain service the HTTP layer calls.
type PayrollService interface {
	TaxTable() payroll.TaxTable
	CreateEmployee(ctx context.Context, tenantID string, employee payrolldomain.Employee) (payrolldomain.Employee, error)
	ListEmployees(ctx context.Context, tenantID string, limit, offset int) ([]payrolldomain.Employee, int, error)
	CreatePeriod(ctx context.Context, tenantID string, in payrolldomain.PeriodInput) (payrolldomain.Period, error)
	ListPeriods(ctx context.Context, tenantID string, limit, offset int) ([]payrolldomain.Period, int, error)
	GetPeriod(ctx context.Context, tenantID, periodID string) (payrolldomain.Period, error)
	UpsertAttendance(ctx context.Context, tenantID, periodID string, attendance payrolldomain.Attendance) error
	AddDeduction(ctx context.Context, tenantID, periodID string, deduction payrolldomain.AdHocDeduction) (payrolldomain.AdHocDeduction, error)
	RunPeriod(ctx context.Context, tenantID, periodID string) (payrolldomain.RunSummary, error)
	Preview(req payroll.Request) (payrolldomain.Preview, error)
	PeriodSummary(ctx context.Context, tenantID, periodID string) (payrolldomain.PeriodSummary, error)
	GetResult(ctx context.Context, tenantID, periodID, employeeID string) (payrolldomain.StoredResult, error)
	FinalizePeriod(ctx context.Context, tenantID, periodID string) (payrolldomain.FinalizeOutcome, error)
	ReopenPeriod(ctx context.Context, tenantID, periodID string) (payrolldomain.Period, error)
	PayslipFile(ctx context.Context, tenantID, payslipID string) ([]byte, payrolldomain.Payslip, error)
	RegeneratePayslip(ctx context.Context, tenantID, payslipID string) (payrolldomain.Payslip, error)
	Register(ctx context.Context, tenantID, periodID string) (payrolldomain.Period, []payrolldomain.StoredResult, error)
}

// JobQueue runs work in the background and records it in job_runs.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType, tenantID string, run jobs.RunFunc) (string, error)
}

type Handler struct {
	Service     PayrollService
	Perms       middleware.PermissionStore
	Audit       audit.Recorder
	Jobs        JobQueue
	Idempotency middleware.IdempotencyStore
}

func NewHandler(service PayrollService, perms middleware.PermissionStore, recorder audit.Recorder, queue JobQueue, idem middleware.IdempotencyStore) *Handler {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Handler{Service: service, Perms: perms, Audit: recorder, Jobs: queue, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPayrollRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)
	run := middleware.RequirePermission(auth.PermPayrollRun, h.Perms)
	finalize := middleware.RequirePermission(auth.PermPayrollFinalize, h.Perms)

	r.Route("/payroll", func(r chi.Router) {
		r.With(read).Get("/tax-table", h.handleTaxTable)
		r.With(read).Post("/preview", h.handlePreview)
		r.With(read).Get("/employees", h.handleListEmployees)
		r.With(write).Post("/employees", h.handleCreateEmployee)
		r.With(read).Get("/periods", h.handleListPeriods)
		r.With(write).Post("/periods", h.handleCreatePeriod)
		r.With(read).Get("/periods/{periodID}", h.handleGetPeriod)
		r.With(write).Put("/periods/{periodID}/attendance/{employeeID}", h.handleUpsertAttendance)
		r.With(write).Post("/periods/{periodID}/deductions", h.handleAddDeduction)
		r.With(run).Post("/periods/{periodID}/run", h.handleRunPayroll)
		r.With(read).Get("/periods/{periodID}/summary", h.handlePeriodSummary)
		r.With(read).Get("/periods/{periodID}/results/{employeeID}", h.handleGetResult)
		r.With(read).Get("/periods/{periodID}/export/register", h.handleExportRegister)
		r.With(finalize).Post("/periods/{periodID}/finalize", h.handleFinalizePayroll)
		r.With(finalize).Post("/periods/{periodID}/reopen", h.handleReopenPeriod)
		r.With(read).Get("/payslips/{payslipID}/download", h.handleDownloadPayslip)
		r.With(finalize).Post("/payslips/{payslipID}/regenerate", h.handleRegeneratePayslip)
	})
}

func (h *Handler) handleTaxTable(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.TaxTable(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req payroll.Request
	if !decodeBody(w, r, &req) {
		return
	}
	preview, err := h.Service.Preview(req)
	if err != nil {
		writeError(w, r, err, "payroll_preview_failed", "failed to compute payroll preview")
		return
	}
	api.Success(w, preview, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)
	employees, total, err := h.Service.ListEmployees(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "employees_list_failed", "failed to list employees")
		return
	}
	api.Success(w, api.Page{Items: employees, Total: total, Limit: page.Limit, Offset: page.Offset}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload payrolldomain.Employee
	if !decodeBody(w, r, &payload) {
		return
	}
	payload.ID = ""
	employee, err := h.Service.CreateEmployee(r.Context(), user.TenantID, payload)
	if err != nil {
		writeError(w, r, err, "employee_create_failed", "failed to create employee")
		return
	}
	api.Created(w, employee, middleware.GetRequestID(r.Context()))
}

type periodPayload struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Sequence    int    `json:"sequence"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	PayDate     string `json:"payDate"`
	WorkingDays int    `json:"workingDays"`
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, shared.DefaultPageLimit, shared.MaxPageLimit)
	periods, total, err := h.Service.ListPeriods(r.Context(), user.TenantID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "payroll_periods_failed", "failed to list payroll periods")
		return
	}
	api.Success(w, api.Page{Items: periods, Total: total, Limit: page.Limit, Offset: page.Offset}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload periodPayload
	if !decodeBody(w, r, &payload) {
		return
	}

	v := shared.NewValidator()
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	payDate := v.OptionalDate("payDate", payload.PayDate)
	v.DateOrder("startDate", start, "endDate", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	period, err := h.Service.CreatePeriod(r.Context(), user.TenantID, payrolldomain.PeriodInput{
		Year:        payload.Year,
		Month:       payload.Month,
		Sequence:    payload.Sequence,
		StartDate:   start,
		EndDate:     end,
		PayDate:     payDate,
		WorkingDays: payload.WorkingDays,
	})
	if err != nil {
		writeError(w, r, err, "payroll_period_create_failed", "failed to create payroll period")
		return
	}
	api.Created(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	period, err := h.Service.GetPeriod(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		writeError(w, r, err, "payroll_period_failed", "failed to load payroll period")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpsertAttendance(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload payrolldomain.Attendance
	if !decodeBody(w, r, &payload) {
		return
	}
	payload.EmployeeID = chi.URLParam(r, "employeeID")
	if err := h.Service.UpsertAttendance(r.Context(), user.TenantID, chi.URLParam(r, "periodID"), payload); err != nil {
		writeError(w, r, err, "payroll_attendance_failed", "failed to save attendance")
		return
	}
	api.Success(w, payload, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddDeduction(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload payrolldomain.AdHocDeduction
	if !decodeBody(w, r, &payload) {
		return
	}
	payload.ID = ""
	deduction, err := h.Service.AddDeduction(r.Context(), user.TenantID, chi.URLParam(r, "periodID"), payload)
	if err != nil {
		writeError(w, r, err, "payroll_deduction_failed", "failed to add deduction")
		return
	}
	api.Created(w, deduction, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunPayroll(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	requestID := middleware.GetRequestID(r.Context())
	ip := shared.ClientIP(r)

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && h.Jobs != nil {
		if _, err := h.Service.GetPeriod(r.Context(), user.TenantID, periodID); err != nil {
			writeError(w, r, err, "payroll_run_failed", "failed to run payroll")
			return
		}
		runID, err := h.Jobs.Enqueue(r.Context(), jobs.JobPayrollRun, user.TenantID, func(ctx context.Context) (any, error) {
			ctx = requestctx.WithActor(requestctx.WithRequestID(ctx, requestID), user.TenantID, user.UserID)
			summary, err := h.Service.RunPeriod(ctx, user.TenantID, periodID)
			if err != nil {
				return nil, err
			}
			h.record(ctx, user, audit.ActionPayrollRun, periodID, requestID, ip, nil, summary)
			return summary, nil
		})
		if err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				api.Fail(w, http.StatusServiceUnavailable, "queue_full", "payroll run queue is full, retry later", requestID)
				return
			}
			writeError(w, r, err, "payroll_run_enqueue_failed", "failed to queue payroll run")
			return
		}
		api.Accepted(w, map[string]string{"runId": runID, "periodId": periodID, "status": jobs.StatusQueued}, requestID)
		return
	}

	summary, err := h.Service.RunPeriod(r.Context(), user.TenantID, periodID)
	if err != nil {
		writeError(w, r, err, "payroll_run_failed", "failed to run payroll")
		return
	}
	h.record(r.Context(), user, audit.ActionPayrollRun, periodID, requestID, ip, nil, summary)
	api.Success(w, summary, requestID)
}

func (h *Handler) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.PeriodSummary(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		writeError(w, r, err, "payroll_summary_failed", "failed to load payroll summary")
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := h.Service.GetResult(r.Context(), user.TenantID, chi.URLParam(r, "periodID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err, "payroll_result_failed", "failed to load payroll result")
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFinalizePayroll(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	requestID := middleware.GetRequestID(r.Context())
	logger := requestctx.Logger(r.Context())

	idempotencyKey := middleware.IdempotencyKey(r)
	requestHash := middleware.RequestHash([]byte(periodID))
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), user.TenantID, user.UserID, endpointFinalize, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for a different request", requestID)
			return
		}
		if err != nil {
			logger.Warn("idempotency check failed", "err", err)
		}
		if found {
			var replay payrolldomain.FinalizeOutcome
			if err := json.Unmarshal(stored, &replay); err == nil {
				w.Header().Set("Idempotent-Replay", "true")
				api.Success(w, replay, requestID)
				return
			}
			logger.Warn("idempotency replay decode failed", "key", idempotencyKey)
		}
	}

	outcome, err := h.Service.FinalizePeriod(r.Context(), user.TenantID, periodID)
	if err != nil {
		writeError(w, r, err, "payroll_finalize_failed", "failed to finalize payroll")
		return
	}
	h.record(r.Context(), user, audit.ActionPayrollFinalize, periodID, requestID, shared.ClientIP(r), nil, outcome)

	if idempotencyKey != "" && h.Idempotency != nil {
		if body, err := json.Marshal(outcome); err != nil {
			logger.Warn("idempotency encode failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), user.TenantID, user.UserID, endpointFinalize, idempotencyKey, requestHash, body); err != nil {
			logger.Warn("idempotency save failed", "err", err)
		}
	}
	api.Success(w, outcome, requestID)
}

func (h *Handler) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	periodID := chi.URLParam(r, "periodID")
	before, err := h.Service.ReopenPeriod(r.Context(), user.TenantID, periodID)
	if err != nil {
		writeError(w, r, err, "payroll_reopen_failed", "failed to reopen payroll period")
		return
	}
	after := map[string]string{"id": periodID, "status": payrolldomain.PeriodStatusDraft}
	h.record(r.Context(), user, audit.ActionPayrollReopen, periodID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(ctx context.Context, user auth.UserContext, action, periodID, requestID, ip string, before, after any) {
	err := h.Audit.Record(ctx, audit.Event{
		TenantID:   user.TenantID,
		ActorID:    user.UserID,
		Action:     action,
		EntityType: audit.EntityPayrollPeriod,
		EntityID:   periodID,
		RequestID:  requestID,
		IP:         ip,
		Before:     before,
		After:      after,
	})
	if err != nil {
		requestctx.Logger(ctx).Warn("audit record failed", "action", action, "periodId", periodID, "err", err)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return auth.UserContext{}, false
	}
	return user, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := shared.DecodeJSON(r, dst)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
		return false
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
	return false
}

// writeError maps domain and engine errors onto the response envelope.
// Anything unrecognised is logged and reported with the fallback code.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode, fallbackMessage string) {
	requestID := middleware.GetRequestID(r.Context())

	var validation *payrolldomain.ValidationError
	if errors.As(err, &validation) {
		shared.FailValidation(w, requestID, shared.FieldIssues(validation.Fields))
		return
	}
	var input *payroll.InputError
	if errors.As(err, &input) {
		shared.FailValidation(w, requestID, shared.FieldIssues(input.Fields))
		return
	}

	switch {
	case errors.Is(err, payroll.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrPeriodNotFound),
		errors.Is(err, payrolldomain.ErrEmployeeNotFound),
		errors.Is(err, payrolldomain.ErrResultNotFound),
		errors.Is(err, payrolldomain.ErrPayslipNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrPayslipUnavailable):
		api.Fail(w, http.StatusNotFound, "payslip_unavailable", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrPeriodExists),
		errors.Is(err, payrolldomain.ErrEmployeeExists):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrPeriodFinalized):
		api.Fail(w, http.StatusConflict, "period_finalized", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrRunInProgress):
		api.Fail(w, http.StatusConflict, "run_in_progress", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrFinalizeInvalidState),
		errors.Is(err, payrolldomain.ErrReopenInvalidState):
		api.Fail(w, http.StatusBadRequest, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payrolldomain.ErrFinalizeNoResults):
		api.Fail(w, http.StatusBadRequest, "no_results", err.Error(), requestID)
	default:
		requestctx.Logger(r.Context()).Error("payroll request failed", "code", fallbackCode, "path", r.URL.Path, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, fallbackMessage, requestID)
	}
}
