package payrollhandler

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lgu-hrms/internal/requestctx"
	"lgu-hrms/internal/transport/http/api"
	"lgu-hrms/internal/transport/http/middleware"
)

func (h *Handler) handleDownloadPayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	payslipID := chi.URLParam(r, "payslipID")
	data, payslip, err := h.Service.PayslipFile(r.Context(), user.TenantID, payslipID)
	if err != nil {
		writeError(w, r, err, "payslip_download_failed", "failed to load payslip")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=payslip-"+payslip.ID+".pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		requestctx.Logger(r.Context()).Warn("payslip write failed", "payslipId", payslipID, "err", err)
	}
}

func (h *Handler) handleRegeneratePayslip(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	payslip, err := h.Service.RegeneratePayslip(r.Context(), user.TenantID, chi.URLParam(r, "payslipID"))
	if err != nil {
		writeError(w, r, err, "payslip_regenerate_failed", "failed to regenerate payslip")
		return
	}
	api.Success(w, payslip, middleware.GetRequestID(r.Context()))
}

var registerHeader = []string{
	"employee_id",
	"employee_number",
	"status",
	"basic_pay",
	"allowances",
	"gross",
	"deductions",
	"taxable_income",
	"net",
	"warnings",
	"errors",
}

func (h *Handler) handleExportRegister(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	period, results, err := h.Service.Register(r.Context(), user.TenantID, chi.URLParam(r, "periodID"))
	if err != nil {
		writeError(w, r, err, "export_failed", "failed to export register")
		return
	}

	logger := requestctx.Logger(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=payroll-register-"+period.Label()+".csv")
	writer := csv.NewWriter(w)
	if err := writer.Write(registerHeader); err != nil {
		logger.Warn("export register header write failed", "err", err)
	}
	for _, res := range results {
		row := []string{
			res.EmployeeID,
			res.EmployeeNumber,
			res.Status,
			res.BasicPay.StringFixed(2),
			res.TotalAllowances.StringFixed(2),
			res.Gross.StringFixed(2),
			res.Deductions.StringFixed(2),
			res.TaxableIncome.StringFixed(2),
			res.Net.StringFixed(2),
			strconv.Itoa(len(res.Warnings)),
			strconv.Itoa(len(res.Errors)),
		}
		if err := writer.Write(row); err != nil {
			logger.Warn("export register row write failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.Warn("export register flush failed", "err", err)
	}
}
