package payroll

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"lgu-hrms/internal/payroll"
)

const (
	pdfLabelWidth  = 120
	pdfAmountWidth = 60
	pdfLineHeight  = 7
)

// RenderPayslipPDF lays out a breakdown as a single-page A4 payslip.
func RenderPayslipPDF(b payroll.Breakdown) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payslip "+b.Employee.EmployeeNumber+" "+b.Period.Label, false)
	pdf.AddPage()
	// Core fonts are cp1252; names such as "Peña" need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	header := [][2]string{
		{"Employee", fmt.Sprintf("%s (%s)", b.Employee.Name, b.Employee.EmployeeNumber)},
		{"Department", b.Employee.Department},
		{"Position", b.Employee.Position},
		{"Period", b.Period.Label},
		{"Coverage", b.Period.Coverage},
		{"Pay date", b.Period.PayDate},
	}
	for _, row := range header {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(35, pdfLineHeight, row[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, pdfLineHeight, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	sectionTitle(pdf, "Salary")
	amountRow(pdf, "Monthly rate", b.Salary.MonthlyRate.Display)
	amountRow(pdf, "Daily rate", b.Salary.DailyRate.Display)
	amountRow(pdf, "Prorated pay", b.Salary.ProratedPay.Display)
	amountRow(pdf, "LWOP deduction", b.Salary.LWOPDeduction.Display)
	amountRow(pdf, "Basic pay", b.Salary.BasicPay.Display)
	if b.Salary.Proration != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, pdfLineHeight-1, b.Salary.Proration, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.Ln(3)

	lineSection(pdf, "Allowances", b.Allowances)
	lineSection(pdf, "Deductions", b.Deductions)

	sectionTitle(pdf, "Summary")
	amountRow(pdf, "Gross pay", b.Summary.GrossPay.Display)
	amountRow(pdf, "Taxable income", b.Summary.TaxableIncome.Display)
	amountRow(pdf, "Total deductions", b.Summary.TotalDeductions.Display)
	pdf.SetFont("Helvetica", "B", 12)
	amountRow(pdf, "Net pay", b.Summary.NetPay.Display)
	pdf.SetFont("Helvetica", "", 11)

	if len(b.Warnings)+len(b.Errors) > 0 {
		pdf.Ln(4)
		sectionTitle(pdf, "Notes")
		pdf.SetFont("Helvetica", "", 9)
		for _, n := range b.Errors {
			pdf.MultiCell(0, 5, "[error] "+n.Message, "", "L", false)
		}
		for _, n := range b.Warnings {
			pdf.MultiCell(0, 5, "[warning] "+n.Message, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render payslip: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, pdfLineHeight+1, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func amountRow(pdf *gofpdf.Fpdf, label, amount string) {
	pdf.CellFormat(pdfLabelWidth, pdfLineHeight, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(pdfAmountWidth, pdfLineHeight, amount, "", 1, "R", false, 0, "")
}

func lineSection(pdf *gofpdf.Fpdf, title string, section payroll.LineItemSection) {
	sectionTitle(pdf, title)
	if len(section.Items) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, pdfLineHeight, "None", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	for _, item := range section.Items {
		amountRow(pdf, item.Name, item.Amount.Display)
		if item.Basis != "" {
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, pdfLineHeight-2, "  "+item.Basis, "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
		}
	}
	pdf.SetFont("Helvetica", "B", 11)
	amountRow(pdf, "Subtotal", section.Subtotal.Display)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Ln(3)
}
