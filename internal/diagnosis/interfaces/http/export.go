package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	diagapp "wecar-diagnosis/internal/diagnosis/application"
	diagnosis "wecar-diagnosis/internal/diagnosis/domain"
	"wecar-diagnosis/internal/observability/metrics"
)

// Exporter renders request listings and single requests as XLSX/PDF.
// PDF output uses the built-in latin fonts, so headers are English and
// Korean free text is carried in the XLSX export only.
type Exporter struct {
	service *diagapp.RequestService
}

func NewExporter(service *diagapp.RequestService) *Exporter {
	return &Exporter{service: service}
}

// ServeListXLSX streams the filtered request list as a workbook.
func (e *Exporter) ServeListXLSX(w http.ResponseWriter, r *http.Request, filter diagnosis.ListFilter) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport("xlsx", result, time.Since(start)) }()

	list, err := e.service.List(r.Context(), filter)
	if err != nil {
		result = metrics.ResultError
		respondError(w, err)
		return
	}
	data, err := buildRequestListXLSX(list)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	serveAttachment(w, data, "requests.xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// ServeListPDF streams the filtered request list as a PDF table.
func (e *Exporter) ServeListPDF(w http.ResponseWriter, r *http.Request, filter diagnosis.ListFilter) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport("pdf", result, time.Since(start)) }()

	list, err := e.service.List(r.Context(), filter)
	if err != nil {
		result = metrics.ResultError
		respondError(w, err)
		return
	}
	data, err := buildRequestListPDF(list)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	serveAttachment(w, data, "requests.pdf", "application/pdf")
}

// ServeRequestPDF streams one request with its translated summary.
// The caller must be allowed to see the request, same rule as the
// detail endpoint.
func (e *Exporter) ServeRequestPDF(w http.ResponseWriter, r *http.Request, id int64) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport("pdf", result, time.Since(start)) }()

	req, items, details, err := e.service.Get(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondError(w, err)
		return
	}
	if !canSee(r, req) {
		result = metrics.ResultError
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	data, err := buildRequestPDF(req, items, details)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	serveAttachment(w, data, fmt.Sprintf("request-%d.pdf", id), "application/pdf")
}

// ServeRequestXLSX streams one request with its items and answers. The
// workbook carries the Korean free text the PDF cannot render.
func (e *Exporter) ServeRequestXLSX(w http.ResponseWriter, r *http.Request, id int64) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveExport("xlsx", result, time.Since(start)) }()

	req, items, details, err := e.service.Get(r.Context(), id)
	if err != nil {
		result = metrics.ResultError
		respondError(w, err)
		return
	}
	if !canSee(r, req) {
		result = metrics.ResultError
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	data, err := buildRequestXLSX(req, items, details)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	serveAttachment(w, data, fmt.Sprintf("request-%d.xlsx", id),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func buildRequestListXLSX(list []diagnosis.Request) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "requests"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Request Date", "Applicant", "Vehicle", "Status", "Evaluator", "Answer Date", "Sent At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, req := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), req.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), req.RequestDate.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), req.ApplicantName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), req.VehicleNumber)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), string(req.Status))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), req.EvaluatorName)
		if req.AnswerDate != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), req.AnswerDate.Format("2006-01-02 15:04"))
		}
		if req.SentAt != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), req.SentAt.Format("2006-01-02 15:04"))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildRequestXLSX(req *diagnosis.Request, items []diagnosis.Item, details []diagnosis.ResponseDetail) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "request"
	f.SetSheetName("Sheet1", sheet)

	meta := [][2]any{
		{"ID", req.ID},
		{"신청일", req.RequestDate.Format("2006-01-02 15:04")},
		{"신청자", req.ApplicantName},
		{"차량번호", req.VehicleNumber},
		{"상태", string(req.Status)},
		{"평가사", req.EvaluatorName},
	}
	if req.AnswerDate != nil {
		meta = append(meta, [2]any{"답변일", req.AnswerDate.Format("2006-01-02 15:04")})
	}
	for i, pair := range meta {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), pair[0])
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), pair[1])
	}

	answers := make(map[int]diagnosis.ResponseDetail, len(details))
	for _, d := range details {
		answers[d.Sequence] = d
	}

	headerRow := len(meta) + 2
	headers := []string{"순번", "요청 항목", "답변", "비고"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, item := range items {
		row := headerRow + 1 + i
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.Sequence)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.Content)
		if d, ok := answers[item.Sequence]; ok {
			_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), d.Content)
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), d.Note)
		}
	}

	if req.Translated != "" {
		row := headerRow + len(items) + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Summary")
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), req.Translated)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// statusLabel maps stored status values to ASCII for PDF cells.
func statusLabel(s diagnosis.Status) string {
	switch s {
	case diagnosis.StatusSubmitted:
		return "Submitted"
	case diagnosis.StatusAssigned:
		return "Assigned"
	case diagnosis.StatusAnswered:
		return "Answered"
	case diagnosis.StatusSent:
		return "Sent"
	default:
		return string(s)
	}
}

func buildRequestListPDF(list []diagnosis.Request) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Diagnosis Requests")
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(15, 6, "ID", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Requested", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Vehicle", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Answered", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, req := range list {
		answered := ""
		if req.AnswerDate != nil {
			answered = req.AnswerDate.Format("2006-01-02")
		}
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", req.ID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, req.RequestDate.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, req.VehicleNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, statusLabel(req.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, answered, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildRequestPDF(req *diagnosis.Request, items []diagnosis.Item, details []diagnosis.ResponseDetail) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Diagnosis Result - Request %d", req.ID))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vehicle: %s", req.VehicleNumber))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Requested: %s", req.RequestDate.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", statusLabel(req.Status)))
	pdf.Ln(5)
	if req.AnswerDate != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Answered: %s", req.AnswerDate.Format("2006-01-02")))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Items: %d / Answers: %d", len(items), len(details)))
	pdf.Ln(8)

	// The translated summary is the only text guaranteed renderable
	// with the built-in fonts.
	if req.Translated != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Summary")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 5, req.Translated, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func serveAttachment(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, _ = w.Write(data)
}
