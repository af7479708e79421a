package xlsx

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/feeallocator/internal/models"
)

// Sheet names of the fee workbook.
const (
	SheetStudents     = "STUDENTS_MASTER"
	SheetTransactions = "TRANSACTIONS"
	SheetAllocations  = "ALLOCATIONS"
	SheetCredits      = "CREDITS"
)

var (
	studentHeaders     = []any{"AdmissionNo", "Name", "Class", "PaidTotal", "Credit", "Balance", "Status"}
	transactionHeaders = []any{"TxID", "Amount", "Term", "ReferenceOrder", "RemainingCredit", "UnassignedCredit", "MSISDN", "PayerName", "ReceivedAt"}
	allocationHeaders  = []any{"TxID", "AdmissionNo", "AllocatedAmount"}
	creditHeaders      = []any{"TxID", "AdmissionNo", "CreditAmount"}
)

// Accepted spellings per column, compared after normalizeHeader.
var (
	admissionCandidates = []string{"admission_no", "admissionno", "admission", "admissionnumber"}
	nameCandidates      = []string{"name", "studentname", "fullname"}
	classCandidates     = []string{"class", "grade", "stream"}
	paidCandidates      = []string{"paidtotal", "paid_total"}
	creditCandidates    = []string{"credit"}
	balanceCandidates   = []string{"balance"}
	statusCandidates    = []string{"status"}
)

// studentColumns holds 1-based column indexes of STUDENTS_MASTER. Zero means absent.
type studentColumns struct {
	admission, name, class, paid, credit, balance, status int
}

// studentSheet is the parsed STUDENTS_MASTER sheet.
type studentSheet struct {
	cols     studentColumns
	students []*models.Student
	rows     map[string]int // admission number -> 1-based row
	lastRow  int
}

// normalizeHeader lowercases and keeps letters and digits only.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func findColumn(headers map[string]int, candidates []string) int {
	for _, c := range candidates {
		if idx, ok := headers[normalizeHeader(c)]; ok {
			return idx
		}
	}
	return 0
}

// cell returns the value at a 1-based column, or "" when the row is shorter.
func cell(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

// parseAmount reads a numeric cell. Blank or unreadable cells count as zero.
func parseAmount(s string) int64 {
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return int64(f)
	}
	return 0
}

func readStudentSheet(f *excelize.File) (*studentSheet, error) {
	idx, err := f.GetSheetIndex(SheetStudents)
	if err != nil || idx == -1 {
		return nil, fmt.Errorf("%s sheet not found in workbook", SheetStudents)
	}

	rows, err := f.GetRows(SheetStudents, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SheetStudents, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", SheetStudents)
	}

	headers := make(map[string]int)
	for i, h := range rows[0] {
		if key := normalizeHeader(h); key != "" {
			headers[key] = i + 1
		}
	}

	cols := studentColumns{
		admission: findColumn(headers, admissionCandidates),
		name:      findColumn(headers, nameCandidates),
		class:     findColumn(headers, classCandidates),
		paid:      findColumn(headers, paidCandidates),
		credit:    findColumn(headers, creditCandidates),
		balance:   findColumn(headers, balanceCandidates),
		status:    findColumn(headers, statusCandidates),
	}
	if cols.admission == 0 || cols.paid == 0 || cols.credit == 0 || cols.balance == 0 || cols.status == 0 {
		return nil, fmt.Errorf("required columns (admission_no, PaidTotal, Credit, Balance, Status) not all present in %s", SheetStudents)
	}

	sheet := &studentSheet{cols: cols, rows: make(map[string]int), lastRow: len(rows)}
	for r := 1; r < len(rows); r++ {
		row := rows[r]
		admissionNo := cell(row, cols.admission)
		if admissionNo == "" {
			continue
		}
		// Keep the first row for a repeated admission number.
		if _, exists := sheet.rows[admissionNo]; exists {
			continue
		}
		sheet.rows[admissionNo] = r + 1
		sheet.students = append(sheet.students, &models.Student{
			AdmissionNo: admissionNo,
			Name:        cell(row, cols.name),
			Class:       cell(row, cols.class),
			PaidTotal:   parseAmount(cell(row, cols.paid)),
			Credit:      parseAmount(cell(row, cols.credit)),
			Balance:     parseAmount(cell(row, cols.balance)),
			Status:      models.Status(cell(row, cols.status)),
		})
	}

	return sheet, nil
}

// writeStudent writes the ledger fields of st to a 1-based row.
func (s *studentSheet) writeStudent(f *excelize.File, row int, st *models.Student) error {
	values := []struct {
		col   int
		value any
	}{
		{s.cols.admission, st.AdmissionNo},
		{s.cols.name, st.Name},
		{s.cols.class, st.Class},
		{s.cols.paid, st.PaidTotal},
		{s.cols.credit, st.Credit},
		{s.cols.balance, st.Balance},
		{s.cols.status, string(st.Status)},
	}
	for _, v := range values {
		if v.col == 0 {
			continue
		}
		if err := setCell(f, SheetStudents, v.col, row, v.value); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to address cell: %w", err)
	}
	if err := f.SetCellValue(sheet, name, value); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, name, err)
	}
	return nil
}

// ensureSheet creates sheet with a header row if the workbook lacks it.
func ensureSheet(f *excelize.File, sheet string, headers []any) error {
	idx, err := f.GetSheetIndex(sheet)
	if err == nil && idx != -1 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", sheet, err)
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s headers: %w", sheet, err)
	}
	return nil
}

// appendRows writes rows after the last non-empty row of sheet.
func appendRows(f *excelize.File, sheet string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	next := len(existing) + 1
	for i := range rows {
		start, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return fmt.Errorf("failed to address row: %w", err)
		}
		if err := f.SetSheetRow(sheet, start, &rows[i]); err != nil {
			return fmt.Errorf("failed to append to %s: %w", sheet, err)
		}
	}
	return nil
}

// sheetRows returns the data rows of sheet without its header, or nil if the sheet is missing.
func sheetRows(f *excelize.File, sheet string) ([][]string, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx == -1 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}
