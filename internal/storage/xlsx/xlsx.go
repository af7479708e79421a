// Package xlsx provides a storage.Store backed by an Excel fee workbook.
//
// The workbook is the system of record used by schools that keep their fee ledger in a
// spreadsheet. STUDENTS_MASTER holds one row per student; TRANSACTIONS, ALLOCATIONS and
// CREDITS are append-only logs created on first use. Every operation opens the file,
// works on it in memory and saves it only on success, so a failed payment leaves the
// file untouched. Access is serialized within one process; the file must not be shared
// by several running servers.
package xlsx

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on top of a workbook file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New opens the workbook at path and checks that STUDENTS_MASTER has the required columns.
func New(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("excel file not found: %s: %w", path, err)
	}

	s := &Store{path: path}
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := readStudentSheet(f); err != nil {
		return nil, err
	}
	return s, nil
}

// Create writes an empty fee workbook with a STUDENTS_MASTER header row.
func Create(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create workbook directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetStudents); err != nil {
		return fmt.Errorf("failed to name students sheet: %w", err)
	}
	headers := studentHeaders
	if err := f.SetSheetRow(SheetStudents, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write student headers: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Close is a no-op; the workbook is only open for the duration of each call.
func (s *Store) Close() error {
	return nil
}

func (s *Store) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return f, nil
}

// ListStudents returns the students of STUDENTS_MASTER ordered by admission number.
func (s *Store) ListStudents(ctx context.Context) ([]*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet, err := readStudentSheet(f)
	if err != nil {
		return nil, err
	}

	students := slices.Clone(sheet.students)
	slices.SortFunc(students, func(a, b *models.Student) int {
		return strings.Compare(a.AdmissionNo, b.AdmissionNo)
	})
	return students, nil
}

// GetStudent returns one student by admission number.
func (s *Store) GetStudent(ctx context.Context, admissionNo string) (*models.Student, error) {
	students, err := s.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range students {
		if st.AdmissionNo == admissionNo {
			return st, nil
		}
	}
	return nil, fmt.Errorf("student %s: %w", admissionNo, storage.ErrNotFound)
}

// UpsertStudent updates the student's row, or appends one when the admission number is new.
func (s *Store) UpsertStudent(ctx context.Context, student *models.Student) error {
	if student.AdmissionNo == "" {
		return fmt.Errorf("admission number required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet, err := readStudentSheet(f)
	if err != nil {
		return err
	}

	row, exists := sheet.rows[student.AdmissionNo]
	if !exists {
		row = sheet.lastRow + 1
	}
	if err := sheet.writeStudent(f, row, student); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// ApplyPayment records a payment against the workbook. Nothing is saved unless every
// step succeeds.
func (s *Store) ApplyPayment(ctx context.Context, paymentID string, compute storage.ComputeFunc) (*models.Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	existing, err := findPayment(f, paymentID)
	if err == nil {
		return existing, storage.ErrDuplicatePayment
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	sheet, err := readStudentSheet(f)
	if err != nil {
		return nil, err
	}

	payment, err := compute(sheet.students)
	if err != nil {
		return nil, err
	}
	payment.PaymentID = paymentID
	if payment.ReceivedAt == 0 {
		payment.ReceivedAt = time.Now().Unix()
	}

	byAdmission := make(map[string]*models.Student, len(sheet.students))
	for _, st := range sheet.students {
		byAdmission[st.AdmissionNo] = st
	}
	for _, p := range storage.Postings(payment) {
		st, ok := byAdmission[p.AdmissionNo]
		if !ok {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownStudent, p.AdmissionNo)
		}
		st.Apply(p.Allocated, p.Credited)
		if err := sheet.writeStudent(f, sheet.rows[st.AdmissionNo], st); err != nil {
			return nil, err
		}
	}

	if err := appendPayment(f, payment); err != nil {
		return nil, err
	}

	if err := f.Save(); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}
	return payment, nil
}

// GetPayment returns a recorded payment with its allocation and credit rows.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return findPayment(f, paymentID)
}

// ListPayments returns payments received within [from, to), oldest first.
func (s *Store) ListPayments(ctx context.Context, from, to int64) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	payments, err := readPayments(f, func(p *models.Payment) bool {
		return p.ReceivedAt >= from && p.ReceivedAt < to
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(payments, func(a, b *models.Payment) int {
		return cmp.Compare(a.ReceivedAt, b.ReceivedAt)
	})
	return payments, nil
}

func appendPayment(f *excelize.File, p *models.Payment) error {
	if err := ensureSheet(f, SheetTransactions, transactionHeaders); err != nil {
		return err
	}
	if err := ensureSheet(f, SheetAllocations, allocationHeaders); err != nil {
		return err
	}
	if err := ensureSheet(f, SheetCredits, creditHeaders); err != nil {
		return err
	}

	tx := [][]any{{
		p.PaymentID, p.Amount, p.Term, p.ReferenceJoined(), p.RemainingCredit,
		p.UnassignedCredit, p.MSISDN, p.PayerName, strconv.FormatInt(p.ReceivedAt, 10),
	}}
	if err := appendRows(f, SheetTransactions, tx); err != nil {
		return err
	}

	allocs := make([][]any, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		allocs = append(allocs, []any{p.PaymentID, a.AdmissionNo, a.Amount})
	}
	if err := appendRows(f, SheetAllocations, allocs); err != nil {
		return err
	}

	credits := make([][]any, 0, len(p.Credits))
	for _, c := range p.Credits {
		credits = append(credits, []any{p.PaymentID, c.AdmissionNo, c.Amount})
	}
	return appendRows(f, SheetCredits, credits)
}

func findPayment(f *excelize.File, paymentID string) (*models.Payment, error) {
	payments, err := readPayments(f, func(p *models.Payment) bool {
		return p.PaymentID == paymentID
	})
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, fmt.Errorf("payment %s: %w", paymentID, storage.ErrNotFound)
	}
	return payments[0], nil
}

// readPayments loads the TRANSACTIONS rows accepted by keep, with their lines.
func readPayments(f *excelize.File, keep func(*models.Payment) bool) ([]*models.Payment, error) {
	rows, err := sheetRows(f, SheetTransactions)
	if err != nil {
		return nil, err
	}

	var payments []*models.Payment
	byID := make(map[string]*models.Payment)
	for _, row := range rows {
		id := cell(row, 1)
		if id == "" {
			continue
		}
		p := &models.Payment{
			PaymentID:        id,
			Amount:           parseAmount(cell(row, 2)),
			Term:             cell(row, 3),
			RemainingCredit:  parseAmount(cell(row, 5)),
			UnassignedCredit: parseAmount(cell(row, 6)),
			MSISDN:           cell(row, 7),
			PayerName:        cell(row, 8),
		}
		if ref := cell(row, 4); ref != "" {
			p.Reference = strings.Split(ref, "|")
		}
		if ts, err := strconv.ParseInt(cell(row, 9), 10, 64); err == nil {
			p.ReceivedAt = ts
		}
		if !keep(p) {
			continue
		}
		payments = append(payments, p)
		byID[id] = p
	}
	if len(payments) == 0 {
		return nil, nil
	}

	allocRows, err := sheetRows(f, SheetAllocations)
	if err != nil {
		return nil, err
	}
	for _, row := range allocRows {
		if p, ok := byID[cell(row, 1)]; ok {
			p.Allocations = append(p.Allocations, models.Allocation{AdmissionNo: cell(row, 2), Amount: parseAmount(cell(row, 3))})
		}
	}

	creditRows, err := sheetRows(f, SheetCredits)
	if err != nil {
		return nil, err
	}
	for _, row := range creditRows {
		if p, ok := byID[cell(row, 1)]; ok {
			p.Credits = append(p.Credits, models.Credit{AdmissionNo: cell(row, 2), Amount: parseAmount(cell(row, 3))})
		}
	}

	return payments, nil
}
