package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

// ApplyPayment records a payment computed from the current students in one transaction.
func (s *SQLiteStore) ApplyPayment(ctx context.Context, paymentID string, compute storage.ComputeFunc) (*models.Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := getPayment(ctx, tx, paymentID)
	if err == nil {
		return existing, storage.ErrDuplicatePayment
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	students, err := listStudents(ctx, tx)
	if err != nil {
		return nil, err
	}

	payment, err := compute(students)
	if err != nil {
		return nil, err
	}
	payment.PaymentID = paymentID
	if payment.ReceivedAt == 0 {
		payment.ReceivedAt = time.Now().Unix()
	}

	byAdmission := make(map[string]*models.Student, len(students))
	for _, st := range students {
		byAdmission[st.AdmissionNo] = st
	}

	// Update student balances
	now := time.Now().Unix()
	for _, p := range storage.Postings(payment) {
		st, ok := byAdmission[p.AdmissionNo]
		if !ok {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownStudent, p.AdmissionNo)
		}
		st.Apply(p.Allocated, p.Credited)

		_, err = tx.ExecContext(ctx,
			`UPDATE students SET paid_total = ?, credit = ?, balance = ?, status = ?, updated_at = ?
			 WHERE admission_no = ?`,
			st.PaidTotal, st.Credit, st.Balance, string(st.Status), now, st.AdmissionNo,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update student: %w", err)
		}
	}

	// Insert transaction
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (payment_id, amount, term, reference, remaining_credit, unassigned_credit, msisdn, payer_name, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.PaymentID, payment.Amount, payment.Term, payment.ReferenceJoined(),
		payment.RemainingCredit, payment.UnassignedCredit,
		nullString(payment.MSISDN), nullString(payment.PayerName), payment.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Insert allocations
	for i, a := range payment.Allocations {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO allocations (id, payment_id, admission_no, amount, position) VALUES (?, ?, ?, ?, ?)",
			uuid.New().String(), payment.PaymentID, a.AdmissionNo, a.Amount, i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert allocation: %w", err)
		}
	}

	// Insert credits
	for i, c := range payment.Credits {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO credits (id, payment_id, admission_no, amount, position) VALUES (?, ?, ?, ?, ?)",
			uuid.New().String(), payment.PaymentID, c.AdmissionNo, c.Amount, i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payment, nil
}

// GetPayment retrieves a payment with its allocations and credits.
func (s *SQLiteStore) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	return getPayment(ctx, s.db, paymentID)
}

func getPayment(ctx context.Context, q querier, paymentID string) (*models.Payment, error) {
	p := &models.Payment{}
	var reference string
	var msisdn, payerName sql.NullString

	err := q.QueryRowContext(ctx,
		`SELECT payment_id, amount, term, reference, remaining_credit, unassigned_credit, msisdn, payer_name, received_at
		 FROM transactions WHERE payment_id = ?`,
		paymentID,
	).Scan(&p.PaymentID, &p.Amount, &p.Term, &reference, &p.RemainingCredit, &p.UnassignedCredit,
		&msisdn, &payerName, &p.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", paymentID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.Reference = splitReference(reference)
	p.MSISDN = msisdn.String
	p.PayerName = payerName.String

	if err := loadLines(ctx, q, p); err != nil {
		return nil, err
	}

	return p, nil
}

// ListPayments retrieves payments received within [from, to).
func (s *SQLiteStore) ListPayments(ctx context.Context, from, to int64) ([]*models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, amount, term, reference, remaining_credit, unassigned_credit, msisdn, payer_name, received_at
		 FROM transactions WHERE received_at >= ? AND received_at < ? ORDER BY received_at, payment_id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		var reference string
		var msisdn, payerName sql.NullString

		if err := rows.Scan(&p.PaymentID, &p.Amount, &p.Term, &reference, &p.RemainingCredit,
			&p.UnassignedCredit, &msisdn, &payerName, &p.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Reference = splitReference(reference)
		p.MSISDN = msisdn.String
		p.PayerName = payerName.String

		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}
	rows.Close()

	// Lines are loaded after the cursor is closed; the store holds a single connection.
	for _, p := range payments {
		if err := loadLines(ctx, s.db, p); err != nil {
			return nil, err
		}
	}

	return payments, nil
}

// loadLines fills a payment's allocations and credits.
func loadLines(ctx context.Context, q querier, p *models.Payment) error {
	allocRows, err := q.QueryContext(ctx,
		"SELECT admission_no, amount FROM allocations WHERE payment_id = ? ORDER BY position",
		p.PaymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to get allocations: %w", err)
	}
	for allocRows.Next() {
		var a models.Allocation
		if err := allocRows.Scan(&a.AdmissionNo, &a.Amount); err != nil {
			allocRows.Close()
			return fmt.Errorf("failed to scan allocation: %w", err)
		}
		p.Allocations = append(p.Allocations, a)
	}
	allocRows.Close()
	if err := allocRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate allocations: %w", err)
	}

	creditRows, err := q.QueryContext(ctx,
		"SELECT admission_no, amount FROM credits WHERE payment_id = ? ORDER BY position",
		p.PaymentID,
	)
	if err != nil {
		return fmt.Errorf("failed to get credits: %w", err)
	}
	for creditRows.Next() {
		var c models.Credit
		if err := creditRows.Scan(&c.AdmissionNo, &c.Amount); err != nil {
			creditRows.Close()
			return fmt.Errorf("failed to scan credit: %w", err)
		}
		p.Credits = append(p.Credits, c)
	}
	creditRows.Close()
	if err := creditRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate credits: %w", err)
	}

	return nil
}

func splitReference(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "|")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
