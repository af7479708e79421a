// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/feeallocator/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePayment is returned by ApplyPayment when the payment ID is already recorded.
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrUnknownStudent is returned when a payment names an admission number the store does not hold.
	ErrUnknownStudent = errors.New("admission number not found")
)

// ComputeFunc builds the payment to record from a consistent snapshot of all students.
// Returning an error aborts the write.
type ComputeFunc func(students []*models.Student) (*models.Payment, error)

// Store defines the fee ledger operations.
// This abstraction allows swapping storage backends (SQLite, a spreadsheet workbook, etc.)
// without changing the service layer.
type Store interface {
	// ListStudents returns every student in the ledger, ordered by admission number.
	ListStudents(ctx context.Context) ([]*models.Student, error)

	// GetStudent returns one student or ErrNotFound.
	GetStudent(ctx context.Context, admissionNo string) (*models.Student, error)

	// UpsertStudent creates the student or overwrites all of its ledger fields.
	UpsertStudent(ctx context.Context, student *models.Student) error

	// ApplyPayment reads the current students, passes them to compute and records the
	// returned payment as one atomic unit: student balances, the transaction, its
	// allocations and its credit shares. Either everything is written or nothing is.
	//
	// If paymentID is already recorded, the stored payment is returned together with
	// ErrDuplicatePayment and compute is not called.
	ApplyPayment(ctx context.Context, paymentID string, compute ComputeFunc) (*models.Payment, error)

	// GetPayment returns a recorded payment or ErrNotFound.
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)

	// ListPayments returns payments received in [from, to) as Unix timestamps, oldest first.
	ListPayments(ctx context.Context, from, to int64) ([]*models.Payment, error)

	// Close releases any resources held by the store.
	Close() error
}
