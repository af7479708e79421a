// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers, so a payment's read-compute-write
	// never interleaves with another payment against the same students.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListStudents returns all students ordered by admission number.
func (s *SQLiteStore) ListStudents(ctx context.Context) ([]*models.Student, error) {
	return listStudents(ctx, s.db)
}

func listStudents(ctx context.Context, q querier) ([]*models.Student, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT admission_no, name, class, paid_total, credit, balance, status, updated_at
		 FROM students ORDER BY admission_no`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		st := &models.Student{}
		var status string
		if err := rows.Scan(&st.AdmissionNo, &st.Name, &st.Class, &st.PaidTotal,
			&st.Credit, &st.Balance, &status, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		st.Status = models.Status(status)
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}

// GetStudent retrieves a student by admission number.
func (s *SQLiteStore) GetStudent(ctx context.Context, admissionNo string) (*models.Student, error) {
	st := &models.Student{}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT admission_no, name, class, paid_total, credit, balance, status, updated_at
		 FROM students WHERE admission_no = ?`,
		admissionNo,
	).Scan(&st.AdmissionNo, &st.Name, &st.Class, &st.PaidTotal, &st.Credit, &st.Balance, &status, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", admissionNo, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	st.Status = models.Status(status)

	return st, nil
}

// UpsertStudent inserts a student or overwrites its ledger fields.
func (s *SQLiteStore) UpsertStudent(ctx context.Context, student *models.Student) error {
	if student.AdmissionNo == "" {
		return fmt.Errorf("admission number required")
	}
	if student.UpdatedAt == 0 {
		student.UpdatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO students (admission_no, name, class, paid_total, credit, balance, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(admission_no) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			paid_total = excluded.paid_total,
			credit = excluded.credit,
			balance = excluded.balance,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		student.AdmissionNo, student.Name, student.Class, student.PaidTotal,
		student.Credit, student.Balance, string(student.Status), student.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert student: %w", err)
	}

	return nil
}
