package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStudents(t *testing.T, store *SQLiteStore, students ...*models.Student) {
	t.Helper()
	for _, st := range students {
		if err := store.UpsertStudent(context.Background(), st); err != nil {
			t.Fatalf("UpsertStudent(%s) failed: %v", st.AdmissionNo, err)
		}
	}
}

// overpayment is the payment the allocation engine produces for 20000 against 041|1043.
func overpayment(students []*models.Student) (*models.Payment, error) {
	return &models.Payment{
		Amount:      20000,
		Term:        "2026-T3",
		Reference:   []string{"041", "1043"},
		Allocations: []models.Allocation{{AdmissionNo: "041", Amount: 10000}, {AdmissionNo: "1043", Amount: 5000}},
		Credits:     []models.Credit{{AdmissionNo: "041", Amount: 2500}, {AdmissionNo: "1043", Amount: 2500}},
		MSISDN:      "254700000000",
		PayerName:   "JANE",
		ReceivedAt:  1760000000,

		RemainingCredit: 5000,
	}, nil
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedStudents(t, store,
		&models.Student{AdmissionNo: "041", Name: "Amina", Balance: 10000},
		&models.Student{AdmissionNo: "1043", Name: "Brian", Balance: 5000},
		&models.Student{AdmissionNo: "205", Name: "Chege", Balance: 700},
	)

	t.Run("ListStudents ordered by admission number", func(t *testing.T) {
		students, err := store.ListStudents(ctx)
		if err != nil {
			t.Fatalf("ListStudents failed: %v", err)
		}
		if len(students) != 3 {
			t.Fatalf("Expected 3 students, got %d", len(students))
		}
		got := []string{students[0].AdmissionNo, students[1].AdmissionNo, students[2].AdmissionNo}
		want := []string{"041", "1043", "205"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("students[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("ApplyPayment updates balances and records lines", func(t *testing.T) {
		var snapshot []*models.Student
		payment, err := store.ApplyPayment(ctx, "QJK1ABC", func(students []*models.Student) (*models.Payment, error) {
			snapshot = students
			return overpayment(students)
		})
		if err != nil {
			t.Fatalf("ApplyPayment failed: %v", err)
		}
		if len(snapshot) != 3 {
			t.Errorf("compute saw %d students, want 3", len(snapshot))
		}
		if payment.PaymentID != "QJK1ABC" {
			t.Errorf("PaymentID = %s, want QJK1ABC", payment.PaymentID)
		}

		a, err := store.GetStudent(ctx, "041")
		if err != nil {
			t.Fatalf("GetStudent failed: %v", err)
		}
		if a.PaidTotal != 10000 || a.Credit != 2500 || a.Balance != -2500 || a.Status != models.StatusOverpaid {
			t.Errorf("041 = %+v, want paid 10000 credit 2500 balance -2500 OVERPAID", a)
		}

		untouched, err := store.GetStudent(ctx, "205")
		if err != nil {
			t.Fatalf("GetStudent failed: %v", err)
		}
		if untouched.Balance != 700 || untouched.Status != "" {
			t.Errorf("205 should be untouched, got %+v", untouched)
		}

		stored, err := store.GetPayment(ctx, "QJK1ABC")
		if err != nil {
			t.Fatalf("GetPayment failed: %v", err)
		}
		if stored.ReferenceJoined() != "041|1043" {
			t.Errorf("Reference = %s, want 041|1043", stored.ReferenceJoined())
		}
		if len(stored.Allocations) != 2 || stored.Allocations[0].AdmissionNo != "041" {
			t.Errorf("Allocations = %+v", stored.Allocations)
		}
		if stored.TotalCredited() != 5000 || stored.RemainingCredit != 5000 {
			t.Errorf("credits = %d remaining = %d, want 5000/5000", stored.TotalCredited(), stored.RemainingCredit)
		}
		if stored.MSISDN != "254700000000" || stored.PayerName != "JANE" {
			t.Errorf("payer = %s/%s", stored.MSISDN, stored.PayerName)
		}
	})

	t.Run("ApplyPayment is idempotent per payment id", func(t *testing.T) {
		called := false
		payment, err := store.ApplyPayment(ctx, "QJK1ABC", func(students []*models.Student) (*models.Payment, error) {
			called = true
			return overpayment(students)
		})
		if !errors.Is(err, storage.ErrDuplicatePayment) {
			t.Fatalf("Expected ErrDuplicatePayment, got %v", err)
		}
		if called {
			t.Error("compute must not run for a recorded payment")
		}
		if payment == nil || payment.Amount != 20000 {
			t.Errorf("Expected stored payment back, got %+v", payment)
		}

		a, _ := store.GetStudent(ctx, "041")
		if a.Balance != -2500 {
			t.Errorf("balance changed on redelivery: %d", a.Balance)
		}
	})

	t.Run("ApplyPayment with unknown student writes nothing", func(t *testing.T) {
		_, err := store.ApplyPayment(ctx, "QJK2XYZ", func(students []*models.Student) (*models.Payment, error) {
			return &models.Payment{
				Amount:      300,
				Reference:   []string{"205", "999"},
				Allocations: []models.Allocation{{AdmissionNo: "205", Amount: 200}, {AdmissionNo: "999", Amount: 100}},
			}, nil
		})
		if !errors.Is(err, storage.ErrUnknownStudent) {
			t.Fatalf("Expected ErrUnknownStudent, got %v", err)
		}

		st, _ := store.GetStudent(ctx, "205")
		if st.Balance != 700 {
			t.Errorf("partial write: 205 balance = %d, want 700", st.Balance)
		}
		if _, err := store.GetPayment(ctx, "QJK2XYZ"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("transaction should not exist, got %v", err)
		}
	})

	t.Run("ApplyPayment propagates compute errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.ApplyPayment(ctx, "QJK3", func([]*models.Student) (*models.Payment, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("Expected compute error, got %v", err)
		}
	})

	t.Run("GetStudent returns ErrNotFound", func(t *testing.T) {
		if _, err := store.GetStudent(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStore_ListPayments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedStudents(t, store, &models.Student{AdmissionNo: "1", Balance: 1000})

	for i, at := range []int64{100, 200, 300} {
		id := []string{"P1", "P2", "P3"}[i]
		receivedAt := at
		_, err := store.ApplyPayment(ctx, id, func([]*models.Student) (*models.Payment, error) {
			return &models.Payment{
				Amount:      10,
				Reference:   []string{"1"},
				Allocations: []models.Allocation{{AdmissionNo: "1", Amount: 10}},
				ReceivedAt:  receivedAt,
			}, nil
		})
		if err != nil {
			t.Fatalf("ApplyPayment(%s) failed: %v", id, err)
		}
	}

	payments, err := store.ListPayments(ctx, 150, 300)
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(payments) != 1 || payments[0].PaymentID != "P2" {
		t.Fatalf("Expected only P2, got %d payments", len(payments))
	}
	if len(payments[0].Allocations) != 1 {
		t.Errorf("Expected allocations to be loaded, got %+v", payments[0].Allocations)
	}

	st, _ := store.GetStudent(ctx, "1")
	if st.Balance != 970 || st.PaidTotal != 30 || st.Status != models.StatusPartial {
		t.Errorf("student = %+v, want balance 970 paid 30 PARTIAL", st)
	}
}

func TestUpsertStudent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertStudent(ctx, &models.Student{}); err == nil {
		t.Error("Expected error for missing admission number")
	}

	seedStudents(t, store, &models.Student{AdmissionNo: "77", Name: "Old", Balance: 10})
	seedStudents(t, store, &models.Student{AdmissionNo: "77", Name: "New", Class: "4E", Balance: 25})

	st, err := store.GetStudent(ctx, "77")
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if st.Name != "New" || st.Class != "4E" || st.Balance != 25 {
		t.Errorf("upsert did not overwrite: %+v", st)
	}
}
