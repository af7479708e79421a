package models

// Status is the payment state of a student's fee ledger.
type Status string

const (
	StatusPartial  Status = "PARTIAL"
	StatusPaid     Status = "PAID"
	StatusOverpaid Status = "OVERPAID"
)

// StatusForBalance derives a ledger status from the outstanding balance.
func StatusForBalance(balance int64) Status {
	switch {
	case balance > 0:
		return StatusPartial
	case balance == 0:
		return StatusPaid
	default:
		return StatusOverpaid
	}
}

// Student is one row of the fee ledger.
type Student struct {
	// AdmissionNo is the unique ledger key. Payment references name students by it.
	AdmissionNo string `yaml:"admission_no"`

	// Name is the student's display name.
	Name string `yaml:"name"`

	// Class is the student's class or stream (e.g. "Grade 4 East").
	Class string `yaml:"class"`

	// PaidTotal is the sum of all allocations applied to this student.
	PaidTotal int64 `yaml:"paid_total"`

	// Credit is the sum of leftover credit shares applied to this student.
	Credit int64 `yaml:"credit"`

	// Balance is the amount still owed. Allocations and credit shares both reduce it.
	Balance int64 `yaml:"balance"`

	// Status follows Balance after every payment that touches this student.
	// Empty until the first payment or seed.
	Status Status `yaml:"status"`

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64 `yaml:"-"`
}

// Apply books an allocation and a credit share against the student and refreshes Status.
func (s *Student) Apply(allocated, credited int64) {
	s.PaidTotal += allocated
	s.Credit += credited
	s.Balance -= allocated + credited
	s.Status = StatusForBalance(s.Balance)
}
