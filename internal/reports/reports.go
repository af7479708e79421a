// Package reports aggregates recorded payments.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/feeallocator/internal/models"
	"github.com/mmynk/feeallocator/internal/storage"
)

// DateLayout is the calendar-day format accepted by Daily.
const DateLayout = "2006-01-02"

// Summary totals a set of payments.
type Summary struct {
	Count      int64
	Total      int64
	Allocated  int64
	Credited   int64
	Unassigned int64
}

// Summarize totals the given payments.
func Summarize(payments []*models.Payment) Summary {
	var s Summary
	for _, p := range payments {
		s.Count++
		s.Total += p.Amount
		s.Allocated += p.TotalAllocated()
		s.Credited += p.TotalCredited()
		s.Unassigned += p.UnassignedCredit
	}
	return s
}

// DayBounds returns the Unix range [from, to) of a UTC calendar day given as YYYY-MM-DD.
func DayBounds(date string) (int64, int64, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return day.Unix(), day.AddDate(0, 0, 1).Unix(), nil
}

// Daily summarizes the payments received on a UTC calendar day.
func Daily(ctx context.Context, store storage.Store, date string) (Summary, error) {
	from, to, err := DayBounds(date)
	if err != nil {
		return Summary{}, err
	}
	payments, err := store.ListPayments(ctx, from, to)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list payments: %w", err)
	}
	return Summarize(payments), nil
}
