package storage

import "github.com/mmynk/feeallocator/internal/models"

// Posting is the net effect of one payment on one student.
type Posting struct {
	AdmissionNo string
	Allocated   int64
	Credited    int64
}

// Postings merges a payment's allocations and credit shares per student.
// Students appear in the order they are first mentioned: allocations first, then credits.
func Postings(p *models.Payment) []Posting {
	index := make(map[string]int)
	var out []Posting

	get := func(admissionNo string) *Posting {
		i, ok := index[admissionNo]
		if !ok {
			i = len(out)
			index[admissionNo] = i
			out = append(out, Posting{AdmissionNo: admissionNo})
		}
		return &out[i]
	}

	for _, a := range p.Allocations {
		get(a.AdmissionNo).Allocated += a.Amount
	}
	for _, c := range p.Credits {
		get(c.AdmissionNo).Credited += c.Amount
	}
	return out
}
