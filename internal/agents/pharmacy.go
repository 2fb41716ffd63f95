package agents

import (
	"sort"
	"time"

	"github.com/carebridge/dccp/internal/errs"
)

// PharmacyAgent implements the pharmacy role.
type PharmacyAgent struct {
	Reference PharmacyReference
}

// Prep looks up each medication against the bundled reference table,
// sums cost, and picks the pharmacy with the most matches.
func (a *PharmacyAgent) Prep(req PharmacyRequest) (*PharmacyResponse, error) {
	type tally struct {
		address  string
		phone    string
		cost     float64
		coverage float64
		matches  int
	}
	byPharmacy := map[string]*tally{}

	for _, med := range req.Medications {
		pharmacy, address, phone, cost, coverage, ok := a.Reference.Lookup(med.Name)
		if !ok {
			continue
		}
		t, exists := byPharmacy[pharmacy]
		if !exists {
			t = &tally{address: address, phone: phone}
			byPharmacy[pharmacy] = t
		}
		t.cost += cost
		t.coverage += coverage
		t.matches++
	}

	if len(byPharmacy) == 0 {
		return nil, &errs.CacheMiss{Category: "pharmacy_reference", Filter: "medication name"}
	}

	names := make([]string, 0, len(byPharmacy))
	for name := range byPharmacy {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := byPharmacy[names[i]], byPharmacy[names[j]]
		if ti.matches != tj.matches {
			return ti.matches > tj.matches
		}
		return names[i] < names[j] // lexicographic tie-break
	})

	winner := names[0]
	t := byPharmacy[winner]

	coverageRatio := 0.0
	if t.cost > 0 {
		coverageRatio = t.coverage / t.cost
	}

	return &PharmacyResponse{
		PharmacyName:      winner,
		Address:           t.address,
		Phone:             t.phone,
		ReadyTime:         time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		TotalCost:         t.cost,
		InsuranceCoverage: coverageRatio,
	}, nil
}
