package agents

import (
	"testing"

	"github.com/carebridge/dccp/internal/store"
)

type fakePharmacyReference struct {
	// table maps a medication name to {pharmacy, address, phone, cost, coverage}.
	table map[string][5]interface{}
}

func (f *fakePharmacyReference) Lookup(medicationName string) (string, string, string, float64, float64, bool) {
	row, ok := f.table[medicationName]
	if !ok {
		return "", "", "", 0, 0, false
	}
	return row[0].(string), row[1].(string), row[2].(string), row[3].(float64), row[4].(float64), true
}

func TestPharmacyAgent_Prep_ChoosesMostMatches(t *testing.T) {
	ref := &fakePharmacyReference{table: map[string][5]interface{}{
		"Amoxicillin": {"Walgreens", "1 Market St", "(415) 555-0100", 10.0, 8.0},
		"Ibuprofen":   {"Walgreens", "1 Market St", "(415) 555-0100", 5.0, 4.0},
		"Metformin":   {"CVS", "2690 Mission St", "(415) 826-1211", 7.0, 6.0},
	}}

	agent := &PharmacyAgent{Reference: ref}
	resp, err := agent.Prep(PharmacyRequest{
		CaseID: "C1",
		Medications: []store.Medication{
			{Name: "Amoxicillin"}, {Name: "Ibuprofen"}, {Name: "Metformin"},
		},
		Location: "123 Main St",
	})
	if err != nil {
		t.Fatalf("Prep: %v", err)
	}
	if resp.PharmacyName != "Walgreens" {
		t.Errorf("PharmacyName = %q, want Walgreens (2 matches vs CVS's 1)", resp.PharmacyName)
	}
	if resp.Address != "1 Market St" {
		t.Errorf("Address = %q, want the winning pharmacy's own address, not the patient's location", resp.Address)
	}
	if resp.TotalCost != 15.0 {
		t.Errorf("TotalCost = %v, want 15.0", resp.TotalCost)
	}
}

func TestPharmacyAgent_Prep_TieBrokenLexicographically(t *testing.T) {
	ref := &fakePharmacyReference{table: map[string][5]interface{}{
		"Amoxicillin": {"Zephyr Pharmacy", "1 Zephyr Way", "(415) 555-0101", 10.0, 8.0},
		"Ibuprofen":   {"Ace Pharmacy", "2 Ace Ave", "(415) 555-0102", 5.0, 4.0},
	}}

	agent := &PharmacyAgent{Reference: ref}
	resp, err := agent.Prep(PharmacyRequest{
		CaseID: "C1",
		Medications: []store.Medication{
			{Name: "Amoxicillin"}, {Name: "Ibuprofen"},
		},
	})
	if err != nil {
		t.Fatalf("Prep: %v", err)
	}
	if resp.PharmacyName != "Ace Pharmacy" {
		t.Errorf("PharmacyName = %q, want Ace Pharmacy (tie broken lexicographically)", resp.PharmacyName)
	}
}

func TestPharmacyAgent_Prep_FailsWhenNoMatches(t *testing.T) {
	agent := &PharmacyAgent{Reference: &fakePharmacyReference{table: map[string][5]interface{}{}}}
	_, err := agent.Prep(PharmacyRequest{
		CaseID:      "C1",
		Medications: []store.Medication{{Name: "Unknown Drug"}},
	})
	if err == nil {
		t.Fatal("expected error when zero medications match the reference table")
	}
}
