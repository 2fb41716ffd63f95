// Package pharmacy loads the bundled medication/pharmacy reference
// table, a static JSON asset embedded in the binary and decoded once at
// startup, and implements the case-insensitive substring lookup the
// pharmacy agent drives.
package pharmacy

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed reference.json
var embeddedFS embed.FS

// entry is one medication's cost/coverage at a single pharmacy.
type entry struct {
	Cost    float64 `json:"cost"`
	Covered float64 `json:"covered"`
}

type pharmacyRow struct {
	Name        string           `json:"name"`
	Address     string           `json:"address"`
	Phone       string           `json:"phone"`
	Medications map[string]entry `json:"medications"`
}

type referenceDoc struct {
	Pharmacies []pharmacyRow `json:"pharmacies"`
}

// Reference implements agents.PharmacyReference against the loaded table.
type Reference struct {
	doc referenceDoc
}

// Load decodes the embedded reference table once at process start.
func Load() (*Reference, error) {
	raw, err := embeddedFS.ReadFile("reference.json")
	if err != nil {
		return nil, fmt.Errorf("pharmacy: read embedded reference: %w", err)
	}
	var doc referenceDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("pharmacy: parse embedded reference: %w", err)
	}
	return &Reference{doc: doc}, nil
}

// Lookup finds the first pharmacy whose medication table has a
// case-insensitive substring match for medicationName, returning its
// address, phone, cost, and covered amount. The pharmacy
// agent itself tallies matches across all pharmacies to choose the best
// one; Lookup just reports one candidate match, in reference-table order,
// for the agent to accumulate over each call.
func (r *Reference) Lookup(medicationName string) (pharmacyName, address, phone string, cost float64, coverage float64, ok bool) {
	needle := strings.ToLower(strings.TrimSpace(medicationName))
	if needle == "" {
		return "", "", "", 0, 0, false
	}
	for _, ph := range r.doc.Pharmacies {
		for name, e := range ph.Medications {
			if strings.Contains(needle, name) || strings.Contains(name, needle) {
				return ph.Name, ph.Address, ph.Phone, e.Cost, e.Cost * e.Covered, true
			}
		}
	}
	return "", "", "", 0, 0, false
}
