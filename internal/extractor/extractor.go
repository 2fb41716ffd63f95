// Package extractor declares the contract of the external
// document-extraction collaborator: given a discharge-summary file, it
// returns a structured record plus a confidence score. The extraction
// service itself (PDF parsing, language-model prompting) runs outside
// this process; the intake façade holds a Client when one is configured
// and degrades to manual intake when it is not.
package extractor

import (
	"context"

	"github.com/carebridge/dccp/internal/store"
)

// DocType identifies the kind of document being extracted.
type DocType string

const (
	DocDischargeSummary DocType = "discharge_summary"
	DocMedicationList   DocType = "medication_list"
)

// Record is the structured result of extracting one discharge document.
type Record struct {
	PatientName string
	PatientDOB  string
	Contact     store.Contact
	Discharge   store.Discharge
	Clinical    store.Clinical
	FollowUp    store.FollowUp
}

// Client extracts a structured discharge record from a raw document.
type Client interface {
	// Extract parses file (raw document bytes) as docType. Confidence is
	// in [0, 1]; callers below a deployment-chosen threshold route the
	// record to manual review instead of straight into a workflow.
	Extract(ctx context.Context, file []byte, docType DocType) (Record, float64, error)
}
