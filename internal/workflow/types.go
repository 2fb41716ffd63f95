// Package workflow implements the coordinator's fan-out/fan-in state
// machine over the seven agent roles: ordering, dependencies
// between steps, partial-failure recovery, timeline construction, and
// persistence of per-case state.
package workflow

import (
	"time"

	"github.com/carebridge/dccp/internal/store"
)

// IntakeRecord is the discharge request body: the Case attributes
// minus the workflow/assignment state the engine itself computes.
type IntakeRecord struct {
	CaseID      string // optional; generated via google/uuid if empty
	PatientName string
	PatientDOB  string
	Contact     store.Contact
	Discharge   store.Discharge
	Clinical    store.Clinical
	FollowUp    store.FollowUp
	IncomeLevel string // feeds the eligibility agent; not part of store.Case
}

// OutcomeStatus is the coordinate() result's overall status.
type OutcomeStatus string

const (
	OutcomeCoordinated                 OutcomeStatus = "coordinated"
	OutcomeCoordinatedWithoutTransport OutcomeStatus = "coordinated-without-transport"
	OutcomeUnconfirmedShelter          OutcomeStatus = "unconfirmed-shelter"
	OutcomeFailed                      OutcomeStatus = "failed"
)

// ShelterSummary is the outcome's assigned-shelter detail.
type ShelterSummary struct {
	Name                  string
	Address               string
	ConfirmedBeds         int
	Accessibility         bool
	AvailabilityConfirmed bool
	AccessibilityWarning  bool
}

// TransportPlan is the outcome's transport detail.
type TransportPlan struct {
	Provider      string
	Driver        string
	Phone         string
	PickupTime    string
	ETAMinutes    int
	RoutePolyline string
}

// MedicationPlan is the outcome's pharmacy detail.
type MedicationPlan struct {
	PharmacyName      string
	Address           string
	Phone             string
	ReadyTime         string
	TotalCost         float64
	InsuranceCoverage float64
}

// BenefitsSummary is the outcome's eligibility detail.
type BenefitsSummary struct {
	Programs             []string
	TotalMonthlyBenefits float64
	RequiresManualReview bool
	NextSteps            []string
}

// CaseManagerAssignment is the outcome's social-worker detail.
type CaseManagerAssignment struct {
	Name             string
	Phone            string
	Department       string
	FirstContactDate string
}

// Outcome is coordinate()'s public contract: it never throws
// to the caller, so every failure is reported inside this struct.
type Outcome struct {
	CaseID      string
	Status      OutcomeStatus
	Shelter     *ShelterSummary
	Transport   *TransportPlan
	Medication  *MedicationPlan
	Benefits    *BenefitsSummary
	CaseManager *CaseManagerAssignment
	Timeline    []*store.TimelineEvent
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}
