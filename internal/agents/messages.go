// Package agents implements the seven stateless role handlers: shelter,
// transport, resource, pharmacy, eligibility, social-worker, analytics.
// Each handler is a pure function over its typed request plus the
// store/cache/voice caller it closes over.
package agents

import "github.com/carebridge/dccp/internal/store"

// Needs is the subset of a Case's clinical section the shelter and
// resource agents act on.
type Needs struct {
	Accessibility string
	DietaryNeeds  string
	SocialNeeds   string
}

// ShelterMatchRequest is the shelter agent's input. ExcludeNames carries
// shelters already tried and rejected by the coordinator's retry loop.
type ShelterMatchRequest struct {
	CaseID       string
	Needs        Needs
	ExcludeNames []string
}

// ShelterMatchResponse is the shelter agent's output. DemoMode reports
// that the transcript is synthetic (voice-provider quota fallback) or
// that the call was redirected to the demo number.
type ShelterMatchResponse struct {
	Selected              *store.ShelterListing
	AvailabilityConfirmed bool
	AccessibilityWarning  bool
	Transcript            string
	DemoMode              bool
}

// TransportRequest is the transport agent's input.
type TransportRequest struct {
	CaseID                string
	Pickup                string
	Dropoff               string
	AccessibilityRequired bool
}

// TransportResponse is the transport agent's output.
type TransportResponse struct {
	Provider      string
	Driver        string
	Phone         string
	PickupTime    string
	ETAMinutes    int
	RoutePolyline string
}

// ResourceItem is a requested ancillary-resource class.
type ResourceItem string

const (
	ResourceFood     ResourceItem = "food"
	ResourceHygiene  ResourceItem = "hygiene"
	ResourceClothing ResourceItem = "clothing"
)

// ResourceRequest is the resource agent's input. DietaryNeeds is the raw
// clinical.dietary_needs field, used to derive a per-item delivery note
// when it mentions an allergy-adjacent term.
type ResourceRequest struct {
	CaseID          string
	Items           []ResourceItem
	DeliveryAddress string
	Dietary         bool
	DietaryNeeds    string
}

// ResourceDeliveryPlan is one fulfilled item's delivery plan.
type ResourceDeliveryPlan struct {
	Item                ResourceItem
	ProviderName        string
	Address             string
	Phone               string
	DeliveryAddress     string
	PickupWindow        string
	SpecialInstructions string
}

// ResourceResponse is the resource agent's output.
type ResourceResponse struct {
	Plans []ResourceDeliveryPlan
	Unmet []ResourceItem
}

// PharmacyRequest is the pharmacy agent's input.
type PharmacyRequest struct {
	CaseID      string
	Medications []store.Medication
	Location    string
}

// PharmacyResponse is the pharmacy agent's output.
type PharmacyResponse struct {
	PharmacyName      string
	Address           string
	Phone             string
	ReadyTime         string
	TotalCost         float64
	InsuranceCoverage float64
}

// EligibilityRequest is the eligibility agent's input.
type EligibilityRequest struct {
	CaseID          string
	DOB             string
	IncomeLevel     string
	CurrentBenefits []string
}

// EligibilityProgram is one program the case qualifies for.
type EligibilityProgram struct {
	Name           string
	MonthlyValue   float64
	WaitlistOnly   bool
	RequiresReview bool
}

// EligibilityResponse is the eligibility agent's output.
type EligibilityResponse struct {
	Programs             []EligibilityProgram
	TotalMonthlyBenefits float64
	RequiresManualReview bool
	NextSteps            []string
}

// SocialWorkerAssignment is the social-worker agent's input.
type SocialWorkerAssignment struct {
	CaseID      string
	PatientName string
	Needs       Needs
}

// SocialWorkerResponse is the social-worker agent's output.
type SocialWorkerResponse struct {
	Name               string
	Phone              string
	Department         string
	FirstContactDate   string
	FirstContactMethod string
}

// WorkflowUpdate is every message the analytics agent observes on the bus.
type WorkflowUpdate struct {
	CaseID    string
	Step      string
	Status    string
	Sender    string
	Timestamp string
}
