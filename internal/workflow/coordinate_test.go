package workflow

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/dccp/internal/cache"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/transcript"
)

type fakeScraper struct {
	result cache.ScrapeResult
}

func (f *fakeScraper) Scrape(ctx context.Context, category cache.Category) (cache.ScrapeResult, error) {
	return f.result, nil
}

// scriptedVoice returns transcripts in order, one per call, recording the
// phone number dialed each time.
type scriptedVoice struct {
	transcripts []string
	calls       int
	dialed      []string
}

func (v *scriptedVoice) CallShelter(ctx context.Context, phone, shelterName string) (bool, string, string, bool, error) {
	v.dialed = append(v.dialed, phone)
	idx := v.calls
	v.calls++
	if idx >= len(v.transcripts) {
		idx = len(v.transcripts) - 1
	}
	return true, v.transcripts[idx], "ended", false, nil
}

type fakeRouter struct{}

func (f *fakeRouter) Route(ctx context.Context, pickup, dropoff string) (string, int, error) {
	return "encoded-polyline", 18, nil
}

type fakePharmacyReference struct{}

func (f *fakePharmacyReference) Lookup(medicationName string) (string, string, string, float64, float64, bool) {
	return "Walgreens", "1 Market St", "(415) 555-0100", 12.0, 9.0, true
}

func fullScrapeResult() cache.ScrapeResult {
	now := time.Now()
	return cache.ScrapeResult{
		Shelters: []store.ShelterListing{
			{Name: "Harbor Light", Address: "100 Shelter Way", Phone: "(415) 555-0000", Capacity: 20, AvailableBeds: 12, Accessibility: true, LastUpdated: now},
			{Name: "St Vincent", Address: "200 Mission St", Phone: "(415) 555-0001", Capacity: 15, AvailableBeds: 4, Accessibility: false, LastUpdated: now},
		},
		Transport: []store.TransportListing{
			{Provider: "MedRide", ServiceName: "wheelchair van", Phone: "555-2000", VehicleType: "wheelchair van", Accessibility: true, LastUpdated: now},
			{Provider: "CityCab", ServiceName: "standard", Phone: "555-2001", VehicleType: "sedan", LastUpdated: now},
		},
		Resources: []store.CommunityResource{
			{Name: "Food Bank", Category: "food", Address: "1 Pantry Pl", Phone: "555-3000", DietaryAccommodations: true, LastUpdated: now},
			{Name: "Hygiene Closet", Category: "hygiene", Address: "2 Clean St", Phone: "555-3001", LastUpdated: now},
			{Name: "Clothing Bank", Category: "clothing", Address: "3 Thread Ave", Phone: "555-3002", LastUpdated: now},
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, result cache.ScrapeResult, voiceFake *scriptedVoice) (*Engine, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, "sqlite3")
	require.NoError(t, st.Migrate(context.Background()))

	ch := cache.New(st, &fakeScraper{result: result})

	deps := Deps{
		Store:    st,
		Cache:    ch,
		Voice:    voiceFake,
		Parser:   transcript.Parser{},
		Routing:  &fakeRouter{},
		Pharmacy: &fakePharmacyReference{},
	}
	engine, err := Build(cfg, deps)
	require.NoError(t, err)
	return engine, st
}

func happyIntake() IntakeRecord {
	return IntakeRecord{
		CaseID:      "C1",
		PatientName: "John Doe",
		Contact:     store.Contact{Address: "123 Main St", City: "San Francisco", State: "CA"},
		Discharge:   store.Discharge{FacilityName: "SF General", FacilityAddress: "1001 Potrero Ave"},
		Clinical: store.Clinical{
			Medications:        []store.Medication{{Name: "Amoxicillin", Dosage: "500mg", Frequency: "TID"}},
			AccessibilityNeeds: "wheelchair",
		},
		IncomeLevel: "low",
	}
}

func timelineSteps(events []*store.TimelineEvent) map[string]int {
	steps := make(map[string]int, len(events))
	for _, ev := range events {
		steps[ev.Step]++
	}
	return steps
}

func TestCoordinate_HappyPathWithAccessibleShelter(t *testing.T) {
	voiceFake := &scriptedVoice{transcripts: []string{
		"We have 12 beds available tonight, wheelchair accessible, we offer meals and showers.",
	}}
	engine, st := newTestEngine(t, DefaultConfig(), fullScrapeResult(), voiceFake)

	outcome := engine.Coordinate(context.Background(), happyIntake())

	require.Equal(t, OutcomeCoordinated, outcome.Status, "error: %s", outcome.Error)
	require.NotNil(t, outcome.Shelter)
	assert.Equal(t, "Harbor Light", outcome.Shelter.Name)
	assert.True(t, outcome.Shelter.AvailabilityConfirmed)
	assert.True(t, outcome.Shelter.Accessibility)
	assert.Equal(t, 12, outcome.Shelter.ConfirmedBeds)

	require.NotNil(t, outcome.Transport)
	assert.Equal(t, "MedRide", outcome.Transport.Provider, "wheelchair vehicle required")

	require.NotNil(t, outcome.Medication)
	assert.Equal(t, "Walgreens", outcome.Medication.PharmacyName)

	require.NotNil(t, outcome.Benefits)
	assert.Equal(t, 869.0, outcome.Benefits.TotalMonthlyBenefits)

	events, err := st.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	steps := timelineSteps(events)
	for _, want := range []string{
		"initiated", "sw_plan_started", "pharmacy_ready", "shelter_candidate_selected",
		"vapi_transcription", "shelter_confirmed", "resources_summary",
		"eligibility_checked", "transport_scheduled", "completed",
	} {
		assert.NotZero(t, steps[want], "timeline missing %q event; got %v", want, steps)
	}

	// Timeline density: seq values are exactly {0..N-1} in order.
	for i, ev := range events {
		require.Equal(t, i, ev.Seq, "timeline not dense at position %d", i)
	}

	// The vapi_transcription event carries the transcript verbatim.
	for _, ev := range events {
		if ev.Step == "vapi_transcription" {
			assert.NotEmpty(t, ev.Transcription)
		}
	}

	// Terminal persistence: completed_at set on the stored case.
	c, err := st.GetCase(context.Background(), "C1")
	require.NoError(t, err)
	assert.NotNil(t, c.CompletedAt)
	assert.Equal(t, store.StatusCoordinated, c.WorkflowStatus)
}

func TestCoordinate_NoAccessibleShelterRelaxesWithWarning(t *testing.T) {
	result := fullScrapeResult()
	result.Shelters = []store.ShelterListing{
		{Name: "St Vincent", Address: "200 Mission St", Phone: "(415) 555-0001", Capacity: 15, AvailableBeds: 4, Accessibility: false, LastUpdated: time.Now()},
	}
	voiceFake := &scriptedVoice{transcripts: []string{"Yes, we have 4 beds available."}}
	engine, _ := newTestEngine(t, DefaultConfig(), result, voiceFake)

	outcome := engine.Coordinate(context.Background(), happyIntake())

	require.Equal(t, OutcomeCoordinated, outcome.Status)
	require.NotNil(t, outcome.Shelter)
	assert.True(t, outcome.Shelter.AccessibilityWarning)
	// Transport still requests a wheelchair vehicle for the patient.
	require.NotNil(t, outcome.Transport)
	assert.Equal(t, "MedRide", outcome.Transport.Provider)
}

func TestCoordinate_EmptyShelterCacheFailsButEligibilityRuns(t *testing.T) {
	result := fullScrapeResult()
	result.Shelters = nil
	voiceFake := &scriptedVoice{transcripts: []string{""}}
	engine, st := newTestEngine(t, DefaultConfig(), result, voiceFake)

	outcome := engine.Coordinate(context.Background(), happyIntake())

	require.Equal(t, OutcomeFailed, outcome.Status)
	assert.Nil(t, outcome.Shelter)
	assert.Nil(t, outcome.Transport, "transport is shelter-dependent")
	assert.NotNil(t, outcome.Benefits, "eligibility should still run")
	assert.Zero(t, voiceFake.calls)

	events, err := st.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	steps := timelineSteps(events)
	assert.NotZero(t, steps["shelter_failed"], "got %v", steps)
	assert.NotZero(t, steps["failed"], "missing terminal failed event; got %v", steps)

	c, err := st.GetCase(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, c.WorkflowStatus)
	assert.NotNil(t, c.CompletedAt)
}

func TestCoordinate_NoBedsTonightExhaustsRetriesAndProceedsUnconfirmed(t *testing.T) {
	voiceFake := &scriptedVoice{transcripts: []string{"Sorry, no beds tonight."}}
	engine, st := newTestEngine(t, DefaultConfig(), fullScrapeResult(), voiceFake)

	intake := happyIntake()
	intake.Clinical.AccessibilityNeeds = "" // both cached shelters are candidates
	outcome := engine.Coordinate(context.Background(), intake)

	require.Equal(t, OutcomeUnconfirmedShelter, outcome.Status)
	// Retry bound: one call per candidate, never more than the limit.
	assert.LessOrEqual(t, voiceFake.calls, 3)
	assert.Equal(t, 2, voiceFake.calls, "one call per cached candidate")
	// The best candidate is still assigned, unconfirmed, and transport
	// still gets scheduled against it.
	require.NotNil(t, outcome.Shelter)
	assert.False(t, outcome.Shelter.AvailabilityConfirmed)
	assert.NotNil(t, outcome.Transport, "transport proceeds against best candidate")

	events, err := st.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	steps := timelineSteps(events)
	assert.NotZero(t, steps["shelter_unconfirmed"], "got %v", steps)
	assert.Equal(t, 2, steps["vapi_transcription"])
}

func TestCoordinate_RetryLimitBoundsVoiceCalls(t *testing.T) {
	result := fullScrapeResult()
	now := time.Now()
	result.Shelters = []store.ShelterListing{
		{Name: "A House", Address: "1 A St", Capacity: 10, AvailableBeds: 5, LastUpdated: now},
		{Name: "B House", Address: "2 B St", Capacity: 10, AvailableBeds: 4, LastUpdated: now},
		{Name: "C House", Address: "3 C St", Capacity: 10, AvailableBeds: 3, LastUpdated: now},
		{Name: "D House", Address: "4 D St", Capacity: 10, AvailableBeds: 2, LastUpdated: now},
	}
	voiceFake := &scriptedVoice{transcripts: []string{"Sorry, nothing open."}}
	intake := happyIntake()
	intake.Clinical.AccessibilityNeeds = ""
	engine, _ := newTestEngine(t, DefaultConfig(), result, voiceFake)

	outcome := engine.Coordinate(context.Background(), intake)

	assert.Equal(t, 3, voiceFake.calls, "exactly the retry limit")
	assert.Equal(t, OutcomeUnconfirmedShelter, outcome.Status)
}

func TestCoordinate_DemoModeDialsDemoNumber(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DemoMode = true
	cfg.DemoPhone = "+14155550199"
	voiceFake := &scriptedVoice{transcripts: []string{"We have 12 beds available."}}
	engine, _ := newTestEngine(t, cfg, fullScrapeResult(), voiceFake)

	engine.Coordinate(context.Background(), happyIntake())

	require.NotEmpty(t, voiceFake.dialed)
	assert.Equal(t, "+14155550199", voiceFake.dialed[0],
		"demo number dialed regardless of the shelter's phone")
}

func TestCoordinate_CancelledContextAppendsNoEvents(t *testing.T) {
	voiceFake := &scriptedVoice{transcripts: []string{""}}
	engine, st := newTestEngine(t, DefaultConfig(), fullScrapeResult(), voiceFake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := engine.Coordinate(ctx, happyIntake())

	require.Equal(t, OutcomeFailed, outcome.Status)
	events, err := st.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	assert.Empty(t, events, "no timeline events after cancellation")
}

func TestCoordinate_GeneratesCaseIDWhenMissing(t *testing.T) {
	voiceFake := &scriptedVoice{transcripts: []string{"We have 12 beds available."}}
	engine, _ := newTestEngine(t, DefaultConfig(), fullScrapeResult(), voiceFake)

	intake := happyIntake()
	intake.CaseID = ""
	outcome := engine.Coordinate(context.Background(), intake)

	assert.NotEmpty(t, outcome.CaseID)
}

// quotaVoice simulates the provider's daily-limit fallback: a synthetic
// successful transcript flagged as demo mode.
type quotaVoice struct{}

func (v *quotaVoice) CallShelter(ctx context.Context, phone, shelterName string) (bool, string, string, bool, error) {
	return true, "Shelter has 12 beds available, wheelchair accessible, offers meals and counseling services. Confirmed for tonight.", "ended", true, nil
}

func TestCoordinate_QuotaFallbackStillCoordinates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DemoMode = false
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st := store.New(db, "sqlite3")
	require.NoError(t, st.Migrate(context.Background()))
	ch := cache.New(st, &fakeScraper{result: fullScrapeResult()})

	engine, err := Build(cfg, Deps{
		Store:    st,
		Cache:    ch,
		Voice:    &quotaVoice{},
		Parser:   transcript.Parser{},
		Routing:  &fakeRouter{},
		Pharmacy: &fakePharmacyReference{},
	})
	require.NoError(t, err)

	outcome := engine.Coordinate(context.Background(), happyIntake())

	require.Equal(t, OutcomeCoordinated, outcome.Status)
	events, err := st.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	var sawDemoFlag bool
	for _, ev := range events {
		if ev.Step == "vapi_transcription" {
			if v, ok := ev.Details["demo_mode"].(bool); ok && v {
				sawDemoFlag = true
			}
		}
	}
	assert.True(t, sawDemoFlag, "vapi_transcription details should carry demo_mode=true")
}
