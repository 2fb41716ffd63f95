package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/carebridge/dccp/internal/agents"
	"github.com/carebridge/dccp/internal/bus"
	"github.com/carebridge/dccp/internal/store"
)

const sender = "coordinator"

// Coordinate runs the nine-step discharge-coordination sequence for one
// intake. It never returns an error: every failure is
// reported inside the returned Outcome, and the timeline records exactly
// what happened at each step.
func (e *Engine) Coordinate(ctx context.Context, intake IntakeRecord) *Outcome {
	caseID := intake.CaseID
	if caseID == "" {
		caseID = newCaseID()
	}
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "coordinate",
			trace.WithAttributes(attribute.String("case_id", caseID)))
		defer span.End()
	}
	startedAt := time.Now()
	outcome := &Outcome{CaseID: caseID, StartedAt: startedAt}

	c := &run{e: e, ctx: ctx, caseID: caseID, intake: intake, outcome: outcome}

	// Step 1: persist intake + initiated event.
	if err := c.persistIntake(); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Error = err.Error()
		outcome.CompletedAt = time.Now()
		return outcome
	}

	// Step 2: social-worker intake planning. Independent of every other
	// step; its failure never aborts the workflow.
	c.step("social_worker_assignment", c.assignCaseManager)

	// Step 3: pharmacy prep.
	c.step("pharmacy_prep", c.prepMedications)

	// Step 4: shelter matching + step 5: voice confirmation, with the
	// candidate-retry loop.
	var shelterOK bool
	c.step("shelter_matching", func() { shelterOK = c.matchAndConfirmShelter() })
	if !shelterOK && outcome.Status == OutcomeFailed {
		// Hard cache failure (step 4): skip 5/6/8, still run eligibility (7).
		c.step("eligibility_check", c.checkEligibility)
		c.finalize(startedAt)
		return outcome
	}

	// Steps 6 and 7 run concurrently: resource coordination does not
	// depend on eligibility, and vice versa. Each writes only
	// to its own outcome fields, so no lock is needed between them.
	var g errgroup.Group
	g.Go(func() error {
		c.step("resource_coordination", c.coordinateResources)
		return nil
	})
	g.Go(func() error {
		c.step("eligibility_check", c.checkEligibility)
		return nil
	})
	_ = g.Wait()

	// Step 8: transport scheduling. Runs whenever matchAndConfirmShelter
	// produced any candidate at all, confirmed or not: exhausting the
	// confirmation retries still leaves a best candidate to drive to,
	// not an abandoned pickup.
	if c.outcome.Shelter != nil {
		c.step("transport_scheduling", c.scheduleTransport)
	}

	c.finalize(startedAt)
	return outcome
}

// step wraps one workflow step with a child span and a real-duration
// histogram observation.
func (c *run) step(name string, fn func()) {
	start := time.Now()
	var span trace.Span
	if c.e.tracer != nil {
		_, span = c.e.tracer.Start(c.ctx, name)
	}
	fn()
	if span != nil {
		span.End()
	}
	if c.e.metrics != nil {
		c.e.metrics.StepDuration.Record(c.ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("step", name)))
	}
}

// run carries the per-case mutable state threaded through the nine
// steps. Mutex-free except for the timeline: every step before the
// step-6/7 fan-out runs serially, and the fan-out's two goroutines
// touch disjoint outcome fields.
type run struct {
	e       *Engine
	ctx     context.Context
	caseID  string
	intake  IntakeRecord
	outcome *Outcome

	// timelineMu guards appends to outcome.Timeline, the one field the
	// step-6/7 concurrent fan-out writes from both goroutines.
	timelineMu sync.Mutex
}

func (c *run) append(step, agent string, status store.EventStatus, description string, details map[string]interface{}, transcription string) {
	ev := &store.TimelineEvent{
		CaseID:        c.caseID,
		Step:          step,
		Agent:         agent,
		Status:        status,
		Description:   description,
		Details:       details,
		Transcription: transcription,
		Timestamp:     time.Now(),
	}
	if err := c.e.store.AppendEvent(c.ctx, ev); err != nil {
		// The store assigns Seq transactionally; a failure here means the
		// event simply never lands on the timeline. Nothing else to do.
		return
	}
	c.timelineMu.Lock()
	c.outcome.Timeline = append(c.outcome.Timeline, ev)
	c.timelineMu.Unlock()
}

func (c *run) notifyAnalytics(step, status string) {
	c.e.bus.Notify(sender, bus.AgentAnalytics, bus.MsgWorkflowUpdate, agents.WorkflowUpdate{
		CaseID:    c.caseID,
		Step:      step,
		Status:    status,
		Sender:    sender,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (c *run) persistIntake() error {
	cs := &store.Case{
		CaseID:         c.caseID,
		PatientName:    c.intake.PatientName,
		PatientDOB:     c.intake.PatientDOB,
		Contact:        c.intake.Contact,
		Discharge:      c.intake.Discharge,
		Clinical:       c.intake.Clinical,
		FollowUp:       c.intake.FollowUp,
		WorkflowStatus: store.StatusInitiated,
		CurrentStep:    "intake",
	}
	if err := c.e.store.UpsertCase(c.ctx, cs); err != nil {
		return err
	}
	c.append("initiated", sender, store.EventCompleted, "case intake recorded for "+c.intake.PatientName, nil, "")
	return nil
}

func (c *run) needs() agents.Needs {
	return agents.Needs{
		Accessibility: c.intake.Clinical.AccessibilityNeeds,
		DietaryNeeds:  c.intake.Clinical.DietaryNeeds,
		SocialNeeds:   c.intake.Clinical.SocialNeeds,
	}
}

func (c *run) assignCaseManager() {
	c.setStep("social_worker_assignment")
	c.append("sw_plan_started", "social_worker", store.EventInProgress, "intake planning started", nil, "")
	resp, err := c.call(bus.AgentSocialWorker, bus.MsgSocialWorkerAssign, agents.SocialWorkerAssignment{
		CaseID:      c.caseID,
		PatientName: c.intake.PatientName,
		Needs:       c.needs(),
	})
	if err != nil {
		c.append("sw_plan_failed", "social_worker", store.EventFailed, "case manager assignment failed", map[string]interface{}{"error": err.Error()}, "")
		c.notifyAnalytics("social_worker_assignment", "failed")
		return
	}
	a := resp.(*agents.SocialWorkerResponse)
	c.outcome.CaseManager = &CaseManagerAssignment{
		Name:             a.Name,
		Phone:            a.Phone,
		Department:       a.Department,
		FirstContactDate: a.FirstContactDate,
	}
	c.append("sw_plan_completed", "social_worker", store.EventCompleted, "case manager assigned: "+a.Name, map[string]interface{}{"first_contact_method": a.FirstContactMethod}, "")
	c.notifyAnalytics("social_worker_assignment", "completed")
}

func (c *run) prepMedications() {
	c.setStep("pharmacy_prep")
	resp, err := c.call(bus.AgentPharmacy, bus.MsgPharmacyPrep, agents.PharmacyRequest{
		CaseID:      c.caseID,
		Medications: c.intake.Clinical.Medications,
		Location:    c.intake.Contact.Address,
	})
	if err != nil {
		c.append("pharmacy_failed", "pharmacy", store.EventFailed, "medication prep failed", map[string]interface{}{"error": err.Error()}, "")
		c.notifyAnalytics("pharmacy_prep", "failed")
		return
	}
	p := resp.(*agents.PharmacyResponse)
	c.outcome.Medication = &MedicationPlan{
		PharmacyName:      p.PharmacyName,
		Address:           p.Address,
		Phone:             p.Phone,
		ReadyTime:         p.ReadyTime,
		TotalCost:         p.TotalCost,
		InsuranceCoverage: p.InsuranceCoverage,
	}
	c.append("pharmacy_ready", "pharmacy", store.EventCompleted, "medications ready at "+p.PharmacyName, map[string]interface{}{"total_cost": p.TotalCost}, "")
	c.notifyAnalytics("pharmacy_prep", "completed")
}

// matchAndConfirmShelter implements steps 4-5: up to ShelterRetryLimit
// shelter candidates are tried via a voice confirmation call each; the
// first confirmed candidate wins. A hard cache-miss on the very first
// attempt (no candidate at all) sets the outcome to "failed"; running out
// of retries without a confirmation sets it to "unconfirmed-shelter" but
// keeps the last-tried candidate as the assignment.
func (c *run) matchAndConfirmShelter() bool {
	c.setStep("shelter_matching")
	var tried []string
	var last *agents.ShelterMatchResponse

	for attempt := 0; attempt < c.e.cfg.ShelterRetryLimit; attempt++ {
		// The shelter handler places and polls a voice call, so its bus
		// deadline is the call budget plus headroom for the cache query,
		// not the generic per-agent timeout.
		resp, err := c.e.bus.Call(c.ctx, sender, bus.AgentShelter, bus.MsgShelterMatch, agents.ShelterMatchRequest{
			CaseID:       c.caseID,
			Needs:        c.needs(),
			ExcludeNames: tried,
		}, c.e.cfg.VoiceCallTimeout+c.e.cfg.ProviderTimeout)
		if err != nil {
			// The bus folds every handler error into *bus.RemoteError,
			// stringifying the original errs.CacheMiss message, so a hard
			// cache-miss on the very first attempt is recognized by the
			// taxonomy's own "cache miss:" message prefix rather
			// than a type assertion the bus boundary has already erased.
			if attempt == 0 && strings.Contains(err.Error(), "cache miss") {
				c.outcome.Status = OutcomeFailed
				c.append("shelter_failed", "shelter", store.EventFailed, "no shelter candidates available", map[string]interface{}{"error": err.Error()}, "")
				c.notifyAnalytics("shelter_matching", "failed")
				return false
			}
			c.append("shelter_failed", "shelter", store.EventFailed, "shelter candidate call failed", map[string]interface{}{"error": err.Error(), "attempt": attempt + 1}, "")
			break
		}
		m := resp.(*agents.ShelterMatchResponse)
		last = m
		tried = append(tried, m.Selected.Name)

		c.append("shelter_candidate_selected", "shelter", store.EventInProgress,
			"candidate shelter: "+m.Selected.Name, map[string]interface{}{"available_beds": m.Selected.AvailableBeds, "attempt": attempt + 1}, "")
		c.append("vapi_transcription", "shelter", store.EventInfo,
			"voice confirmation call with "+m.Selected.Name,
			map[string]interface{}{"attempt": attempt + 1, "demo_mode": m.DemoMode}, m.Transcript)

		if m.AvailabilityConfirmed {
			c.outcome.Shelter = &ShelterSummary{
				Name:                  m.Selected.Name,
				Address:               m.Selected.Address,
				ConfirmedBeds:         m.Selected.AvailableBeds,
				Accessibility:         m.Selected.Accessibility,
				AvailabilityConfirmed: true,
				AccessibilityWarning:  m.AccessibilityWarning,
			}
			c.append("shelter_confirmed", "shelter", store.EventCompleted, "shelter confirmed: "+m.Selected.Name, map[string]interface{}{"attempt": attempt + 1}, "")
			c.notifyAnalytics("shelter_matching", "completed")
			c.e.store.UpdateShelterAvailability(c.ctx, m.Selected.Name, m.Selected.AvailableBeds-1)
			return true
		}
	}

	if last != nil {
		c.outcome.Shelter = &ShelterSummary{
			Name:                  last.Selected.Name,
			Address:               last.Selected.Address,
			ConfirmedBeds:         last.Selected.AvailableBeds,
			Accessibility:         last.Selected.Accessibility,
			AvailabilityConfirmed: false,
			AccessibilityWarning:  last.AccessibilityWarning,
		}
	}
	c.outcome.Status = OutcomeUnconfirmedShelter
	c.append("shelter_unconfirmed", "shelter", store.EventFailed, "exhausted retries without confirmation", map[string]interface{}{"retries": c.e.cfg.ShelterRetryLimit}, "")
	c.notifyAnalytics("shelter_matching", "failed")
	return false
}

func (c *run) coordinateResources() {
	c.setStep("resource_coordination")
	items := []agents.ResourceItem{agents.ResourceFood, agents.ResourceHygiene, agents.ResourceClothing}
	dietary := c.intake.Clinical.DietaryNeeds != ""
	// Deliver to the matched shelter from step 5, not the patient's old
	// home address, falling back to it only when no shelter was found at
	// all.
	deliveryAddress := c.intake.Contact.Address
	if c.outcome.Shelter != nil {
		deliveryAddress = c.outcome.Shelter.Address
	}
	resp, err := c.call(bus.AgentResource, bus.MsgResourceCoordinate, agents.ResourceRequest{
		CaseID:          c.caseID,
		Items:           items,
		DeliveryAddress: deliveryAddress,
		Dietary:         dietary,
		DietaryNeeds:    c.intake.Clinical.DietaryNeeds,
	})
	if err != nil {
		c.append("resources_failed", "resource", store.EventFailed, "resource coordination failed", map[string]interface{}{"error": err.Error()}, "")
		c.notifyAnalytics("resource_coordination", "failed")
		return
	}
	r := resp.(*agents.ResourceResponse)
	for _, plan := range r.Plans {
		planDetails := map[string]interface{}{"provider": plan.ProviderName, "pickup_window": plan.PickupWindow, "delivery_address": plan.DeliveryAddress}
		if plan.SpecialInstructions != "" {
			planDetails["special_instructions"] = plan.SpecialInstructions
		}
		c.append("resource_"+string(plan.Item), "resource", store.EventCompleted,
			string(plan.Item)+" arranged via "+plan.ProviderName, planDetails, "")
	}
	for _, item := range r.Unmet {
		c.append("resource_"+string(item), "resource", store.EventFailed, "no provider found for "+string(item), nil, "")
	}
	details := map[string]interface{}{"plans": len(r.Plans), "unmet": len(r.Unmet)}
	c.append("resources_summary", "resource", store.EventCompleted, "ancillary resources coordinated", details, "")
	c.notifyAnalytics("resource_coordination", "completed")
}

func (c *run) checkEligibility() {
	c.setStep("eligibility_check")
	resp, err := c.call(bus.AgentEligibility, bus.MsgEligibilityCheck, agents.EligibilityRequest{
		CaseID:      c.caseID,
		DOB:         c.intake.PatientDOB,
		IncomeLevel: c.intake.IncomeLevel,
	})
	if err != nil {
		c.append("eligibility_failed", "eligibility", store.EventFailed, "eligibility check failed", map[string]interface{}{"error": err.Error()}, "")
		c.notifyAnalytics("eligibility_check", "failed")
		return
	}
	el := resp.(*agents.EligibilityResponse)
	programs := make([]string, 0, len(el.Programs))
	for _, p := range el.Programs {
		programs = append(programs, p.Name)
	}
	c.outcome.Benefits = &BenefitsSummary{
		Programs:             programs,
		TotalMonthlyBenefits: el.TotalMonthlyBenefits,
		RequiresManualReview: el.RequiresManualReview,
		NextSteps:            el.NextSteps,
	}
	c.append("eligibility_checked", "eligibility", store.EventCompleted, "eligibility evaluated", map[string]interface{}{"programs": len(el.Programs)}, "")
	c.notifyAnalytics("eligibility_check", "completed")
}

func (c *run) scheduleTransport() {
	c.setStep("transport_scheduling")
	accessible := c.intake.Clinical.AccessibilityNeeds != ""
	dropoff := ""
	if c.outcome.Shelter != nil {
		dropoff = c.outcome.Shelter.Address
	}
	resp, err := c.call(bus.AgentTransport, bus.MsgTransportSchedule, agents.TransportRequest{
		CaseID:                c.caseID,
		Pickup:                c.intake.Discharge.FacilityAddress,
		Dropoff:               dropoff,
		AccessibilityRequired: accessible,
	})
	if err != nil {
		c.append("transport_failed", "transport", store.EventFailed, "transport scheduling failed", map[string]interface{}{"error": err.Error()}, "")
		c.notifyAnalytics("transport_scheduling", "failed")
		return
	}
	t := resp.(*agents.TransportResponse)
	if t.Provider == "" {
		c.append("transport_failed", "transport", store.EventFailed, "no transport provider available", nil, "")
		c.notifyAnalytics("transport_scheduling", "failed")
		return
	}
	c.outcome.Transport = &TransportPlan{
		Provider:      t.Provider,
		Driver:        t.Driver,
		Phone:         t.Phone,
		PickupTime:    t.PickupTime,
		ETAMinutes:    t.ETAMinutes,
		RoutePolyline: t.RoutePolyline,
	}
	c.append("transport_scheduled", "transport", store.EventCompleted, "transport scheduled with "+t.Provider, map[string]interface{}{"eta_minutes": t.ETAMinutes}, "")
	c.notifyAnalytics("transport_scheduling", "completed")
}

func (c *run) finalize(startedAt time.Time) {
	if c.outcome.Status == "" {
		switch {
		case c.outcome.Transport == nil:
			c.outcome.Status = OutcomeCoordinatedWithoutTransport
		default:
			c.outcome.Status = OutcomeCoordinated
		}
	}

	status := store.StatusCoordinated
	if c.outcome.Status == OutcomeFailed {
		status = store.StatusFailed
	}
	completedAt := time.Now()
	cs := &store.Case{
		CaseID:                    c.caseID,
		PatientName:               c.intake.PatientName,
		PatientDOB:                c.intake.PatientDOB,
		Contact:                   c.intake.Contact,
		Discharge:                 c.intake.Discharge,
		Clinical:                  c.intake.Clinical,
		FollowUp:                  c.intake.FollowUp,
		WorkflowStatus:            status,
		CurrentStep:               "finalized",
		AssignedTransportProvider: transportProvider(c.outcome.Transport),
		AssignedBenefits:          benefitsPrograms(c.outcome.Benefits),
		CompletedAt:               &completedAt,
	}
	if c.outcome.Shelter != nil {
		cs.AssignedShelterID = c.outcome.Shelter.Name
	}
	c.e.store.UpsertCase(c.ctx, cs)
	terminalStep, terminalStatus := "completed", store.EventCompleted
	if c.outcome.Status == OutcomeFailed {
		terminalStep, terminalStatus = "failed", store.EventFailed
	}
	c.append(terminalStep, sender, terminalStatus, "workflow finalized with status "+string(c.outcome.Status), nil, "")

	c.outcome.CompletedAt = completedAt
	if c.e.metrics != nil {
		c.e.metrics.Outcomes.Add(c.ctx, 1,
			metric.WithAttributes(attribute.String("status", string(c.outcome.Status))))
	}
}

// setStep upserts the case's current_step so /workflows/{id} reflects
// in-progress state, not just the terminal outcome.
func (c *run) setStep(step string) {
	cs := &store.Case{
		CaseID:         c.caseID,
		PatientName:    c.intake.PatientName,
		PatientDOB:     c.intake.PatientDOB,
		Contact:        c.intake.Contact,
		Discharge:      c.intake.Discharge,
		Clinical:       c.intake.Clinical,
		FollowUp:       c.intake.FollowUp,
		WorkflowStatus: store.StatusInProgress,
		CurrentStep:    step,
	}
	_ = c.e.store.UpsertCase(c.ctx, cs)
}

func (c *run) call(agent bus.AgentName, msgType bus.MessageType, request any) (any, error) {
	return c.e.bus.Call(c.ctx, sender, agent, msgType, request, c.e.cfg.ProviderTimeout)
}

func transportProvider(t *TransportPlan) string {
	if t == nil {
		return ""
	}
	return t.Provider
}

func benefitsPrograms(b *BenefitsSummary) []string {
	if b == nil {
		return nil
	}
	return b.Programs
}
