package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/carebridge/dccp/internal/agents"
	"github.com/carebridge/dccp/internal/bus"
	"github.com/carebridge/dccp/internal/cache"
	"github.com/carebridge/dccp/internal/observability"
	"github.com/carebridge/dccp/internal/pharmacy"
	"github.com/carebridge/dccp/internal/routing"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/transcript"
	"github.com/carebridge/dccp/internal/voice"
)

// Config holds the coordinator's retry/timeout knobs.
type Config struct {
	ShelterRetryLimit      int           // voice-confirmation candidates tried, default 3
	ProviderTimeout        time.Duration // per-agent-call timeout, default 30s
	VoiceCallTimeout       time.Duration // overall voice-call deadline, default 600s
	DemoMode               bool
	DemoPhone              string
	SocialWorkerName       string
	SocialWorkerPhone      string
	SocialWorkerDepartment string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ShelterRetryLimit: 3,
		ProviderTimeout:   30 * time.Second,
		VoiceCallTimeout:  600 * time.Second,
		DemoMode:          true,
	}
}

// Deps bundles the constructed collaborators Build wires into the seven
// agent handlers. Voice, Parser, Routing and Pharmacy are interfaces
// (agents.VoiceCaller, ...), and Cache reaches the agents only as
// agents.Listings, so tests can substitute fakes without a real browser,
// voice provider, or routing provider.
type Deps struct {
	Store    *store.Store
	Cache    *cache.Cache
	Voice    agents.VoiceCaller
	Parser   agents.TranscriptParser
	Routing  agents.Router
	Pharmacy agents.PharmacyReference
	Metrics  *observability.Metrics
	Tracer   trace.Tracer
}

// NewDeps constructs the default production Deps from already-built
// collaborators. Exists so cmd/dccp's wiring stays a flat, readable list.
func NewDeps(st *store.Store, ch *cache.Cache, voiceCaller *voice.Caller, router *routing.Client, pharmacyRef *pharmacy.Reference, metrics *observability.Metrics) Deps {
	return Deps{
		Store:    st,
		Cache:    ch,
		Voice:    voiceCaller,
		Parser:   transcript.Parser{},
		Routing:  router,
		Pharmacy: pharmacyRef,
		Metrics:  metrics,
	}
}

// Engine is the workflow coordinator: explicit startup wiring instead of
// a global self-registering agent registry.
type Engine struct {
	cfg     Config
	store   *store.Store
	bus     *bus.Bus
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// Build constructs every agent handler, registers them on a fresh bus,
// and returns a ready-to-use Engine. There is no global mutable state:
// every dependency is passed in explicitly.
func Build(cfg Config, deps Deps) (*Engine, error) {
	b := bus.New(2000)

	shelterAgent := &agents.ShelterAgent{
		Listings:  deps.Cache,
		Voice:     deps.Voice,
		Parser:    deps.Parser,
		DemoMode:  cfg.DemoMode,
		DemoPhone: cfg.DemoPhone,
	}
	transportAgent := &agents.TransportAgent{Listings: deps.Cache, Routing: deps.Routing}
	resourceAgent := &agents.ResourceAgent{Listings: deps.Cache}
	pharmacyAgent := &agents.PharmacyAgent{Reference: deps.Pharmacy}
	eligibilityAgent := &agents.EligibilityAgent{}
	socialWorkerAgent := &agents.SocialWorkerAgent{
		RosterName:       cfg.SocialWorkerName,
		RosterPhone:      cfg.SocialWorkerPhone,
		RosterDepartment: cfg.SocialWorkerDepartment,
	}
	analyticsAgent := &agents.AnalyticsAgent{}

	handlers := []struct {
		name bus.AgentName
		fn   bus.Handler
	}{
		{bus.AgentShelter, func(ctx context.Context, req any) (any, error) {
			return shelterAgent.Match(ctx, req.(agents.ShelterMatchRequest))
		}},
		{bus.AgentTransport, func(ctx context.Context, req any) (any, error) {
			return transportAgent.Schedule(ctx, req.(agents.TransportRequest))
		}},
		{bus.AgentResource, func(ctx context.Context, req any) (any, error) {
			return resourceAgent.Coordinate(ctx, req.(agents.ResourceRequest))
		}},
		{bus.AgentPharmacy, func(_ context.Context, req any) (any, error) {
			return pharmacyAgent.Prep(req.(agents.PharmacyRequest))
		}},
		{bus.AgentEligibility, func(_ context.Context, req any) (any, error) {
			return eligibilityAgent.Check(req.(agents.EligibilityRequest))
		}},
		{bus.AgentSocialWorker, func(_ context.Context, req any) (any, error) {
			return socialWorkerAgent.Assign(req.(agents.SocialWorkerAssignment))
		}},
		{bus.AgentAnalytics, func(ctx context.Context, req any) (any, error) {
			return analyticsAgent.Observe(ctx, req.(agents.WorkflowUpdate))
		}},
	}
	for _, h := range handlers {
		if err := b.Register(h.name, h.fn); err != nil {
			return nil, fmt.Errorf("workflow: register %s: %w", h.name, err)
		}
	}

	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.VoiceCallTimeout == 0 {
		cfg.VoiceCallTimeout = 600 * time.Second
	}
	if cfg.ShelterRetryLimit == 0 {
		cfg.ShelterRetryLimit = 3
	}

	return &Engine{cfg: cfg, store: deps.Store, bus: b, metrics: deps.Metrics, tracer: deps.Tracer}, nil
}

// newCaseID generates a case id via google/uuid when the façade doesn't
// supply one.
func newCaseID() string {
	return uuid.NewString()
}
