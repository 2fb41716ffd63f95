package agents

import (
	"context"

	"github.com/carebridge/dccp/internal/store"
)

// Listings is the subset of the scraping cache (internal/cache) the
// agents read from. Agents never write cache rows; only the cache's
// own refresh path does.
type Listings interface {
	Shelters(ctx context.Context, minBeds int, accessibleOnly bool) ([]store.ShelterListing, error)
	Transport(ctx context.Context, accessibleOnly bool) ([]store.TransportListing, error)
	Benefits(ctx context.Context) ([]store.BenefitProgram, error)
	Resources(ctx context.Context, category string, requireDietary bool) ([]store.CommunityResource, error)
}

// VoiceCaller is the subset of internal/voice the shelter agent drives.
type VoiceCaller interface {
	CallShelter(ctx context.Context, phone, shelterName string) (ok bool, transcript string, endState string, demoMode bool, err error)
}

// TranscriptParser is the subset of internal/transcript the shelter agent
// drives.
type TranscriptParser interface {
	Parse(transcript, shelterName string) (availabilityConfirmed bool, bedsAvailable int, accessibility bool, services []string)
}

// Router is the subset of internal/routing the transport agent drives.
type Router interface {
	Route(ctx context.Context, pickup, dropoff string) (polyline string, etaMinutes int, err error)
}

// PharmacyReference is the subset of internal/pharmacy the pharmacy agent
// drives.
type PharmacyReference interface {
	Lookup(medicationName string) (pharmacyName, address, phone string, cost float64, coverage float64, ok bool)
}
