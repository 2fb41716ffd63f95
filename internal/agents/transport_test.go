package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/carebridge/dccp/internal/store"
)

type fakeRouter struct {
	polyline string
	eta      int
	err      error
}

func (f *fakeRouter) Route(ctx context.Context, pickup, dropoff string) (string, int, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.polyline, f.eta, nil
}

func TestTransportAgent_Schedule_Basic(t *testing.T) {
	listings := &fakeListings{transport: []store.TransportListing{
		{Provider: "City Paratransit", Phone: "(415) 555-0303"},
	}}
	router := &fakeRouter{polyline: "encoded-poly", eta: 25}

	agent := &TransportAgent{Listings: listings, Routing: router}
	resp, err := agent.Schedule(context.Background(), TransportRequest{CaseID: "C1", Pickup: "A", Dropoff: "B"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if resp.Provider != "City Paratransit" {
		t.Errorf("Provider = %q, want City Paratransit", resp.Provider)
	}
	if resp.RoutePolyline != "encoded-poly" || resp.ETAMinutes != 25 {
		t.Errorf("got polyline=%q eta=%d, want encoded-poly/25", resp.RoutePolyline, resp.ETAMinutes)
	}
}

func TestTransportAgent_Schedule_RoutingFallback(t *testing.T) {
	listings := &fakeListings{transport: []store.TransportListing{{Provider: "MedRide"}}}
	router := &fakeRouter{err: errors.New("routing provider down")}

	agent := &TransportAgent{Listings: listings, Routing: router}
	resp, err := agent.Schedule(context.Background(), TransportRequest{CaseID: "C1", Pickup: "A", Dropoff: "B"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if resp.RoutePolyline != "A;B" {
		t.Errorf("RoutePolyline = %q, want straight two-point fallback", resp.RoutePolyline)
	}
	if resp.ETAMinutes != 30 {
		t.Errorf("ETAMinutes = %d, want 30 (fallback default)", resp.ETAMinutes)
	}
}

func TestTransportAgent_Schedule_NoProviderLeavesEmptyFields(t *testing.T) {
	agent := &TransportAgent{Listings: &fakeListings{}, Routing: &fakeRouter{polyline: "p", eta: 10}}
	resp, err := agent.Schedule(context.Background(), TransportRequest{CaseID: "C1", AccessibilityRequired: true})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if resp.Provider != "" {
		t.Errorf("Provider = %q, want empty when no transport row exists", resp.Provider)
	}
}
