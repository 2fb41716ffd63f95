package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carebridge/dccp/internal/errs"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		PollInterval: 10 * time.Millisecond,
		MaxWait:      300 * time.Millisecond,
		MaxDuration:  2 * time.Minute,
	}
}

func TestCallShelter_NormalConfirmFlow(t *testing.T) {
	var pollCount int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/call":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(callPlacementResponse{ID: "call-1"})
		case r.Method == http.MethodGet && r.URL.Path == "/call/call-1":
			n := atomic.AddInt32(&pollCount, 1)
			w.Header().Set("Content-Type", "application/json")
			if n == 1 {
				json.NewEncoder(w).Encode(callStatusResponse{ID: "call-1", Status: "in-progress", PartialTranscript: "Hello, this is..."})
				return
			}
			resp := callStatusResponse{ID: "call-1", Status: "ended"}
			resp.Artifact.Transcript = []transcriptTurn{
				{Role: "assistant", Message: "Do you have beds available?"},
				{Role: "human", Message: "Yes, 12 beds, wheelchair accessible."},
			}
			json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	caller := New(testConfig(srv.URL))
	ok, transcript, endState, demoMode, err := caller.CallShelter(context.Background(), "555-0000", "Harbor Light")
	if err != nil {
		t.Fatalf("CallShelter: %v", err)
	}
	if !ok {
		t.Error("ok = false, want true for an ended call")
	}
	if endState != "ended" {
		t.Errorf("endState = %q, want ended", endState)
	}
	if demoMode {
		t.Error("demoMode = true, want false")
	}
	if transcript == "" {
		t.Error("expected a non-empty reconstructed transcript")
	}
}

func TestCallShelter_DemoModeOverridesDialedPhone(t *testing.T) {
	var dialedNumber string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/call":
			body, _ := io.ReadAll(r.Body)
			var req callRequest
			json.Unmarshal(body, &req)
			dialedNumber = req.Customer.Number
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(callPlacementResponse{ID: "call-1"})
		case r.Method == http.MethodGet:
			resp := callStatusResponse{ID: "call-1", Status: "ended"}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DemoMode = true
	cfg.DemoPhone = "555-9999"
	caller := New(cfg)

	_, _, _, demoMode, err := caller.CallShelter(context.Background(), "555-0000", "Harbor Light")
	if err != nil {
		t.Fatalf("CallShelter: %v", err)
	}
	if !demoMode {
		t.Error("demoMode = false, want true")
	}
	if dialedNumber != "555-9999" {
		t.Errorf("dialed %q, want the configured demo phone 555-9999 regardless of the real shelter phone", dialedNumber)
	}
}

func TestCallShelter_QuotaExceededFallsBackToSyntheticSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(callPlacementResponse{Error: "Daily Outbound Call Limit exceeded for this account"})
	}))
	defer srv.Close()

	caller := New(testConfig(srv.URL))
	ok, transcript, endState, demoMode, err := caller.CallShelter(context.Background(), "555-0000", "Harbor Light")
	if err != nil {
		t.Fatalf("CallShelter: %v", err)
	}
	if !ok {
		t.Error("ok = false, want the synthetic success fallback")
	}
	if !demoMode {
		t.Error("demoMode = false, want true on the quota fallback")
	}
	if endState != "ended" {
		t.Errorf("endState = %q, want ended", endState)
	}
	if transcript != fallbackTranscript {
		t.Errorf("transcript = %q, want the fixed fallback transcript", transcript)
	}
}

func TestCallShelter_TimesOutIfCallNeverReachesTerminalState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(callPlacementResponse{ID: "call-1"})
		case r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(callStatusResponse{ID: "call-1", Status: "ringing"})
		}
	}))
	defer srv.Close()

	caller := New(testConfig(srv.URL))
	_, _, endState, _, err := caller.CallShelter(context.Background(), "555-0000", "Harbor Light")
	if err == nil {
		t.Fatal("expected a timeout error when the call never reaches a terminal state")
	}
	var to *errs.Timeout
	if toe, ok := err.(*errs.Timeout); ok {
		to = toe
	}
	if to == nil {
		t.Errorf("expected *errs.Timeout, got %T: %v", err, err)
	}
	if endState != "timeout" {
		t.Errorf("endState = %q, want timeout", endState)
	}
}

func TestCallShelter_PlacementFailureReturnsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	caller := New(testConfig(srv.URL))
	_, _, _, _, err := caller.CallShelter(context.Background(), "555-0000", "Harbor Light")
	if err == nil {
		t.Fatal("expected an error when the provider fails to place the call")
	}
}
