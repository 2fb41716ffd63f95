package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carebridge/dccp/internal/cache"
	"github.com/carebridge/dccp/internal/extractor"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/workflow"
)

type fakeScraper struct {
	result cache.ScrapeResult
}

func (f *fakeScraper) Scrape(ctx context.Context, category cache.Category) (cache.ScrapeResult, error) {
	return f.result, nil
}

type fakeVoiceCaller struct{}

func (f *fakeVoiceCaller) CallShelter(ctx context.Context, phone, shelterName string) (bool, string, string, bool, error) {
	return true, "Shelter confirms 5 beds available, wheelchair accessible.", "ended", false, nil
}

type fakeParser struct{}

func (f *fakeParser) Parse(transcript, shelterName string) (bool, int, bool, []string) {
	return true, 5, true, []string{"meals"}
}

type fakeRouter struct{}

func (f *fakeRouter) Route(ctx context.Context, pickup, dropoff string) (string, int, error) {
	return "encoded-polyline", 15, nil
}

type fakePharmacyReference struct{}

func (f *fakePharmacyReference) Lookup(medicationName string) (string, string, string, float64, float64, bool) {
	return "Walgreens", "1 Market St", "(415) 555-0100", 10.0, 8.0, true
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db, "sqlite3")
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	scraper := &fakeScraper{result: cache.ScrapeResult{
		Shelters: []store.ShelterListing{
			{Name: "Harbor Light", Address: "100 Shelter Way", Capacity: 20, AvailableBeds: 5, Accessibility: true, LastUpdated: time.Now()},
		},
		Transport: []store.TransportListing{
			{Provider: "MedRide", ServiceName: "standard", Phone: "555-2000", LastUpdated: time.Now()},
		},
	}}
	ch := cache.New(st, scraper)

	deps := workflow.NewDeps(st, ch, nil, nil, nil, nil)
	deps.Voice = &fakeVoiceCaller{}
	deps.Parser = &fakeParser{}
	deps.Routing = &fakeRouter{}
	deps.Pharmacy = &fakePharmacyReference{}

	engine, err := workflow.Build(workflow.DefaultConfig(), deps)
	if err != nil {
		t.Fatalf("workflow.Build: %v", err)
	}

	return New(engine, st, ch, nil, 4)
}

func TestHandleDischarge_HappyPath(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]interface{}{
		"case_id":      "C1",
		"patient_name": "John Doe",
		"contact":      map[string]interface{}{"address": "123 Main St"},
		"discharge":    map[string]interface{}{"facility_address": "200 Hospital Dr"},
	}
	payload, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/discharge", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["case_id"] != "C1" {
		t.Errorf("case_id = %v, want C1", resp["case_id"])
	}
	if resp["status"] != "coordinated" {
		t.Errorf("status = %v, want coordinated", resp["status"])
	}
}

func TestHandleDischarge_MissingPatientNameIsValidationError(t *testing.T) {
	srv := newTestServer(t)
	payload, _ := json.Marshal(map[string]interface{}{"case_id": "C2"})

	req := httptest.NewRequest(http.MethodPost, "/discharge", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleDischarge_InvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/discharge", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandleListWorkflows_AndGetWorkflow(t *testing.T) {
	srv := newTestServer(t)
	payload, _ := json.Marshal(map[string]interface{}{
		"case_id":      "C3",
		"patient_name": "Jane Roe",
	})
	req := httptest.NewRequest(http.MethodPost, "/discharge", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("discharge setup failed: %d %s", rr.Code, rr.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	listRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(listRR, listReq)
	if listRR.Code != http.StatusOK {
		t.Fatalf("GET /workflows status = %d", listRR.Code)
	}
	var cases []store.Case
	if err := json.Unmarshal(listRR.Body.Bytes(), &cases); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("len(cases) = %d, want 1", len(cases))
	}

	getReq := httptest.NewRequest(http.MethodGet, "/workflows/C3", nil)
	getRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRR, getReq)
	if getRR.Code != http.StatusOK {
		t.Fatalf("GET /workflows/C3 status = %d", getRR.Code)
	}

	missingReq := httptest.NewRequest(http.MethodGet, "/workflows/does-not-exist", nil)
	missingRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(missingRR, missingReq)
	if missingRR.Code != http.StatusNotFound {
		t.Errorf("status for missing case = %d, want 404", missingRR.Code)
	}
}

func TestHandleListShelters(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/shelters", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var rows []store.ShelterListing
	if err := json.Unmarshal(rr.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "Harbor Light" {
		t.Errorf("got %+v", rows)
	}
}

func TestHandleShelterAvailability_UpdatesAndNotFound(t *testing.T) {
	srv := newTestServer(t)

	// Prime the cache.
	req := httptest.NewRequest(http.MethodGet, "/shelters", nil)
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	payload, _ := json.Marshal(map[string]int{"available_beds": 2})
	updateReq := httptest.NewRequest(http.MethodPost, "/shelters/"+url.PathEscape("Harbor Light")+"/availability", bytes.NewReader(payload))
	updateRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(updateRR, updateReq)
	if updateRR.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", updateRR.Code, updateRR.Body.String())
	}

	missingReq := httptest.NewRequest(http.MethodPost, "/shelters/"+url.PathEscape("Unknown Shelter")+"/availability", bytes.NewReader(payload))
	missingRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(missingRR, missingReq)
	if missingRR.Code != http.StatusNotFound {
		t.Errorf("status for unknown shelter = %d, want 404", missingRR.Code)
	}
}

func TestHandleWorkflowEvent_AppendsAndValidates(t *testing.T) {
	srv := newTestServer(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"case_id":      "C4",
		"patient_name": "Ann Lee",
	})
	req := httptest.NewRequest(http.MethodPost, "/discharge", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("discharge setup failed: %d", rr.Code)
	}

	eventPayload, _ := json.Marshal(map[string]interface{}{
		"case_id": "C4",
		"event": map[string]interface{}{
			"step":        "external_note",
			"agent":       "case_manager",
			"status":      "completed",
			"description": "follow-up call placed",
		},
	})
	evReq := httptest.NewRequest(http.MethodPost, "/workflow-events", bytes.NewReader(eventPayload))
	evRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(evRR, evReq)
	if evRR.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", evRR.Code, evRR.Body.String())
	}

	badReq := httptest.NewRequest(http.MethodPost, "/workflow-events", bytes.NewReader([]byte(`{"event":{}}`)))
	badRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(badRR, badReq)
	if badRR.Code != http.StatusBadRequest {
		t.Errorf("status for missing case_id = %d, want 400", badRR.Code)
	}
}

func TestHandleVoiceWebhook_AlwaysOK(t *testing.T) {
	srv := newTestServer(t)
	payload, _ := json.Marshal(map[string]interface{}{"id": "call-1", "status": "ended"})
	req := httptest.NewRequest(http.MethodPost, "/vapi/webhook", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

type fakeExtractor struct{}

func (f *fakeExtractor) Extract(ctx context.Context, file []byte, docType extractor.DocType) (extractor.Record, float64, error) {
	return extractor.Record{PatientName: "John Doe"}, 0.92, nil
}

func TestHandleExtract_DegradesWhenUnconfigured(t *testing.T) {
	srv := newTestServer(t)
	payload, _ := json.Marshal(map[string]string{"document_base64": "aGVsbG8="})
	req := httptest.NewRequest(http.MethodPost, "/discharge/extract", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degrade, not fail)", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected a populated error field when no extractor is configured")
	}
}

func TestHandleExtract_ReturnsRecordAndConfidence(t *testing.T) {
	srv := newTestServer(t)
	srv.UseExtractor(&fakeExtractor{})

	payload, _ := json.Marshal(map[string]string{"document_base64": "aGVsbG8="})
	req := httptest.NewRequest(http.MethodPost, "/discharge/extract", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Record     extractor.Record `json:"record"`
		Confidence float64          `json:"confidence"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Record.PatientName != "John Doe" || resp.Confidence != 0.92 {
		t.Errorf("got %+v / %v, want the extracted draft", resp.Record, resp.Confidence)
	}

	badReq := httptest.NewRequest(http.MethodPost, "/discharge/extract", bytes.NewReader([]byte(`{"document_base64":"%%%"}`)))
	badRR := httptest.NewRecorder()
	srv.Router().ServeHTTP(badRR, badReq)
	if badRR.Code != http.StatusBadRequest {
		t.Errorf("status for invalid base64 = %d, want 400", badRR.Code)
	}
}
