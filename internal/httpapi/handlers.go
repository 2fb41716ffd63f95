package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/extractor"
	"github.com/carebridge/dccp/internal/store"
	"github.com/carebridge/dccp/internal/workflow"
)

// dischargeRequest is the loosely-typed POST /discharge body: the
// intake record's named sections plus a raw form_data bag the façade
// never interprets itself. Decoded over the concrete struct via
// mapstructure so clients don't have to send exactly-typed JSON.
type dischargeRequest struct {
	CaseID      string                 `mapstructure:"case_id"`
	PatientName string                 `mapstructure:"patient_name"`
	PatientDOB  string                 `mapstructure:"patient_dob"`
	IncomeLevel string                 `mapstructure:"income_level"`
	Contact     store.Contact          `mapstructure:"contact"`
	Discharge   store.Discharge        `mapstructure:"discharge"`
	Clinical    store.Clinical         `mapstructure:"clinical"`
	FollowUp    store.FollowUp         `mapstructure:"follow_up"`
	FormData    map[string]interface{} `mapstructure:"form_data"`
}

func decodeDischarge(body map[string]interface{}) (dischargeRequest, error) {
	var req dischargeRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &req,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return req, &errs.Internal{Detail: "build intake decoder", Err: err}
	}
	if err := decoder.Decode(body); err != nil {
		return req, &errs.ValidationError{Field: "body", Reason: err.Error()}
	}
	return req, nil
}

func (s *Server) handleDischarge(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, &errs.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}

	req, err := decodeDischarge(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.PatientName == "" {
		writeError(w, &errs.ValidationError{Field: "patient_name", Reason: "is required"})
		return
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-r.Context().Done():
		writeError(w, &errs.Cancelled{Upstream: "http"})
		return
	}

	outcome := s.engine.Coordinate(r.Context(), workflow.IntakeRecord{
		CaseID:      req.CaseID,
		PatientName: req.PatientName,
		PatientDOB:  req.PatientDOB,
		Contact:     req.Contact,
		Discharge:   req.Discharge,
		Clinical:    req.Clinical,
		FollowUp:    req.FollowUp,
		IncomeLevel: req.IncomeLevel,
	})

	resp := map[string]interface{}{
		"status":  outcome.Status,
		"case_id": outcome.CaseID,
	}
	if outcome.Shelter != nil {
		resp["shelter"] = outcome.Shelter
	}
	if outcome.Error != "" {
		resp["error"] = outcome.Error
	} else {
		resp["message"] = "discharge coordination " + string(outcome.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListCases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cases)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "case_id")
	c, err := s.store.GetCase(r.Context(), caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := s.store.ListEvents(r.Context(), caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"case": c, "timeline": events})
}

func (s *Server) handleListShelters(w http.ResponseWriter, r *http.Request) {
	minBeds := parseIntQuery(r, "min_beds", 0)
	accessibleOnly := parseBoolQuery(r, "accessible")
	rows, err := s.cache.Shelters(r.Context(), minBeds, accessibleOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListTransport(w http.ResponseWriter, r *http.Request) {
	accessibleOnly := parseBoolQuery(r, "accessible")
	rows, err := s.cache.Transport(r.Context(), accessibleOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListBenefits(w http.ResponseWriter, r *http.Request) {
	rows, err := s.cache.Benefits(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	requireDietary := parseBoolQuery(r, "dietary")
	rows, err := s.cache.Resources(r.Context(), category, requireDietary)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleShelterAvailability(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var body struct {
		AvailableBeds int `json:"available_beds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &errs.ValidationError{Field: "available_beds", Reason: "invalid JSON: " + err.Error()})
		return
	}
	if err := s.cache.UpdateShelterAvailability(r.Context(), name, body.AvailableBeds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleExtract runs a raw discharge document through the external
// extraction collaborator and returns the structured record as a form
// draft. The extracted record is never fed straight into a workflow: the
// caller reviews it and submits POST /discharge with the (possibly
// corrected) fields.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"error": "document extraction is not configured on this deployment",
		})
		return
	}

	var body struct {
		DocumentBase64 string `json:"document_base64"`
		DocType        string `json:"doc_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &errs.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	if body.DocumentBase64 == "" {
		writeError(w, &errs.ValidationError{Field: "document_base64", Reason: "is required"})
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.DocumentBase64)
	if err != nil {
		writeError(w, &errs.ValidationError{Field: "document_base64", Reason: "invalid base64: " + err.Error()})
		return
	}
	docType := extractor.DocType(body.DocType)
	if docType == "" {
		docType = extractor.DocDischargeSummary
	}

	record, confidence, err := s.extractor.Extract(r.Context(), raw, docType)
	if err != nil {
		// Extraction failures degrade to manual intake, never 5xx.
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":     record,
		"confidence": confidence,
	})
}

// handleVoiceWebhook accepts the voice provider's asynchronous callback.
// The coordinator itself polls for a definitive transcript,
// so this endpoint only logs the callback for operational visibility; it
// never mutates workflow state to avoid racing the poller's own terminal
// read.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, &errs.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	slog.Default().Info("voice webhook received", "call_id", payload["id"])
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// handleWorkflowEvent appends a timeline event on behalf of an agent
// living in another process.
func (s *Server) handleWorkflowEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CaseID string `json:"case_id"`
		Event  struct {
			Step          string                 `json:"step"`
			Agent         string                 `json:"agent"`
			Status        string                 `json:"status"`
			Description   string                 `json:"description"`
			Details       map[string]interface{} `json:"details"`
			Transcription string                 `json:"transcription"`
		} `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, &errs.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()})
		return
	}
	if body.CaseID == "" {
		writeError(w, &errs.ValidationError{Field: "case_id", Reason: "is required"})
		return
	}
	ev := &store.TimelineEvent{
		CaseID:        body.CaseID,
		Step:          body.Event.Step,
		Agent:         body.Event.Agent,
		Status:        store.EventStatus(body.Event.Status),
		Description:   body.Event.Description,
		Details:       body.Event.Details,
		Transcription: body.Event.Transcription,
		Timestamp:     time.Now(),
	}
	if err := s.store.AppendEvent(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "appended", "seq": ev.Seq})
}
