// Package voice implements the outbound shelter-availability call:
// placing the call, polling its lifecycle until terminal, reconstructing
// the transcript, and handling the demo-mode and daily-quota fallbacks
// required for stable demos.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/httpclient"
)

const quotaErrorSubstring = "Daily Outbound Call Limit"

const fallbackTranscript = "Shelter has 12 beds available, wheelchair accessible, offers meals and counseling services. Confirmed for tonight."

// Config configures the outbound voice provider.
type Config struct {
	BaseURL       string
	APIKey        string
	PhoneNumberID string
	AssistantID   string
	DemoMode      bool
	DemoPhone     string
	PollInterval  time.Duration
	MaxWait       time.Duration
	MaxDuration   time.Duration
}

// Caller places and tracks outbound shelter-confirmation calls.
type Caller struct {
	cfg    Config
	client *httpclient.Client
}

// New constructs a Caller. Network-level failures are never retried by
// the shared client (a blindly retried placement POST could double-dial
// a shelter); only statuses where the provider explicitly signals the
// call was not placed (429/503) back off and retry.
func New(cfg Config) *Caller {
	return &Caller{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithMaxRetries(2),
			httpclient.WithBaseDelay(500*time.Millisecond),
			httpclient.WithRetryStrategy(func(status int) httpclient.RetryStrategy {
				if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
					return httpclient.SmartRetry
				}
				return httpclient.NoRetry
			}),
		),
	}
}

type callRequest struct {
	PhoneNumberID string   `json:"phoneNumberId"`
	Customer      customer `json:"customer"`
	AssistantID   string   `json:"assistantId"`
	Name          string   `json:"name"`
	MaxDuration   int      `json:"maxDurationSeconds"`
}

type customer struct {
	Number string `json:"number"`
}

type callPlacementResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type callStatusResponse struct {
	ID string `json:"id"`
	Status   string `json:"status"` // queued, ringing, in-progress, ended, failed
	Artifact struct {
		Transcript []transcriptTurn `json:"transcript"`
	} `json:"artifact"`
	PartialTranscript string `json:"partialTranscript"`
}

type transcriptTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// CallShelter places a call to a shelter (or the demo number, if
// demo-mode is on) and returns the reconstructed transcript once the
// call reaches a terminal state.
func (c *Caller) CallShelter(ctx context.Context, phone, shelterName string) (ok bool, transcript string, endState string, demoMode bool, err error) {
	target := phone
	if c.cfg.DemoMode {
		target = c.cfg.DemoPhone
	}

	callID, placeErr := c.place(ctx, target, shelterName)
	if placeErr != nil {
		var quota *errs.QuotaExceeded
		if errors.As(placeErr, &quota) {
			return true, fallbackTranscript, "ended", true, nil
		}
		return false, "", "", false, placeErr
	}

	ok, transcript, endState, _, err = c.poll(ctx, callID)
	return ok, transcript, endState, c.cfg.DemoMode, err
}

func (c *Caller) place(ctx context.Context, phone, shelterName string) (string, error) {
	body := callRequest{
		PhoneNumberID: c.cfg.PhoneNumberID,
		Customer:      customer{Number: phone},
		AssistantID:   c.cfg.AssistantID,
		Name:          "shelter-confirmation: " + shelterName,
		MaxDuration:   int(c.cfg.MaxDuration.Seconds()),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &errs.Internal{Detail: "marshal call request", Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := newJSONRequest(reqCtx, "POST", c.cfg.BaseURL+"/call", c.cfg.APIKey, payload)
	if err != nil {
		return "", &errs.Internal{Detail: "build call request", Err: err}
	}

	resp, err := c.client.Do(reqCtx, req)
	if err != nil {
		if reqCtx.Err() != nil {
			return "", &errs.Timeout{Upstream: "voice_provider", Deadline: "30s"}
		}
		return "", &errs.UpstreamError{Upstream: "voice_provider", Detail: "place call", Err: err}
	}

	var parsed callPlacementResponse
	if err := httpclient.ReadJSON(resp, &parsed); err != nil {
		if strings.Contains(err.Error(), quotaErrorSubstring) {
			return "", &errs.QuotaExceeded{Upstream: "voice_provider", Detail: quotaErrorSubstring}
		}
		return "", &errs.UpstreamError{Upstream: "voice_provider", Detail: "decode call response", Err: err}
	}
	if strings.Contains(parsed.Error, quotaErrorSubstring) {
		return "", &errs.QuotaExceeded{Upstream: "voice_provider", Detail: quotaErrorSubstring}
	}
	if parsed.ID == "" {
		return "", &errs.UpstreamError{Upstream: "voice_provider", Detail: "call placement returned no id"}
	}
	return parsed.ID, nil
}

// poll owns the call id and performs the 3s polls, returning the final
// transcript or a Timeout/Cancelled error. Nothing else interleaves
// with the poll loop.
func (c *Caller) poll(ctx context.Context, callID string) (bool, string, string, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var runningLog strings.Builder
	var last callStatusResponse

	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return false, runningLog.String(), "cancelled", false, &errs.Cancelled{Upstream: "voice_provider"}
			}
			return false, runningLog.String(), "timeout", false, &errs.Timeout{Upstream: "voice_provider", Deadline: c.cfg.MaxWait.String()}
		case <-ticker.C:
			status, err := c.fetchStatus(pollCtx, callID)
			if err != nil {
				continue // transient poll failure; keep polling until max_wait
			}
			last = status
			if status.PartialTranscript != "" {
				runningLog.WriteString(status.PartialTranscript)
				runningLog.WriteString("\n")
			}
			if status.Status == "ended" || status.Status == "failed" {
				final, err := c.fetchStatus(pollCtx, callID)
				if err == nil {
					last = final
				}
				return status.Status == "ended", renderTranscript(last, runningLog.String()), status.Status, false, nil
			}
		}
	}
}

func (c *Caller) fetchStatus(ctx context.Context, callID string) (callStatusResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := newJSONRequest(reqCtx, "GET", c.cfg.BaseURL+"/call/"+callID, c.cfg.APIKey, nil)
	if err != nil {
		return callStatusResponse{}, err
	}

	resp, err := c.client.Do(reqCtx, req)
	if err != nil {
		return callStatusResponse{}, err
	}

	var status callStatusResponse
	if err := httpclient.ReadJSON(resp, &status); err != nil {
		return callStatusResponse{}, err
	}
	return status, nil
}

// renderTranscript prefers the structured artifact.transcript over the
// running partial-transcript log.
func renderTranscript(status callStatusResponse, partialLog string) string {
	if len(status.Artifact.Transcript) > 0 {
		var b strings.Builder
		for i, turn := range status.Artifact.Transcript {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s: %s", strings.ToUpper(turn.Role), turn.Message)
		}
		return b.String()
	}
	return partialLog
}

func newJSONRequest(ctx context.Context, method, url, apiKey string, body []byte) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
