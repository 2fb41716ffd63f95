// Package routing implements the geocoding/directions collaborator:
// geocode two addresses to [lng, lat] and request a driving-directions
// polyline, falling back to a synthesized two-point polyline on any
// upstream error so the transport step never fails on a routing outage.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/httpclient"
)

// Config configures the routing/geocoding provider.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client geocodes addresses and requests driving directions.
type Client struct {
	cfg    Config
	client *httpclient.Client
}

// New constructs a Client. Both the geocode GET and the directions POST
// use the default retry strategy (neither has a side effect at the
// provider, unlike the voice provider's call-placement POST).
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, client: httpclient.New()}
}

type geocodeResponse struct {
	Coordinates [2]float64 `json:"coordinates"` // [lng, lat]
}

type directionsResponse struct {
	Coordinates string `json:"coordinates"` // encoded polyline
	DurationMin int    `json:"duration_minutes"`
}

// Route geocodes pickup and dropoff, requests a driving-directions
// polyline between them, and returns the polyline plus an ETA in minutes.
// On any upstream failure it substitutes a synthesized two-point polyline
// rather than failing the transport step.
func (c *Client) Route(ctx context.Context, pickup, dropoff string) (string, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	pickupCoord, err := c.geocode(reqCtx, pickup)
	if err != nil {
		return fallbackPolyline(pickup, dropoff), 30, nil
	}
	dropoffCoord, err := c.geocode(reqCtx, dropoff)
	if err != nil {
		return fallbackPolyline(pickup, dropoff), 30, nil
	}

	directions, err := c.directions(reqCtx, pickupCoord, dropoffCoord)
	if err != nil {
		return fallbackPolyline(pickup, dropoff), 30, nil
	}

	return directions.Coordinates, directions.DurationMin, nil
}

func (c *Client) geocode(ctx context.Context, address string) ([2]float64, error) {
	if c.cfg.BaseURL == "" {
		return [2]float64{}, &errs.UpstreamError{Upstream: "routing_provider", Detail: "no base url configured"}
	}

	u := fmt.Sprintf("%s/geocode?address=%s", c.cfg.BaseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return [2]float64{}, &errs.Internal{Detail: "build geocode request", Err: err}
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return [2]float64{}, &errs.Timeout{Upstream: "routing_provider", Deadline: c.cfg.Timeout.String()}
		}
		return [2]float64{}, &errs.UpstreamError{Upstream: "routing_provider", Detail: "geocode", Err: err}
	}

	var parsed geocodeResponse
	if err := httpclient.ReadJSON(resp, &parsed); err != nil {
		return [2]float64{}, &errs.UpstreamError{Upstream: "routing_provider", Detail: "decode geocode response", Err: err}
	}
	return parsed.Coordinates, nil
}

func (c *Client) directions(ctx context.Context, from, to [2]float64) (*directionsResponse, error) {
	body, err := json.Marshal(map[string]any{
		"origin":      from,
		"destination": to,
	})
	if err != nil {
		return nil, &errs.Internal{Detail: "marshal directions request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/directions", bytes.NewReader(body))
	if err != nil {
		return nil, &errs.Internal{Detail: "build directions request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &errs.Timeout{Upstream: "routing_provider", Deadline: c.cfg.Timeout.String()}
		}
		return nil, &errs.UpstreamError{Upstream: "routing_provider", Detail: "directions", Err: err}
	}

	var parsed directionsResponse
	if err := httpclient.ReadJSON(resp, &parsed); err != nil {
		return nil, &errs.UpstreamError{Upstream: "routing_provider", Detail: "decode directions response", Err: err}
	}
	return &parsed, nil
}

// fallbackPolyline synthesizes a straight two-point polyline when the
// routing provider is unavailable.
func fallbackPolyline(pickup, dropoff string) string {
	return pickup + ";" + dropoff
}
