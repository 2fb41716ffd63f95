package agents

import (
	"context"
	"strings"
	"time"
)

// ResourceAgent implements the resource role.
type ResourceAgent struct {
	Listings Listings
}

// Coordinate finds one provider per requested item class.
func (a *ResourceAgent) Coordinate(ctx context.Context, req ResourceRequest) (*ResourceResponse, error) {
	resp := &ResourceResponse{}

	for _, item := range req.Items {
		rows, err := a.Listings.Resources(ctx, string(item), req.Dietary)
		if err != nil {
			return nil, err
		}
		if req.Dietary && len(rows) == 0 {
			// relax the dietary requirement rather than leaving the item
			// unmet outright, matching the resource cache's filter policy.
			rows, err = a.Listings.Resources(ctx, string(item), false)
			if err != nil {
				return nil, err
			}
		}
		if len(rows) == 0 {
			resp.Unmet = append(resp.Unmet, item)
			continue
		}

		row := rows[0]
		resp.Plans = append(resp.Plans, ResourceDeliveryPlan{
			Item:                item,
			ProviderName:        row.Name,
			Address:             row.Address,
			Phone:               row.Phone,
			DeliveryAddress:     req.DeliveryAddress,
			PickupWindow:        pickupWindow(item),
			SpecialInstructions: specialInstructions(item, req.DietaryNeeds),
		})
	}

	return resp, nil
}

// specialInstructions derives a per-item delivery note from the case's
// dietary_needs field when it mentions an allergy-adjacent term, so the
// food provider knows to route around it.
func specialInstructions(item ResourceItem, dietaryNeeds string) string {
	if item != ResourceFood {
		return ""
	}
	lower := strings.ToLower(dietaryNeeds)
	for _, term := range []string{"allergy", "allergic", "gluten", "nut", "lactose", "celiac"} {
		if strings.Contains(lower, term) {
			return "dietary restriction noted: " + dietaryNeeds
		}
	}
	return ""
}

func pickupWindow(item ResourceItem) string {
	now := time.Now()
	switch item {
	case ResourceFood:
		return now.Add(2 * time.Hour).Format(time.RFC3339)
	default:
		return now.Add(4 * time.Hour).Format(time.RFC3339)
	}
}
