package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/carebridge/dccp/internal/agents"
	"github.com/carebridge/dccp/internal/bus"
)

// SchemaCmd prints the JSON Schema for every registered bus message
// contract, the self-documenting schema the bus's own contract.go
// reflects request/response pairs for.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	contracts := []bus.Contract{
		{MessageType: bus.MsgShelterMatch, Request: agents.ShelterMatchRequest{}, Response: agents.ShelterMatchResponse{}},
		{MessageType: bus.MsgTransportSchedule, Request: agents.TransportRequest{}, Response: agents.TransportResponse{}},
		{MessageType: bus.MsgResourceCoordinate, Request: agents.ResourceRequest{}, Response: agents.ResourceResponse{}},
		{MessageType: bus.MsgPharmacyPrep, Request: agents.PharmacyRequest{}, Response: agents.PharmacyResponse{}},
		{MessageType: bus.MsgEligibilityCheck, Request: agents.EligibilityRequest{}, Response: agents.EligibilityResponse{}},
		{MessageType: bus.MsgSocialWorkerAssign, Request: agents.SocialWorkerAssignment{}, Response: agents.SocialWorkerResponse{}},
		{MessageType: bus.MsgWorkflowUpdate, Request: agents.WorkflowUpdate{}, Response: struct{}{}},
	}

	schemas := bus.Reflect(contracts)

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schemas); err != nil {
		return fmt.Errorf("schema: encode: %w", err)
	}
	return nil
}
