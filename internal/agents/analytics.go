package agents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// AnalyticsAgent implements the analytics role: it observes every
// WorkflowUpdate on the bus and records a hashed, PII-free summary. It
// raises alert-level log events for failures on the two operationally
// critical steps, shelter matching and transport scheduling.
type AnalyticsAgent struct {
	OnStepDuration func(step, status string) // optional per-update observer hook
}

var alertSteps = map[string]bool{
	"shelter_matching":     true,
	"transport_scheduling": true,
}

// Observe processes one WorkflowUpdate. It never returns an error: a
// failure to record analytics must never fail the workflow.
func (a *AnalyticsAgent) Observe(ctx context.Context, update WorkflowUpdate) (any, error) {
	hashed := hashCaseID(update.CaseID)

	logger := slog.Default()
	if alertSteps[update.Step] && update.Status == "failed" {
		logger.Warn("workflow step alert",
			"case_hash", hashed, "step", update.Step, "status", update.Status, "sender", update.Sender)
	} else {
		logger.Debug("workflow update observed",
			"case_hash", hashed, "step", update.Step, "status", update.Status, "sender", update.Sender)
	}

	if a.OnStepDuration != nil {
		a.OnStepDuration(update.Step, update.Status)
	}

	return nil, nil
}

func hashCaseID(caseID string) string {
	sum := sha256.Sum256([]byte(caseID))
	return hex.EncodeToString(sum[:])[:16]
}
