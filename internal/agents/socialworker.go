package agents

import (
	"strings"
	"time"
)

// SocialWorkerAgent implements the social-worker role. It does not
// subscribe to other agents' events; all workflow events land in the
// timeline store.
type SocialWorkerAgent struct {
	RosterName       string
	RosterPhone      string
	RosterDepartment string
}

// Assign records a case-manager assignment with a deterministic
// first-contact date (next business day at 10:00).
func (a *SocialWorkerAgent) Assign(req SocialWorkerAssignment) (*SocialWorkerResponse, error) {
	name, phone, department := a.RosterName, a.RosterPhone, a.RosterDepartment
	if name == "" {
		name = "Case Manager On Call"
	}
	if department == "" {
		department = "Discharge Planning"
	}

	method := "phone"
	if strings.Contains(strings.ToLower(req.Needs.SocialNeeds), "in-person preferred") {
		method = "in-person"
	}

	return &SocialWorkerResponse{
		Name:               name,
		Phone:              phone,
		Department:         department,
		FirstContactDate:   nextBusinessDayAt10(time.Now()).Format(time.RFC3339),
		FirstContactMethod: method,
	}, nil
}

func nextBusinessDayAt10(from time.Time) time.Time {
	next := from.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return time.Date(next.Year(), next.Month(), next.Day(), 10, 0, 0, 0, next.Location())
}
