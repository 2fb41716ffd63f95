package agents

import (
	"context"
	"strings"

	"github.com/carebridge/dccp/internal/errs"
	"github.com/carebridge/dccp/internal/store"
)

// ShelterAgent implements the shelter role.
type ShelterAgent struct {
	Listings  Listings
	Voice     VoiceCaller
	Parser    TranscriptParser
	DemoMode  bool
	DemoPhone string
}

// Match queries the cache for the best candidate excluding any already
// tried, places a voice-confirmation call, and parses the transcript.
func (a *ShelterAgent) Match(ctx context.Context, req ShelterMatchRequest) (*ShelterMatchResponse, error) {
	wantsAccessible := strings.Contains(strings.ToLower(req.Needs.Accessibility), "wheelchair") ||
		strings.Contains(strings.ToLower(req.Needs.Accessibility), "accessible")

	rows, err := a.Listings.Shelters(ctx, 1, wantsAccessible)
	if err != nil {
		return nil, err
	}
	accessibilityWarning := false
	if len(rows) == 0 && wantsAccessible {
		rows, err = a.Listings.Shelters(ctx, 1, false)
		if err != nil {
			return nil, err
		}
		accessibilityWarning = true
	}

	candidate := selectShelterCandidate(rows, req.ExcludeNames)
	if candidate == nil {
		return nil, &errs.CacheMiss{Category: "shelters", Filter: "available_beds >= 1"}
	}

	phone := candidate.Phone
	if a.DemoMode {
		phone = a.DemoPhone
	}

	ok, transcript, _, demoUsed, err := a.Voice.CallShelter(ctx, phone, candidate.Name)
	if err != nil {
		return nil, err
	}

	confirmed, _, accessible, _ := a.Parser.Parse(transcript, candidate.Name)
	if accessible {
		candidate.Accessibility = true
	}

	return &ShelterMatchResponse{
		Selected:              candidate,
		AvailabilityConfirmed: confirmed && ok,
		AccessibilityWarning:  accessibilityWarning,
		Transcript:            transcript,
		DemoMode:              a.DemoMode || demoUsed,
	}, nil
}

// selectShelterCandidate returns the highest-available_beds row not in
// excluded. rows is assumed sorted available_beds DESC (internal/store's
// ListShelters orders it that way).
func selectShelterCandidate(rows []store.ShelterListing, excluded []string) *store.ShelterListing {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[strings.ToLower(name)] = true
	}
	for i := range rows {
		if !skip[strings.ToLower(rows[i].Name)] {
			row := rows[i]
			return &row
		}
	}
	return nil
}
