// Package transcript implements the pure regex/keyword extraction of
// shelter facts from a voice call's free-form transcript.
package transcript

import (
	"regexp"
	"strconv"
	"strings"
)

// noTranscriptionPlaceholders are the fixed strings treated as "no
// transcription happened" — the demo default applies verbatim.
var noTranscriptionPlaceholders = map[string]bool{
	"":                           true,
	"no transcription available": true,
	"n/a":                        true,
	"none":                       true,
}

// bedCountPatterns are tried in order; the first match wins.
var bedCountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*beds?\s*available`),
	regexp.MustCompile(`(\d+)\s*spots?\s*available`),
	regexp.MustCompile(`(\d+)\s*openings?`),
	regexp.MustCompile(`we have (\d+)`),
	regexp.MustCompile(`(\d+)\s*tonight`),
}

var availabilityKeywords = []string{
	"available", "yes", "we can", "we have", "sure", "of course", "definitely", "absolutely", "we do have",
}

var accessibilityKeywords = []string{
	"wheelchair", "accessible", "ada", "disability", "handicap", "ramp", "elevator",
}

var serviceKeywords = map[string][]string{
	"meals":           {"meal", "food", "dinner", "breakfast", "lunch"},
	"showers":         {"shower", "bath", "hygiene", "clean"},
	"counseling":      {"counseling", "therapy", "mental health", "support"},
	"medical":         {"medical", "health", "nurse", "doctor", "medication"},
	"case_management": {"case management", "social worker", "coordinator"},
}

// serviceOrder fixes iteration order so output is deterministic.
var serviceOrder = []string{"meals", "showers", "counseling", "medical", "case_management"}

// Result is the structured outcome of parsing one transcript.
type Result struct {
	AvailabilityConfirmed bool
	BedsAvailable         int
	Accessibility         bool
	Services              []string
}

// Parser implements agents.TranscriptParser.
type Parser struct{}

// Parse extracts {availability, bed_count, accessibility, services[]}
// from a free-form transcript. It is deterministic: the same transcript
// always yields the same result.
func (Parser) Parse(transcript, shelterName string) (bool, int, bool, []string) {
	r := Parse(transcript, shelterName)
	return r.AvailabilityConfirmed, r.BedsAvailable, r.Accessibility, r.Services
}

// Parse is the free function form, usable without constructing a Parser.
func Parse(transcriptText, shelterName string) Result {
	normalized := strings.TrimSpace(strings.ToLower(transcriptText))
	if noTranscriptionPlaceholders[normalized] {
		return Result{
			AvailabilityConfirmed: true,
			BedsAvailable:         8,
			Accessibility:         true,
			Services:              []string{"meals", "showers", "counseling"},
		}
	}

	result := Result{}

	for _, pattern := range bedCountPatterns {
		if m := pattern.FindStringSubmatch(normalized); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				result.BedsAvailable = n
				result.AvailabilityConfirmed = true
				break
			}
		}
	}

	if !result.AvailabilityConfirmed {
		for _, kw := range availabilityKeywords {
			if strings.Contains(normalized, kw) {
				result.AvailabilityConfirmed = true
				result.BedsAvailable = 5
				break
			}
		}
	}

	for _, kw := range accessibilityKeywords {
		if strings.Contains(normalized, kw) {
			result.Accessibility = true
			break
		}
	}

	for _, class := range serviceOrder {
		for _, kw := range serviceKeywords[class] {
			if strings.Contains(normalized, kw) {
				result.Services = append(result.Services, class)
				break
			}
		}
	}
	if len(result.Services) == 0 {
		result.Services = []string{"meals", "showers", "counseling"}
	}

	return result
}
