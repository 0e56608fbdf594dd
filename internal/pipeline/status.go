// Package pipeline classifies raw candidate pipeline statuses onto a fixed
// progress scale and advances a candidate's status after delivery.
//
// Classification never validates transitions. Any raw status may follow any
// other; the result only feeds a display percentage.
package pipeline

import (
	"math"
	"slices"
	"strings"

	"DocRelay/internal/models"
)

// ProgressOrder is the display scale. Percentages are computed from a key's
// position in this slice.
var ProgressOrder = []string{
	"nominated",
	"pending_documents",
	"documents_submitted",
	"verification_in_progress",
	"documents_verified",
	"interview_scheduled",
	"interview_completed",
	"interview_passed",
	"selected",
	"processing",
	"hired",
}

// canonicalKeys is scanned in order. More specific keys sit before keys they
// contain so substring matching picks the narrower one.
var canonicalKeys = []string{
	"documents_forwarded",
	"pending_documents",
	"documents_submitted",
	"verification_in_progress",
	"documents_verified",

	"mock_interview_rescheduled",
	"mock_interview_scheduled",
	"mock_interview_assigned",
	"mock_interview_completed",
	"mock_interview_passed",
	"mock_interview_failed",

	"training_rescheduled",
	"training_scheduled",
	"training_assigned",
	"training_completed",
	"training_passed",
	"training_failed",

	"interview_rescheduled",
	"interview_scheduled",
	"interview_assigned",
	"interview_completed",
	"interview_passed",
	"interview_selected",
	"interview_failed",

	"nominated",
	"selected",
	"processing",
	"hired",
}

// CanonicalKeys returns a copy of the canonical vocabulary in match priority.
func CanonicalKeys() []string {
	return slices.Clone(canonicalKeys)
}

// candidates lists the entry's raw names in priority order, lower-cased,
// skipping blanks.
func candidates(e models.StatusEntry) []string {
	raw := []string{e.SubStatus, e.StatusSnapshot, e.MainStatus, e.ExternalStatus}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Normalize maps a status entry to a canonical key. Every raw name is first
// tried for an exact match, then every raw name is tried for containing a
// key. When nothing matches, the first raw name is returned with whitespace
// runs replaced by underscores. An entry with no names yields "".
func Normalize(e models.StatusEntry) string {
	names := candidates(e)
	if len(names) == 0 {
		return ""
	}

	for _, name := range names {
		if slices.Contains(canonicalKeys, name) {
			return name
		}
	}

	for _, name := range names {
		for _, key := range canonicalKeys {
			if strings.Contains(name, key) {
				return key
			}
		}
	}

	return strings.Join(strings.Fields(names[0]), "_")
}

type keywordRule struct {
	keyword string
	key     string
}

// finalStageRules apply to keys outside the interview family. First match wins.
var finalStageRules = []keywordRule{
	{"hired", "hired"},
	{"joined", "hired"},
	{"deployed", "hired"},
	{"visa", "processing"},
	{"medical", "processing"},
	{"processing", "processing"},
	{"selected", "selected"},
	{"offer", "selected"},
	{"unverified", "pending_documents"},
	{"forwarded", "documents_verified"},
	{"verified", "documents_verified"},
	{"verification", "verification_in_progress"},
	{"submitted", "documents_submitted"},
	{"pending_documents", "pending_documents"},
	{"nominated", "nominated"},
}

func isInterviewStage(key string) bool {
	return strings.Contains(key, "interview") ||
		strings.Contains(key, "training") ||
		strings.Contains(key, "mock")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ToProgressKey collapses a canonical key onto ProgressOrder. Interview,
// mock interview and training stages all land on the three interview steps;
// a failed stage counts as completed.
func ToProgressKey(canonical string) (string, bool) {
	if canonical == "" {
		return "", false
	}
	if slices.Contains(ProgressOrder, canonical) {
		return canonical, true
	}

	if isInterviewStage(canonical) {
		switch {
		case containsAny(canonical, "assigned", "scheduled"):
			return "interview_scheduled", true
		case strings.Contains(canonical, "completed"):
			return "interview_completed", true
		case containsAny(canonical, "passed", "selected"):
			return "interview_passed", true
		case strings.Contains(canonical, "failed"):
			return "interview_completed", true
		}
		return "", false
	}

	for _, rule := range finalStageRules {
		if strings.Contains(canonical, rule.keyword) {
			return rule.key, true
		}
	}
	return "", false
}

// Progress picks the most recent entry of history, canonicalizes it and
// returns the canonical key with its completion percentage. Unmapped keys
// report 0; an empty history reports "" and 0.
func Progress(history []models.StatusEntry) (string, int) {
	if len(history) == 0 {
		return "", 0
	}

	latest := history[0]
	for _, e := range history[1:] {
		if e.ChangedAt.After(latest.ChangedAt) {
			latest = e
		}
	}

	current := Normalize(latest)
	key, ok := ToProgressKey(current)
	if !ok {
		return current, 0
	}
	return current, Percent(key)
}

// Percent returns the completion percentage of a progress key, or 0 when the
// key is not on the scale.
func Percent(progressKey string) int {
	idx := slices.Index(ProgressOrder, progressKey)
	if idx < 0 {
		return 0
	}
	return int(math.Round(float64(idx+1) / float64(len(ProgressOrder)) * 100))
}
