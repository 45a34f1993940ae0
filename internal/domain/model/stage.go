package model

import (
	"fmt"
	"strings"
)

// Stage represents one named point in a loan application's lifecycle
type Stage string

const (
	StageSubmitted        Stage = "submitted"
	StageUnderReview      Stage = "under-review"
	StageCreditAssessment Stage = "credit-assessment"
	StageApproved         Stage = "approved"
	StageRejected         Stage = "rejected"
	StageOfferGenerated   Stage = "offer-generated"
	StageOfferSent        Stage = "offer-sent"
	StageOfferAccepted    Stage = "offer-accepted"
	StageDisbursed        Stage = "disbursed"
)

// mainLine is the sequential order used for progress computation.
// StageRejected is not on it; it branches off before StageApproved.
var mainLine = []Stage{
	StageSubmitted,
	StageUnderReview,
	StageCreditAssessment,
	StageApproved,
	StageOfferGenerated,
	StageOfferSent,
	StageOfferAccepted,
	StageDisbursed,
}

// rejectableFrom lists the stages that precede StageRejected in the order
var rejectableFrom = map[Stage]bool{
	StageSubmitted:        true,
	StageUnderReview:      true,
	StageCreditAssessment: true,
}

// Tone is the badge tone a UI should use for a stage
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneActive  Tone = "active"
	ToneSuccess Tone = "success"
	ToneDanger  Tone = "danger"
)

// MainLine returns the sequential stage order (a copy)
func MainLine() []Stage {
	out := make([]Stage, len(mainLine))
	copy(out, mainLine)
	return out
}

// AllStages returns every stage, main line first, then rejected
func AllStages() []Stage {
	return append(MainLine(), StageRejected)
}

// ParseStage converts a string to a Stage.
// Accepts the canonical form plus underscores and any letter case.
func ParseStage(s string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	stage := Stage(normalized)
	if !stage.IsValid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return stage, nil
}

// String returns the string representation
func (s Stage) String() string {
	return string(s)
}

// IsValid validates the stage
func (s Stage) IsValid() bool {
	if s == StageRejected {
		return true
	}
	return s.Index() >= 0
}

// IsTerminal reports whether no transition may leave this stage
func (s Stage) IsTerminal() bool {
	return s == StageRejected || s == StageDisbursed
}

// Index returns the position of the stage on the main line, or -1.
// StageRejected is off the main line and returns -1.
func (s Stage) Index() int {
	for i, st := range mainLine {
		if st == s {
			return i
		}
	}
	return -1
}

// Successors returns the stages this stage may legally move to
func (s Stage) Successors() []Stage {
	if s.IsTerminal() {
		return nil
	}
	idx := s.Index()
	if idx < 0 {
		return nil
	}

	var next []Stage
	if idx+1 < len(mainLine) {
		next = append(next, mainLine[idx+1])
	}
	if rejectableFrom[s] {
		next = append(next, StageRejected)
	}
	return next
}

// CanTransitionTo checks if a stage transition is valid
func (s Stage) CanTransitionTo(next Stage) bool {
	for _, allowed := range s.Successors() {
		if allowed == next {
			return true
		}
	}
	return false
}

// Label returns a human readable label
func (s Stage) Label() string {
	switch s {
	case StageSubmitted:
		return "Submitted"
	case StageUnderReview:
		return "Under Review"
	case StageCreditAssessment:
		return "Credit Assessment"
	case StageApproved:
		return "Approved"
	case StageRejected:
		return "Rejected"
	case StageOfferGenerated:
		return "Offer Generated"
	case StageOfferSent:
		return "Offer Sent"
	case StageOfferAccepted:
		return "Offer Accepted"
	case StageDisbursed:
		return "Disbursed"
	default:
		return string(s)
	}
}

// Tone returns the badge tone for the stage
func (s Stage) Tone() Tone {
	switch s {
	case StageSubmitted, StageOfferGenerated, StageOfferSent:
		return ToneInfo
	case StageUnderReview:
		return ToneWarning
	case StageCreditAssessment:
		return ToneActive
	case StageApproved, StageOfferAccepted, StageDisbursed:
		return ToneSuccess
	case StageRejected:
		return ToneDanger
	default:
		return ToneInfo
	}
}
