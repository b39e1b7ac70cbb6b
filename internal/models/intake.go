// internal/models/intake.go
package models

// Stage is the discrete phase of the intake dialogue.
type Stage string

const (
	StageCollect      Stage = "collect"
	StageConfirmPlans Stage = "confirm_plans"
	StageConfirmMore  Stage = "confirm_more"
	StagePromptSignin Stage = "prompt_signin"
	StageReady        Stage = "ready"
	StageBriefed      Stage = "briefed"
)

var validStages = map[Stage]bool{
	StageCollect:      true,
	StageConfirmPlans: true,
	StageConfirmMore:  true,
	StagePromptSignin: true,
	StageReady:        true,
	StageBriefed:      true,
}

// Valid reports whether s belongs to the closed stage set.
func (s Stage) Valid() bool {
	return validStages[s]
}

// IntakeState is the per-session accumulator.
type IntakeState struct {
	LineItems       []LineItem          `json:"lineItems"`
	PlanSuggestions map[string][]string `json:"planSuggestions,omitempty"`
	Stage           Stage               `json:"stage"`
	Brief           *Brief              `json:"brief,omitempty"`
}

// NewIntakeState returns the empty state a session starts with.
func NewIntakeState() IntakeState {
	return IntakeState{
		LineItems: []LineItem{},
		Stage:     StageCollect,
	}
}

// Normalize repairs a state loaded from storage: unknown stages fall back to collect.
func (s *IntakeState) Normalize() {
	if s.LineItems == nil {
		s.LineItems = []LineItem{}
	}
	if !s.Stage.Valid() {
		s.Stage = StageCollect
	}
	if len(s.PlanSuggestions) == 0 {
		s.PlanSuggestions = nil
	}
}

// Clone returns a deep copy so a turn can mutate freely.
func (s IntakeState) Clone() IntakeState {
	out := IntakeState{
		Stage: s.Stage,
		Brief: s.Brief,
	}
	out.LineItems = make([]LineItem, len(s.LineItems))
	copy(out.LineItems, s.LineItems)
	if len(s.PlanSuggestions) > 0 {
		out.PlanSuggestions = make(map[string][]string, len(s.PlanSuggestions))
		for k, v := range s.PlanSuggestions {
			out.PlanSuggestions[k] = append([]string(nil), v...)
		}
	}
	return out
}
