// internal/models/stage.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stage is one named state of the lead pipeline.
type Stage string

const (
	StageNew               Stage = "NEW"
	StageQualifying        Stage = "QUALIFYING"
	StageHotEngaged        Stage = "HOT_ENGAGED"
	StageWarmNurturing     Stage = "WARM_NURTURING"
	StageColdArchived      Stage = "COLD_ARCHIVED"
	StageMeetingScheduled  Stage = "MEETING_SCHEDULED"
	StageDiscoveryComplete Stage = "DISCOVERY_COMPLETE"
	StageProposalSent      Stage = "PROPOSAL_SENT"
	StageNegotiation       Stage = "NEGOTIATION"
	StageContractStage     Stage = "CONTRACT_STAGE"
	StageClosedWon         Stage = "CLOSED_WON"
	StageClosedLost        Stage = "CLOSED_LOST"
	StageDisqualified      Stage = "DISQUALIFIED"
	StageUnsubscribed      Stage = "UNSUBSCRIBED"
)

// Stages lists every pipeline stage in pipeline order.
var Stages = []Stage{
	StageNew,
	StageQualifying,
	StageHotEngaged,
	StageWarmNurturing,
	StageColdArchived,
	StageMeetingScheduled,
	StageDiscoveryComplete,
	StageProposalSent,
	StageNegotiation,
	StageContractStage,
	StageClosedWon,
	StageClosedLost,
	StageDisqualified,
	StageUnsubscribed,
}

// UnknownStageError is returned when a value is not one of the pipeline stages.
type UnknownStageError struct {
	Value string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Value)
}

// ParseStage accepts any letter case and surrounding whitespace.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &UnknownStageError{Value: s}
	}
	return st, nil
}

// Valid reports whether s is one of the declared stages.
func (s Stage) Valid() bool {
	return s.Label() != ""
}

// Label returns the human readable name of the stage, or "" for unknown values.
// Every new stage must get a case here, otherwise Valid rejects it.
func (s Stage) Label() string {
	switch s {
	case StageNew:
		return "New"
	case StageQualifying:
		return "Qualifying"
	case StageHotEngaged:
		return "Hot / engaged"
	case StageWarmNurturing:
		return "Warm / nurturing"
	case StageColdArchived:
		return "Cold / archived"
	case StageMeetingScheduled:
		return "Meeting scheduled"
	case StageDiscoveryComplete:
		return "Discovery complete"
	case StageProposalSent:
		return "Proposal sent"
	case StageNegotiation:
		return "Negotiation"
	case StageContractStage:
		return "Contract"
	case StageClosedWon:
		return "Closed won"
	case StageClosedLost:
		return "Closed lost"
	case StageDisqualified:
		return "Disqualified"
	case StageUnsubscribed:
		return "Unsubscribed"
	}
	return ""
}

func (s Stage) String() string { return string(s) }

func (s *Stage) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// UnmarshalYAML is used by config lists (high_salience, automation stages, ...).
func (s *Stage) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	st, err := ParseStage(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// StageSet is a small helper for membership checks over config lists.
type StageSet map[Stage]struct{}

func NewStageSet(stages ...Stage) StageSet {
	set := make(StageSet, len(stages))
	for _, s := range stages {
		set[s] = struct{}{}
	}
	return set
}

func (s StageSet) Has(st Stage) bool {
	_, ok := s[st]
	return ok
}
