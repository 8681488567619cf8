package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	st, err := ParseStage(" hot_engaged ")
	require.NoError(t, err)
	assert.Equal(t, StageHotEngaged, st)

	_, err = ParseStage("WON")
	var unknown *UnknownStageError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "WON", unknown.Value)
}

func TestEveryStageHasLabel(t *testing.T) {
	seen := map[Stage]bool{}
	for _, st := range Stages {
		assert.NotEmpty(t, st.Label(), "stage %s has no label", st)
		assert.False(t, seen[st], "duplicate stage %s", st)
		seen[st] = true
	}
	assert.Len(t, Stages, 14)
	assert.False(t, Stage("ARCHIVED").Valid())
}

func TestStageJSONRejectsUnknown(t *testing.T) {
	var body struct {
		Stage Stage `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"closed_won"}`), &body))
	assert.Equal(t, StageClosedWon, body.Stage)

	err := json.Unmarshal([]byte(`{"stage":"CLOSED"}`), &body)
	var unknown *UnknownStageError
	assert.True(t, errors.As(err, &unknown))
}

func TestActorJSON(t *testing.T) {
	rec := TransitionRecord{ID: "x", LeadID: 1, FromStage: StageNew, ToStage: StageQualifying, Actor: UserActor(42)}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actor":"42"`)

	var back TransitionRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, int64(42), back.Actor.UserID)

	sys, err := ParseActor("system")
	require.NoError(t, err)
	assert.True(t, sys.IsSystem())

	_, err = ParseActor("-3")
	assert.Error(t, err)
}
