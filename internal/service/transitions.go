package service

import (
	"context"
	"errors"
	"fmt"

	"nearmiss-bot/internal/entity"

	"github.com/looplab/fsm"
)

// Conversation inputs that move a session between stages.
const (
	inputReport      = "report"
	inputName        = "name_given"
	inputLocation    = "location_chosen"
	inputArea        = "area_chosen"
	inputSeverity    = "severity_chosen"
	inputDescription = "description_given"
	inputMedia       = "media_received"
	inputCancel      = "cancel"
)

var activeStages = []string{
	entity.StageName.String(),
	entity.StageLocation.String(),
	entity.StageArea.String(),
	entity.StageSeverity.String(),
	entity.StageDescription.String(),
	entity.StageMedia.String(),
}

// transitionTable is the whole conversation. Nothing else moves a stage.
var transitionTable = fsm.Events{
	{Name: inputReport, Src: append([]string{entity.StageIdle.String()}, activeStages...), Dst: entity.StageName.String()},
	{Name: inputName, Src: []string{entity.StageName.String()}, Dst: entity.StageLocation.String()},
	{Name: inputLocation, Src: []string{entity.StageLocation.String()}, Dst: entity.StageArea.String()},
	{Name: inputArea, Src: []string{entity.StageArea.String()}, Dst: entity.StageSeverity.String()},
	{Name: inputSeverity, Src: []string{entity.StageSeverity.String()}, Dst: entity.StageDescription.String()},
	{Name: inputDescription, Src: []string{entity.StageDescription.String()}, Dst: entity.StageMedia.String()},
	{Name: inputMedia, Src: []string{entity.StageMedia.String()}, Dst: entity.StageCommitted.String()},
	{Name: inputCancel, Src: activeStages, Dst: entity.StageIdle.String()},
}

// stageStep ties an answering stage to the field it fills and the input it fires.
type stageStep struct {
	field entity.Field
	input string
}

var stageSteps = map[entity.Stage]stageStep{
	entity.StageName:        {field: entity.FieldName, input: inputName},
	entity.StageLocation:    {field: entity.FieldLocation, input: inputLocation},
	entity.StageArea:        {field: entity.FieldArea, input: inputArea},
	entity.StageSeverity:    {field: entity.FieldSeverity, input: inputSeverity},
	entity.StageDescription: {field: entity.FieldDescription, input: inputDescription},
	entity.StageMedia:       {field: entity.FieldMedia, input: inputMedia},
}

// nextStage fires input against from and returns the resulting stage.
// Inputs that are not valid for from are rejected.
func nextStage(ctx context.Context, from entity.Stage, input string) (entity.Stage, error) {
	machine := fsm.NewFSM(from.String(), transitionTable, fsm.Callbacks{})
	if err := machine.Event(ctx, input); err != nil {
		// report from Name re-enters Name, which fsm treats as a no-op
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return from, fmt.Errorf("input %s not allowed in stage %s: %w", input, from, err)
		}
	}
	return entity.ParseStage(machine.Current())
}
