package entity

import "fmt"

// Stage is a point in the fixed report conversation.
type Stage int

const (
	StageIdle Stage = iota
	StageName
	StageLocation
	StageArea
	StageSeverity
	StageDescription
	StageMedia
	StageCommitted
)

var stageNames = map[Stage]string{
	StageIdle:        "idle",
	StageName:        "name",
	StageLocation:    "location",
	StageArea:        "area",
	StageSeverity:    "severity",
	StageDescription: "description",
	StageMedia:       "media",
	StageCommitted:   "committed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage is the inverse of Stage.String.
func ParseStage(name string) (Stage, error) {
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return StageIdle, fmt.Errorf("unknown stage %q", name)
}

// Field names a collected answer.
type Field string

const (
	FieldName        Field = "name"
	FieldLocation    Field = "location"
	FieldArea        Field = "area"
	FieldSeverity    Field = "severity"
	FieldDescription Field = "description"
	FieldMedia       Field = "media"
)

// ReportFields lists every answer a report needs, in collection order.
var ReportFields = []Field{
	FieldName,
	FieldLocation,
	FieldArea,
	FieldSeverity,
	FieldDescription,
	FieldMedia,
}

// Session is the in-progress state of one user's report.
type Session struct {
	UserID  string           `json:"user_id"`
	Stage   Stage            `json:"stage"`
	Answers map[Field]string `json:"answers"`
}

func NewSession(userID string) *Session {
	return &Session{
		UserID:  userID,
		Stage:   StageName,
		Answers: make(map[Field]string),
	}
}

// Clone returns a deep copy so callers never share the answers map with a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	answers := make(map[Field]string, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = v
	}
	return &Session{
		UserID:  s.UserID,
		Stage:   s.Stage,
		Answers: answers,
	}
}

// Answer returns the collected value and whether it was set.
func (s *Session) Answer(field Field) (string, bool) {
	v, ok := s.Answers[field]
	return v, ok
}
