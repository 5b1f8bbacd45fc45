package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type KeyInsightFlag struct {
	Type      string `json:"type"`
	Flag      string `json:"flag"`
	Reasoning string `json:"reasoning"`
	Severity  string `json:"severity,omitempty"`
}

// EquityContextFlag carries a recommendation that is either plain text or a
// structured object; it is stored and returned exactly as the model produced it.
type EquityContextFlag struct {
	Type           string          `json:"type"`
	Flag           string          `json:"flag"`
	Reasoning      string          `json:"reasoning"`
	Recommendation json.RawMessage `json:"recommendation,omitempty"`
}

type ReportedSymptom struct {
	Symptom  string `json:"symptom"`
	Quality  string `json:"quality,omitempty"`
	Location string `json:"location,omitempty"`
	Timing   string `json:"timing,omitempty"`
}

type (
	KeyInsightFlags    []KeyInsightFlag
	EquityContextFlags []EquityContextFlag
	ReportedSymptoms   []ReportedSymptom
	StringList         []string
)

func (l *KeyInsightFlags) Scan(src interface{}) error     { return scanJSON(src, l) }
func (l KeyInsightFlags) Value() (driver.Value, error)    { return valueJSON(nonNil(l)) }
func (l *EquityContextFlags) Scan(src interface{}) error  { return scanJSON(src, l) }
func (l EquityContextFlags) Value() (driver.Value, error) { return valueJSON(nonNil(l)) }
func (l *ReportedSymptoms) Scan(src interface{}) error    { return scanJSON(src, l) }
func (l ReportedSymptoms) Value() (driver.Value, error)   { return valueJSON(nonNil(l)) }
func (l *StringList) Scan(src interface{}) error          { return scanJSON(src, l) }
func (l StringList) Value() (driver.Value, error)         { return valueJSON(nonNil(l)) }

type ClinicalBriefing struct {
	ID                         string             `json:"briefing_id" db:"briefing_id"`
	PatientID                  string             `json:"patient_id" db:"patient_id"`
	ConversationID             *string            `json:"conversation_id,omitempty" db:"conversation_id"`
	CreatedAt                  time.Time          `json:"created_at" db:"created_at"`
	AISummary                  string             `json:"ai_summary" db:"ai_summary"`
	KeyInsightsFlags           KeyInsightFlags    `json:"key_insights_flags" db:"key_insights_flags"`
	EquityAndContextFlags      EquityContextFlags `json:"equity_and_context_flags" db:"equity_and_context_flags"`
	ReportedSymptomsStructured ReportedSymptoms   `json:"reported_symptoms_structured" db:"reported_symptoms_structured"`
	RelevantHistorySurfaced    StringList         `json:"relevant_history_surfaced" db:"relevant_history_surfaced"`
}

// SynthesisResult is the JSON object the model is asked to return.
type SynthesisResult struct {
	AISummary                  string             `json:"ai_summary"`
	KeyInsightsFlags           KeyInsightFlags    `json:"key_insights_flags"`
	EquityAndContextFlags      EquityContextFlags `json:"equity_and_context_flags"`
	ReportedSymptomsStructured ReportedSymptoms   `json:"reported_symptoms_structured"`
	RelevantHistorySurfaced    StringList         `json:"relevant_history_surfaced"`
}

type SynthesizeRequest struct {
	PatientID string `json:"patient_id" binding:"required"`
	Narrative string `json:"narrative" binding:"required,notblank"`
}

// BriefingCreatedEvent is the outbox payload for a new briefing.
type BriefingCreatedEvent struct {
	BriefingID     string    `json:"briefing_id"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	ConversationID *string   `json:"conversation_id,omitempty"`
	Summary        string    `json:"ai_summary"`
	FlagCount      int       `json:"flag_count"`
	CreatedAt      time.Time `json:"created_at"`
}
