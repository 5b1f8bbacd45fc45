package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// FlexString accepts either a JSON string or a JSON number and always
// serialises as a string. Lab values and family member ages arrive both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

type ProblemItem struct {
	Condition     string `json:"condition" validate:"required"`
	ICD10         string `json:"icd10" validate:"required"`
	DateDiagnosed string `json:"date_diagnosed,omitempty"`
}

type MedicationItem struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// UnmarshalJSON accepts legacy entries stored as a bare medication string.
func (m *MedicationItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*m = MedicationItem{Name: name}
		return nil
	}
	type plain MedicationItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MedicationItem(p)
	return nil
}

// Label renders "name dosage", or just the name when no dosage is recorded.
func (m MedicationItem) Label() string {
	return strings.TrimSpace(m.Name + " " + m.Dosage)
}

type LabResult struct {
	Test  string     `json:"test" validate:"required"`
	Value FlexString `json:"value"`
	Date  string     `json:"date"`
	Unit  string     `json:"unit,omitempty"`
}

type SurgicalHistoryItem struct {
	Year       int    `json:"year"`
	Procedure  string `json:"procedure" validate:"required"`
	Indication string `json:"indication,omitempty"`
}

type AllergyItem struct {
	Allergen string `json:"allergen" validate:"required"`
	Reaction string `json:"reaction"`
	Severity string `json:"severity,omitempty"`
}

type SocialHistory struct {
	Alcohol         string `json:"alcohol,omitempty"`
	Tobacco         string `json:"tobacco,omitempty"`
	Occupation      string `json:"occupation,omitempty"`
	LivingSituation string `json:"living_situation,omitempty"`
}

type FamilyHistoryItem struct {
	Relation     string     `json:"relation" validate:"required"`
	Age          FlexString `json:"age,omitempty"`
	Conditions   []string   `json:"conditions"`
	AgeAtDeath   *int       `json:"age_at_death,omitempty"`
	CauseOfDeath string     `json:"cause_of_death,omitempty"`
}

type VitalSigns struct {
	BPSystolic      *int     `json:"bp_systolic,omitempty"`
	BPDiastolic     *int     `json:"bp_diastolic,omitempty"`
	HeartRate       *int     `json:"heart_rate,omitempty"`
	RespiratoryRate *int     `json:"respiratory_rate,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Date            string   `json:"date,omitempty"`
}

type (
	ProblemList     []ProblemItem
	MedicationList  []MedicationItem
	LabResults      []LabResult
	SurgicalHistory []SurgicalHistoryItem
	Allergies       []AllergyItem
	FamilyHistory   []FamilyHistoryItem
)

func (l *ProblemList) Scan(src interface{}) error     { return scanJSON(src, l) }
func (l ProblemList) Value() (driver.Value, error)    { return valueJSON(nonNil(l)) }
func (l *MedicationList) Scan(src interface{}) error  { return scanJSON(src, l) }
func (l MedicationList) Value() (driver.Value, error) { return valueJSON(nonNil(l)) }
func (l *LabResults) Scan(src interface{}) error      { return scanJSON(src, l) }
func (l LabResults) Value() (driver.Value, error)     { return valueJSON(nonNil(l)) }

func (l *SurgicalHistory) Scan(src interface{}) error { return scanJSON(src, l) }
func (l SurgicalHistory) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return valueJSON([]SurgicalHistoryItem(l))
}

func (l *Allergies) Scan(src interface{}) error { return scanJSON(src, l) }
func (l Allergies) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return valueJSON([]AllergyItem(l))
}

func (l *FamilyHistory) Scan(src interface{}) error { return scanJSON(src, l) }
func (l FamilyHistory) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return valueJSON([]FamilyHistoryItem(l))
}

func (s *SocialHistory) Scan(src interface{}) error { return scanJSON(src, s) }
func (s *SocialHistory) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return valueJSON(*s)
}

func (v *VitalSigns) Scan(src interface{}) error { return scanJSON(src, v) }
func (v *VitalSigns) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return valueJSON(*v)
}

// EHRRecord is the clinical content of an EHR snapshot, without identifiers.
type EHRRecord struct {
	ProblemList     ProblemList     `json:"problem_list" db:"problem_list"`
	MedicationList  MedicationList  `json:"medication_list" db:"medication_list"`
	RecentLabs      LabResults      `json:"recent_labs" db:"recent_labs"`
	SurgicalHistory SurgicalHistory `json:"surgical_history" db:"surgical_history"`
	Allergies       Allergies       `json:"allergies" db:"allergies"`
	SocialHistory   *SocialHistory  `json:"social_history" db:"social_history"`
	FamilyHistory   FamilyHistory   `json:"family_history" db:"family_history"`
	VitalSigns      *VitalSigns     `json:"vital_signs" db:"vital_signs"`
}

type EHRHistory struct {
	ID        string `json:"id" db:"id"`
	PatientID string `json:"patient_id" db:"patient_id" validate:"required"`
	EHRRecord
}

// Conditions returns the problem list condition names in order.
func (r *EHRRecord) Conditions() []string {
	out := make([]string, 0, len(r.ProblemList))
	for _, p := range r.ProblemList {
		out = append(out, p.Condition)
	}
	return out
}

// Medications returns "name dosage" labels in order.
func (r *EHRRecord) Medications() []string {
	out := make([]string, 0, len(r.MedicationList))
	for _, m := range r.MedicationList {
		out = append(out, m.Label())
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
