package model

import (
	"strings"
	"time"
)

type BriefingStatus string

const (
	BriefingStatusReady   BriefingStatus = "Briefing Ready"
	BriefingStatusPending BriefingStatus = "Pending Intake"
)

type Patient struct {
	ID             string    `json:"patient_id" db:"patient_id" validate:"required"`
	FullName       string    `json:"full_name" db:"full_name" validate:"required"`
	DateOfBirth    Date      `json:"date_of_birth" db:"date_of_birth"`
	GenderIdentity string    `json:"gender_identity" db:"gender_identity" validate:"required"`
	Race           string    `json:"race" db:"race" validate:"required"`
	AddressZipCode string    `json:"address_zip_code" db:"address_zip_code" validate:"required"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Age returns completed years at now.
func (p *Patient) Age(now time.Time) int {
	dob := p.DateOfBirth.Time
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func (p *Patient) FirstName() string {
	fields := strings.Fields(p.FullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// PatientSummary is a patient row as shown on the dashboard list.
type PatientSummary struct {
	Patient
	BriefingStatus BriefingStatus `json:"briefing_status" db:"briefing_status"`
}

type PatientNarrative struct {
	ID             string `json:"narrative_id" db:"narrative_id" validate:"required"`
	PatientID      string `json:"patient_id" db:"patient_id" validate:"required"`
	NarrativeTitle string `json:"narrative_title" db:"narrative_title" validate:"required"`
	NarrativeText  string `json:"narrative_text" db:"narrative_text" validate:"required"`
}
