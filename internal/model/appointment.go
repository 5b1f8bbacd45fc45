package model

import (
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

const DefaultAppointmentMinutes = 30

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusConfirmed, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID              string            `db:"appointment_id" json:"appointment_id"`
	PatientID       string            `db:"patient_id" json:"patient_id"`
	DateTime        time.Time         `db:"appointment_date_time" json:"appointment_date_time"`
	Status          AppointmentStatus `db:"appointment_status" json:"appointment_status"`
	AppointmentType *string           `db:"appointment_type" json:"appointment_type"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Location        *string           `db:"location" json:"location"`
	ProviderName    *string           `db:"provider_name" json:"provider_name"`
	Notes           *string           `db:"notes" json:"notes"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateAppointmentRequest struct {
	PatientID       string    `json:"patient_id" binding:"required"`
	DateTime        time.Time `json:"appointment_date_time" binding:"required"`
	AppointmentType *string   `json:"appointment_type" binding:"omitempty,max=100"`
	DurationMinutes *int      `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Location        *string   `json:"location" binding:"omitempty,max=255"`
	ProviderName    *string   `json:"provider_name" binding:"omitempty,max=255"`
	Notes           *string   `json:"notes" binding:"omitempty,max=2000"`
}

// UpdateAppointmentRequest only changes fields that are present in the body.
type UpdateAppointmentRequest struct {
	DateTime        *time.Time         `json:"appointment_date_time"`
	Status          *AppointmentStatus `json:"appointment_status" binding:"omitempty,appointment_status"`
	AppointmentType *string            `json:"appointment_type" binding:"omitempty,max=100"`
	DurationMinutes *int               `json:"duration_minutes" binding:"omitempty,min=5,max=480"`
	Location        *string            `json:"location" binding:"omitempty,max=255"`
	ProviderName    *string            `json:"provider_name" binding:"omitempty,max=255"`
	Notes           *string            `json:"notes" binding:"omitempty,max=2000"`
}

// Apply copies the present fields onto a.
func (r *UpdateAppointmentRequest) Apply(a *Appointment) {
	if r.DateTime != nil {
		a.DateTime = *r.DateTime
	}
	if r.Status != nil {
		a.Status = *r.Status
	}
	if r.AppointmentType != nil {
		a.AppointmentType = r.AppointmentType
	}
	if r.DurationMinutes != nil {
		a.DurationMinutes = *r.DurationMinutes
	}
	if r.Location != nil {
		a.Location = r.Location
	}
	if r.ProviderName != nil {
		a.ProviderName = r.ProviderName
	}
	if r.Notes != nil {
		a.Notes = r.Notes
	}
}

func (r *UpdateAppointmentRequest) Empty() bool {
	return r.DateTime == nil && r.Status == nil && r.AppointmentType == nil &&
		r.DurationMinutes == nil && r.Location == nil && r.ProviderName == nil && r.Notes == nil
}

type AppointmentFilters struct {
	PatientID    string
	Status       AppointmentStatus
	StartDate    *time.Time
	EndDate      *time.Time
	UpcomingOnly bool
	Now          time.Time
}
