// Package seed loads the synthetic patient data set used for demos and
// local development.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/pkg/validator"
)

const (
	PatientsFile   = "patients.json"
	EHRFile        = "ehr.json"
	NarrativesFile = "narratives.json"
)

type patientRecord struct {
	ID             string `json:"patient_id" validate:"required"`
	FullName       string `json:"full_name" validate:"required"`
	DateOfBirth    string `json:"date_of_birth" validate:"required,iso_date"`
	GenderIdentity string `json:"gender_identity" validate:"required"`
	Race           string `json:"race" validate:"required"`
	AddressZipCode string `json:"address_zip_code" validate:"required"`
}

// Data is a validated data set ready to insert.
type Data struct {
	Patients   []*model.Patient
	EHR        []*model.EHRHistory
	Narratives []*model.PatientNarrative
}

// Load reads and validates the three seed files in dir. EHR ids are
// generated here.
func Load(dir string) (*Data, error) {
	v := validator.Default()

	var records []patientRecord
	if err := readJSON(filepath.Join(dir, PatientsFile), &records); err != nil {
		return nil, err
	}

	data := &Data{}
	known := make(map[string]bool, len(records))
	for i := range records {
		r := &records[i]
		if err := v.Struct(r); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", PatientsFile, i, err)
		}
		if known[r.ID] {
			return nil, fmt.Errorf("%s[%d]: duplicate patient_id %s", PatientsFile, i, r.ID)
		}
		known[r.ID] = true

		dob, err := model.ParseDate(r.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", PatientsFile, i, err)
		}
		data.Patients = append(data.Patients, &model.Patient{
			ID:             r.ID,
			FullName:       r.FullName,
			DateOfBirth:    dob,
			GenderIdentity: r.GenderIdentity,
			Race:           r.Race,
			AddressZipCode: r.AddressZipCode,
		})
	}

	if err := readJSON(filepath.Join(dir, EHRFile), &data.EHR); err != nil {
		return nil, err
	}
	withEHR := make(map[string]bool, len(data.EHR))
	for i, ehr := range data.EHR {
		if err := v.Struct(ehr); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", EHRFile, i, err)
		}
		if !known[ehr.PatientID] {
			return nil, fmt.Errorf("%s[%d]: unknown patient_id %s", EHRFile, i, ehr.PatientID)
		}
		if withEHR[ehr.PatientID] {
			return nil, fmt.Errorf("%s[%d]: second record for patient %s", EHRFile, i, ehr.PatientID)
		}
		withEHR[ehr.PatientID] = true
		ehr.ID = model.NewID("EHR-", 8)
	}

	if err := readJSON(filepath.Join(dir, NarrativesFile), &data.Narratives); err != nil {
		return nil, err
	}
	for i, n := range data.Narratives {
		if err := v.Struct(n); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", NarrativesFile, i, err)
		}
		if !known[n.PatientID] {
			return nil, fmt.Errorf("%s[%d]: unknown patient_id %s", NarrativesFile, i, n.PatientID)
		}
	}

	return data, nil
}

func readJSON(path string, dst interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Counts are row counts of the intake tables.
type Counts struct {
	Patients      int
	EHR           int
	Narratives    int
	Conversations int
	Briefings     int
}

type Seeder struct {
	tx            repository.Transactor
	patients      repository.PatientRepository
	ehr           repository.EHRRepository
	narratives    repository.NarrativeRepository
	conversations repository.ConversationRepository
	briefings     repository.BriefingRepository
}

func NewSeeder(
	tx repository.Transactor,
	patients repository.PatientRepository,
	ehr repository.EHRRepository,
	narratives repository.NarrativeRepository,
	conversations repository.ConversationRepository,
	briefings repository.BriefingRepository,
) *Seeder {
	return &Seeder{
		tx:            tx,
		patients:      patients,
		ehr:           ehr,
		narratives:    narratives,
		conversations: conversations,
		briefings:     briefings,
	}
}

// Seed inserts data in one transaction. With reset, existing patients and
// everything that references them are removed first.
func (s *Seeder) Seed(ctx context.Context, data *Data, reset bool) error {
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if reset {
			n, err := s.patients.DeleteAll(ctx, tx)
			if err != nil {
				return err
			}
			log.Info().Int64("patients", n).Msg("Removed existing patient data")
		}

		for _, p := range data.Patients {
			if err := s.patients.Create(ctx, tx, p); err != nil {
				return fmt.Errorf("patient %s: %w", p.ID, err)
			}
		}
		for _, ehr := range data.EHR {
			if err := s.ehr.Create(ctx, tx, ehr); err != nil {
				return fmt.Errorf("ehr for %s: %w", ehr.PatientID, err)
			}
		}
		for _, n := range data.Narratives {
			if err := s.narratives.Create(ctx, tx, n); err != nil {
				return fmt.Errorf("narrative %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// ResetIntake deletes every briefing and conversation. Patient, EHR and
// narrative rows are untouched.
func (s *Seeder) ResetIntake(ctx context.Context) (briefings, conversations int64, err error) {
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if briefings, err = s.briefings.DeleteAll(ctx, tx); err != nil {
			return err
		}
		conversations, err = s.conversations.DeleteAll(ctx, tx)
		return err
	})
	return briefings, conversations, err
}

func (s *Seeder) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.Patients, err = s.patients.Count(ctx); err != nil {
		return c, err
	}
	if c.EHR, err = s.ehr.Count(ctx); err != nil {
		return c, err
	}
	if c.Narratives, err = s.narratives.Count(ctx); err != nil {
		return c, err
	}
	if c.Conversations, err = s.conversations.Count(ctx); err != nil {
		return c, err
	}
	if c.Briefings, err = s.briefings.Count(ctx); err != nil {
		return c, err
	}
	return c, nil
}
