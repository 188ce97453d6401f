package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/validator"
)

const minNameLength = 3

type PatientService interface {
	Create(ctx context.Context, ownerID uuid.UUID, input *model.PatientInput) (*model.Patient, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, input *model.PatientInput) (*model.Patient, error)
	ToggleStatus(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
}

type Service struct {
	store    repository.Store
	location *time.Location
	now      func() time.Time
}

// NewService builds the patient service. Birth dates are compared with
// today in loc, the practice's timezone; nil means UTC.
func NewService(store repository.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, location: loc, now: time.Now}
}

// SetClock replaces the clock used to reject future birth dates.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, input *model.PatientInput) (*model.Patient, error) {
	patient, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	patient.OwnerID = ownerID
	patient.Status = model.PatientStatusActive

	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		exists, err := tx.Patients().EmailExists(ctx, ownerID, patient.Email, nil)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewConflict(repository.MsgDuplicateEmail, nil)
		}
		return tx.Patients().Create(ctx, patient)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.store.Patients().Get(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

// Update replaces the editable fields; status and dependents are untouched.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, input *model.PatientInput) (*model.Patient, error) {
	changes, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	var updated *model.Patient
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		patient, err := tx.Patients().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		exists, err := tx.Patients().EmailExists(ctx, ownerID, changes.Email, &id)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewConflict(repository.MsgDuplicateEmail, nil)
		}

		patient.Name = changes.Name
		patient.Email = changes.Email
		patient.Phone = changes.Phone
		patient.BirthDate = changes.BirthDate
		patient.Notes = changes.Notes
		if err := tx.Patients().Update(ctx, patient); err != nil {
			return err
		}
		updated = patient
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return updated, nil
}

func (s *Service) ToggleStatus(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error) {
	var patient *model.Patient
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Patients().Lock(ctx, ownerID, id); err != nil {
			return err
		}
		p, err := tx.Patients().Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		p.Status = p.Status.Toggle()
		if err := tx.Patients().SetStatus(ctx, ownerID, id, p.Status); err != nil {
			return err
		}
		patient = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to toggle patient status: %w", err)
	}
	return patient, nil
}

// DeletedPatient is the payload of the patient.deleted event.
type DeletedPatient struct {
	PatientID    uuid.UUID `json:"patient_id"`
	Anamnesis    int64     `json:"anamnesis_deleted"`
	Sessions     int64     `json:"sessions_deleted"`
	Pricing      int64     `json:"pricing_deleted"`
	Appointments int64     `json:"appointments_deleted"`
}

// Delete removes the patient and every dependent record in one
// transaction. Any failing step leaves all of them in place.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	summary := DeletedPatient{PatientID: id}

	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Patients().Lock(ctx, ownerID, id); err != nil {
			return err
		}

		var err error
		if summary.Anamnesis, err = tx.Anamnesis().DeleteByPatient(ctx, ownerID, id); err != nil {
			return err
		}
		if summary.Sessions, err = tx.Sessions().DeleteByPatient(ctx, ownerID, id); err != nil {
			return err
		}
		if summary.Pricing, err = tx.Pricing().DeleteByPatient(ctx, ownerID, id); err != nil {
			return err
		}
		if summary.Appointments, err = tx.Appointments().DeleteByPatient(ctx, ownerID, id); err != nil {
			return err
		}
		if err := tx.Patients().Delete(ctx, ownerID, id); err != nil {
			return err
		}

		event, err := model.NewOutboxEvent(ownerID, model.EventPatientDeleted, summary)
		if err != nil {
			return err
		}
		return tx.Outbox().Create(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Str("patient_id", id.String()).
		Int64("appointments", summary.Appointments).
		Int64("sessions", summary.Sessions).
		Msg("patient deleted")
	return nil
}

func (s *Service) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	if filters.Status != "" &&
		filters.Status != model.PatientStatusActive && filters.Status != model.PatientStatusInactive {
		return nil, apperrors.NewValidation([]apperrors.FieldError{
			{Field: "status", Message: "status must be one of: active, inactive"},
		})
	}
	filters.Search = validator.Sanitize(filters.Search)

	patients, err := s.store.Patients().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

// validate sanitizes input and reports every failed check together.
func (s *Service) validate(input *model.PatientInput) (*model.Patient, error) {
	if input == nil {
		return nil, apperrors.NewBadRequest("patient data is required", nil)
	}

	p := &model.Patient{
		Name:  validator.Sanitize(input.Name),
		Email: validator.Sanitize(input.Email),
		Phone: validator.Sanitize(input.Phone),
		Notes: validator.Sanitize(input.Notes),
	}

	v := validator.New()
	if v.Required("name", p.Name) {
		v.MinLength("name", p.Name, minNameLength)
	}
	v.Email("email", p.Email)
	v.Required("phone", p.Phone)
	if birth, ok := v.Date("birth_date", input.BirthDate); ok {
		today := model.NewDate(s.now().In(s.location))
		if birth.After(today.Time) {
			v.Add("birth_date", "birth_date cannot be in the future")
		}
		p.BirthDate = model.NewDate(birth)
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
