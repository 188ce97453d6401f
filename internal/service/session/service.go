package session

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/validator"
)

type Service struct {
	store           repository.Store
	defaultDuration int
}

func NewService(store repository.Store, defaultDuration int) *Service {
	return &Service{store: store, defaultDuration: defaultDuration}
}

// Create appends a session to the patient's history. The patient row is
// locked before the next number is read, so concurrent creators for the same
// patient get consecutive numbers.
func (s *Service) Create(ctx context.Context, ownerID, patientID uuid.UUID, input *model.SessionInput) (*model.Session, error) {
	if input == nil {
		return nil, apperrors.NewBadRequest("session data is required", nil)
	}

	v := validator.New()
	session := &model.Session{
		OwnerID:          ownerID,
		PatientID:        patientID,
		SessionDuration:  input.SessionDuration,
		PatientMood:      model.PatientMood(input.PatientMood),
		SessionNotes:     validator.Sanitize(input.SessionNotes),
		Observations:     validator.Sanitize(input.Observations),
		Homework:         validator.Sanitize(input.Homework),
		NextSessionGoals: validator.Sanitize(input.NextSessionGoals),
	}
	if input.SessionDate == "" {
		v.Add("session_date", "session_date is required")
	} else if date, err := validator.NormalizeDate(input.SessionDate); err != nil {
		v.Add("session_date", "session_date must be a valid date")
	} else {
		session.SessionDate = model.NewDate(date)
	}
	if session.SessionDuration == 0 {
		session.SessionDuration = s.defaultDuration
	}
	v.Check(session.SessionDuration > 0, "session_duration", "session_duration must be greater than 0")
	if session.PatientMood == "" {
		session.PatientMood = model.MoodNeutral
	}
	v.OneOf("patient_mood", string(session.PatientMood), model.PatientMoods...)
	if input.AppointmentID != "" {
		if id, ok := v.UUID("appointment_id", input.AppointmentID); ok {
			session.AppointmentID = &id
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Patients().Lock(ctx, ownerID, patientID); err != nil {
			return err
		}
		if err := checkAppointment(ctx, tx, ownerID, patientID, session.AppointmentID); err != nil {
			return err
		}

		next, err := tx.Sessions().NextSessionNumber(ctx, ownerID, patientID)
		if err != nil {
			return err
		}
		session.SessionNumber = next
		if err := tx.Sessions().Create(ctx, session); err != nil {
			return err
		}

		event, err := model.NewOutboxEvent(ownerID, model.EventSessionCreated, map[string]interface{}{
			"session_id":     session.ID,
			"patient_id":     patientID,
			"session_number": session.SessionNumber,
			"session_date":   session.SessionDate,
		})
		if err != nil {
			return err
		}
		return tx.Outbox().Create(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ListByPatient returns the history newest first with summary stats.
func (s *Service) ListByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.SessionHistory, error) {
	if _, err := s.store.Patients().Get(ctx, ownerID, patientID); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions, err := s.store.Sessions().ListByPatient(ctx, ownerID, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return &model.SessionHistory{Sessions: sessions, Stats: s.stats(sessions)}, nil
}

func (s *Service) stats(sessions []*model.Session) model.SessionStats {
	stats := model.SessionStats{TotalSessions: len(sessions), AvgDuration: s.defaultDuration}
	if len(sessions) == 0 {
		return stats
	}

	total := 0
	last := sessions[0].SessionDate
	for _, session := range sessions {
		total += session.SessionDuration
		if session.SessionDate.After(last.Time) {
			last = session.SessionDate
		}
	}
	stats.LastSession = &last
	stats.AvgDuration = int(math.Round(float64(total) / float64(len(sessions))))
	return stats
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	session, err := s.store.Sessions().Get(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// Update applies only the fields present in input. The session number never
// changes.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, input *model.SessionUpdate) (*model.Session, error) {
	if input == nil {
		return nil, apperrors.NewBadRequest("session data is required", nil)
	}

	v := validator.New()
	var (
		date          model.Date
		appointmentID *uuid.UUID
	)
	if input.SessionDate != nil {
		d, err := validator.NormalizeDate(*input.SessionDate)
		if err != nil {
			v.Add("session_date", "session_date must be a valid date")
		}
		date = model.NewDate(d)
	}
	if input.SessionDuration != nil {
		v.Check(*input.SessionDuration > 0, "session_duration", "session_duration must be greater than 0")
	}
	if input.PatientMood != nil {
		v.OneOf("patient_mood", *input.PatientMood, model.PatientMoods...)
	}
	if input.AppointmentID != nil && *input.AppointmentID != "" {
		if id, ok := v.UUID("appointment_id", *input.AppointmentID); ok {
			appointmentID = &id
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var updated *model.Session
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		session, err := tx.Sessions().GetForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}

		if input.SessionDate != nil {
			session.SessionDate = date
		}
		if input.SessionDuration != nil {
			session.SessionDuration = *input.SessionDuration
		}
		if input.PatientMood != nil {
			session.PatientMood = model.PatientMood(*input.PatientMood)
		}
		if input.AppointmentID != nil {
			session.AppointmentID = appointmentID
			if err := checkAppointment(ctx, tx, ownerID, session.PatientID, appointmentID); err != nil {
				return err
			}
		}
		if input.SessionNotes != nil {
			session.SessionNotes = validator.Sanitize(*input.SessionNotes)
		}
		if input.Observations != nil {
			session.Observations = validator.Sanitize(*input.Observations)
		}
		if input.Homework != nil {
			session.Homework = validator.Sanitize(*input.Homework)
		}
		if input.NextSessionGoals != nil {
			session.NextSessionGoals = validator.Sanitize(*input.NextSessionGoals)
		}

		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return updated, nil
}

// Delete leaves a gap in the numbering; remaining sessions keep their numbers.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.Sessions().Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// checkAppointment requires a linked appointment to be the owner's and to
// belong to the same patient.
func checkAppointment(ctx context.Context, tx repository.Repositories, ownerID, patientID uuid.UUID, appointmentID *uuid.UUID) error {
	if appointmentID == nil {
		return nil
	}
	appointment, err := tx.Appointments().Get(ctx, ownerID, *appointmentID)
	if err != nil {
		return err
	}
	if appointment.PatientID != patientID {
		return apperrors.NewValidation([]apperrors.FieldError{
			{Field: "appointment_id", Message: "appointment_id must belong to the same patient"},
		})
	}
	return nil
}
