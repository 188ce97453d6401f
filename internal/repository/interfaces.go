package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
)

// All repository interfaces in one file. Every method is scoped by owner;
// a row belonging to another owner behaves exactly like a missing row.
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error)
		// Lock takes a row lock on the patient for the rest of the
		// transaction and fails with not-found when the owner has no such patient.
		Lock(ctx context.Context, ownerID, id uuid.UUID) error
		Update(ctx context.Context, patient *model.Patient) error
		SetStatus(ctx context.Context, ownerID, id uuid.UUID, status model.PatientStatus) error
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
		EmailExists(ctx context.Context, ownerID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)
		GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		CheckConflict(ctx context.Context, ownerID uuid.UUID, date model.Date, at string, excludeID *uuid.UUID) (bool, error)
		Upcoming(ctx context.Context, ownerID uuid.UUID, from model.Date, limit int) ([]*model.UpcomingAppointment, error)
		Stats(ctx context.Context, ownerID uuid.UUID, now time.Time, defaultPrice float64) (*model.AppointmentStats, error)
	}

	SessionRepository interface {
		Create(ctx context.Context, session *model.Session) error
		// NextSessionNumber must run after PatientRepository.Lock in the same
		// transaction so concurrent creators are serialized.
		NextSessionNumber(ctx context.Context, ownerID, patientID uuid.UUID) (int, error)
		Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error)
		GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error)
		Update(ctx context.Context, session *model.Session) error
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error)
		ListByPatient(ctx context.Context, ownerID, patientID uuid.UUID) ([]*model.Session, error)
	}

	AnamnesisRepository interface {
		// Upsert writes exactly the values held by anamnesis in one
		// conditional statement and fills in ID and timestamps.
		Upsert(ctx context.Context, anamnesis *model.Anamnesis) error
		GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Anamnesis, error)
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error)
	}

	PricingRepository interface {
		Upsert(ctx context.Context, pricing *model.Pricing) error
		GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error)
		Delete(ctx context.Context, ownerID, id uuid.UUID) error
		DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ClaimPending marks up to limit deliverable events as processing and
		// returns them oldest first. Deliverable is pending, or processing
		// with a claim older than staleBefore, left by a relay that died
		// before settling.
		ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error)
		ListByStatus(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Repositories is the set of repositories bound to one connection or
	// one transaction.
	Repositories interface {
		Patients() PatientRepository
		Appointments() AppointmentRepository
		Sessions() SessionRepository
		Anamnesis() AnamnesisRepository
		Pricing() PricingRepository
		Outbox() OutboxRepository
	}

	// Store is the record store adapter. WithTx runs fn against repositories
	// bound to a single transaction, committing when fn returns nil and
	// rolling back otherwise.
	Store interface {
		Repositories
		WithTx(ctx context.Context, fn func(tx Repositories) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
