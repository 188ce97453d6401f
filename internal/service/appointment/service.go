package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
	"github.com/jwalitptl/practice-api/pkg/validator"
)

// Business rules for recurring series and the upcoming list.
const (
	MinSeriesCount      = 2
	MaxSeriesCount      = 20
	DefaultUpcomingSize = 10
	MaxUpcomingSize     = 100
)

var seriesFrequencies = []int{7, 15, 30}

const occurrenceFailed = "failed to create appointment"

// Notifier is told about appointments after they are committed. It must not
// block the caller and its failures never reach the caller.
type Notifier interface {
	AppointmentScheduled(ctx context.Context, patient *model.Patient, appointment *model.Appointment)
	SeriesScheduled(ctx context.Context, patient *model.Patient, appointments []*model.Appointment)
}

type Config struct {
	DefaultDuration int
	DefaultPrice    float64
	Location        *time.Location
}

type Service struct {
	store    repository.Store
	cfg      Config
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService builds the scheduler. notifier and m may be nil.
func NewService(store repository.Store, cfg Config, notifier Notifier, m *metrics.Metrics) *Service {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = model.DefaultSessionDuration
	}
	if cfg.DefaultPrice < 0 {
		cfg.DefaultPrice = model.DefaultSessionPrice
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: store, cfg: cfg, notifier: notifier, metrics: m, now: time.Now}
}

// SetClock replaces the clock used for "today" in Upcoming and Stats.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) today() time.Time {
	return s.now().In(s.cfg.Location)
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, input *model.AppointmentInput) (*model.Appointment, error) {
	appointment, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	appointment.OwnerID = ownerID
	appointment.Status = model.AppointmentStatusScheduled

	var patient *model.Patient
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		p, err := tx.Patients().Get(ctx, ownerID, appointment.PatientID)
		if err != nil {
			return err
		}
		patient = p
		return schedule(ctx, tx, appointment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if s.notifier != nil {
		s.notifier.AppointmentScheduled(ctx, patient, appointment)
	}
	return appointment, nil
}

// schedule inserts a scheduled appointment and its outbox event on tx.
func schedule(ctx context.Context, tx repository.Repositories, appointment *model.Appointment) error {
	taken, err := tx.Appointments().CheckConflict(ctx, appointment.OwnerID, appointment.Date, appointment.Time, nil)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewConflict(repository.MsgSlotTaken, nil)
	}
	if err := tx.Appointments().Create(ctx, appointment); err != nil {
		return err
	}
	return appendEvent(ctx, tx, model.EventAppointmentCreated, appointment)
}

func appendEvent(ctx context.Context, tx repository.Repositories, eventType string, appointment *model.Appointment) error {
	event, err := model.NewOutboxEvent(appointment.OwnerID, eventType, map[string]interface{}{
		"appointment_id": appointment.ID,
		"patient_id":     appointment.PatientID,
		"date":           appointment.Date,
		"time":           appointment.Time,
		"status":         appointment.Status,
	})
	if err != nil {
		return err
	}
	return tx.Outbox().Create(ctx, event)
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.store.Appointments().Get(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appointment, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, apperrors.NewValidation([]apperrors.FieldError{
			{Field: "status", Message: "status must be one of scheduled, completed, cancelled"},
		})
	}
	if !filters.StartDate.IsZero() && !filters.EndDate.IsZero() && filters.EndDate.Before(filters.StartDate) {
		return nil, apperrors.NewValidation([]apperrors.FieldError{
			{Field: "end_date", Message: "end_date must not be before start_date"},
		})
	}
	appointments, err := s.store.Appointments().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// Update replaces every scheduling field. Completed and cancelled
// appointments are final, and the status may only move along
// scheduled→completed or scheduled→cancelled.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, input *model.AppointmentInput) (*model.Appointment, error) {
	changes, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	var updated *model.Appointment
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		current, err := tx.Appointments().GetForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		next := changes.Status
		if next == "" {
			next = current.Status
		}
		if err := checkTransition(current.Status, next); err != nil {
			return err
		}

		if changes.PatientID != current.PatientID {
			if _, err := tx.Patients().Get(ctx, ownerID, changes.PatientID); err != nil {
				return err
			}
		}
		if next != model.AppointmentStatusCancelled {
			taken, err := tx.Appointments().CheckConflict(ctx, ownerID, changes.Date, changes.Time, &id)
			if err != nil {
				return err
			}
			if taken {
				return apperrors.NewConflict(repository.MsgSlotTaken, nil)
			}
		}

		current.PatientID = changes.PatientID
		current.Date = changes.Date
		current.Time = changes.Time
		current.Duration = changes.Duration
		current.Amount = changes.Amount
		current.Notes = changes.Notes
		previous := current.Status
		current.Status = next
		if err := tx.Appointments().Update(ctx, current); err != nil {
			return err
		}
		updated = current
		if eventType, ok := transitionEvent(previous, next); ok {
			return appendEvent(ctx, tx, eventType, current)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, ownerID, id, model.AppointmentStatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, ownerID, id, model.AppointmentStatusCancelled)
}

func (s *Service) transition(ctx context.Context, ownerID, id uuid.UUID, next model.AppointmentStatus) (*model.Appointment, error) {
	var updated *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		appointment, err := tx.Appointments().GetForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := checkTransition(appointment.Status, next); err != nil {
			return err
		}
		previous := appointment.Status
		appointment.Status = next
		if err := tx.Appointments().Update(ctx, appointment); err != nil {
			return err
		}
		updated = appointment
		eventType, _ := transitionEvent(previous, next)
		return appendEvent(ctx, tx, eventType, appointment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to %s appointment: %w", verb(next), err)
	}
	return updated, nil
}

func checkTransition(from, to model.AppointmentStatus) error {
	if !to.Valid() {
		return apperrors.NewValidation([]apperrors.FieldError{
			{Field: "status", Message: "status must be one of scheduled, completed, cancelled"},
		})
	}
	if from.Terminal() {
		return apperrors.NewConflict(fmt.Sprintf("appointment is already %s", from), nil)
	}
	if !from.CanTransition(to) {
		return apperrors.NewConflict(fmt.Sprintf("cannot change appointment status from %s to %s", from, to), nil)
	}
	return nil
}

func transitionEvent(from, to model.AppointmentStatus) (string, bool) {
	if from == to {
		return "", false
	}
	switch to {
	case model.AppointmentStatusCompleted:
		return model.EventAppointmentCompleted, true
	case model.AppointmentStatusCancelled:
		return model.EventAppointmentCancelled, true
	}
	return "", false
}

func verb(status model.AppointmentStatus) string {
	if status == model.AppointmentStatusCancelled {
		return "cancel"
	}
	return "complete"
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.Appointments().Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	return nil
}

// CreateRecurring schedules count occurrences every FrequencyDays starting at
// StartDate. Each occurrence commits on its own; a failed occurrence is
// reported and the rest are still attempted. The series succeeds when at
// least one occurrence was created.
func (s *Service) CreateRecurring(ctx context.Context, ownerID uuid.UUID, input *model.RecurringInput) (*model.RecurringResult, error) {
	template, start, err := s.validateRecurring(input)
	if err != nil {
		return nil, err
	}

	patient, err := s.store.Patients().Get(ctx, ownerID, template.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to create recurring appointments: %w", err)
	}

	result := &model.RecurringResult{
		TotalCount: input.Count,
		Created:    []*model.Appointment{},
		Failures:   []model.OccurrenceFailure{},
	}
	for i := 1; i <= input.Count; i++ {
		appointment := *template
		appointment.OwnerID = ownerID
		appointment.Status = model.AppointmentStatusScheduled
		appointment.Date = model.NewDate(start.AddDate(0, 0, (i-1)*input.FrequencyDays))
		appointment.Notes = seriesNote(template.Notes, i, input.Count)

		err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
			return schedule(ctx, tx, &appointment)
		})
		if err != nil {
			log.Warn().Err(err).
				Str("owner_id", ownerID.String()).
				Str("patient_id", patient.ID.String()).
				Int("occurrence", i).
				Str("date", appointment.Date.String()).
				Msg("Recurring occurrence not created")
			result.Failures = append(result.Failures, model.OccurrenceFailure{
				Occurrence: i,
				Date:       appointment.Date.String(),
				Error:      failureMessage(err),
			})
			continue
		}
		result.Created = append(result.Created, &appointment)
	}

	result.CreatedCount = len(result.Created)
	result.Success = result.CreatedCount > 0
	s.metrics.ObserveRecurring(result.CreatedCount, len(result.Failures))

	if result.Success && s.notifier != nil {
		s.notifier.SeriesScheduled(ctx, patient, result.Created)
	}
	return result, nil
}

func seriesNote(notes string, i, total int) string {
	tag := fmt.Sprintf("(series %d/%d)", i, total)
	if notes == "" {
		return tag
	}
	return notes + " " + tag
}

// failureMessage keeps client-facing messages and hides internal ones.
func failureMessage(err error) string {
	if appErr, ok := apperrors.As(err); ok && appErr.Code != apperrors.ErrInternal {
		return appErr.Message
	}
	return occurrenceFailed
}

// Upcoming lists appointments from today on, earliest first. limit defaults
// to DefaultUpcomingSize and is clamped to MaxUpcomingSize.
func (s *Service) Upcoming(ctx context.Context, ownerID uuid.UUID, limit int) ([]*model.UpcomingAppointment, error) {
	if limit <= 0 {
		limit = DefaultUpcomingSize
	}
	if limit > MaxUpcomingSize {
		limit = MaxUpcomingSize
	}
	upcoming, err := s.store.Appointments().Upcoming(ctx, ownerID, model.NewDate(s.today()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return upcoming, nil
}

func (s *Service) Stats(ctx context.Context, ownerID uuid.UUID) (*model.AppointmentStats, error) {
	stats, err := s.store.Appointments().Stats(ctx, ownerID, s.today(), s.cfg.DefaultPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment stats: %w", err)
	}
	return stats, nil
}

// validate checks the fields shared by create and update. Status is only
// checked for membership here; transitions are checked against the stored row.
func (s *Service) validate(input *model.AppointmentInput) (*model.Appointment, error) {
	if input == nil {
		return nil, apperrors.NewBadRequest("appointment data is required", nil)
	}

	v := validator.New()
	appointment := &model.Appointment{
		Duration: input.Duration,
		Amount:   input.Amount,
		Notes:    validator.Sanitize(input.Notes),
		Status:   input.Status,
	}
	if id, ok := v.UUID("patient_id", input.PatientID); ok {
		appointment.PatientID = id
	}
	if date, ok := v.Date("date", input.Date); ok {
		appointment.Date = model.NewDate(date)
	}
	if at, ok := v.Time("time", input.Time); ok {
		appointment.Time = at
	}
	s.checkCommon(v, appointment)
	if appointment.Status != "" {
		v.Check(appointment.Status.Valid(), "status", "status must be one of scheduled, completed, cancelled")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (s *Service) checkCommon(v *validator.Collector, appointment *model.Appointment) {
	if appointment.Duration == 0 {
		appointment.Duration = s.cfg.DefaultDuration
	}
	v.Check(appointment.Duration > 0, "duration", "duration must be greater than 0")
	if appointment.Amount != nil {
		v.Amount("amount", *appointment.Amount)
	}
}

func (s *Service) validateRecurring(input *model.RecurringInput) (*model.Appointment, time.Time, error) {
	if input == nil {
		return nil, time.Time{}, apperrors.NewBadRequest("recurring appointment data is required", nil)
	}

	v := validator.New()
	template := &model.Appointment{
		Duration: input.Duration,
		Amount:   input.Amount,
		Notes:    validator.Sanitize(input.Notes),
	}
	if id, ok := v.UUID("patient_id", input.PatientID); ok {
		template.PatientID = id
	}
	start, _ := v.Date("start_date", input.StartDate)
	if at, ok := v.Time("time", input.Time); ok {
		template.Time = at
	}
	v.Check(validFrequency(input.FrequencyDays), "frequency_days", "frequency_days must be one of 7, 15, 30")
	v.Check(input.Count >= MinSeriesCount && input.Count <= MaxSeriesCount, "count",
		fmt.Sprintf("count must be between %d and %d", MinSeriesCount, MaxSeriesCount))
	s.checkCommon(v, template)
	if err := v.Err(); err != nil {
		return nil, time.Time{}, err
	}
	return template, start, nil
}

func validFrequency(days int) bool {
	for _, f := range seriesFrequencies {
		if f == days {
			return true
		}
	}
	return false
}
