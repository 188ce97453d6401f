package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

var fixedNow = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, nil)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, store
}

func validInput() *model.PatientInput {
	return &model.PatientInput{
		Name:      "Maria Silva",
		Email:     "maria@example.com",
		Phone:     "+55 11 99999-0000",
		BirthDate: "1990-04-12",
		Notes:     "<b>prefers</b> mornings",
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, apperrors.ErrValidation, appErr.Code)
	out := map[string]string{}
	for _, f := range appErr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestCreatePatient(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()

	p, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, owner, p.OwnerID)
	assert.Equal(t, model.PatientStatusActive, p.Status)
	assert.Equal(t, "prefers mornings", p.Notes)
	assert.Equal(t, "1990-04-12", p.BirthDate.String())
}

func TestCreatePatientValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		mutate  func(in *model.PatientInput)
		field   string
		message string
	}{
		{"short name", func(in *model.PatientInput) { in.Name = "Al" }, "name", "name must be at least 3 characters"},
		{"markup only name", func(in *model.PatientInput) { in.Name = "<i></i>" }, "name", "name is required"},
		{"bad email", func(in *model.PatientInput) { in.Email = "maria@" }, "email", "email must be a valid email address"},
		{"missing phone", func(in *model.PatientInput) { in.Phone = " " }, "phone", "phone is required"},
		{"future birth date", func(in *model.PatientInput) { in.BirthDate = "2024-06-11" }, "birth_date", "birth_date cannot be in the future"},
		{"impossible date", func(in *model.PatientInput) { in.BirthDate = "2023-02-30" }, "birth_date", "birth_date must be a valid date (YYYY-MM-DD)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			_, err := svc.Create(context.Background(), uuid.New(), in)
			require.Error(t, err)
			messages := fieldMessages(t, err)
			assert.Len(t, messages, 1)
			assert.Equal(t, tt.message, messages[tt.field])
		})
	}
}

func TestCreatePatientBirthDateToday(t *testing.T) {
	svc, _ := newTestService(t)
	in := validInput()
	in.BirthDate = "2024-06-10"

	_, err := svc.Create(context.Background(), uuid.New(), in)
	assert.NoError(t, err)
}

func TestBirthDateComparedInPracticeTimezone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)
	tests := []struct {
		name     string
		loc      *time.Location
		now      time.Time
		accepted bool
	}{
		{"evening before midnight in Sao Paulo", saoPaulo, time.Date(2024, 6, 11, 1, 30, 0, 0, time.UTC), false},
		{"same instant in UTC", nil, time.Date(2024, 6, 11, 1, 30, 0, 0, time.UTC), true},
		{"morning already in Tokyo", tokyo, time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC), true},
		{"same instant in UTC is still yesterday", nil, time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(memory.NewStore(), tt.loc)
			now := tt.now
			svc.SetClock(func() time.Time { return now })
			in := validInput()
			in.BirthDate = "2024-06-11"

			_, err := svc.Create(context.Background(), uuid.New(), in)
			if tt.accepted {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, "birth_date cannot be in the future", fieldMessages(t, err)["birth_date"])
		})
	}
}

func TestDuplicateEmailPerOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)

	dup := validInput()
	dup.Email = "MARIA@example.com"
	_, err = svc.Create(ctx, owner, dup)
	assert.True(t, apperrors.IsConflict(err))

	// Another owner may reuse the address.
	_, err = svc.Create(ctx, uuid.New(), validInput())
	assert.NoError(t, err)
}

func TestUpdatePatient(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	p, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	other := validInput()
	other.Email = "joao@example.com"
	_, err = svc.Create(ctx, owner, other)
	require.NoError(t, err)

	// Keeping its own email is not a conflict.
	in := validInput()
	in.Name = "Maria S. Souza"
	updated, err := svc.Update(ctx, owner, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Maria S. Souza", updated.Name)

	in.Email = "joao@example.com"
	_, err = svc.Update(ctx, owner, p.ID, in)
	assert.True(t, apperrors.IsConflict(err))
}

func TestToggleStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	p, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)

	toggled, err := svc.ToggleStatus(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusInactive, toggled.Status)

	toggled, err = svc.ToggleStatus(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PatientStatusActive, toggled.Status)
}

func TestTenantIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()

	p, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, intruder, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Update(ctx, intruder, p.ID, validInput())
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.ToggleStatus(ctx, intruder, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, intruder, p.ID)))

	list, err := svc.List(ctx, &model.PatientFilters{OwnerID: intruder})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, name := range []string{"Carla Dias", "Ana Lima", "Bruno Costa"} {
		in := validInput()
		in.Name = name
		in.Email = uuid.NewString() + "@example.com"
		_, err := svc.Create(ctx, owner, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, &model.PatientFilters{OwnerID: owner})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Ana Lima", all[0].Name)

	_, err = svc.ToggleStatus(ctx, owner, all[0].ID)
	require.NoError(t, err)

	found, err := svc.List(ctx, &model.PatientFilters{OwnerID: owner, Search: "cost"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bruno Costa", found[0].Name)

	inactive, err := svc.List(ctx, &model.PatientFilters{OwnerID: owner, Status: model.PatientStatusInactive})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "Ana Lima", inactive[0].Name)

	_, err = svc.List(ctx, &model.PatientFilters{OwnerID: owner, Status: "archived"})
	assert.True(t, apperrors.IsValidation(err))
}

// seedDependents gives the patient one record of every dependent kind.
func seedDependents(t *testing.T, store *memory.Store, owner, patientID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	appt := &model.Appointment{
		OwnerID: owner, PatientID: patientID, Date: model.NewDate(fixedNow), Time: "10:00",
		Duration: 50, Status: model.AppointmentStatusScheduled,
	}
	require.NoError(t, store.Appointments().Create(ctx, appt))
	require.NoError(t, store.Sessions().Create(ctx, &model.Session{
		OwnerID: owner, PatientID: patientID, AppointmentID: &appt.ID, SessionNumber: 1,
		SessionDate: model.NewDate(fixedNow), SessionDuration: 50, PatientMood: model.MoodGood,
	}))
	require.NoError(t, store.Pricing().Upsert(ctx, &model.Pricing{OwnerID: owner, PatientID: patientID, SessionPrice: 150}))
	require.NoError(t, store.Anamnesis().Upsert(ctx, &model.Anamnesis{OwnerID: owner, PatientID: patientID, Complaint: "anxiety"}))
}

func TestDeleteCascades(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	p, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	seedDependents(t, store, owner, p.ID)

	require.NoError(t, svc.Delete(ctx, owner, p.ID))

	_, err = svc.Get(ctx, owner, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	appts, err := store.Appointments().List(ctx, &model.AppointmentFilters{OwnerID: owner})
	require.NoError(t, err)
	assert.Empty(t, appts)
	sessions, err := store.Sessions().ListByPatient(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	_, err = store.Pricing().GetByPatient(ctx, owner, p.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = store.Anamnesis().GetByPatient(ctx, owner, p.ID)
	assert.True(t, apperrors.IsNotFound(err))

	events, err := store.Outbox().ListByStatus(ctx, model.OutboxStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPatientDeleted, events[0].EventType)
	assert.JSONEq(t,
		`{"patient_id":"`+p.ID.String()+`","anamnesis_deleted":1,"sessions_deleted":1,"pricing_deleted":1,"appointments_deleted":1}`,
		string(events[0].Payload))
}

func TestDeleteRollsBackOnFailure(t *testing.T) {
	for _, op := range []string{
		"sessions.DeleteByPatient",
		"pricing.DeleteByPatient",
		"appointments.DeleteByPatient",
		"patients.Delete",
		"outbox.Create",
	} {
		t.Run(op, func(t *testing.T) {
			svc, store := newTestService(t)
			ctx := context.Background()
			owner := uuid.New()

			p, err := svc.Create(ctx, owner, validInput())
			require.NoError(t, err)
			seedDependents(t, store, owner, p.ID)

			boom := errors.New("connection reset")
			store.SetFault(func(name string) error {
				if name == op {
					return boom
				}
				return nil
			})
			err = svc.Delete(ctx, owner, p.ID)
			require.ErrorIs(t, err, boom)
			store.SetFault(nil)

			_, err = svc.Get(ctx, owner, p.ID)
			require.NoError(t, err, "patient must survive a failed delete")
			appts, err := store.Appointments().List(ctx, &model.AppointmentFilters{OwnerID: owner})
			require.NoError(t, err)
			assert.Len(t, appts, 1)
			sessions, err := store.Sessions().ListByPatient(ctx, owner, p.ID)
			require.NoError(t, err)
			assert.Len(t, sessions, 1)
			_, err = store.Pricing().GetByPatient(ctx, owner, p.ID)
			assert.NoError(t, err)
			_, err = store.Anamnesis().GetByPatient(ctx, owner, p.ID)
			assert.NoError(t, err)

			events, err := store.Outbox().ListByStatus(ctx, model.OutboxStatusPending, 10)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}
