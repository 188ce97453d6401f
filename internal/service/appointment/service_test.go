package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Wednesday.
var fixedNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	single []*model.Appointment
	series [][]*model.Appointment
}

func (n *recordingNotifier) AppointmentScheduled(_ context.Context, _ *model.Patient, a *model.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.single = append(n.single, a)
}

func (n *recordingNotifier) SeriesScheduled(_ context.Context, _ *model.Patient, as []*model.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.series = append(n.series, as)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	notifier *recordingNotifier
	owner    uuid.UUID
	patient  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	m := metrics.New("test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	svc := NewService(store, Config{DefaultDuration: 50, DefaultPrice: 100}, notifier, m)
	svc.SetClock(func() time.Time { return fixedNow })

	f := &fixture{svc: svc, store: store, notifier: notifier, owner: uuid.New()}
	f.patient = f.addPatient(t, "Joana Prado")
	return f
}

func (f *fixture) addPatient(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := &model.Patient{
		OwnerID: f.owner, Name: name, Email: uuid.NewString() + "@example.com", Phone: "1",
		BirthDate: model.NewDate(time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)), Status: model.PatientStatusActive,
	}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	return p.ID
}

func (f *fixture) create(t *testing.T, patientID uuid.UUID, date, at string) *model.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), f.owner, &model.AppointmentInput{
		PatientID: patientID.String(), Date: date, Time: at,
	})
	require.NoError(t, err)
	return a
}

func amount(v float64) *float64 { return &v }

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(),
		Date:      "2024-05-20",
		Time:      "14:00:00",
		Notes:     "<i>first</i> visit",
		Status:    model.AppointmentStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusScheduled, a.Status)
	assert.Equal(t, "14:00", a.Time)
	assert.Equal(t, 50, a.Duration)
	assert.Equal(t, "first visit", a.Notes)
	assert.Nil(t, a.Amount)
	require.Len(t, f.notifier.single, 1)

	events, err := f.store.Outbox().ListByStatus(ctx, model.OutboxStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.owner, &model.AppointmentInput{Duration: -1, Amount: amount(-5)})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	require.Equal(t, apperrors.ErrValidation, appErr.Code)

	fields := map[string]string{}
	for _, fe := range appErr.Fields {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "patient_id is required", fields["patient_id"])
	assert.Equal(t, "date is required", fields["date"])
	assert.Equal(t, "time is required", fields["time"])
	assert.Equal(t, "duration must be greater than 0", fields["duration"])
	assert.Equal(t, "amount cannot be negative", fields["amount"])

	_, err = f.svc.Create(context.Background(), f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-02-30", Time: "25:00",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestAppointmentAmountMustFitColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-20", Time: "09:00", Amount: amount(1e9),
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-20", Time: "09:00", Amount: amount(80.125),
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = f.svc.CreateRecurring(ctx, f.owner, &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-20", Time: "09:00",
		FrequencyDays: 7, Count: 2, Amount: amount(123456789),
	})
	assert.True(t, apperrors.IsValidation(err))

	a, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-20", Time: "09:00", Amount: amount(80.5),
	})
	require.NoError(t, err)
	assert.Equal(t, 80.5, *a.Amount)
}

func TestCreateAppointmentSlotConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, f.patient, "2024-05-20", "09:00")

	other := f.addPatient(t, "Rui Barros")
	_, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{PatientID: other.String(), Date: "2024-05-20", Time: "09:00"})
	require.True(t, apperrors.IsConflict(err))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, repository.MsgSlotTaken, appErr.Message)

	_, err = f.svc.Cancel(ctx, f.owner, first.ID)
	require.NoError(t, err)
	f.create(t, other, "2024-05-20", "09:00")

	// another owner's calendar is independent
	_, err = f.svc.Create(ctx, uuid.New(), &model.AppointmentInput{PatientID: f.patient.String(), Date: "2024-05-21", Time: "09:00"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, f.patient, "2024-05-20", "09:00")
	done, err := f.svc.Complete(ctx, f.owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)

	_, err = f.svc.Complete(ctx, f.owner, a.ID)
	assert.True(t, apperrors.IsConflict(err))
	_, err = f.svc.Cancel(ctx, f.owner, a.ID)
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.svc.Update(ctx, f.owner, a.ID, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-20", Time: "09:00", Status: model.AppointmentStatusScheduled,
	})
	assert.True(t, apperrors.IsConflict(err), "completed appointments cannot go back to scheduled")

	_, err = f.svc.Complete(ctx, uuid.New(), a.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, f.patient, "2024-05-20", "09:00")
	f.create(t, f.patient, "2024-05-20", "11:00")

	updated, err := f.svc.Update(ctx, f.owner, a.ID, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-21", Time: "10:30", Duration: 60, Amount: amount(150), Notes: "moved",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-21", updated.Date.String())
	assert.Equal(t, "10:30", updated.Time)
	assert.Equal(t, 60, updated.Duration)
	require.NotNil(t, updated.Amount)
	assert.Equal(t, 150.0, *updated.Amount)
	assert.Equal(t, model.AppointmentStatusScheduled, updated.Status)

	_, err = f.svc.Update(ctx, f.owner, a.ID, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-20", Time: "11:00",
	})
	assert.True(t, apperrors.IsConflict(err))

	cancelled, err := f.svc.Update(ctx, f.owner, a.ID, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-21", Time: "10:30", Status: model.AppointmentStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	_, err = f.svc.Update(ctx, uuid.New(), a.ID, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-21", Time: "10:30",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateRecurring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateRecurring(ctx, f.owner, &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-06", Time: "08:00",
		FrequencyDays: 15, Count: 3, Notes: "weekly", Amount: amount(90),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.CreatedCount)
	assert.Equal(t, 3, result.TotalCount)
	assert.Empty(t, result.Failures)

	var dates, notes []string
	for _, a := range result.Created {
		dates = append(dates, a.Date.String())
		notes = append(notes, a.Notes)
		assert.Equal(t, 90.0, *a.Amount)
	}
	assert.Equal(t, []string{"2024-05-06", "2024-05-21", "2024-06-05"}, dates)
	assert.Equal(t, []string{"weekly (series 1/3)", "weekly (series 2/3)", "weekly (series 3/3)"}, notes)
	require.Len(t, f.notifier.series, 1)
	assert.Len(t, f.notifier.series[0], 3)
}

func TestCreateRecurringPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.addPatient(t, "Other Person"), "2024-05-20", "08:00")

	result, err := f.svc.CreateRecurring(ctx, f.owner, &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-06", Time: "08:00", FrequencyDays: 7, Count: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.CreatedCount)
	assert.Equal(t, 5, result.TotalCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 3, result.Failures[0].Occurrence)
	assert.Equal(t, "2024-05-20", result.Failures[0].Date)
	assert.Equal(t, repository.MsgSlotTaken, result.Failures[0].Error)
	assert.Equal(t, "(series 5/5)", result.Created[3].Notes)

	list, err := f.svc.List(ctx, &model.AppointmentFilters{OwnerID: f.owner, PatientID: f.patient})
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestCreateRecurringAllFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SetFault(func(op string) error {
		if op == "appointments.Create" {
			return errors.New("disk full")
		}
		return nil
	})

	result, err := f.svc.CreateRecurring(ctx, f.owner, &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-06", Time: "08:00", FrequencyDays: 30, Count: 2,
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.CreatedCount)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, occurrenceFailed, result.Failures[0].Error)
	assert.Empty(t, f.notifier.series)

	f.store.SetFault(nil)
	list, err := f.svc.List(ctx, &model.AppointmentFilters{OwnerID: f.owner})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRecurringValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRecurring(ctx, f.owner, &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-06", Time: "08:00", FrequencyDays: 10, Count: 21,
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	require.Len(t, appErr.Fields, 2)
	assert.Equal(t, "frequency_days must be one of 7, 15, 30", appErr.Fields[0].Message)
	assert.Equal(t, "count must be between 2 and 20", appErr.Fields[1].Message)

	_, err = f.svc.CreateRecurring(ctx, uuid.New(), &model.RecurringInput{
		PatientID: f.patient.String(), StartDate: "2024-05-06", Time: "08:00", FrequencyDays: 7, Count: 2,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, f.patient, "2024-05-14", "09:00")
	f.create(t, f.patient, "2024-05-16", "09:00")
	f.create(t, f.patient, "2024-05-15", "17:00")
	f.create(t, f.patient, "2024-05-15", "08:00")

	upcoming, err := f.svc.Upcoming(ctx, f.owner, 0)
	require.NoError(t, err)
	require.Len(t, upcoming, 3)
	assert.Equal(t, "08:00", upcoming[0].Time)
	assert.Equal(t, "17:00", upcoming[1].Time)
	assert.Equal(t, "2024-05-16", upcoming[2].Date.String())
	assert.Equal(t, "Joana Prado", upcoming[0].PatientName)

	limited, err := f.svc.Upcoming(ctx, f.owner, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := f.svc.Upcoming(ctx, uuid.New(), 500)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	priced := f.addPatient(t, "Priced Patient")
	require.NoError(t, f.store.Pricing().Upsert(ctx, &model.Pricing{OwnerID: f.owner, PatientID: priced, SessionPrice: 120}))

	complete := func(a *model.Appointment) {
		_, err := f.svc.Complete(ctx, f.owner, a.ID)
		require.NoError(t, err)
	}

	f.create(t, f.patient, "2024-05-15", "09:00")
	cancelled := f.create(t, f.patient, "2024-05-15", "10:00")
	_, err := f.svc.Cancel(ctx, f.owner, cancelled.ID)
	require.NoError(t, err)

	monday, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-05-13", Time: "09:00", Amount: amount(80),
	})
	require.NoError(t, err)
	complete(monday)
	complete(f.create(t, priced, "2024-05-02", "09:00"))
	complete(f.create(t, f.patient, "2024-05-03", "09:00"))

	lastMonth, err := f.svc.Create(ctx, f.owner, &model.AppointmentInput{
		PatientID: f.patient.String(), Date: "2024-04-30", Time: "09:00", Amount: amount(500),
	})
	require.NoError(t, err)
	complete(lastMonth)

	stats, err := f.svc.Stats(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 4, stats.Completed)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 2, stats.ThisWeek)
	assert.InDelta(t, 300.0, stats.MonthRevenue, 0.001)

	empty, err := f.svc.Stats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, f.patient, "2024-05-20", "09:00")

	assert.True(t, apperrors.IsNotFound(f.svc.Delete(ctx, uuid.New(), a.ID)))
	require.NoError(t, f.svc.Delete(ctx, f.owner, a.ID))
	_, err := f.svc.Get(ctx, f.owner, a.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.List(context.Background(), &model.AppointmentFilters{OwnerID: f.owner, Status: "pending"})
	assert.True(t, apperrors.IsValidation(err))
}
