package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

func seedPatient(t *testing.T, store *memory.Store, owner uuid.UUID) uuid.UUID {
	t.Helper()
	p := &model.Patient{
		OwnerID: owner, Name: "Ana Lima", Email: uuid.NewString() + "@example.com", Phone: "1",
		BirthDate: model.NewDate(time.Date(1992, 3, 3, 0, 0, 0, 0, time.UTC)), Status: model.PatientStatusActive,
	}
	require.NoError(t, store.Patients().Create(context.Background(), p))
	return p.ID
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateNumbersSequentially(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)
	otherPatient := seedPatient(t, store, owner)

	for i := 1; i <= 5; i++ {
		s, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-0" + string(rune('0'+i))})
		require.NoError(t, err)
		assert.Equal(t, i, s.SessionNumber)
	}

	s, err := svc.Create(ctx, owner, otherPatient, &model.SessionInput{SessionDate: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.SessionNumber, "numbering is per patient")
}

func TestCreateConcurrentNeverDuplicates(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	const n = 20
	var wg sync.WaitGroup
	numbers := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-01"})
			if assert.NoError(t, err) {
				numbers <- s.SessionNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	var got []int
	for num := range numbers {
		got = append(got, num)
	}
	sort.Ints(got)
	require.Len(t, got, n)
	for i, num := range got {
		assert.Equal(t, i+1, num)
	}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, 45)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	s, err := svc.Create(ctx, owner, patientID, &model.SessionInput{
		SessionDate:  "2024-05-10T22:30:00-03:00",
		SessionNotes: "<script>x</script>talked about work",
	})
	require.NoError(t, err)
	assert.Equal(t, 45, s.SessionDuration)
	assert.Equal(t, model.MoodNeutral, s.PatientMood)
	assert.Equal(t, "2024-05-10", s.SessionDate.String())
	assert.Equal(t, "xtalked about work", s.SessionNotes)

	_, err = svc.Create(ctx, owner, patientID, &model.SessionInput{
		SessionDate:     "yesterday",
		SessionDuration: -5,
		PatientMood:     "ecstatic",
		AppointmentID:   "nope",
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Len(t, appErr.Fields, 4)

	_, err = svc.Create(ctx, uuid.New(), patientID, &model.SessionInput{SessionDate: "2024-05-10"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateChecksAppointmentPatient(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)
	otherPatient := seedPatient(t, store, owner)

	appt := &model.Appointment{
		OwnerID: owner, PatientID: otherPatient, Date: model.NewDate(time.Now()), Time: "09:00",
		Duration: 50, Status: model.AppointmentStatusScheduled,
	}
	require.NoError(t, store.Appointments().Create(ctx, appt))

	_, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-10", AppointmentID: appt.ID.String()})
	assert.True(t, apperrors.IsValidation(err))

	s, err := svc.Create(ctx, owner, otherPatient, &model.SessionInput{SessionDate: "2024-05-10", AppointmentID: appt.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, s.AppointmentID)
	assert.Equal(t, appt.ID, *s.AppointmentID)
}

func TestCreateWritesOutboxEvent(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	_, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-10"})
	require.NoError(t, err)

	events, err := store.Outbox().ListByStatus(ctx, model.OutboxStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSessionCreated, events[0].EventType)
	assert.Contains(t, string(events[0].Payload), `"session_number":1`)
}

func TestListByPatientOrderAndStats(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	empty, err := svc.ListByPatient(ctx, owner, patientID)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Stats.TotalSessions)
	assert.Nil(t, empty.Stats.LastSession)
	assert.Equal(t, 50, empty.Stats.AvgDuration)

	inputs := []model.SessionInput{
		{SessionDate: "2024-05-01", SessionDuration: 50},
		{SessionDate: "2024-05-15", SessionDuration: 45},
		{SessionDate: "2024-05-15", SessionDuration: 60},
		{SessionDate: "2024-05-08", SessionDuration: 40},
	}
	for i := range inputs {
		_, err := svc.Create(ctx, owner, patientID, &inputs[i])
		require.NoError(t, err)
	}

	history, err := svc.ListByPatient(ctx, owner, patientID)
	require.NoError(t, err)
	require.Len(t, history.Sessions, 4)

	var order []int
	for _, s := range history.Sessions {
		order = append(order, s.SessionNumber)
	}
	assert.Equal(t, []int{3, 2, 4, 1}, order)
	assert.Equal(t, 4, history.Stats.TotalSessions)
	require.NotNil(t, history.Stats.LastSession)
	assert.Equal(t, "2024-05-15", history.Stats.LastSession.String())
	assert.Equal(t, 49, history.Stats.AvgDuration)
}

func TestUpdateIsPartial(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	created, err := svc.Create(ctx, owner, patientID, &model.SessionInput{
		SessionDate: "2024-05-01", PatientMood: "poor", Homework: "journal",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, created.ID, &model.SessionUpdate{
		SessionDate:     strPtr("2024-05-02 18:45:00"),
		SessionDuration: intPtr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", updated.SessionDate.String())
	assert.Equal(t, 30, updated.SessionDuration)
	assert.Equal(t, model.MoodPoor, updated.PatientMood)
	assert.Equal(t, "journal", updated.Homework)
	assert.Equal(t, 1, updated.SessionNumber)

	_, err = svc.Update(ctx, owner, created.ID, &model.SessionUpdate{PatientMood: strPtr("furious")})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Update(ctx, uuid.New(), created.ID, &model.SessionUpdate{Homework: strPtr("x")})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteLeavesGaps(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionDuration)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		s, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-01"})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, uuid.New(), ids[1])))
	require.NoError(t, svc.Delete(ctx, owner, ids[1]))

	next, err := svc.Create(ctx, owner, patientID, &model.SessionInput{SessionDate: "2024-05-02"})
	require.NoError(t, err)
	assert.Equal(t, 4, next.SessionNumber)

	history, err := svc.ListByPatient(ctx, owner, patientID)
	require.NoError(t, err)
	var numbers []int
	for _, s := range history.Sessions {
		numbers = append(numbers, s.SessionNumber)
	}
	assert.ElementsMatch(t, []int{1, 3, 4}, numbers)
}
