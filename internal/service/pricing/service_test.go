package pricing

import (
	"context"
	"errors"
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
		OwnerID: owner, Name: "Maria Silva", Email: uuid.NewString() + "@example.com", Phone: "1",
		BirthDate: model.NewDate(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)), Status: model.PatientStatusActive,
	}
	require.NoError(t, store.Patients().Create(context.Background(), p))
	return p.ID
}

func price(v float64) *float64 { return &v }

func TestGetPriceDefaultsWhenAbsent(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	got, err := svc.GetPrice(context.Background(), owner, patientID)
	require.NoError(t, err)
	assert.Equal(t, 100.00, got)

	pricing, err := svc.Get(context.Background(), owner, patientID)
	require.NoError(t, err)
	assert.True(t, pricing.IsDefault)
	assert.Nil(t, pricing.ID)
	assert.Equal(t, 100.00, pricing.SessionPrice)
}

func TestGetPriceReturnsStoreFailure(t *testing.T) {
	store := memory.NewStore(memory.WithFault(func(op string) error {
		if op == "pricing.GetByPatient" {
			return errors.New("timeout")
		}
		return nil
	}))
	svc := NewService(store, 120)
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	_, err := svc.GetPrice(context.Background(), owner, patientID)
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "timeout")

	_, err = svc.Get(context.Background(), owner, patientID)
	assert.Error(t, err)
}

func TestUpsertInsertsThenOverwrites(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	first, err := svc.Upsert(ctx, owner, patientID, &model.PricingInput{SessionPrice: price(150), Notes: "social"})
	require.NoError(t, err)
	require.NotNil(t, first.ID)

	second, err := svc.Upsert(ctx, owner, patientID, &model.PricingInput{SessionPrice: price(180)})
	require.NoError(t, err)
	assert.Equal(t, *first.ID, *second.ID, "upsert keeps one row per patient")
	assert.Equal(t, "", second.Notes)

	got, err := svc.GetPrice(ctx, owner, patientID)
	require.NoError(t, err)
	assert.Equal(t, 180.0, got)
}

func TestUpsertConcurrentKeepsSingleRow(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	ctx := context.Background()
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	var wg sync.WaitGroup
	ids := make(chan uuid.UUID, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := svc.Upsert(ctx, owner, patientID, &model.PricingInput{SessionPrice: price(float64(100 + i))})
			if assert.NoError(t, err) {
				ids <- *p.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestUpsertValidation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	_, err := svc.Upsert(context.Background(), owner, patientID, &model.PricingInput{SessionPrice: price(-1)})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Upsert(context.Background(), owner, patientID, &model.PricingInput{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpsertRejectsPricesTheColumnCannotHold(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	owner := uuid.New()
	patientID := seedPatient(t, store, owner)

	for _, v := range []float64{1e8, 1e12, 99.999} {
		_, err := svc.Upsert(context.Background(), owner, patientID, &model.PricingInput{SessionPrice: price(v)})
		assert.True(t, apperrors.IsValidation(err), "price %v", v)
	}

	p, err := svc.Upsert(context.Background(), owner, patientID, &model.PricingInput{SessionPrice: price(99999999.99)})
	require.NoError(t, err)
	assert.Equal(t, 99999999.99, p.SessionPrice)
}

func TestPricingTenantIsolation(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, model.DefaultSessionPrice)
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()
	patientID := seedPatient(t, store, owner)

	p, err := svc.Upsert(ctx, owner, patientID, &model.PricingInput{SessionPrice: price(200)})
	require.NoError(t, err)

	_, err = svc.Upsert(ctx, intruder, patientID, &model.PricingInput{SessionPrice: price(1)})
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Get(ctx, intruder, patientID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, intruder, *p.ID)))

	require.NoError(t, svc.Delete(ctx, owner, *p.ID))
	got, err := svc.GetPrice(ctx, owner, patientID)
	require.NoError(t, err)
	assert.Equal(t, 100.00, got)
}
