package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
	"github.com/jwalitptl/practice-api/pkg/validator"
)

type Service struct {
	store        repository.Store
	defaultPrice float64
}

func NewService(store repository.Store, defaultPrice float64) *Service {
	return &Service{store: store, defaultPrice: defaultPrice}
}

// Upsert stores the patient's session price in a single conditional write.
func (s *Service) Upsert(ctx context.Context, ownerID, patientID uuid.UUID, input *model.PricingInput) (*model.Pricing, error) {
	v := validator.New()
	if input == nil || input.SessionPrice == nil {
		v.Add("session_price", "session_price is required")
	} else {
		v.Amount("session_price", *input.SessionPrice)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	pricing := &model.Pricing{
		OwnerID:      ownerID,
		PatientID:    patientID,
		SessionPrice: *input.SessionPrice,
		Notes:        validator.Sanitize(input.Notes),
	}
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Patients().Get(ctx, ownerID, patientID); err != nil {
			return err
		}
		return tx.Pricing().Upsert(ctx, pricing)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save pricing: %w", err)
	}
	return pricing, nil
}

// Get returns the stored pricing, or a record carrying the default price
// when the patient has none.
func (s *Service) Get(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error) {
	if _, err := s.store.Patients().Get(ctx, ownerID, patientID); err != nil {
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}
	return s.lookup(ctx, ownerID, patientID)
}

// GetPrice returns the patient's session price. A patient without a
// pricing row is charged the default price; store failures are returned.
func (s *Service) GetPrice(ctx context.Context, ownerID, patientID uuid.UUID) (float64, error) {
	pricing, err := s.lookup(ctx, ownerID, patientID)
	if err != nil {
		return 0, err
	}
	return pricing.SessionPrice, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.Pricing().Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete pricing: %w", err)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error) {
	pricing, err := s.store.Pricing().GetByPatient(ctx, ownerID, patientID)
	if apperrors.IsNotFound(err) {
		return s.defaultPricing(ownerID, patientID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing: %w", err)
	}
	return pricing, nil
}

func (s *Service) defaultPricing(ownerID, patientID uuid.UUID) *model.Pricing {
	return &model.Pricing{
		OwnerID:      ownerID,
		PatientID:    patientID,
		SessionPrice: s.defaultPrice,
		IsDefault:    true,
	}
}
