package anamnesis

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
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// Upsert writes exactly the submitted fields. Nothing is read back from a
// stored row before writing, so a field omitted by the caller is cleared.
func (s *Service) Upsert(ctx context.Context, ownerID, patientID uuid.UUID, input *model.AnamnesisInput) (*model.Anamnesis, error) {
	if input == nil {
		return nil, apperrors.NewBadRequest("anamnesis data is required", nil)
	}
	record := &model.Anamnesis{
		OwnerID:            ownerID,
		PatientID:          patientID,
		Complaint:          validator.Sanitize(input.Complaint),
		HistoryIllness:     validator.Sanitize(input.HistoryIllness),
		PreviousTreatments: validator.Sanitize(input.PreviousTreatments),
		Medications:        validator.Sanitize(input.Medications),
		FamilyHistory:      validator.Sanitize(input.FamilyHistory),
		PersonalHistory:    validator.Sanitize(input.PersonalHistory),
		SocialHistory:      validator.Sanitize(input.SocialHistory),
		Observations:       validator.Sanitize(input.Observations),
	}

	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Patients().Get(ctx, ownerID, patientID); err != nil {
			return err
		}
		return tx.Anamnesis().Upsert(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save anamnesis: %w", err)
	}
	return record, nil
}

// Get returns the stored anamnesis or an empty record with a nil ID.
func (s *Service) Get(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Anamnesis, error) {
	if _, err := s.store.Patients().Get(ctx, ownerID, patientID); err != nil {
		return nil, fmt.Errorf("failed to get anamnesis: %w", err)
	}
	record, err := s.store.Anamnesis().GetByPatient(ctx, ownerID, patientID)
	if apperrors.IsNotFound(err) {
		return model.EmptyAnamnesis(ownerID, patientID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anamnesis: %w", err)
	}
	return record, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.store.Anamnesis().Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("failed to delete anamnesis: %w", err)
	}
	return nil
}
