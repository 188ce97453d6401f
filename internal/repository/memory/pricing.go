package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type pricingRepository struct {
	conn
}

func (r *pricingRepository) Upsert(ctx context.Context, pricing *model.Pricing) error {
	return r.run(ctx, "pricing.Upsert", func(st *state) error {
		if _, ok := ownedPatient(st, pricing.OwnerID, pricing.PatientID); !ok {
			return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
		}
		now := time.Now().UTC()
		stored := *pricing
		stored.IsDefault = false
		stored.UpdatedAt = &now
		if existing, ok := findPricing(st, pricing.OwnerID, pricing.PatientID); ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
		} else {
			id := uuid.New()
			stored.ID = &id
			stored.CreatedAt = &now
		}
		st.pricing[*stored.ID] = stored
		*pricing = stored
		return nil
	})
}

func (r *pricingRepository) GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error) {
	var out model.Pricing
	err := r.run(ctx, "pricing.GetByPatient", func(st *state) error {
		p, ok := findPricing(st, ownerID, patientID)
		if !ok {
			return apperrors.NewNotFound("pricing", nil)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *pricingRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "pricing.Delete", func(st *state) error {
		p, ok := st.pricing[id]
		if !ok || p.OwnerID != ownerID {
			return apperrors.NewNotFound("pricing", nil)
		}
		delete(st.pricing, id)
		return nil
	})
}

func (r *pricingRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "pricing.DeleteByPatient", func(st *state) error {
		for id, p := range st.pricing {
			if p.OwnerID == ownerID && p.PatientID == patientID {
				delete(st.pricing, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func findPricing(st *state, ownerID, patientID uuid.UUID) (model.Pricing, bool) {
	for _, p := range st.pricing {
		if p.OwnerID == ownerID && p.PatientID == patientID {
			return p, true
		}
	}
	return model.Pricing{}, false
}
