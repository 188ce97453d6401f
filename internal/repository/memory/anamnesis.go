package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type anamnesisRepository struct {
	conn
}

func (r *anamnesisRepository) Upsert(ctx context.Context, anamnesis *model.Anamnesis) error {
	return r.run(ctx, "anamnesis.Upsert", func(st *state) error {
		if _, ok := ownedPatient(st, anamnesis.OwnerID, anamnesis.PatientID); !ok {
			return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
		}
		now := time.Now().UTC()
		stored := *anamnesis
		stored.UpdatedAt = &now
		if existing, ok := findAnamnesis(st, anamnesis.OwnerID, anamnesis.PatientID); ok {
			stored.ID = existing.ID
			stored.CreatedAt = existing.CreatedAt
		} else {
			id := uuid.New()
			stored.ID = &id
			stored.CreatedAt = &now
		}
		st.anamnesis[*stored.ID] = stored
		*anamnesis = stored
		return nil
	})
}

func (r *anamnesisRepository) GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Anamnesis, error) {
	var out model.Anamnesis
	err := r.run(ctx, "anamnesis.GetByPatient", func(st *state) error {
		a, ok := findAnamnesis(st, ownerID, patientID)
		if !ok {
			return apperrors.NewNotFound("anamnesis", nil)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *anamnesisRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "anamnesis.Delete", func(st *state) error {
		a, ok := st.anamnesis[id]
		if !ok || a.OwnerID != ownerID {
			return apperrors.NewNotFound("anamnesis", nil)
		}
		delete(st.anamnesis, id)
		return nil
	})
}

func (r *anamnesisRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "anamnesis.DeleteByPatient", func(st *state) error {
		for id, a := range st.anamnesis {
			if a.OwnerID == ownerID && a.PatientID == patientID {
				delete(st.anamnesis, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func findAnamnesis(st *state, ownerID, patientID uuid.UUID) (model.Anamnesis, bool) {
	for _, a := range st.anamnesis {
		if a.OwnerID == ownerID && a.PatientID == patientID {
			return a, true
		}
	}
	return model.Anamnesis{}, false
}
