package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type patientRepository struct {
	conn
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	return r.run(ctx, "patients.Create", func(st *state) error {
		if emailTaken(st, patient.OwnerID, patient.Email, nil) {
			return apperrors.NewConflict(repository.MsgDuplicateEmail, nil)
		}
		if patient.ID == uuid.Nil {
			patient.ID = uuid.New()
		}
		now := time.Now().UTC()
		patient.CreatedAt = now
		patient.UpdatedAt = now
		st.patients[patient.ID] = *patient
		return nil
	})
}

func (r *patientRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error) {
	var out model.Patient
	err := r.run(ctx, "patients.Get", func(st *state) error {
		p, ok := ownedPatient(st, ownerID, id)
		if !ok {
			return apperrors.NewNotFound("patient", nil)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *patientRepository) Lock(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "patients.Lock", func(st *state) error {
		if _, ok := ownedPatient(st, ownerID, id); !ok {
			return apperrors.NewNotFound("patient", nil)
		}
		return nil
	})
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	return r.run(ctx, "patients.Update", func(st *state) error {
		existing, ok := ownedPatient(st, patient.OwnerID, patient.ID)
		if !ok {
			return apperrors.NewNotFound("patient", nil)
		}
		if emailTaken(st, patient.OwnerID, patient.Email, &patient.ID) {
			return apperrors.NewConflict(repository.MsgDuplicateEmail, nil)
		}
		existing.Name = patient.Name
		existing.Email = patient.Email
		existing.Phone = patient.Phone
		existing.BirthDate = patient.BirthDate
		existing.Notes = patient.Notes
		existing.UpdatedAt = time.Now().UTC()
		st.patients[existing.ID] = existing
		*patient = existing
		return nil
	})
}

func (r *patientRepository) SetStatus(ctx context.Context, ownerID, id uuid.UUID, status model.PatientStatus) error {
	return r.run(ctx, "patients.SetStatus", func(st *state) error {
		p, ok := ownedPatient(st, ownerID, id)
		if !ok {
			return apperrors.NewNotFound("patient", nil)
		}
		p.Status = status
		p.UpdatedAt = time.Now().UTC()
		st.patients[id] = p
		return nil
	})
}

// Delete refuses while dependents still reference the patient, like the
// foreign keys of the SQL schema.
func (r *patientRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "patients.Delete", func(st *state) error {
		if _, ok := ownedPatient(st, ownerID, id); !ok {
			return apperrors.NewNotFound("patient", nil)
		}
		if patientReferenced(st, id) {
			return apperrors.NewConflict("patient still has dependent records", nil)
		}
		delete(st.patients, id)
		return nil
	})
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	patients := []*model.Patient{}
	err := r.run(ctx, "patients.List", func(st *state) error {
		search := strings.ToLower(filters.Search)
		for _, p := range st.patients {
			if p.OwnerID != filters.OwnerID {
				continue
			}
			if filters.Status != "" && p.Status != filters.Status {
				continue
			}
			if search != "" &&
				!strings.Contains(strings.ToLower(p.Name), search) &&
				!strings.Contains(strings.ToLower(p.Email), search) &&
				!strings.Contains(strings.ToLower(p.Phone), search) {
				continue
			}
			p := p
			patients = append(patients, &p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].Name < patients[j].Name })
	return patients, nil
}

func (r *patientRepository) EmailExists(ctx context.Context, ownerID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.run(ctx, "patients.EmailExists", func(st *state) error {
		exists = emailTaken(st, ownerID, email, excludeID)
		return nil
	})
	return exists, err
}

func ownedPatient(st *state, ownerID, id uuid.UUID) (model.Patient, bool) {
	p, ok := st.patients[id]
	if !ok || p.OwnerID != ownerID {
		return model.Patient{}, false
	}
	return p, true
}

func emailTaken(st *state, ownerID uuid.UUID, email string, excludeID *uuid.UUID) bool {
	for _, p := range st.patients {
		if p.OwnerID != ownerID || !strings.EqualFold(p.Email, email) {
			continue
		}
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		return true
	}
	return false
}

func patientReferenced(st *state, id uuid.UUID) bool {
	for _, a := range st.appointments {
		if a.PatientID == id {
			return true
		}
	}
	for _, s := range st.sessions {
		if s.PatientID == id {
			return true
		}
	}
	for _, a := range st.anamnesis {
		if a.PatientID == id {
			return true
		}
	}
	for _, p := range st.pricing {
		if p.PatientID == id {
			return true
		}
	}
	return false
}
