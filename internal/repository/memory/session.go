package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

type sessionRepository struct {
	conn
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.run(ctx, "sessions.Create", func(st *state) error {
		if _, ok := ownedPatient(st, session.OwnerID, session.PatientID); !ok {
			return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
		}
		if session.AppointmentID != nil {
			if _, ok := st.appointments[*session.AppointmentID]; !ok {
				return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
			}
		}
		for _, s := range st.sessions {
			if s.OwnerID == session.OwnerID && s.PatientID == session.PatientID &&
				s.SessionNumber == session.SessionNumber {
				return apperrors.NewConflict(repository.MsgSessionNumber, nil)
			}
		}
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		now := time.Now().UTC()
		session.CreatedAt = now
		session.UpdatedAt = now
		st.sessions[session.ID] = *session
		return nil
	})
}

func (r *sessionRepository) NextSessionNumber(ctx context.Context, ownerID, patientID uuid.UUID) (int, error) {
	next := 1
	err := r.run(ctx, "sessions.NextSessionNumber", func(st *state) error {
		for _, s := range st.sessions {
			if s.OwnerID == ownerID && s.PatientID == patientID && s.SessionNumber >= next {
				next = s.SessionNumber + 1
			}
		}
		return nil
	})
	return next, err
}

func (r *sessionRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	return r.get(ctx, "sessions.Get", ownerID, id)
}

func (r *sessionRepository) GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	return r.get(ctx, "sessions.GetForUpdate", ownerID, id)
}

func (r *sessionRepository) get(ctx context.Context, op string, ownerID, id uuid.UUID) (*model.Session, error) {
	var out model.Session
	err := r.run(ctx, op, func(st *state) error {
		s, ok := st.sessions[id]
		if !ok || s.OwnerID != ownerID {
			return apperrors.NewNotFound("session", nil)
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepository) Update(ctx context.Context, session *model.Session) error {
	return r.run(ctx, "sessions.Update", func(st *state) error {
		existing, ok := st.sessions[session.ID]
		if !ok || existing.OwnerID != session.OwnerID {
			return apperrors.NewNotFound("session", nil)
		}
		if session.AppointmentID != nil {
			if _, ok := st.appointments[*session.AppointmentID]; !ok {
				return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
			}
		}
		updated := *session
		updated.PatientID = existing.PatientID
		updated.SessionNumber = existing.SessionNumber
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		st.sessions[updated.ID] = updated
		*session = updated
		return nil
	})
}

func (r *sessionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "sessions.Delete", func(st *state) error {
		s, ok := st.sessions[id]
		if !ok || s.OwnerID != ownerID {
			return apperrors.NewNotFound("session", nil)
		}
		delete(st.sessions, id)
		return nil
	})
}

func (r *sessionRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "sessions.DeleteByPatient", func(st *state) error {
		for id, s := range st.sessions {
			if s.OwnerID == ownerID && s.PatientID == patientID {
				delete(st.sessions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *sessionRepository) ListByPatient(ctx context.Context, ownerID, patientID uuid.UUID) ([]*model.Session, error) {
	sessions := []*model.Session{}
	err := r.run(ctx, "sessions.ListByPatient", func(st *state) error {
		for _, s := range st.sessions {
			if s.OwnerID == ownerID && s.PatientID == patientID {
				s := s
				sessions = append(sessions, &s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.SessionDate.Equal(b.SessionDate.Time) {
			return a.SessionDate.After(b.SessionDate.Time)
		}
		return a.SessionNumber > b.SessionNumber
	})
	return sessions, nil
}
