package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const sessionColumns = `id, owner_id, patient_id, appointment_id, session_number, session_date,
	session_duration, patient_mood, session_notes, observations, homework, next_session_goals,
	created_at, updated_at`

type sessionRepository struct {
	conn sqlx.ExtContext
}

func NewSessionRepository(conn sqlx.ExtContext) repository.SessionRepository {
	return &sessionRepository{conn: conn}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO consultation_history (
			id, owner_id, patient_id, appointment_id, session_number, session_date,
			session_duration, patient_mood, session_notes, observations, homework,
			next_session_goals, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.PatientID,
		session.AppointmentID,
		session.SessionNumber,
		session.SessionDate,
		session.SessionDuration,
		session.PatientMood,
		session.SessionNotes,
		session.Observations,
		session.Homework,
		session.NextSessionGoals,
		session.CreatedAt,
		session.UpdatedAt,
	)
	return wrapError(err, "session", "create session")
}

func (r *sessionRepository) NextSessionNumber(ctx context.Context, ownerID, patientID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(MAX(session_number), 0) + 1
		FROM consultation_history
		WHERE owner_id = $1 AND patient_id = $2
	`
	var next int
	if err := sqlx.GetContext(ctx, r.conn, &next, query, ownerID, patientID); err != nil {
		return 0, wrapError(err, "session", "compute next session number")
	}
	return next, nil
}

func (r *sessionRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	return r.get(ctx, ownerID, id, "")
}

func (r *sessionRepository) GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	return r.get(ctx, ownerID, id, " FOR UPDATE")
}

func (r *sessionRepository) get(ctx context.Context, ownerID, id uuid.UUID, lock string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM consultation_history WHERE id = $1 AND owner_id = $2` + lock
	var session model.Session
	if err := sqlx.GetContext(ctx, r.conn, &session, query, id, ownerID); err != nil {
		return nil, wrapError(err, "session", "get session")
	}
	return &session, nil
}

// Update never touches session_number.
func (r *sessionRepository) Update(ctx context.Context, session *model.Session) error {
	query := `
		UPDATE consultation_history
		SET appointment_id = $1, session_date = $2, session_duration = $3, patient_mood = $4,
			session_notes = $5, observations = $6, homework = $7, next_session_goals = $8,
			updated_at = $9
		WHERE id = $10 AND owner_id = $11
	`
	session.UpdatedAt = time.Now().UTC()
	result, err := r.conn.ExecContext(ctx, query,
		session.AppointmentID, session.SessionDate, session.SessionDuration, session.PatientMood,
		session.SessionNotes, session.Observations, session.Homework, session.NextSessionGoals,
		session.UpdatedAt, session.ID, session.OwnerID)
	if err != nil {
		return wrapError(err, "session", "update session")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "session")
}

func (r *sessionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM consultation_history WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return wrapError(err, "session", "delete session")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "session")
}

func (r *sessionRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM consultation_history WHERE patient_id = $1 AND owner_id = $2`, patientID, ownerID)
	if err != nil {
		return 0, wrapError(err, "session", "delete patient sessions")
	}
	return result.RowsAffected()
}

func (r *sessionRepository) ListByPatient(ctx context.Context, ownerID, patientID uuid.UUID) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM consultation_history
		WHERE owner_id = $1 AND patient_id = $2
		ORDER BY session_date DESC, session_number DESC
	`
	sessions := []*model.Session{}
	if err := sqlx.SelectContext(ctx, r.conn, &sessions, query, ownerID, patientID); err != nil {
		return nil, wrapError(err, "session", "list sessions")
	}
	return sessions, nil
}
