package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const anamnesisColumns = `id, owner_id, patient_id, complaint, history_illness, previous_treatments,
	medications, family_history, personal_history, social_history, observations, created_at, updated_at`

type anamnesisRepository struct {
	conn sqlx.ExtContext
}

func NewAnamnesisRepository(conn sqlx.ExtContext) repository.AnamnesisRepository {
	return &anamnesisRepository{conn: conn}
}

// Upsert writes every clinical field from anamnesis itself; on conflict the
// stored row takes the incoming values, so the caller's data always wins.
func (r *anamnesisRepository) Upsert(ctx context.Context, anamnesis *model.Anamnesis) error {
	query := `
		INSERT INTO patient_anamnesis (
			id, owner_id, patient_id, complaint, history_illness, previous_treatments,
			medications, family_history, personal_history, social_history, observations,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (owner_id, patient_id) DO UPDATE SET
			complaint = EXCLUDED.complaint,
			history_illness = EXCLUDED.history_illness,
			previous_treatments = EXCLUDED.previous_treatments,
			medications = EXCLUDED.medications,
			family_history = EXCLUDED.family_history,
			personal_history = EXCLUDED.personal_history,
			social_history = EXCLUDED.social_history,
			observations = EXCLUDED.observations,
			updated_at = NOW()
		RETURNING ` + anamnesisColumns

	var stored model.Anamnesis
	err := sqlx.GetContext(ctx, r.conn, &stored, query,
		uuid.New(),
		anamnesis.OwnerID,
		anamnesis.PatientID,
		anamnesis.Complaint,
		anamnesis.HistoryIllness,
		anamnesis.PreviousTreatments,
		anamnesis.Medications,
		anamnesis.FamilyHistory,
		anamnesis.PersonalHistory,
		anamnesis.SocialHistory,
		anamnesis.Observations,
	)
	if err != nil {
		return wrapError(err, "anamnesis", "upsert anamnesis")
	}
	*anamnesis = stored
	return nil
}

func (r *anamnesisRepository) GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Anamnesis, error) {
	query := `SELECT ` + anamnesisColumns + ` FROM patient_anamnesis WHERE owner_id = $1 AND patient_id = $2`
	var anamnesis model.Anamnesis
	if err := sqlx.GetContext(ctx, r.conn, &anamnesis, query, ownerID, patientID); err != nil {
		return nil, wrapError(err, "anamnesis", "get anamnesis")
	}
	return &anamnesis, nil
}

func (r *anamnesisRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM patient_anamnesis WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return wrapError(err, "anamnesis", "delete anamnesis")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "anamnesis")
}

func (r *anamnesisRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM patient_anamnesis WHERE patient_id = $1 AND owner_id = $2`, patientID, ownerID)
	if err != nil {
		return 0, wrapError(err, "anamnesis", "delete patient anamnesis")
	}
	return result.RowsAffected()
}
