package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const pricingColumns = `id, owner_id, patient_id, session_price::float8 AS session_price, notes, created_at, updated_at`

type pricingRepository struct {
	conn sqlx.ExtContext
}

func NewPricingRepository(conn sqlx.ExtContext) repository.PricingRepository {
	return &pricingRepository{conn: conn}
}

func (r *pricingRepository) Upsert(ctx context.Context, pricing *model.Pricing) error {
	query := `
		INSERT INTO patient_pricing (id, owner_id, patient_id, session_price, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (owner_id, patient_id) DO UPDATE SET
			session_price = EXCLUDED.session_price,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING ` + pricingColumns

	var stored model.Pricing
	err := sqlx.GetContext(ctx, r.conn, &stored, query,
		uuid.New(), pricing.OwnerID, pricing.PatientID, pricing.SessionPrice, pricing.Notes)
	if err != nil {
		return wrapError(err, "pricing", "upsert pricing")
	}
	*pricing = stored
	return nil
}

func (r *pricingRepository) GetByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (*model.Pricing, error) {
	query := `SELECT ` + pricingColumns + ` FROM patient_pricing WHERE owner_id = $1 AND patient_id = $2`
	var pricing model.Pricing
	if err := sqlx.GetContext(ctx, r.conn, &pricing, query, ownerID, patientID); err != nil {
		return nil, wrapError(err, "pricing", "get pricing")
	}
	return &pricing, nil
}

func (r *pricingRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM patient_pricing WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return wrapError(err, "pricing", "delete pricing")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "pricing")
}

func (r *pricingRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM patient_pricing WHERE patient_id = $1 AND owner_id = $2`, patientID, ownerID)
	if err != nil {
		return 0, wrapError(err, "pricing", "delete patient pricing")
	}
	return result.RowsAffected()
}
