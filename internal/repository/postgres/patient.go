package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

const patientColumns = `id, owner_id, name, email, phone, birth_date, notes, status, created_at, updated_at`

type patientRepository struct {
	conn sqlx.ExtContext
}

func NewPatientRepository(conn sqlx.ExtContext) repository.PatientRepository {
	return &patientRepository{conn: conn}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, owner_id, name, email, phone, birth_date, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx, query,
		patient.ID,
		patient.OwnerID,
		patient.Name,
		patient.Email,
		patient.Phone,
		patient.BirthDate,
		patient.Notes,
		patient.Status,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return wrapError(err, "patient", "create patient")
}

func (r *patientRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND owner_id = $2`
	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.conn, &patient, query, id, ownerID); err != nil {
		return nil, wrapError(err, "patient", "get patient")
	}
	return &patient, nil
}

// Lock holds the row until the surrounding transaction ends. NO KEY UPDATE
// still lets child rows reference the patient concurrently.
func (r *patientRepository) Lock(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `SELECT id FROM patients WHERE id = $1 AND owner_id = $2 FOR NO KEY UPDATE`
	var locked uuid.UUID
	return wrapError(sqlx.GetContext(ctx, r.conn, &locked, query, id, ownerID), "patient", "lock patient")
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, email = $2, phone = $3, birth_date = $4, notes = $5, updated_at = $6
		WHERE id = $7 AND owner_id = $8
	`
	patient.UpdatedAt = time.Now().UTC()
	result, err := r.conn.ExecContext(ctx, query,
		patient.Name, patient.Email, patient.Phone, patient.BirthDate, patient.Notes,
		patient.UpdatedAt, patient.ID, patient.OwnerID)
	if err != nil {
		return wrapError(err, "patient", "update patient")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "patient")
}

func (r *patientRepository) SetStatus(ctx context.Context, ownerID, id uuid.UUID, status model.PatientStatus) error {
	query := `UPDATE patients SET status = $1, updated_at = NOW() WHERE id = $2 AND owner_id = $3`
	result, err := r.conn.ExecContext(ctx, query, status, id, ownerID)
	if err != nil {
		return wrapError(err, "patient", "update patient status")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "patient")
}

func (r *patientRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM patients WHERE id = $1 AND owner_id = $2`
	result, err := r.conn.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return wrapError(err, "patient", "delete patient")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "patient")
}

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE owner_id = $1`
	args := []interface{}{filters.OwnerID}

	if filters.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(filters.Search)+"%")
		query += ` AND (name ILIKE $2 ESCAPE '\' OR email ILIKE $2 ESCAPE '\' OR phone ILIKE $2 ESCAPE '\')`
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND status = $` + itoa(len(args))
	}
	query += ` ORDER BY name ASC`

	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.conn, &patients, query, args...); err != nil {
		return nil, wrapError(err, "patient", "list patients")
	}
	return patients, nil
}

func (r *patientRepository) EmailExists(ctx context.Context, ownerID uuid.UUID, email string, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM patients
			WHERE owner_id = $1 AND lower(email) = lower($2)
			AND ($3::uuid IS NULL OR id <> $3)
		)
	`
	var exists bool
	if err := sqlx.GetContext(ctx, r.conn, &exists, query, ownerID, email, excludeID); err != nil {
		return false, wrapError(err, "patient", "check patient email")
	}
	return exists, nil
}
