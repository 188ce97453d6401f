package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type appointmentRepository struct {
	conn      sqlx.ExtContext
	hasAmount bool
}

func NewAppointmentRepository(conn sqlx.ExtContext, hasAmount bool) repository.AppointmentRepository {
	return &appointmentRepository{conn: conn, hasAmount: hasAmount}
}

// columns selects an appointment row aliased as a. Without the amount
// column every row reads back with a nil amount.
func (r *appointmentRepository) columns() string {
	amount := `NULL::numeric AS amount`
	if r.hasAmount {
		amount = `a.amount`
	}
	return `a.id, a.owner_id, a.patient_id, a.date, to_char(a.time, 'HH24:MI') AS time,
		a.duration, ` + amount + `, a.notes, a.status, a.created_at, a.updated_at`
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	var err error
	if r.hasAmount {
		query := `
			INSERT INTO appointments (id, owner_id, patient_id, date, time, duration, amount, notes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::time, $6, $7, $8, $9, $10, $11)
		`
		_, err = r.conn.ExecContext(ctx, query,
			appointment.ID, appointment.OwnerID, appointment.PatientID, appointment.Date, appointment.Time,
			appointment.Duration, appointment.Amount, appointment.Notes, appointment.Status,
			appointment.CreatedAt, appointment.UpdatedAt)
	} else {
		query := `
			INSERT INTO appointments (id, owner_id, patient_id, date, time, duration, notes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::time, $6, $7, $8, $9, $10)
		`
		appointment.Amount = nil
		_, err = r.conn.ExecContext(ctx, query,
			appointment.ID, appointment.OwnerID, appointment.PatientID, appointment.Date, appointment.Time,
			appointment.Duration, appointment.Notes, appointment.Status,
			appointment.CreatedAt, appointment.UpdatedAt)
	}
	return wrapError(err, "appointment", "create appointment")
}

func (r *appointmentRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, ownerID, id, "")
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, ownerID, id, " FOR UPDATE")
}

func (r *appointmentRepository) get(ctx context.Context, ownerID, id uuid.UUID, lock string) (*model.Appointment, error) {
	query := `SELECT ` + r.columns() + ` FROM appointments a WHERE a.id = $1 AND a.owner_id = $2` + lock
	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.conn, &appointment, query, id, ownerID); err != nil {
		return nil, wrapError(err, "appointment", "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	appointment.UpdatedAt = time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if r.hasAmount {
		query = `
			UPDATE appointments
			SET patient_id = $1, date = $2, time = $3::time, duration = $4, notes = $5, status = $6,
				updated_at = $7, amount = $8
			WHERE id = $9 AND owner_id = $10
		`
		args = []interface{}{
			appointment.PatientID, appointment.Date, appointment.Time, appointment.Duration,
			appointment.Notes, appointment.Status, appointment.UpdatedAt, appointment.Amount,
			appointment.ID, appointment.OwnerID,
		}
	} else {
		query = `
			UPDATE appointments
			SET patient_id = $1, date = $2, time = $3::time, duration = $4, notes = $5, status = $6,
				updated_at = $7
			WHERE id = $8 AND owner_id = $9
		`
		appointment.Amount = nil
		args = []interface{}{
			appointment.PatientID, appointment.Date, appointment.Time, appointment.Duration,
			appointment.Notes, appointment.Status, appointment.UpdatedAt,
			appointment.ID, appointment.OwnerID,
		}
	}

	result, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(err, "appointment", "update appointment")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return wrapError(err, "appointment", "delete appointment")
	}
	rows, err := result.RowsAffected()
	return requireAffected(rows, err, "appointment")
}

func (r *appointmentRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM appointments WHERE patient_id = $1 AND owner_id = $2`, patientID, ownerID)
	if err != nil {
		return 0, wrapError(err, "appointment", "delete patient appointments")
	}
	return result.RowsAffected()
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + r.columns() + ` FROM appointments a WHERE a.owner_id = $1`
	args := []interface{}{filters.OwnerID}

	if filters.PatientID != uuid.Nil {
		args = append(args, filters.PatientID)
		query += ` AND a.patient_id = $` + itoa(len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += ` AND a.status = $` + itoa(len(args))
	}
	if !filters.StartDate.IsZero() {
		args = append(args, model.NewDate(filters.StartDate))
		query += ` AND a.date >= $` + itoa(len(args))
	}
	if !filters.EndDate.IsZero() {
		args = append(args, model.NewDate(filters.EndDate))
		query += ` AND a.date <= $` + itoa(len(args))
	}
	query += ` ORDER BY a.date ASC, a.time ASC`

	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.conn, &appointments, query, args...); err != nil {
		return nil, wrapError(err, "appointment", "list appointments")
	}
	return appointments, nil
}

// CheckConflict reports whether a non-cancelled appointment already holds
// the owner's slot at date and time.
func (r *appointmentRepository) CheckConflict(ctx context.Context, ownerID uuid.UUID, date model.Date, at string, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE owner_id = $1 AND date = $2 AND time = $3::time AND status <> 'cancelled'
			AND ($4::uuid IS NULL OR id <> $4)
		)
	`
	var exists bool
	if err := sqlx.GetContext(ctx, r.conn, &exists, query, ownerID, date, at, excludeID); err != nil {
		return false, wrapError(err, "appointment", "check appointment conflict")
	}
	return exists, nil
}

func (r *appointmentRepository) Upcoming(ctx context.Context, ownerID uuid.UUID, from model.Date, limit int) ([]*model.UpcomingAppointment, error) {
	query := `
		SELECT ` + r.columns() + `, p.name AS patient_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id AND p.owner_id = a.owner_id
		WHERE a.owner_id = $1 AND a.date >= $2
		ORDER BY a.date ASC, a.time ASC
		LIMIT $3
	`
	upcoming := []*model.UpcomingAppointment{}
	if err := sqlx.SelectContext(ctx, r.conn, &upcoming, query, ownerID, from, limit); err != nil {
		return nil, wrapError(err, "appointment", "list upcoming appointments")
	}
	return upcoming, nil
}

// Stats counts relative to now: today and the Monday-to-Sunday week exclude
// cancelled appointments; revenue sums completed appointments of the
// current month at their amount, else the patient's price, else defaultPrice.
func (r *appointmentRepository) Stats(ctx context.Context, ownerID uuid.UUID, now time.Time, defaultPrice float64) (*model.AppointmentStats, error) {
	p := model.StatsPeriodsAt(now)

	price := `COALESCE(pp.session_price, $7)`
	if r.hasAmount {
		price = `COALESCE(a.amount, pp.session_price, $7)`
	}
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE a.status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE a.date = $2 AND a.status <> 'cancelled') AS today,
			COUNT(*) FILTER (WHERE a.date BETWEEN $3 AND $4 AND a.status <> 'cancelled') AS this_week,
			COALESCE(SUM(` + price + `) FILTER (
				WHERE a.status = 'completed' AND a.date BETWEEN $5 AND $6
			), 0)::float8 AS month_revenue
		FROM appointments a
		LEFT JOIN patient_pricing pp ON pp.patient_id = a.patient_id AND pp.owner_id = a.owner_id
		WHERE a.owner_id = $1
	`
	var stats model.AppointmentStats
	err := sqlx.GetContext(ctx, r.conn, &stats, query,
		ownerID, p.Today, p.WeekStart, p.WeekEnd, p.MonthStart, p.MonthEnd, defaultPrice)
	if err != nil {
		return nil, wrapError(err, "appointment", "compute appointment stats")
	}
	return &stats, nil
}
