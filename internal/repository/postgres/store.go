package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// Store is the PostgreSQL record store. Repositories returned directly from
// the Store run each statement on its own; those handed to WithTx share one
// transaction.
type Store struct {
	db        *sqlx.DB
	metrics   *metrics.Metrics
	hasAmount bool
}

// NewStore probes the schema once; whether appointments carry an amount
// column is fixed for the life of the store.
func NewStore(ctx context.Context, db *sqlx.DB, m *metrics.Metrics) (*Store, error) {
	hasAmount, err := columnExists(ctx, db, "appointments", "amount")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect appointments schema: %w", err)
	}
	if !hasAmount {
		log.Warn().Msg("appointments.amount column not found; appointment amounts are disabled")
	}
	return &Store{db: db, metrics: m, hasAmount: hasAmount}, nil
}

func columnExists(ctx context.Context, db sqlx.QueryerContext, table, column string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`
	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, query, table, column); err != nil {
		return false, err
	}
	return exists, nil
}

// GetDB returns the database instance
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{conn: s.db}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{conn: s.db, hasAmount: s.hasAmount}
}

func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepository{conn: s.db}
}

func (s *Store) Anamnesis() repository.AnamnesisRepository {
	return &anamnesisRepository{conn: s.db}
}

func (s *Store) Pricing() repository.PricingRepository {
	return &pricingRepository{conn: s.db}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{conn: s.db}
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.metrics.ObserveTx("begin_failed", time.Since(start))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			s.metrics.ObserveTx("rollback", time.Since(start))
			panic(p)
		}
	}()

	if err := fn(&txRepositories{tx: tx, hasAmount: s.hasAmount}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("failed to roll back transaction")
		}
		s.metrics.ObserveTx("rollback", time.Since(start))
		return err
	}

	if err := tx.Commit(); err != nil {
		s.metrics.ObserveTx("commit_failed", time.Since(start))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.metrics.ObserveTx("commit", time.Since(start))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type txRepositories struct {
	tx        *sqlx.Tx
	hasAmount bool
}

func (t *txRepositories) Patients() repository.PatientRepository {
	return &patientRepository{conn: t.tx}
}

func (t *txRepositories) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{conn: t.tx, hasAmount: t.hasAmount}
}

func (t *txRepositories) Sessions() repository.SessionRepository {
	return &sessionRepository{conn: t.tx}
}

func (t *txRepositories) Anamnesis() repository.AnamnesisRepository {
	return &anamnesisRepository{conn: t.tx}
}

func (t *txRepositories) Pricing() repository.PricingRepository {
	return &pricingRepository{conn: t.tx}
}

func (t *txRepositories) Outbox() repository.OutboxRepository {
	return &outboxRepository{conn: t.tx}
}
