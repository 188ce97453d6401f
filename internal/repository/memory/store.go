// Package memory is an in-process record store. A transaction works on a
// private copy of the whole data set that replaces the shared state on
// commit, which gives serializable isolation at the cost of one global lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

type state struct {
	patients     map[uuid.UUID]model.Patient
	appointments map[uuid.UUID]model.Appointment
	sessions     map[uuid.UUID]model.Session
	anamnesis    map[uuid.UUID]model.Anamnesis
	pricing      map[uuid.UUID]model.Pricing
	outbox       map[uuid.UUID]model.OutboxEvent
}

func newState() *state {
	return &state{
		patients:     map[uuid.UUID]model.Patient{},
		appointments: map[uuid.UUID]model.Appointment{},
		sessions:     map[uuid.UUID]model.Session{},
		anamnesis:    map[uuid.UUID]model.Anamnesis{},
		pricing:      map[uuid.UUID]model.Pricing{},
		outbox:       map[uuid.UUID]model.OutboxEvent{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.anamnesis {
		c.anamnesis[k] = v
	}
	for k, v := range s.pricing {
		c.pricing[k] = v
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// FaultFunc is consulted before every repository operation; a non-nil
// return fails that operation. Operation names look like
// "sessions.DeleteByPatient".
type FaultFunc func(op string) error

type Option func(*Store)

// WithFault installs a fault hook.
func WithFault(fn FaultFunc) Option {
	return func(s *Store) { s.fault = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store implements repository.Store in memory. Repositories obtained from
// the Store itself must not be used inside a WithTx callback.
type Store struct {
	mu      sync.Mutex
	data    *state
	fault   FaultFunc
	metrics *metrics.Metrics
}

func NewStore(opts ...Option) *Store {
	s := &Store{data: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFault replaces the fault hook; nil clears it.
func (s *Store) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

func (s *Store) inject(op string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{conn{store: s}}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{conn{store: s}}
}

func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepository{conn{store: s}}
}

func (s *Store) Anamnesis() repository.AnamnesisRepository {
	return &anamnesisRepository{conn{store: s}}
}

func (s *Store) Pricing() repository.PricingRepository {
	return &pricingRepository{conn{store: s}}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepository{conn{store: s}}
}

// WithTx runs fn against a copy of the data set and publishes the copy only
// when fn returns nil. A panic discards the copy and is re-raised.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveTx("begin_failed", time.Since(start))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.metrics.ObserveTx("rollback", time.Since(start))
		}
	}()

	if err := fn(&txRepositories{conn{store: s, tx: working}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = working
	committed = true
	s.metrics.ObserveTx("commit", time.Since(start))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

type txRepositories struct {
	c conn
}

func (t *txRepositories) Patients() repository.PatientRepository {
	return &patientRepository{t.c}
}

func (t *txRepositories) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{t.c}
}

func (t *txRepositories) Sessions() repository.SessionRepository {
	return &sessionRepository{t.c}
}

func (t *txRepositories) Anamnesis() repository.AnamnesisRepository {
	return &anamnesisRepository{t.c}
}

func (t *txRepositories) Pricing() repository.PricingRepository {
	return &pricingRepository{t.c}
}

func (t *txRepositories) Outbox() repository.OutboxRepository {
	return &outboxRepository{t.c}
}

// conn is either bound to a transaction's working copy or, outside one,
// takes the store lock for each operation.
type conn struct {
	store *Store
	tx    *state
}

func (c conn) run(ctx context.Context, op string, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.tx != nil {
		if err := c.store.inject(op); err != nil {
			return err
		}
		return fn(c.tx)
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.store.inject(op); err != nil {
		return err
	}
	return fn(c.store.data)
}
