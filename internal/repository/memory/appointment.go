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

type appointmentRepository struct {
	conn
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return r.run(ctx, "appointments.Create", func(st *state) error {
		if _, ok := ownedPatient(st, appointment.OwnerID, appointment.PatientID); !ok {
			return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
		}
		if appointment.Status != model.AppointmentStatusCancelled &&
			slotTaken(st, appointment.OwnerID, appointment.Date, appointment.Time, nil) {
			return apperrors.NewConflict(repository.MsgSlotTaken, nil)
		}
		if appointment.ID == uuid.Nil {
			appointment.ID = uuid.New()
		}
		now := time.Now().UTC()
		appointment.CreatedAt = now
		appointment.UpdatedAt = now
		st.appointments[appointment.ID] = *appointment
		return nil
	})
}

func (r *appointmentRepository) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, "appointments.Get", ownerID, id)
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, ownerID, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, "appointments.GetForUpdate", ownerID, id)
}

func (r *appointmentRepository) get(ctx context.Context, op string, ownerID, id uuid.UUID) (*model.Appointment, error) {
	var out model.Appointment
	err := r.run(ctx, op, func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.OwnerID != ownerID {
			return apperrors.NewNotFound("appointment", nil)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	return r.run(ctx, "appointments.Update", func(st *state) error {
		existing, ok := st.appointments[appointment.ID]
		if !ok || existing.OwnerID != appointment.OwnerID {
			return apperrors.NewNotFound("appointment", nil)
		}
		if _, ok := ownedPatient(st, appointment.OwnerID, appointment.PatientID); !ok {
			return apperrors.NewNotFound(repository.MsgReferencedRecord, nil)
		}
		if appointment.Status != model.AppointmentStatusCancelled &&
			slotTaken(st, appointment.OwnerID, appointment.Date, appointment.Time, &appointment.ID) {
			return apperrors.NewConflict(repository.MsgSlotTaken, nil)
		}
		appointment.CreatedAt = existing.CreatedAt
		appointment.UpdatedAt = time.Now().UTC()
		st.appointments[appointment.ID] = *appointment
		return nil
	})
}

func (r *appointmentRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.run(ctx, "appointments.Delete", func(st *state) error {
		a, ok := st.appointments[id]
		if !ok || a.OwnerID != ownerID {
			return apperrors.NewNotFound("appointment", nil)
		}
		deleteAppointment(st, id)
		return nil
	})
}

func (r *appointmentRepository) DeleteByPatient(ctx context.Context, ownerID, patientID uuid.UUID) (int64, error) {
	var n int64
	err := r.run(ctx, "appointments.DeleteByPatient", func(st *state) error {
		for id, a := range st.appointments {
			if a.OwnerID == ownerID && a.PatientID == patientID {
				deleteAppointment(st, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// deleteAppointment clears session references to the appointment, matching
// ON DELETE SET NULL.
func deleteAppointment(st *state, id uuid.UUID) {
	delete(st.appointments, id)
	for sid, s := range st.sessions {
		if s.AppointmentID != nil && *s.AppointmentID == id {
			s.AppointmentID = nil
			st.sessions[sid] = s
		}
	}
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments := []*model.Appointment{}
	err := r.run(ctx, "appointments.List", func(st *state) error {
		for _, a := range st.appointments {
			if a.OwnerID != filters.OwnerID {
				continue
			}
			if filters.PatientID != uuid.Nil && a.PatientID != filters.PatientID {
				continue
			}
			if filters.Status != "" && a.Status != filters.Status {
				continue
			}
			if !filters.StartDate.IsZero() && a.Date.Before(model.NewDate(filters.StartDate).Time) {
				continue
			}
			if !filters.EndDate.IsZero() && a.Date.After(model.NewDate(filters.EndDate).Time) {
				continue
			}
			a := a
			appointments = append(appointments, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(appointments, func(i, j int) bool { return chronological(appointments[i], appointments[j]) })
	return appointments, nil
}

func (r *appointmentRepository) CheckConflict(ctx context.Context, ownerID uuid.UUID, date model.Date, at string, excludeID *uuid.UUID) (bool, error) {
	var taken bool
	err := r.run(ctx, "appointments.CheckConflict", func(st *state) error {
		taken = slotTaken(st, ownerID, date, at, excludeID)
		return nil
	})
	return taken, err
}

func (r *appointmentRepository) Upcoming(ctx context.Context, ownerID uuid.UUID, from model.Date, limit int) ([]*model.UpcomingAppointment, error) {
	upcoming := []*model.UpcomingAppointment{}
	err := r.run(ctx, "appointments.Upcoming", func(st *state) error {
		for _, a := range st.appointments {
			if a.OwnerID != ownerID || a.Date.Before(from.Time) {
				continue
			}
			p, ok := ownedPatient(st, ownerID, a.PatientID)
			if !ok {
				continue
			}
			upcoming = append(upcoming, &model.UpcomingAppointment{Appointment: a, PatientName: p.Name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return chronological(&upcoming[i].Appointment, &upcoming[j].Appointment)
	})
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

func (r *appointmentRepository) Stats(ctx context.Context, ownerID uuid.UUID, now time.Time, defaultPrice float64) (*model.AppointmentStats, error) {
	p := model.StatsPeriodsAt(now)
	stats := &model.AppointmentStats{}
	err := r.run(ctx, "appointments.Stats", func(st *state) error {
		prices := map[uuid.UUID]float64{}
		for _, pr := range st.pricing {
			if pr.OwnerID == ownerID {
				prices[pr.PatientID] = pr.SessionPrice
			}
		}

		for _, a := range st.appointments {
			if a.OwnerID != ownerID {
				continue
			}
			stats.Total++
			live := a.Status != model.AppointmentStatusCancelled
			if live && a.Date.Equal(p.Today.Time) {
				stats.Today++
			}
			if live && a.Date.Between(p.WeekStart, p.WeekEnd) {
				stats.ThisWeek++
			}
			if a.Status != model.AppointmentStatusCompleted {
				continue
			}
			stats.Completed++
			if !a.Date.Between(p.MonthStart, p.MonthEnd) {
				continue
			}
			switch price, ok := prices[a.PatientID]; {
			case a.Amount != nil:
				stats.MonthRevenue += *a.Amount
			case ok:
				stats.MonthRevenue += price
			default:
				stats.MonthRevenue += defaultPrice
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func slotTaken(st *state, ownerID uuid.UUID, date model.Date, at string, excludeID *uuid.UUID) bool {
	for _, a := range st.appointments {
		if a.OwnerID != ownerID || a.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Date.Equal(date.Time) && a.Time == at {
			return true
		}
	}
	return false
}

func chronological(a, b *model.Appointment) bool {
	if !a.Date.Equal(b.Date.Time) {
		return a.Date.Before(b.Date.Time)
	}
	return a.Time < b.Time
}
