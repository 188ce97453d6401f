package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transition.
func (s AppointmentStatus) Terminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// CanTransition reports whether s may move to next. Staying scheduled is
// allowed so a scheduled appointment can be edited.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	if s == next {
		return s == AppointmentStatusScheduled
	}
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	Base
	OwnerID   uuid.UUID         `db:"owner_id" json:"owner_id"`
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	Date      Date              `db:"date" json:"date"`
	Time      string            `db:"time" json:"time"`
	Duration  int               `db:"duration" json:"duration"`
	Amount    *float64          `db:"amount" json:"amount,omitempty"`
	Notes     string            `db:"notes" json:"notes"`
	Status    AppointmentStatus `db:"status" json:"status"`
}

// AppointmentInput carries caller-supplied scheduling fields.
type AppointmentInput struct {
	PatientID string            `json:"patient_id"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Duration  int               `json:"duration"`
	Amount    *float64          `json:"amount"`
	Notes     string            `json:"notes"`
	Status    AppointmentStatus `json:"status"`
}

// RecurringInput describes a recurring series.
type RecurringInput struct {
	PatientID     string   `json:"patient_id"`
	StartDate     string   `json:"start_date"`
	Time          string   `json:"time"`
	FrequencyDays int      `json:"frequency_days"`
	Count         int      `json:"count"`
	Duration      int      `json:"duration"`
	Amount        *float64 `json:"amount"`
	Notes         string   `json:"notes"`
}

// OccurrenceFailure describes one occurrence of a series that could not be created.
type OccurrenceFailure struct {
	Occurrence int    `json:"occurrence"`
	Date       string `json:"date"`
	Error      string `json:"error"`
}

// RecurringResult is the partial-success outcome of a series.
type RecurringResult struct {
	Success      bool                `json:"success"`
	CreatedCount int                 `json:"created_count"`
	TotalCount   int                 `json:"total_count"`
	Created      []*Appointment      `json:"created"`
	Failures     []OccurrenceFailure `json:"failures"`
}

type AppointmentFilters struct {
	OwnerID   uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}

// UpcomingAppointment is an appointment joined with its patient's name.
type UpcomingAppointment struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
}

type AppointmentStats struct {
	Total        int     `db:"total" json:"total"`
	Completed    int     `db:"completed" json:"completed"`
	Today        int     `db:"today" json:"today"`
	ThisWeek     int     `db:"this_week" json:"this_week"`
	MonthRevenue float64 `db:"month_revenue" json:"month_revenue"`
}

// StatsPeriods are the calendar windows appointment stats are computed over.
type StatsPeriods struct {
	Today      Date
	WeekStart  Date
	WeekEnd    Date
	MonthStart Date
	MonthEnd   Date
}

// StatsPeriodsAt derives the periods from now in now's location. Weeks
// run Monday to Sunday.
func StatsPeriodsAt(now time.Time) StatsPeriods {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -offset)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return StatsPeriods{
		Today:      Date{Time: today},
		WeekStart:  Date{Time: weekStart},
		WeekEnd:    Date{Time: weekStart.AddDate(0, 0, 6)},
		MonthStart: Date{Time: monthStart},
		MonthEnd:   Date{Time: monthStart.AddDate(0, 1, -1)},
	}
}

// Between reports whether d falls inside [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from.Time) && !d.After(to.Time)
}
