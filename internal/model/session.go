package model

import (
	"github.com/google/uuid"
)

type PatientMood string

const (
	MoodExcellent PatientMood = "excellent"
	MoodGood      PatientMood = "good"
	MoodNeutral   PatientMood = "neutral"
	MoodPoor      PatientMood = "poor"
	MoodVeryPoor  PatientMood = "very_poor"
)

var PatientMoods = []string{
	string(MoodExcellent), string(MoodGood), string(MoodNeutral), string(MoodPoor), string(MoodVeryPoor),
}

// Session is one row of a patient's consultation history.
type Session struct {
	Base
	OwnerID          uuid.UUID   `db:"owner_id" json:"owner_id"`
	PatientID        uuid.UUID   `db:"patient_id" json:"patient_id"`
	AppointmentID    *uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	SessionNumber    int         `db:"session_number" json:"session_number"`
	SessionDate      Date        `db:"session_date" json:"session_date"`
	SessionDuration  int         `db:"session_duration" json:"session_duration"`
	PatientMood      PatientMood `db:"patient_mood" json:"patient_mood"`
	SessionNotes     string      `db:"session_notes" json:"session_notes"`
	Observations     string      `db:"observations" json:"observations"`
	Homework         string      `db:"homework" json:"homework"`
	NextSessionGoals string      `db:"next_session_goals" json:"next_session_goals"`
}

// SessionInput is used for create; session_number is never accepted.
type SessionInput struct {
	AppointmentID    string `json:"appointment_id"`
	SessionDate      string `json:"session_date"`
	SessionDuration  int    `json:"session_duration"`
	PatientMood      string `json:"patient_mood"`
	SessionNotes     string `json:"session_notes"`
	Observations     string `json:"observations"`
	Homework         string `json:"homework"`
	NextSessionGoals string `json:"next_session_goals"`
}

// SessionUpdate is a partial update: nil fields are left untouched.
type SessionUpdate struct {
	AppointmentID    *string `json:"appointment_id"`
	SessionDate      *string `json:"session_date"`
	SessionDuration  *int    `json:"session_duration"`
	PatientMood      *string `json:"patient_mood"`
	SessionNotes     *string `json:"session_notes"`
	Observations     *string `json:"observations"`
	Homework         *string `json:"homework"`
	NextSessionGoals *string `json:"next_session_goals"`
}

type SessionStats struct {
	TotalSessions int   `json:"total_sessions"`
	LastSession   *Date `json:"last_session"`
	AvgDuration   int   `json:"avg_duration"`
}

type SessionHistory struct {
	Sessions []*Session   `json:"sessions"`
	Stats    SessionStats `json:"stats"`
}
