package model

import (
	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
)

// Toggle returns the opposite status.
func (s PatientStatus) Toggle() PatientStatus {
	if s == PatientStatusActive {
		return PatientStatusInactive
	}
	return PatientStatusActive
}

type Patient struct {
	Base
	OwnerID   uuid.UUID     `db:"owner_id" json:"owner_id"`
	Name      string        `db:"name" json:"name"`
	Email     string        `db:"email" json:"email"`
	Phone     string        `db:"phone" json:"phone"`
	BirthDate Date          `db:"birth_date" json:"birth_date"`
	Notes     string        `db:"notes" json:"notes"`
	Status    PatientStatus `db:"status" json:"status"`
}

// PatientInput carries the caller-supplied fields for create and update.
type PatientInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	Notes     string `json:"notes"`
}

type PatientFilters struct {
	OwnerID uuid.UUID
	Search  string
	Status  PatientStatus
}
