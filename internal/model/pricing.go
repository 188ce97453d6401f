package model

import (
	"time"

	"github.com/google/uuid"
)

// Pricing is the per-patient session price, at most one per (owner, patient).
type Pricing struct {
	ID           *uuid.UUID `db:"id" json:"id"`
	OwnerID      uuid.UUID  `db:"owner_id" json:"owner_id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	SessionPrice float64    `db:"session_price" json:"session_price"`
	Notes        string     `db:"notes" json:"notes"`
	IsDefault    bool       `db:"-" json:"is_default"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at"`
}

type PricingInput struct {
	SessionPrice *float64 `json:"session_price"`
	Notes        string   `json:"notes"`
}
