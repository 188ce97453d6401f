package model

import (
	"time"

	"github.com/google/uuid"
)

// Anamnesis is the clinical intake record, at most one per (owner, patient).
// ID is nil until the record has been stored.
type Anamnesis struct {
	ID                 *uuid.UUID `db:"id" json:"id"`
	OwnerID            uuid.UUID  `db:"owner_id" json:"owner_id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	Complaint          string     `db:"complaint" json:"complaint"`
	HistoryIllness     string     `db:"history_illness" json:"history_illness"`
	PreviousTreatments string     `db:"previous_treatments" json:"previous_treatments"`
	Medications        string     `db:"medications" json:"medications"`
	FamilyHistory      string     `db:"family_history" json:"family_history"`
	PersonalHistory    string     `db:"personal_history" json:"personal_history"`
	SocialHistory      string     `db:"social_history" json:"social_history"`
	Observations       string     `db:"observations" json:"observations"`
	CreatedAt          *time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at"`
}

type AnamnesisInput struct {
	Complaint          string `json:"complaint"`
	HistoryIllness     string `json:"history_illness"`
	PreviousTreatments string `json:"previous_treatments"`
	Medications        string `json:"medications"`
	FamilyHistory      string `json:"family_history"`
	PersonalHistory    string `json:"personal_history"`
	SocialHistory      string `json:"social_history"`
	Observations       string `json:"observations"`
}

// EmptyAnamnesis is the "no anamnesis yet" state.
func EmptyAnamnesis(ownerID, patientID uuid.UUID) *Anamnesis {
	return &Anamnesis{OwnerID: ownerID, PatientID: patientID}
}
