package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/jwalitptl/practice-api/internal/repository"
	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// wrapError turns driver errors into the application taxonomy: missing rows
// and broken references become not-found (conflict when deleting), unique violations become
// conflicts, everything else is wrapped with op for the logs.
func wrapError(err error, resource, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFound(resource, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return apperrors.NewConflict(conflictMessage(pqErr.Constraint, resource), err)
		case foreignKeyViolation:
			if strings.HasPrefix(op, "delete") {
				return apperrors.NewConflict(resource+" still has dependent records", err)
			}
			return apperrors.NewNotFound(repository.MsgReferencedRecord, err)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func conflictMessage(constraint, resource string) string {
	switch constraint {
	case "patients_owner_email_key":
		return repository.MsgDuplicateEmail
	case "appointments_owner_slot_key":
		return repository.MsgSlotTaken
	case "consultation_history_patient_number_key":
		return repository.MsgSessionNumber
	}
	return resource + " already exists"
}

// requireAffected converts a zero-row write into not-found.
func requireAffected(rows int64, err error, resource string) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NewNotFound(resource, nil)
	}
	return nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
