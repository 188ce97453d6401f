package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Named defaults shared by the pricing ledger, the session ledger and the
// scheduler. Config may override them at startup.
const (
	DefaultSessionPrice    = 100.00
	DefaultSessionDuration = 50
)

// Date is a calendar date serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const DateLayout = "2006-01-02"

func NewDate(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(`"`+DateLayout+`"`, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Value stores a Date as a DATE column; the zero Date is NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Scan lets sqlx read DATE columns straight into a Date.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
	case nil:
		d.Time = time.Time{}
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return nil
}

func (d *Date) parse(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
