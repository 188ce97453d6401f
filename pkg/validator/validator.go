package validator

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/practice-api/pkg/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// MaxAmount is the largest value a NUMERIC(10,2) column holds.
	MaxAmount = 99999999.99
)

var markupPattern = regexp.MustCompile(`(?s)<[^>]*>`)

// Collector accumulates field errors so a caller can report every failed
// check at once instead of stopping at the first.
type Collector struct {
	v      *validator.Validate
	fields []apperrors.FieldError
}

var validate = validator.New()

func New() *Collector {
	return &Collector{v: validate}
}

// Add records a failure for field.
func (c *Collector) Add(field, format string, args ...interface{}) {
	c.fields = append(c.fields, apperrors.FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Check records msg for field when ok is false.
func (c *Collector) Check(ok bool, field, msg string) {
	if !ok {
		c.Add(field, "%s", msg)
	}
}

// Required records a failure when value is blank.
func (c *Collector) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "%s is required", field)
		return false
	}
	return true
}

// MinLength checks the rune length of value.
func (c *Collector) MinLength(field, value string, min int) bool {
	if utf8.RuneCountInString(value) < min {
		c.Add(field, "%s must be at least %d characters", field, min)
		return false
	}
	return true
}

// Email validates RFC syntax using the "email" tag of go-playground/validator.
func (c *Collector) Email(field, value string) bool {
	if err := c.v.Var(value, "required,email"); err != nil {
		c.Add(field, "%s must be a valid email address", field)
		return false
	}
	return true
}

// OneOf validates value against the allowed set using the "oneof" tag.
func (c *Collector) OneOf(field, value string, allowed ...string) bool {
	if err := c.v.Var(value, "oneof="+strings.Join(allowed, " ")); err != nil {
		c.Add(field, "%s must be one of: %s", field, strings.Join(allowed, ", "))
		return false
	}
	return true
}

// Date parses a YYYY-MM-DD calendar date. time.Parse rejects impossible
// dates such as 2023-02-30.
func (c *Collector) Date(field, value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "%s is required", field)
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		c.Add(field, "%s must be a valid date (YYYY-MM-DD)", field)
		return time.Time{}, false
	}
	return t, true
}

// Time parses a wall-clock time as HH:MM, also accepting HH:MM:SS, and
// returns it formatted as HH:MM.
func (c *Collector) Time(field, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		c.Add(field, "%s is required", field)
		return "", false
	}
	for _, layout := range []string{TimeLayout, "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(TimeLayout), true
		}
	}
	c.Add(field, "%s must be a valid time (HH:MM)", field)
	return "", false
}

// UUID parses a required identifier using the "uuid" tag.
func (c *Collector) UUID(field, value string) (uuid.UUID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		c.Add(field, "%s is required", field)
		return uuid.Nil, false
	}
	if err := c.v.Var(value, "uuid"); err != nil {
		c.Add(field, "%s must be a valid id", field)
		return uuid.Nil, false
	}
	return uuid.MustParse(value), true
}

// Amount checks a currency value: not negative, at most MaxAmount and with
// no more than two decimal places.
func (c *Collector) Amount(field string, value float64) bool {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		c.Add(field, "%s must be a number", field)
	case value < 0:
		c.Add(field, "%s cannot be negative", field)
	case value > MaxAmount:
		c.Add(field, "%s cannot exceed %.2f", field, MaxAmount)
	case decimalPlaces(value) > 2:
		c.Add(field, "%s must have at most 2 decimal places", field)
	default:
		return true
	}
	return false
}

// decimalPlaces counts the digits after the point in the shortest
// representation of v, which is how a JSON number like 19.9 round-trips.
func decimalPlaces(v float64) int {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

// Valid reports whether no failure has been recorded.
func (c *Collector) Valid() bool {
	return len(c.fields) == 0
}

// Err returns a validation AppError or nil.
func (c *Collector) Err() error {
	if c.Valid() {
		return nil
	}
	return apperrors.NewValidation(c.fields)
}

// Sanitize strips markup and control characters (except \n, \r, \t) and
// trims surrounding whitespace.
func Sanitize(input string) string {
	stripped := markupPattern.ReplaceAllString(input, "")

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// NormalizeDate accepts a date with an optional time-of-day component and
// returns midnight UTC of that calendar date.
func NormalizeDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		DateLayout,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	if len(value) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, value[:len(DateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}
