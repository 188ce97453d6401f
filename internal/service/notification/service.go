package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/practice-api/internal/email"
	"github.com/jwalitptl/practice-api/internal/model"
)

const defaultSendTimeout = 30 * time.Second

// Service mails appointment confirmations to patients. Delivery happens in
// the background after the appointment is committed; failures are logged.
type Service struct {
	mail    email.Service
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewService(mail email.Service, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Service{mail: mail, timeout: timeout}
}

func (s *Service) AppointmentScheduled(_ context.Context, patient *model.Patient, appointment *model.Appointment) {
	if patient == nil || patient.Email == "" {
		return
	}
	body := fmt.Sprintf("Hello %s,\n\nYour appointment is confirmed for %s at %s (%d minutes).\n",
		patient.Name, appointment.Date, appointment.Time, appointment.Duration)
	s.send(patient.Email, "Appointment confirmed", body)
}

func (s *Service) SeriesScheduled(_ context.Context, patient *model.Patient, appointments []*model.Appointment) {
	if patient == nil || patient.Email == "" || len(appointments) == 0 {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nThe following %d appointments are confirmed:\n\n", patient.Name, len(appointments))
	for _, a := range appointments {
		fmt.Fprintf(&b, "  - %s at %s\n", a.Date, a.Time)
	}
	s.send(patient.Email, "Appointments confirmed", b.String())
}

// send never uses the request context, which ends with the response.
func (s *Service) send(to, subject, body string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.mail.Send(ctx, to, subject, body); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("Failed to send notification")
			return
		}
		log.Debug().Str("subject", subject).Msg("Notification sent")
	}()
}

// Wait blocks until every pending delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
