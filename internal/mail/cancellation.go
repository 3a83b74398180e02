package mail

import (
	"context"
	"errors"
	netmail "net/mail"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/jobs"
	"agenda/backend/internal/locale"
)

const CancellationSubject = "Agendamento cancelado"

// CancellationHandler runs CancellationMail jobs: it tells the provider that
// a client canceled.
type CancellationHandler struct {
	sender    Sender
	formatter *locale.Formatter
}

func NewCancellationHandler(sender Sender, formatter *locale.Formatter) *CancellationHandler {
	return &CancellationHandler{sender: sender, formatter: formatter}
}

func (h *CancellationHandler) Handle(ctx context.Context, payload []byte) error {
	p, err := jobs.DecodeJSON[domain.CancellationMailPayload](payload)
	if err != nil {
		return err
	}
	appt := p.Appointment
	if appt.Provider.Email == "" {
		return jobs.Permanent(errors.New("cancellation mail: provider email missing"))
	}

	to := (&netmail.Address{Name: appt.Provider.Name, Address: appt.Provider.Email}).String()
	return h.sender.Send(ctx, Message{
		To:       to,
		Subject:  CancellationSubject,
		Template: "cancellation",
		Context: map[string]any{
			"provider": appt.Provider.Name,
			"user":     appt.User.Name,
			"date":     h.formatter.Format(appt.Date),
		},
	})
}
