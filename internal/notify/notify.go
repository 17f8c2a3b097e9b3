// Package notify renders and dispatches assignment notifications. It
// owns the Message Sender contracts; the concrete email and SMS
// transports live behind them so the batch service never touches a
// wire protocol.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/google/logger"

	"github.com/ngenest/SecretSanta/internal/models"
)

// Message is one rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message to one destination (an email
// address or a phone number, depending on the channel).
type Sender interface {
	Send(ctx context.Context, destination string, msg Message) error
}

var assignmentText = template.Must(template.New("assignment_text").Parse(
	`Hi {{.Giver.Name}},

You drew {{.Receiver.Name}} for {{.EventName}} on {{.EventDate}}. Keep it secret!
{{if .RulesText}}
Rules: {{.RulesText}}
{{end}}
Confirm you received this assignment: {{.AckLink}}
`))

var assignmentHTML = template.Must(template.New("assignment_html").Parse(
	`<div style="font-family: Arial, sans-serif;">
  <h2 style="color:#d32f2f;">{{.EventTypeLabel}} Assignment</h2>
  <p>Hi {{.Giver.Name}},</p>
  <p>You drew <strong>{{.Receiver.Name}}</strong> for <strong>{{.EventName}}</strong> on <strong>{{.EventDate}}</strong>.</p>
  {{if .RulesText}}<p>Rules: {{.RulesText}}</p>{{end}}
  <p><a href="{{.AckLink}}">Confirm you received this assignment</a></p>
  <p>Get something merry and bright!</p>
</div>
`))

var assignmentSMS = template.Must(template.New("assignment_sms").Parse(
	`{{.EventName}}: you drew {{.Receiver.Name}}! Keep it secret. Confirm: {{.AckLink}}`))

var organizerAckText = template.Must(template.New("organizer_ack").Parse(
	`Hi {{.Organizer.Name}},

{{.Giver.Name}} just confirmed their {{.ExchangeType}} assignment for {{.EventName}}.

No action needed.
`))

type assignmentContext struct {
	models.Match
	EventName      string
	EventDate      string
	EventTypeLabel string
	RulesText      string
	AckLink        string
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// Dispatcher fans one batch out across the email and SMS channels.
type Dispatcher struct {
	email Sender
	sms   Sender
}

// NewDispatcher wires the two channel senders. Either may be nil when
// the deployment does not carry that channel.
func NewDispatcher(email, sms Sender) *Dispatcher {
	return &Dispatcher{email: email, sms: sms}
}

// DispatchBatch sends every assignment notification in the batch. Each
// giver is reached on email when they have an address, otherwise by
// SMS. If any recipient fails, the whole batch is reported failed so
// the caller can retry it; sends that already went out are not undone.
func (d *Dispatcher) DispatchBatch(ctx context.Context, batch models.NotificationBatch) error {
	var failures []error
	for _, match := range batch.Payload.Assignments {
		if err := d.sendAssignment(ctx, batch.Payload, match); err != nil {
			logger.Errorf("batch %s: notify %s: %v", batch.BatchID, match.Giver.ID, err)
			failures = append(failures, fmt.Errorf("giver %s: %w", match.Giver.ID, err))
		}
	}
	return errors.Join(failures...)
}

func (d *Dispatcher) sendAssignment(ctx context.Context, payload models.BatchPayload, match models.Match) error {
	data := assignmentContext{
		Match:          match,
		EventName:      payload.EventName,
		EventDate:      payload.EventDate,
		EventTypeLabel: payload.EventTypeLabel,
		RulesText:      payload.RulesText,
		AckLink:        payload.AcknowledgmentLinks[match.Giver.ID],
	}

	switch {
	case match.Giver.Email != "" && d.email != nil:
		text, err := render(assignmentText, data)
		if err != nil {
			return err
		}
		html, err := render(assignmentHTML, data)
		if err != nil {
			return err
		}
		return d.email.Send(ctx, match.Giver.Email, Message{
			Subject: fmt.Sprintf("%s Match for %s", payload.EventTypeLabel, payload.EventName),
			Text:    text,
			HTML:    html,
		})
	case match.Giver.Phone != "" && d.sms != nil:
		body, err := render(assignmentSMS, data)
		if err != nil {
			return err
		}
		return d.sms.Send(ctx, match.Giver.Phone, Message{Text: body})
	default:
		return fmt.Errorf("no reachable channel for participant %s", match.Giver.ID)
	}
}

// NotifyOrganizerAcknowledged tells the organizer a participant has
// confirmed. Best effort: the caller is expected to log and swallow
// the returned error, never surface it to the participant.
func (d *Dispatcher) NotifyOrganizerAcknowledged(ctx context.Context, payload models.TokenPayload) error {
	if d.email == nil || payload.Organizer.Email == "" {
		return nil
	}
	text, err := render(organizerAckText, payload)
	if err != nil {
		return err
	}
	return d.email.Send(ctx, payload.Organizer.Email, Message{
		Subject: fmt.Sprintf("%s confirmed their assignment for %s", payload.Giver.Name, payload.EventName),
		Text:    text,
	})
}
