package notify

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers messages through the Twilio REST API.
type SMSSender struct {
	client *twilio.RestClient
	from   string
}

// NewSMSSender builds a Twilio-backed sender.
func NewSMSSender(accountSID, authToken, from string) *SMSSender {
	return &SMSSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

// Send implements Sender. Only the plain-text body is used; SMS has no
// subject or HTML.
func (s *SMSSender) Send(ctx context.Context, destination string, msg Message) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetTo(destination)
	params.SetFrom(s.from)
	params.SetBody(msg.Text)

	done := make(chan error, 1)
	go func() {
		_, err := s.client.Api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sms send to %s: %w", destination, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sms send to %s: %w", destination, ctx.Err())
	}
}
