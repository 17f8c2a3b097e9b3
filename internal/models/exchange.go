package models

import "time"

// DrawMode selects which exclusion rules apply to a draw.
type DrawMode string

const (
	// DrawModeIndividuals only forbids self-pairing.
	DrawModeIndividuals DrawMode = "individuals"
	// DrawModeCouples additionally forbids pairing two members of the
	// same exclusion group (e.g., spouses).
	DrawModeCouples DrawMode = "couples"
)

// Participant represents a person entering the gift exchange.
// At least one of Email/Phone must be present; the handler layer
// enforces that before the core ever sees the participant.
type Participant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	GroupID string `json:"groupId,omitempty"` // set only in couples mode
}

// Match pairs a giver with their secret receiver.
type Match struct {
	Giver    Participant `json:"giver"`
	Receiver Participant `json:"receiver"`
}

// Organizer is the person running the event; they receive a courtesy
// notification whenever a participant confirms their assignment.
type Organizer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenPayload is everything embedded inside an acknowledgment token.
// It carries the full context needed to render a confirmation page
// without any server-side lookup.
type TokenPayload struct {
	TokenID      string      `json:"tokenId"`
	EventName    string      `json:"eventName"`
	EventDate    string      `json:"eventDate"`
	ExchangeType string      `json:"exchangeType"`
	DrawMode     DrawMode    `json:"drawMode"`
	Giver        Participant `json:"giver"`
	Receiver     Participant `json:"receiver"`
	Organizer    Organizer   `json:"organizer"`
	RulesText    string      `json:"rulesText"`
	IssuedAt     time.Time   `json:"issuedAt"`
}

// AcknowledgmentRecord tracks whether a giver has confirmed receipt of
// their assignment. Keyed by the opaque token string.
type AcknowledgmentRecord struct {
	Payload        TokenPayload `json:"payload"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledgedAt,omitempty"`
}

// BatchPayload is the full message content of one draw, held until the
// organizer's payment settles.
type BatchPayload struct {
	EventName           string            `json:"eventName"`
	EventDate           string            `json:"eventDate"`
	EventTypeLabel      string            `json:"eventTypeLabel"`
	RulesText           string            `json:"rulesText"`
	Assignments         []Match           `json:"assignments"`
	AcknowledgmentLinks map[string]string `json:"acknowledgmentLinks"` // giver ID -> link
}

// NotificationBatch is one draw's pending notifications. It exists from
// draw completion until its messages are successfully dispatched.
type NotificationBatch struct {
	BatchID   string       `json:"batchId"`
	Payload   BatchPayload `json:"payload"`
	CreatedAt time.Time    `json:"createdAt"`
}

// PaymentDetails is the core's view of an external payment artifact.
type PaymentDetails struct {
	Settled      bool
	Amount       int64
	Currency     string
	BoundBatchID string
}
