package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/logger"

	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/notify"
	"github.com/ngenest/SecretSanta/internal/store"
	"github.com/ngenest/SecretSanta/internal/token"
)

// OrganizerNotifier tells the organizer a participant confirmed their
// assignment. Satisfied by notify.Dispatcher.
type OrganizerNotifier interface {
	NotifyOrganizerAcknowledged(ctx context.Context, payload models.TokenPayload) error
}

var _ OrganizerNotifier = (*notify.Dispatcher)(nil)

// AckService is the acknowledgment registry: it tracks, per issued
// token, whether the giver has confirmed receipt of their assignment.
// Tokens themselves stay decodable without the registry; the registry
// only carries the mutable acknowledged/when state.
type AckService struct {
	mu       sync.Mutex
	codec    *token.Codec
	records  *store.Store[models.AcknowledgmentRecord]
	notifier OrganizerNotifier
	timeout  time.Duration
	now      func() time.Time
}

// NewAckService creates an AckService. timeout bounds the organizer
// notification attempt fired on first redemption.
func NewAckService(
	codec *token.Codec,
	records *store.Store[models.AcknowledgmentRecord],
	notifier OrganizerNotifier,
	timeout time.Duration,
) *AckService {
	return &AckService{
		codec:    codec,
		records:  records,
		notifier: notifier,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Register stores a pending record for a freshly issued token.
func (s *AckService) Register(tok string, payload models.TokenPayload) {
	s.records.Set(tok, models.AcknowledgmentRecord{Payload: payload})
}

// Get returns the record for a token, if one is registered.
func (s *AckService) Get(tok string) (models.AcknowledgmentRecord, bool) {
	return s.records.Get(tok)
}

// Redeem decodes the token and marks its record acknowledged. The
// first successful redemption stamps AcknowledgedAt and fires exactly
// one organizer notification; later redemptions return the unchanged
// record with alreadyAcknowledged=true and no side effect. A token
// with no registered record (the process restarted since issuance) is
// synthesized from its own payload, so confirmation links survive a
// restart even though the pending/confirmed state does not.
//
// The organizer notification is best effort: its failure is logged and
// never surfaced to the participant.
func (s *AckService) Redeem(ctx context.Context, tok string) (models.AcknowledgmentRecord, bool, error) {
	payload, err := s.codec.Decode(tok)
	if err != nil {
		return models.AcknowledgmentRecord{}, false, err
	}

	record, already := s.markAcknowledged(tok, payload)
	if already {
		return record, true, nil
	}

	notifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifier.NotifyOrganizerAcknowledged(notifyCtx, record.Payload); err != nil {
		logger.Errorf("token %s: organizer notification failed: %v", payload.TokenID, err)
	}

	logger.Infof("token %s acknowledged by %s", payload.TokenID, payload.Giver.ID)
	return record, false, nil
}

// markAcknowledged performs the pending→confirmed transition under the
// service mutex so concurrent redemptions of the same token cannot
// both claim the first transition.
func (s *AckService) markAcknowledged(tok string, payload models.TokenPayload) (models.AcknowledgmentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records.Get(tok)
	if !ok {
		record = models.AcknowledgmentRecord{Payload: payload}
	}
	if record.Acknowledged {
		return record, true
	}

	when := s.now()
	record.Acknowledged = true
	record.AcknowledgedAt = &when
	s.records.Set(tok, record)
	return record, false
}
