package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"github.com/ngenest/SecretSanta/internal/assign"
	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/token"
)

// DrawRequest is a validated, typed draw. The handler layer converts
// the wire payload into this shape; the core never sees raw JSON.
type DrawRequest struct {
	EventName    string
	EventDate    string
	ExchangeType string
	DrawMode     models.DrawMode
	RulesText    string
	Organizer    models.Organizer
	Participants []models.Participant
}

// DrawResult is what one completed draw produces: the matches, their
// acknowledgment links, and the batch awaiting payment.
type DrawResult struct {
	BatchID             string
	Assignments         []models.Match
	AcknowledgmentLinks map[string]string
}

// ExchangeService orchestrates a draw: run the assignment engine,
// issue one acknowledgment token per giver, and park the rendered
// messages in a notification batch until the organizer pays.
type ExchangeService struct {
	engine     *assign.Engine
	codec      *token.Codec
	acks       *AckService
	batches    *BatchService
	ackBaseURL string
	now        func() time.Time
}

// NewExchangeService wires the draw pipeline. ackBaseURL is the public
// URL of the confirmation page; each token is appended as a query
// parameter.
func NewExchangeService(
	engine *assign.Engine,
	codec *token.Codec,
	acks *AckService,
	batches *BatchService,
	ackBaseURL string,
) *ExchangeService {
	return &ExchangeService{
		engine:     engine,
		codec:      codec,
		acks:       acks,
		batches:    batches,
		ackBaseURL: ackBaseURL,
		now:        time.Now,
	}
}

// Draw runs the full pipeline for one event.
func (s *ExchangeService) Draw(req DrawRequest) (DrawResult, error) {
	if err := validateDrawRequest(req); err != nil {
		return DrawResult{}, err
	}

	matches, err := s.engine.Assign(req.Participants, assign.Options{
		EnforceGroupExclusion: req.DrawMode == models.DrawModeCouples,
	})
	if err != nil {
		return DrawResult{}, err
	}

	links := make(map[string]string, len(matches))
	for _, match := range matches {
		payload := models.TokenPayload{
			TokenID:      uuid.NewString(),
			EventName:    req.EventName,
			EventDate:    req.EventDate,
			ExchangeType: req.ExchangeType,
			DrawMode:     req.DrawMode,
			Giver:        match.Giver,
			Receiver:     match.Receiver,
			Organizer:    req.Organizer,
			RulesText:    req.RulesText,
			IssuedAt:     s.now(),
		}
		tok, err := s.codec.Encode(payload)
		if err != nil {
			return DrawResult{}, fmt.Errorf("issue token for %s: %w", match.Giver.ID, err)
		}
		s.acks.Register(tok, payload)
		links[match.Giver.ID] = s.ackBaseURL + "?token=" + url.QueryEscape(tok)
	}

	batch := s.batches.CreateBatch(models.BatchPayload{
		EventName:           req.EventName,
		EventDate:           req.EventDate,
		EventTypeLabel:      req.ExchangeType,
		RulesText:           req.RulesText,
		Assignments:         matches,
		AcknowledgmentLinks: links,
	})

	logger.Infof("draw complete for %q: %d matches, batch %s",
		req.EventName, len(matches), batch.BatchID)

	return DrawResult{
		BatchID:             batch.BatchID,
		Assignments:         matches,
		AcknowledgmentLinks: links,
	}, nil
}

// validateDrawRequest enforces the input invariants the core relies
// on: unique ids, unique emails, and a name plus at least one
// reachable channel per participant.
func validateDrawRequest(req DrawRequest) error {
	if strings.TrimSpace(req.EventName) == "" {
		return fmt.Errorf("event name is required: %w", ErrInvalidDrawRequest)
	}
	if strings.TrimSpace(req.EventDate) == "" {
		return fmt.Errorf("event date is required: %w", ErrInvalidDrawRequest)
	}
	if len(req.Participants) < 2 {
		return fmt.Errorf("at least 2 participants required, got %d: %w",
			len(req.Participants), ErrInvalidDrawRequest)
	}

	ids := make(map[string]bool, len(req.Participants))
	emails := make(map[string]bool, len(req.Participants))
	for i, p := range req.Participants {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("participant %d missing id: %w", i+1, ErrInvalidDrawRequest)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("participant %s missing name: %w", p.ID, ErrInvalidDrawRequest)
		}
		if p.Email == "" && p.Phone == "" {
			return fmt.Errorf("participant %s has no email or phone: %w", p.ID, ErrInvalidDrawRequest)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate participant id %s: %w", p.ID, ErrInvalidDrawRequest)
		}
		ids[p.ID] = true
		if p.Email != "" {
			lower := strings.ToLower(p.Email)
			if emails[lower] {
				return fmt.Errorf("duplicate email %s: %w", p.Email, ErrInvalidDrawRequest)
			}
			emails[lower] = true
		}
	}
	return nil
}
