package assign

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ngenest/SecretSanta/internal/models"
)

// ErrInfeasible is returned when no valid pairing exists (or none was
// found within the attempt budget). It signals a structural problem
// with the participant list, not a transient failure: retrying with
// the same input will not succeed.
var ErrInfeasible = errors.New("no valid assignment exists for these participants")

// DefaultMaxAttempts bounds the rejection-sampling loop.
const DefaultMaxAttempts = 5000

// Shuffler produces a uniformly random permutation of n elements,
// expressed as a swap callback (the contract of rand.Shuffle). Tests
// inject a deterministic one.
type Shuffler func(n int, swap func(i, j int))

// Options control a single draw.
type Options struct {
	// EnforceGroupExclusion forbids pairing two participants that
	// share a GroupID (couples mode).
	EnforceGroupExclusion bool
	// MaxAttempts overrides DefaultMaxAttempts when > 0.
	MaxAttempts int
	// Shuffle overrides the default math/rand shuffler when non-nil.
	Shuffle Shuffler
}

// Engine computes giver→receiver assignments.
type Engine struct {
	shuffle Shuffler
}

// NewEngine creates an Engine backed by math/rand.
func NewEngine() *Engine {
	return &Engine{shuffle: rand.Shuffle}
}

// Assign returns a bijective pairing of the participants such that
// nobody draws themselves and, with group exclusion enabled, nobody
// draws a member of their own group. It uses rejection sampling:
// shuffle the receiver list, test every pair, retry on any violation.
// Group sizes are small in practice so the acceptance probability is
// high; the attempt ceiling turns a structurally infeasible input
// into an explicit error instead of an endless loop.
func (e *Engine) Assign(participants []models.Participant, opts Options) ([]models.Match, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("need at least 2 participants, got %d: %w", len(participants), ErrInfeasible)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	shuffle := opts.Shuffle
	if shuffle == nil {
		shuffle = e.shuffle
	}

	receivers := make([]models.Participant, len(participants))
	copy(receivers, participants)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		shuffle(len(receivers), func(i, j int) {
			receivers[i], receivers[j] = receivers[j], receivers[i]
		})

		if !validPairing(participants, receivers, opts.EnforceGroupExclusion) {
			continue
		}

		matches := make([]models.Match, len(participants))
		for i, giver := range participants {
			matches[i] = models.Match{Giver: giver, Receiver: receivers[i]}
		}
		return matches, nil
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", maxAttempts, ErrInfeasible)
}

func validPairing(givers, receivers []models.Participant, groupExclusion bool) bool {
	for i := range givers {
		if !validPair(givers[i], receivers[i], groupExclusion) {
			return false
		}
	}
	return true
}

func validPair(giver, receiver models.Participant, groupExclusion bool) bool {
	if giver.ID == receiver.ID {
		return false
	}
	if groupExclusion && giver.GroupID != "" && receiver.GroupID != "" && giver.GroupID == receiver.GroupID {
		return false
	}
	return true
}
