// Package domain implements the trade-proposal lifecycle engine: admission
// control for new proposals, the state machine governing accept, reject,
// cancel, complete and expire, the negotiation message gate, and weighted
// reputation aggregation.
package domain

import (
	"context"
	"log"
	"time"

	"github.com/roperia/roperia/internal/platform/id"
)

const (
	defaultAdmissionCap    = 3
	defaultProposalTTL     = 7 * 24 * time.Hour
	defaultReminderWindow  = 48 * time.Hour
	defaultMaxProposalNote = 500
	defaultMaxMessageRunes = 1000
)

// Config tunes the lifecycle engine.
type Config struct {
	// AdmissionCap limits simultaneously active proposals per garment. The
	// cap is soft: the admission check and the insert are not serialized
	// against concurrent creators, so two proposals created in the same
	// instant can jointly exceed it by one.
	AdmissionCap int
	// ProposalTTL is the fixed offset from creation to the expiry deadline.
	ProposalTTL time.Duration
	// ReminderWindow is how far ahead of the deadline the sweeper requests
	// reminder notifications.
	ReminderWindow time.Duration
	// MaxProposalNoteRunes bounds the optional message accompanying a proposal.
	MaxProposalNoteRunes int
	// MaxMessageRunes bounds one negotiation message body.
	MaxMessageRunes int
}

func (c Config) normalized() Config {
	if c.AdmissionCap <= 0 {
		c.AdmissionCap = defaultAdmissionCap
	}
	if c.ProposalTTL <= 0 {
		c.ProposalTTL = defaultProposalTTL
	}
	if c.ReminderWindow <= 0 {
		c.ReminderWindow = defaultReminderWindow
	}
	if c.MaxProposalNoteRunes <= 0 {
		c.MaxProposalNoteRunes = defaultMaxProposalNote
	}
	if c.MaxMessageRunes <= 0 {
		c.MaxMessageRunes = defaultMaxMessageRunes
	}
	return c
}

// Notifier dispatches one user-facing notification. Delivery is
// fire-and-forget: failures are logged and never abort the triggering
// transition.
type Notifier interface {
	Send(ctx context.Context, userID, title, body, category, referenceID string) error
}

// Broadcaster fans a persisted negotiation message out to live subscribers.
// Delivery failures do not roll back persistence.
type Broadcaster interface {
	Broadcast(proposalID string, message Message) error
}

// Service orchestrates the trade-proposal lifecycle.
type Service struct {
	store       Store
	notifier    Notifier
	broadcaster Broadcaster
	cfg         Config
	clock       func() time.Time
	newID       func() (string, error)
}

// NewService constructs the trade domain use-cases. The notifier and
// broadcaster are optional; a nil port is a no-op.
func NewService(store Store, notifier Notifier, broadcaster Broadcaster, cfg Config, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		broadcaster: broadcaster,
		cfg:         cfg.normalized(),
		clock:       clock,
		newID:       newID,
	}
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// notify requests one notification and logs failures without propagating
// them: notification delivery never aborts a transition.
func (s *Service) notify(ctx context.Context, userID, title, body, category, referenceID string) {
	if s == nil || s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Send(ctx, userID, title, body, category, referenceID); err != nil {
		log.Printf("trade: notify %s (%s): %v", userID, category, err)
	}
}
