// Package storage defines the persistence records and contracts for the
// trade service: garments, barter proposals, negotiation messages,
// evaluations, and user reputation.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a requested write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrStale indicates a conditional write lost its precondition to a
	// concurrent transition; no rows were changed.
	ErrStale = errors.New("record state changed")
)

// Availability identifies one garment availability state.
type Availability string

const (
	// AvailabilityAvailable means the garment is in the tradable pool.
	AvailabilityAvailable Availability = "available"
	// AvailabilityReserved means the garment is held by an accepted proposal.
	AvailabilityReserved Availability = "reserved"
	// AvailabilityWithdrawn means the owner pulled the garment from the pool.
	AvailabilityWithdrawn Availability = "withdrawn"
	// AvailabilityTraded means a completed exchange consumed the garment.
	AvailabilityTraded Availability = "traded"
)

// ProposalState identifies one proposal lifecycle state.
type ProposalState string

const (
	ProposalStatePending   ProposalState = "pending"
	ProposalStateAccepted  ProposalState = "accepted"
	ProposalStateCompleted ProposalState = "completed"
	ProposalStateRejected  ProposalState = "rejected"
	ProposalStateCancelled ProposalState = "cancelled"
	ProposalStateExpired   ProposalState = "expired"
)

// GarmentRecord stores one garment and its availability state.
type GarmentRecord struct {
	ID           string
	OwnerUserID  string
	Title        string
	Availability Availability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProposalRecord stores one barter proposal.
type ProposalRecord struct {
	ID                 string
	ProposerUserID     string
	ReceiverUserID     string
	OfferedGarmentID   string
	RequestedGarmentID string
	Message            string
	State              ProposalState
	Priority           int
	IsCounteroffer     bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	RespondedAt        *time.Time
	ExpiresAt          time.Time
}

// MessageRecord stores one negotiation message. System messages record
// lifecycle milestones in the transcript and are never marked read.
type MessageRecord struct {
	ID           string
	ProposalID   string
	SenderUserID string
	Body         string
	System       bool
	SentAt       time.Time
	ReadAt       *time.Time
}

// DimensionRatingRecord stores one per-dimension rating inside an evaluation.
type DimensionRatingRecord struct {
	DimensionID string
	Rating      int
}

// EvaluationRecord stores one post-trade evaluation with its dimension ratings.
type EvaluationRecord struct {
	ID               string
	ProposalID       string
	EvaluatorUserID  string
	EvaluatedUserID  string
	GeneralRating    int
	Comment          string
	CreatedAt        time.Time
	DimensionRatings []DimensionRatingRecord
}

// DimensionRecord stores one read-only evaluation dimension.
type DimensionRecord struct {
	ID     string
	Name   string
	Weight float64
}

// GarmentStore persists garment availability state.
type GarmentStore interface {
	PutGarment(ctx context.Context, record GarmentRecord) error
	GetGarment(ctx context.Context, garmentID string) (GarmentRecord, error)
	// SetGarmentAvailability flips availability only when the current state
	// matches from. It reports whether a row changed; a false result is a
	// stale precondition, not a fault.
	SetGarmentAvailability(ctx context.Context, garmentID string, from, to Availability, at time.Time) (bool, error)
}

// ProposalStore persists proposal lifecycle state.
type ProposalStore interface {
	PutProposal(ctx context.Context, record ProposalRecord) error
	GetProposal(ctx context.Context, proposalID string) (ProposalRecord, error)
	ListProposalsByUser(ctx context.Context, userID string) ([]ProposalRecord, error)
	// CountActiveProposalsByGarment counts proposals referencing the garment
	// as offered or requested that are accepted, or pending and not yet due.
	CountActiveProposalsByGarment(ctx context.Context, garmentID string, now time.Time) (int, error)
	HasActiveProposalForPair(ctx context.Context, offeredGarmentID, requestedGarmentID string, now time.Time) (bool, error)
	// UpdateProposalState transitions state only when the current state
	// matches from; zero rows changed yields ErrStale.
	UpdateProposalState(ctx context.Context, proposalID string, from, to ProposalState, at time.Time) error
}

// ExchangeStore wraps the multi-entity transitions that must commit
// atomically: a proposal state flip plus both garment availability flips.
type ExchangeStore interface {
	// AcceptExchange moves a pending, unexpired proposal to accepted and both
	// garments from available to reserved; any stale precondition rolls the
	// whole write back with ErrStale.
	AcceptExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error
	// ReleaseExchange moves an accepted proposal to cancelled and both
	// garments from reserved back to available.
	ReleaseExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error
	// CompleteExchange moves an accepted proposal to completed and both
	// garments from reserved to traded.
	CompleteExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error
}

// SweepStore supports the expiration sweeper's bulk transitions.
type SweepStore interface {
	// ExpireDueProposals bulk-moves every pending proposal past its deadline
	// to expired in one conditional update and returns the affected rows.
	ExpireDueProposals(ctx context.Context, now time.Time) ([]ProposalRecord, error)
	// ListProposalsExpiringBefore lists pending proposals due after now and
	// before deadline, soonest first.
	ListProposalsExpiringBefore(ctx context.Context, now, deadline time.Time) ([]ProposalRecord, error)
}

// MessageStore persists negotiation messages.
type MessageStore interface {
	PutMessage(ctx context.Context, record MessageRecord) error
	ListMessagesByProposal(ctx context.Context, proposalID string) ([]MessageRecord, error)
	// MarkMessagesRead marks every unread non-system message in the proposal
	// not authored by readerUserID and reports how many rows changed.
	MarkMessagesRead(ctx context.Context, proposalID, readerUserID string, readAt time.Time) (int, error)
	CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) (int, error)
}

// EvaluationStore persists evaluations, dimensions, and reputation scores.
type EvaluationStore interface {
	// PutEvaluation atomically persists the evaluation and its dimension
	// rating rows; a duplicate (proposal, evaluator) pair yields ErrConflict.
	PutEvaluation(ctx context.Context, record EvaluationRecord) error
	HasEvaluation(ctx context.Context, proposalID, evaluatorUserID string) (bool, error)
	ListEvaluationsByEvaluatedUser(ctx context.Context, evaluatedUserID string) ([]EvaluationRecord, error)
	ListDimensions(ctx context.Context) ([]DimensionRecord, error)
	SetUserReputation(ctx context.Context, userID string, score float64, at time.Time) error
	// GetUserReputation returns the stored score, or ErrNotFound when the
	// user has never been evaluated.
	GetUserReputation(ctx context.Context, userID string) (float64, error)
}
