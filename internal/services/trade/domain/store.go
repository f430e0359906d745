package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicted with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrStateChanged indicates a conditional write lost its precondition to
	// a concurrent transition; callers should refresh and retry.
	ErrStateChanged = errors.New("state changed, refresh and retry")
)

// Store is the domain persistence boundary for trade lifecycle behavior.
// Conditional methods carry their required prior state inside the write, so
// races resolve to one winner and ErrStateChanged for the loser.
type Store interface {
	PutGarment(ctx context.Context, garment Garment) error
	GetGarment(ctx context.Context, garmentID string) (Garment, error)
	SetGarmentAvailability(ctx context.Context, garmentID string, from, to Availability, at time.Time) (bool, error)

	PutProposal(ctx context.Context, proposal Proposal) error
	GetProposal(ctx context.Context, proposalID string) (Proposal, error)
	ListProposalsByUser(ctx context.Context, userID string) ([]Proposal, error)
	CountActiveProposalsByGarment(ctx context.Context, garmentID string, now time.Time) (int, error)
	HasActiveProposalForPair(ctx context.Context, offeredGarmentID, requestedGarmentID string, now time.Time) (bool, error)
	UpdateProposalState(ctx context.Context, proposalID string, from, to State, at time.Time) error

	AcceptExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error
	ReleaseExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error
	CompleteExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error

	ExpireDueProposals(ctx context.Context, now time.Time) ([]Proposal, error)
	ListProposalsExpiringBefore(ctx context.Context, now, deadline time.Time) ([]Proposal, error)

	PutMessage(ctx context.Context, message Message) error
	ListMessagesByProposal(ctx context.Context, proposalID string) ([]Message, error)
	MarkMessagesRead(ctx context.Context, proposalID, readerUserID string, readAt time.Time) (int, error)
	CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) (int, error)

	PutEvaluation(ctx context.Context, evaluation Evaluation) error
	HasEvaluation(ctx context.Context, proposalID, evaluatorUserID string) (bool, error)
	ListEvaluationsByEvaluatedUser(ctx context.Context, evaluatedUserID string) ([]Evaluation, error)
	ListDimensions(ctx context.Context) ([]Dimension, error)
	SetUserReputation(ctx context.Context, userID string, score float64, at time.Time) error
	GetUserReputation(ctx context.Context, userID string) (float64, error)
}
