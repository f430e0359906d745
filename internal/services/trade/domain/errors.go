package domain

import "errors"

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("trade store is not configured")
	// ErrIDGeneratorNotConfigured indicates an ID generator is required.
	ErrIDGeneratorNotConfigured = errors.New("trade id generator is not configured")

	// ErrInvalidInput wraps request validation failures. The wrapped message is
	// safe to surface to the caller verbatim.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGarmentNotFound indicates a referenced garment does not exist.
	ErrGarmentNotFound = errors.New("garment not found")
	// ErrProposalNotFound indicates a referenced proposal does not exist.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrNotGarmentOwner indicates the offered garment does not belong to the proposer.
	ErrNotGarmentOwner = errors.New("offered garment does not belong to the proposer")
	// ErrSelfTrade indicates the requested garment already belongs to the proposer.
	ErrSelfTrade = errors.New("requested garment already belongs to the proposer")
	// ErrGarmentUnavailable indicates a garment is not in the tradable pool.
	ErrGarmentUnavailable = errors.New("garment is not available for trade")
	// ErrGarmentSaturated indicates the garment already carries the maximum
	// number of active proposals.
	ErrGarmentSaturated = errors.New("garment already has the maximum number of active proposals")
	// ErrDuplicateProposal indicates an active proposal already links the
	// exact (offered, requested) garment pair.
	ErrDuplicateProposal = errors.New("an active proposal already links these garments")

	// ErrNotPermitted indicates the actor may not perform the transition.
	ErrNotPermitted = errors.New("not permitted")
	// ErrProposalExpired indicates the proposal deadline has already passed.
	ErrProposalExpired = errors.New("proposal has expired")

	// ErrNegotiationClosed indicates messaging is not open for the proposal:
	// either no commitment yet (pending) or the channel is archived (terminal).
	ErrNegotiationClosed = errors.New("negotiation is not open for messages")
	// ErrMessageEmpty indicates a message body is required.
	ErrMessageEmpty = errors.New("message body is required")
	// ErrMessageTooLong indicates a message body exceeds the configured bound.
	ErrMessageTooLong = errors.New("message body exceeds the maximum length")

	// ErrProposalNotCompleted indicates evaluation requires a completed trade.
	ErrProposalNotCompleted = errors.New("proposal is not completed")
	// ErrDuplicateEvaluation indicates the evaluator already rated this proposal.
	ErrDuplicateEvaluation = errors.New("evaluation already submitted for this proposal")
	// ErrRatingOutOfRange indicates a rating outside the 1 to 5 range.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
	// ErrUnknownDimension indicates a rated dimension id is not part of the
	// reference dimension set.
	ErrUnknownDimension = errors.New("unknown evaluation dimension")
)
