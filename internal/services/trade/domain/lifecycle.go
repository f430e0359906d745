package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// TransitionInput identifies one lifecycle transition request.
type TransitionInput struct {
	ProposalID  string
	ActorUserID string
	// Reason optionally annotates reject and cancel closures in the
	// transcript.
	Reason string
}

func (in TransitionInput) validate() (string, string, error) {
	proposalID := strings.TrimSpace(in.ProposalID)
	actorID := strings.TrimSpace(in.ActorUserID)
	if proposalID == "" {
		return "", "", fmt.Errorf("%w: proposal id is required", ErrInvalidInput)
	}
	if actorID == "" {
		return "", "", fmt.Errorf("%w: actor user id is required", ErrInvalidInput)
	}
	return proposalID, actorID, nil
}

// Accept commits the receiver to the exchange: the proposal moves to
// accepted and both garments are reserved in one atomic write. Only the
// owner of the requested garment may accept, and only while the proposal is
// pending and not past its deadline.
func (s *Service) Accept(ctx context.Context, input TransitionInput) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	proposalID, actorID, err := input.validate()
	if err != nil {
		return Proposal{}, err
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if actorID != proposal.ReceiverUserID {
		return Proposal{}, ErrNotPermitted
	}
	if proposal.State != StatePending {
		return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
	}
	now := s.nowUTC()
	if !now.Before(proposal.ExpiresAt) {
		return Proposal{}, ErrProposalExpired
	}

	// The store re-validates every precondition inside the transaction, so a
	// transition that raced an expiry sweep or a garment withdrawal rolls
	// back whole.
	if err := s.store.AcceptExchange(ctx, proposal.ID, proposal.OfferedGarmentID, proposal.RequestedGarmentID, now); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Proposal{}, fmt.Errorf("%w: proposal or garment state moved during accept", ErrStateChanged)
		}
		return Proposal{}, err
	}

	proposal.State = StateAccepted
	proposal.RespondedAt = &now
	proposal.UpdatedAt = now

	s.notify(ctx, proposal.ProposerUserID,
		"Proposal accepted",
		"Your trade proposal was accepted. Negotiation is open.",
		"proposal.accepted", proposal.ID)
	s.notify(ctx, proposal.ReceiverUserID,
		"Trade reserved",
		"Both garments are now reserved for this exchange.",
		"proposal.accepted", proposal.ID)
	return proposal, nil
}

// Reject declines a pending proposal. Only the receiver may reject.
func (s *Service) Reject(ctx context.Context, input TransitionInput) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	proposalID, actorID, err := input.validate()
	if err != nil {
		return Proposal{}, err
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if actorID != proposal.ReceiverUserID {
		return Proposal{}, ErrNotPermitted
	}
	if proposal.State != StatePending {
		return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
	}

	now := s.nowUTC()
	if err := s.store.UpdateProposalState(ctx, proposal.ID, StatePending, StateRejected, now); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
		}
		return Proposal{}, err
	}

	proposal.State = StateRejected
	proposal.RespondedAt = &now
	proposal.UpdatedAt = now

	s.appendSystemMessage(ctx, proposal.ID, closureBody("Proposal rejected.", input.Reason))
	s.notify(ctx, proposal.ProposerUserID,
		"Proposal rejected",
		"Your trade proposal was declined.",
		"proposal.rejected", proposal.ID)
	return proposal, nil
}

// Cancel withdraws a proposal. Only the proposer may cancel, from pending or
// accepted; cancelling an accepted proposal releases both garments back to
// the tradable pool in the same atomic write.
func (s *Service) Cancel(ctx context.Context, input TransitionInput) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	proposalID, actorID, err := input.validate()
	if err != nil {
		return Proposal{}, err
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if actorID != proposal.ProposerUserID {
		return Proposal{}, ErrNotPermitted
	}

	now := s.nowUTC()
	switch proposal.State {
	case StatePending:
		if err := s.store.UpdateProposalState(ctx, proposal.ID, StatePending, StateCancelled, now); err != nil {
			if errors.Is(err, ErrStateChanged) {
				return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
			}
			return Proposal{}, err
		}
	case StateAccepted:
		if err := s.store.ReleaseExchange(ctx, proposal.ID, proposal.OfferedGarmentID, proposal.RequestedGarmentID, now); err != nil {
			if errors.Is(err, ErrStateChanged) {
				return Proposal{}, fmt.Errorf("%w: proposal is no longer accepted", ErrStateChanged)
			}
			return Proposal{}, err
		}
	default:
		return Proposal{}, fmt.Errorf("%w: proposal is no longer pending or accepted", ErrStateChanged)
	}

	proposal.State = StateCancelled
	proposal.UpdatedAt = now

	s.appendSystemMessage(ctx, proposal.ID, closureBody("Proposal cancelled by the proposer.", input.Reason))
	s.notify(ctx, proposal.ReceiverUserID,
		"Proposal cancelled",
		"The proposer withdrew the trade proposal.",
		"proposal.cancelled", proposal.ID)
	return proposal, nil
}

// Complete records that both parties finished the exchange: the proposal
// moves to completed and both garments permanently leave the tradable pool.
// Either party may complete an accepted proposal; completion unlocks
// evaluation eligibility for both.
func (s *Service) Complete(ctx context.Context, input TransitionInput) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	proposalID, actorID, err := input.validate()
	if err != nil {
		return Proposal{}, err
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if !proposal.IsParty(actorID) {
		return Proposal{}, ErrNotPermitted
	}
	if proposal.State != StateAccepted {
		return Proposal{}, fmt.Errorf("%w: proposal is no longer accepted", ErrStateChanged)
	}

	now := s.nowUTC()
	if err := s.store.CompleteExchange(ctx, proposal.ID, proposal.OfferedGarmentID, proposal.RequestedGarmentID, now); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Proposal{}, fmt.Errorf("%w: proposal is no longer accepted", ErrStateChanged)
		}
		return Proposal{}, err
	}

	proposal.State = StateCompleted
	proposal.UpdatedAt = now

	s.appendSystemMessage(ctx, proposal.ID, "Exchange completed. Both parties may now evaluate each other.")
	s.notify(ctx, proposal.ProposerUserID,
		"Exchange completed",
		"The trade is complete. You can now evaluate the other party.",
		"proposal.completed", proposal.ID)
	s.notify(ctx, proposal.ReceiverUserID,
		"Exchange completed",
		"The trade is complete. You can now evaluate the other party.",
		"proposal.completed", proposal.ID)
	return proposal, nil
}

// ExpireProposal forces one overdue pending proposal into the expired state.
// Expiring a proposal that is already expired is a no-op, not an error.
func (s *Service) ExpireProposal(ctx context.Context, proposalID string) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return Proposal{}, err
	}
	if proposal.State == StateExpired {
		return proposal, nil
	}
	if proposal.State != StatePending {
		return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
	}
	now := s.nowUTC()
	if now.Before(proposal.ExpiresAt) {
		return Proposal{}, fmt.Errorf("%w: proposal is not due for expiry", ErrInvalidInput)
	}

	if err := s.store.UpdateProposalState(ctx, proposal.ID, StatePending, StateExpired, now); err != nil {
		if errors.Is(err, ErrStateChanged) {
			return Proposal{}, fmt.Errorf("%w: proposal is no longer pending", ErrStateChanged)
		}
		return Proposal{}, err
	}

	proposal.State = StateExpired
	proposal.UpdatedAt = now
	s.finishExpired(ctx, proposal)
	return proposal, nil
}

func (s *Service) finishExpired(ctx context.Context, proposal Proposal) {
	s.appendSystemMessage(ctx, proposal.ID, "Proposal expired without a response.")
	s.notify(ctx, proposal.ProposerUserID,
		"Proposal expired",
		"Your trade proposal expired without a response.",
		"proposal.expired", proposal.ID)
	s.notify(ctx, proposal.ReceiverUserID,
		"Proposal expired",
		"A trade proposal addressed to you expired.",
		"proposal.expired", proposal.ID)
}

// appendSystemMessage records a lifecycle milestone in the transcript. The
// transition has already committed, so a failed append is logged, not
// propagated.
func (s *Service) appendSystemMessage(ctx context.Context, proposalID, body string) {
	if s == nil || s.store == nil || s.newID == nil {
		return
	}
	messageID, err := s.newID()
	if err != nil {
		log.Printf("trade: system message id for %s: %v", proposalID, err)
		return
	}
	if err := s.store.PutMessage(ctx, Message{
		ID:           messageID,
		ProposalID:   proposalID,
		SenderUserID: SystemSenderID,
		Body:         body,
		System:       true,
		SentAt:       s.nowUTC(),
	}); err != nil {
		log.Printf("trade: append system message for %s: %v", proposalID, err)
	}
}

func closureBody(base, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return base
	}
	return base + " Reason: " + reason
}
