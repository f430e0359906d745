package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CreateProposalInput describes one proposal creation request.
type CreateProposalInput struct {
	ProposerUserID     string
	OfferedGarmentID   string
	RequestedGarmentID string
	Message            string
	IsCounteroffer     bool
}

// CreateProposal runs the admission checks and records a new pending
// proposal. Checks short-circuit on the first failure, each with a distinct
// reason: garments exist, ownership is correct, both are available, neither
// garment is at the admission cap, and no active duplicate pair exists.
func (s *Service) CreateProposal(ctx context.Context, input CreateProposalInput) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Proposal{}, ErrIDGeneratorNotConfigured
	}
	proposerID := strings.TrimSpace(input.ProposerUserID)
	offeredID := strings.TrimSpace(input.OfferedGarmentID)
	requestedID := strings.TrimSpace(input.RequestedGarmentID)
	message := strings.TrimSpace(input.Message)
	if proposerID == "" {
		return Proposal{}, fmt.Errorf("%w: proposer user id is required", ErrInvalidInput)
	}
	if offeredID == "" || requestedID == "" {
		return Proposal{}, fmt.Errorf("%w: offered and requested garment ids are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxProposalNoteRunes {
		return Proposal{}, ErrMessageTooLong
	}

	offered, err := s.store.GetGarment(ctx, offeredID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Proposal{}, fmt.Errorf("%w: %s", ErrGarmentNotFound, offeredID)
		}
		return Proposal{}, err
	}
	requested, err := s.store.GetGarment(ctx, requestedID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Proposal{}, fmt.Errorf("%w: %s", ErrGarmentNotFound, requestedID)
		}
		return Proposal{}, err
	}

	if offered.OwnerUserID != proposerID {
		return Proposal{}, ErrNotGarmentOwner
	}
	if requested.OwnerUserID == proposerID {
		return Proposal{}, ErrSelfTrade
	}
	if offered.Availability != AvailabilityAvailable {
		return Proposal{}, fmt.Errorf("%w: %s", ErrGarmentUnavailable, offered.ID)
	}
	if requested.Availability != AvailabilityAvailable {
		return Proposal{}, fmt.Errorf("%w: %s", ErrGarmentUnavailable, requested.ID)
	}

	now := s.nowUTC()
	for _, garmentID := range []string{offered.ID, requested.ID} {
		count, err := s.store.CountActiveProposalsByGarment(ctx, garmentID, now)
		if err != nil {
			return Proposal{}, err
		}
		if count >= s.cfg.AdmissionCap {
			return Proposal{}, fmt.Errorf("%w: %s", ErrGarmentSaturated, garmentID)
		}
	}

	exists, err := s.store.HasActiveProposalForPair(ctx, offered.ID, requested.ID, now)
	if err != nil {
		return Proposal{}, err
	}
	if exists {
		return Proposal{}, ErrDuplicateProposal
	}

	proposalID, err := s.newID()
	if err != nil {
		return Proposal{}, err
	}
	proposal := Proposal{
		ID:                 proposalID,
		ProposerUserID:     proposerID,
		ReceiverUserID:     requested.OwnerUserID,
		OfferedGarmentID:   offered.ID,
		RequestedGarmentID: requested.ID,
		Message:            message,
		State:              StatePending,
		IsCounteroffer:     input.IsCounteroffer,
		CreatedAt:          now,
		UpdatedAt:          now,
		ExpiresAt:          now.Add(s.cfg.ProposalTTL),
	}
	if err := s.store.PutProposal(ctx, proposal); err != nil {
		return Proposal{}, err
	}

	s.notify(ctx, proposal.ReceiverUserID,
		"New trade proposal",
		"Someone proposed a garment exchange with you.",
		"proposal.created", proposal.ID)
	return proposal, nil
}

// GetProposal loads one proposal by id.
func (s *Service) GetProposal(ctx context.Context, proposalID string) (Proposal, error) {
	if s == nil || s.store == nil {
		return Proposal{}, ErrStoreNotConfigured
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return Proposal{}, fmt.Errorf("%w: proposal id is required", ErrInvalidInput)
	}
	proposal, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Proposal{}, ErrProposalNotFound
		}
		return Proposal{}, err
	}
	return proposal, nil
}

// ListProposalsByUser lists proposals where the user is a party, newest first.
func (s *Service) ListProposalsByUser(ctx context.Context, userID string) ([]Proposal, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.ListProposalsByUser(ctx, userID)
}

// WithdrawGarment pulls an available garment from the tradable pool. A
// garment reserved by an accepted proposal cannot be withdrawn.
func (s *Service) WithdrawGarment(ctx context.Context, garmentID, actorUserID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	garmentID = strings.TrimSpace(garmentID)
	actorUserID = strings.TrimSpace(actorUserID)
	if garmentID == "" {
		return fmt.Errorf("%w: garment id is required", ErrInvalidInput)
	}
	if actorUserID == "" {
		return fmt.Errorf("%w: actor user id is required", ErrInvalidInput)
	}

	garment, err := s.store.GetGarment(ctx, garmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrGarmentNotFound
		}
		return err
	}
	if garment.OwnerUserID != actorUserID {
		return ErrNotPermitted
	}

	changed, err := s.store.SetGarmentAvailability(ctx, garmentID, AvailabilityAvailable, AvailabilityWithdrawn, s.nowUTC())
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("%w: %s", ErrGarmentUnavailable, garmentID)
	}
	return nil
}
