package domain

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"
)

// SendMessageInput describes one negotiation message request.
type SendMessageInput struct {
	ProposalID   string
	SenderUserID string
	Body         string
}

// CanSendMessage reports whether the user may currently message on the
// proposal: the user is a party and the proposal is exactly accepted.
// Pending proposals have no commitment yet; terminal proposals have an
// archived channel.
func (s *Service) CanSendMessage(ctx context.Context, proposalID, userID string) (bool, error) {
	if s == nil || s.store == nil {
		return false, ErrStoreNotConfigured
	}
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return false, err
	}
	if !proposal.IsParty(userID) {
		return false, nil
	}
	return proposal.State == StateAccepted, nil
}

// SendMessage persists one negotiation message and fans it out to live
// subscribers. Messaging is gated on the accepted state; nothing is written
// when the gate refuses.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (Message, error) {
	if s == nil || s.store == nil {
		return Message{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Message{}, ErrIDGeneratorNotConfigured
	}
	senderID := strings.TrimSpace(input.SenderUserID)
	body := strings.TrimSpace(input.Body)
	if senderID == "" {
		return Message{}, fmt.Errorf("%w: sender user id is required", ErrInvalidInput)
	}
	if body == "" {
		return Message{}, ErrMessageEmpty
	}
	if utf8.RuneCountInString(body) > s.cfg.MaxMessageRunes {
		return Message{}, ErrMessageTooLong
	}

	proposal, err := s.GetProposal(ctx, input.ProposalID)
	if err != nil {
		return Message{}, err
	}
	if !proposal.IsParty(senderID) {
		return Message{}, ErrNotPermitted
	}
	if proposal.State != StateAccepted {
		return Message{}, ErrNegotiationClosed
	}

	messageID, err := s.newID()
	if err != nil {
		return Message{}, err
	}
	message := Message{
		ID:           messageID,
		ProposalID:   proposal.ID,
		SenderUserID: senderID,
		Body:         body,
		SentAt:       s.nowUTC(),
	}
	if err := s.store.PutMessage(ctx, message); err != nil {
		return Message{}, err
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(proposal.ID, message); err != nil {
			log.Printf("trade: broadcast message %s: %v", message.ID, err)
		}
	}

	s.notify(ctx, proposal.Counterparty(senderID),
		"New negotiation message",
		"You received a new message about your trade.",
		"message.received", proposal.ID)
	return message, nil
}

// ListMessages returns one proposal transcript for a party, oldest first.
// Reading implicitly marks every message not authored by the reader as read.
func (s *Service) ListMessages(ctx context.Context, proposalID, readerUserID string) ([]Message, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	readerUserID = strings.TrimSpace(readerUserID)
	if readerUserID == "" {
		return nil, fmt.Errorf("%w: reader user id is required", ErrInvalidInput)
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.IsParty(readerUserID) {
		return nil, ErrNotPermitted
	}

	if _, err := s.store.MarkMessagesRead(ctx, proposal.ID, readerUserID, s.nowUTC()); err != nil {
		return nil, err
	}
	return s.store.ListMessagesByProposal(ctx, proposal.ID)
}

// CountUnreadMessages counts unread negotiation messages addressed to the reader.
func (s *Service) CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	readerUserID = strings.TrimSpace(readerUserID)
	if readerUserID == "" {
		return 0, fmt.Errorf("%w: reader user id is required", ErrInvalidInput)
	}

	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}
	if !proposal.IsParty(readerUserID) {
		return 0, ErrNotPermitted
	}
	return s.store.CountUnreadMessages(ctx, proposal.ID, readerUserID)
}
