package domain

import (
	"strings"
	"time"
)

// State identifies one proposal lifecycle state.
type State string

const (
	// StatePending is the initial state, waiting on the receiver.
	StatePending State = "pending"
	// StateAccepted means the receiver committed and negotiation is open.
	StateAccepted State = "accepted"
	// StateCompleted means both parties finished the exchange.
	StateCompleted State = "completed"
	// StateRejected means the receiver declined the pending proposal.
	StateRejected State = "rejected"
	// StateCancelled means the proposer withdrew the proposal.
	StateCancelled State = "cancelled"
	// StateExpired means the deadline passed before a response.
	StateExpired State = "expired"
)

// Terminal reports whether no further transition may leave the state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Proposal captures one barter proposal linking exactly two garments and two
// users. The receiver is the owner of the requested garment.
type Proposal struct {
	ID                 string
	ProposerUserID     string
	ReceiverUserID     string
	OfferedGarmentID   string
	RequestedGarmentID string
	Message            string
	State              State
	Priority           int
	IsCounteroffer     bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	RespondedAt        *time.Time
	ExpiresAt          time.Time
}

// IsParty reports whether the user is the proposer or the receiver.
func (p Proposal) IsParty(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return userID == p.ProposerUserID || userID == p.ReceiverUserID
}

// Counterparty returns the other party of the proposal, or an empty string
// when the user is not a party.
func (p Proposal) Counterparty(userID string) string {
	switch strings.TrimSpace(userID) {
	case p.ProposerUserID:
		return p.ReceiverUserID
	case p.ReceiverUserID:
		return p.ProposerUserID
	}
	return ""
}
