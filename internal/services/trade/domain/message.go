package domain

import "time"

// SystemSenderID is the reserved sender id for synthetic transcript messages
// recording lifecycle milestones. System messages are not negotiation turns
// and are never marked read.
const SystemSenderID = "system"

// Message captures one negotiation message in a proposal transcript.
type Message struct {
	ID           string
	ProposalID   string
	SenderUserID string
	Body         string
	System       bool
	SentAt       time.Time
	ReadAt       *time.Time
}
