package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// fakeStore is an in-memory Store with the same conditional-write semantics
// as the SQLite implementation.
type fakeStore struct {
	mu          sync.Mutex
	garments    map[string]Garment
	proposals   map[string]Proposal
	messages    map[string][]Message
	evaluations []Evaluation
	dimensions  []Dimension
	reputation  map[string]float64

	failAcceptGarmentFlip bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		garments:   make(map[string]Garment),
		proposals:  make(map[string]Proposal),
		messages:   make(map[string][]Message),
		reputation: make(map[string]float64),
		dimensions: []Dimension{
			{ID: "quality", Name: "Garment quality", Weight: 2.0},
			{ID: "communication", Name: "Communication", Weight: 1.0},
			{ID: "punctuality", Name: "Punctuality", Weight: 1.0},
		},
	}
}

func (f *fakeStore) PutGarment(_ context.Context, garment Garment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.garments[garment.ID] = garment
	return nil
}

func (f *fakeStore) GetGarment(_ context.Context, garmentID string) (Garment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	garment, ok := f.garments[garmentID]
	if !ok {
		return Garment{}, ErrNotFound
	}
	return garment, nil
}

func (f *fakeStore) SetGarmentAvailability(_ context.Context, garmentID string, from, to Availability, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setGarmentAvailabilityLocked(garmentID, from, to, at), nil
}

func (f *fakeStore) setGarmentAvailabilityLocked(garmentID string, from, to Availability, at time.Time) bool {
	garment, ok := f.garments[garmentID]
	if !ok || garment.Availability != from {
		return false
	}
	garment.Availability = to
	garment.UpdatedAt = at
	f.garments[garmentID] = garment
	return true
}

func (f *fakeStore) PutProposal(_ context.Context, proposal Proposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.proposals[proposal.ID]; ok {
		return ErrConflict
	}
	f.proposals[proposal.ID] = proposal
	return nil
}

func (f *fakeStore) GetProposal(_ context.Context, proposalID string) (Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok {
		return Proposal{}, ErrNotFound
	}
	return proposal, nil
}

func (f *fakeStore) ListProposalsByUser(_ context.Context, userID string) ([]Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var proposals []Proposal
	for _, proposal := range f.proposals {
		if proposal.ProposerUserID == userID || proposal.ReceiverUserID == userID {
			proposals = append(proposals, proposal)
		}
	}
	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].CreatedAt.After(proposals[j].CreatedAt)
	})
	return proposals, nil
}

func proposalActive(proposal Proposal, now time.Time) bool {
	if proposal.State == StateAccepted {
		return true
	}
	return proposal.State == StatePending && proposal.ExpiresAt.After(now)
}

func (f *fakeStore) CountActiveProposalsByGarment(_ context.Context, garmentID string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, proposal := range f.proposals {
		if proposal.OfferedGarmentID != garmentID && proposal.RequestedGarmentID != garmentID {
			continue
		}
		if proposalActive(proposal, now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) HasActiveProposalForPair(_ context.Context, offeredGarmentID, requestedGarmentID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, proposal := range f.proposals {
		if proposal.OfferedGarmentID == offeredGarmentID &&
			proposal.RequestedGarmentID == requestedGarmentID &&
			proposalActive(proposal, now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) UpdateProposalState(_ context.Context, proposalID string, from, to State, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok || proposal.State != from {
		return ErrStateChanged
	}
	proposal.State = to
	proposal.UpdatedAt = at
	if to == StateAccepted || to == StateRejected {
		respondedAt := at
		proposal.RespondedAt = &respondedAt
	}
	f.proposals[proposalID] = proposal
	return nil
}

func (f *fakeStore) AcceptExchange(_ context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok || proposal.State != StatePending || !proposal.ExpiresAt.After(at) {
		return ErrStateChanged
	}
	if f.failAcceptGarmentFlip {
		return ErrStateChanged
	}
	before := f.snapshotGarmentsLocked(offeredGarmentID, requestedGarmentID)
	for _, garmentID := range []string{offeredGarmentID, requestedGarmentID} {
		if !f.setGarmentAvailabilityLocked(garmentID, AvailabilityAvailable, AvailabilityReserved, at) {
			f.restoreGarmentsLocked(before)
			return ErrStateChanged
		}
	}
	proposal.State = StateAccepted
	respondedAt := at
	proposal.RespondedAt = &respondedAt
	proposal.UpdatedAt = at
	f.proposals[proposalID] = proposal
	return nil
}

func (f *fakeStore) ReleaseExchange(_ context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	return f.exchange(proposalID, offeredGarmentID, requestedGarmentID, at, StateCancelled, AvailabilityReserved, AvailabilityAvailable)
}

func (f *fakeStore) CompleteExchange(_ context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	return f.exchange(proposalID, offeredGarmentID, requestedGarmentID, at, StateCompleted, AvailabilityReserved, AvailabilityTraded)
}

func (f *fakeStore) exchange(proposalID, offeredGarmentID, requestedGarmentID string, at time.Time, to State, fromAvailability, toAvailability Availability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	proposal, ok := f.proposals[proposalID]
	if !ok || proposal.State != StateAccepted {
		return ErrStateChanged
	}
	before := f.snapshotGarmentsLocked(offeredGarmentID, requestedGarmentID)
	for _, garmentID := range []string{offeredGarmentID, requestedGarmentID} {
		if !f.setGarmentAvailabilityLocked(garmentID, fromAvailability, toAvailability, at) {
			f.restoreGarmentsLocked(before)
			return ErrStateChanged
		}
	}
	proposal.State = to
	proposal.UpdatedAt = at
	f.proposals[proposalID] = proposal
	return nil
}

func (f *fakeStore) snapshotGarmentsLocked(garmentIDs ...string) map[string]Garment {
	snapshot := make(map[string]Garment, len(garmentIDs))
	for _, garmentID := range garmentIDs {
		if garment, ok := f.garments[garmentID]; ok {
			snapshot[garmentID] = garment
		}
	}
	return snapshot
}

func (f *fakeStore) restoreGarmentsLocked(snapshot map[string]Garment) {
	for garmentID, garment := range snapshot {
		f.garments[garmentID] = garment
	}
}

func (f *fakeStore) ExpireDueProposals(_ context.Context, now time.Time) ([]Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expired []Proposal
	for proposalID, proposal := range f.proposals {
		if proposal.State != StatePending || proposal.ExpiresAt.After(now) {
			continue
		}
		proposal.State = StateExpired
		proposal.UpdatedAt = now
		f.proposals[proposalID] = proposal
		expired = append(expired, proposal)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	return expired, nil
}

func (f *fakeStore) ListProposalsExpiringBefore(_ context.Context, now, deadline time.Time) ([]Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var expiring []Proposal
	for _, proposal := range f.proposals {
		if proposal.State != StatePending {
			continue
		}
		if proposal.ExpiresAt.After(now) && !proposal.ExpiresAt.After(deadline) {
			expiring = append(expiring, proposal)
		}
	}
	sort.Slice(expiring, func(i, j int) bool {
		return expiring[i].ExpiresAt.Before(expiring[j].ExpiresAt)
	})
	return expiring, nil
}

func (f *fakeStore) PutMessage(_ context.Context, message Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[message.ProposalID] = append(f.messages[message.ProposalID], message)
	return nil
}

func (f *fakeStore) ListMessagesByProposal(_ context.Context, proposalID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	messages := make([]Message, len(f.messages[proposalID]))
	copy(messages, f.messages[proposalID])
	return messages, nil
}

func (f *fakeStore) MarkMessagesRead(_ context.Context, proposalID, readerUserID string, readAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	marked := 0
	messages := f.messages[proposalID]
	for i, message := range messages {
		if message.System || message.SenderUserID == readerUserID || message.ReadAt != nil {
			continue
		}
		at := readAt
		messages[i].ReadAt = &at
		marked++
	}
	return marked, nil
}

func (f *fakeStore) CountUnreadMessages(_ context.Context, proposalID, readerUserID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, message := range f.messages[proposalID] {
		if !message.System && message.SenderUserID != readerUserID && message.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) PutEvaluation(_ context.Context, evaluation Evaluation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.evaluations {
		if existing.ProposalID == evaluation.ProposalID && existing.EvaluatorUserID == evaluation.EvaluatorUserID {
			return ErrConflict
		}
	}
	f.evaluations = append(f.evaluations, evaluation)
	return nil
}

func (f *fakeStore) HasEvaluation(_ context.Context, proposalID, evaluatorUserID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evaluation := range f.evaluations {
		if evaluation.ProposalID == proposalID && evaluation.EvaluatorUserID == evaluatorUserID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListEvaluationsByEvaluatedUser(_ context.Context, evaluatedUserID string) ([]Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var evaluations []Evaluation
	for _, evaluation := range f.evaluations {
		if evaluation.EvaluatedUserID == evaluatedUserID {
			evaluations = append(evaluations, evaluation)
		}
	}
	return evaluations, nil
}

func (f *fakeStore) ListDimensions(_ context.Context) ([]Dimension, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dimensions := make([]Dimension, len(f.dimensions))
	copy(dimensions, f.dimensions)
	return dimensions, nil
}

func (f *fakeStore) SetUserReputation(_ context.Context, userID string, score float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reputation[userID] = score
	return nil
}

func (f *fakeStore) GetUserReputation(_ context.Context, userID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score, ok := f.reputation[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return score, nil
}

// fakeNotifier records notification requests in order.
type fakeNotifier struct {
	mu    sync.Mutex
	sends []fakeNotification
	fail  bool
}

type fakeNotification struct {
	UserID      string
	Title       string
	Category    string
	ReferenceID string
}

func (f *fakeNotifier) Send(_ context.Context, userID, title, _ string, category, referenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("notifier unavailable")
	}
	f.sends = append(f.sends, fakeNotification{
		UserID:      userID,
		Title:       title,
		Category:    category,
		ReferenceID: referenceID,
	})
	return nil
}

func (f *fakeNotifier) byCategory(category string) []fakeNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []fakeNotification
	for _, send := range f.sends {
		if send.Category == category {
			matched = append(matched, send)
		}
	}
	return matched
}

// fakeBroadcaster records live fanout calls.
type fakeBroadcaster struct {
	mu     sync.Mutex
	bursts []Message
}

func (f *fakeBroadcaster) Broadcast(_ string, message Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bursts = append(f.bursts, message)
	return nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func countingIDGenerator(prefix string) func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", fmt.Errorf("id sequence exhausted")
		}
		id := ids[index]
		index++
		return id, nil
	}
}
