package domain

import (
	"context"
	"testing"
	"time"
)

func TestExpireDue(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier, Config{})

	// Three pending proposals: one overdue, one due later, and one already
	// accepted with an overdue deadline that must be left alone.
	overdue := Proposal{
		ID: "proposal-overdue", ProposerUserID: "alice", ReceiverUserID: "bob",
		OfferedGarmentID: "garment-1", RequestedGarmentID: "garment-2",
		State: StatePending, CreatedAt: testStart.Add(-8 * 24 * time.Hour),
		ExpiresAt: testStart.Add(-time.Hour),
	}
	fresh := Proposal{
		ID: "proposal-fresh", ProposerUserID: "carol", ReceiverUserID: "dave",
		OfferedGarmentID: "garment-3", RequestedGarmentID: "garment-4",
		State: StatePending, CreatedAt: testStart,
		ExpiresAt: testStart.Add(24 * time.Hour),
	}
	accepted := Proposal{
		ID: "proposal-accepted", ProposerUserID: "erin", ReceiverUserID: "frank",
		OfferedGarmentID: "garment-5", RequestedGarmentID: "garment-6",
		State: StateAccepted, CreatedAt: testStart.Add(-8 * 24 * time.Hour),
		ExpiresAt: testStart.Add(-time.Hour),
	}
	for _, proposal := range []Proposal{overdue, fresh, accepted} {
		if err := store.PutProposal(context.Background(), proposal); err != nil {
			t.Fatalf("seed proposal %s: %v", proposal.ID, err)
		}
	}

	expired, err := service.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != overdue.ID {
		t.Fatalf("expired = %+v, want only the overdue proposal", expired)
	}

	for id, want := range map[string]State{
		overdue.ID:  StateExpired,
		fresh.ID:    StatePending,
		accepted.ID: StateAccepted,
	} {
		stored, err := store.GetProposal(context.Background(), id)
		if err != nil {
			t.Fatalf("GetProposal(%s): %v", id, err)
		}
		if stored.State != want {
			t.Errorf("proposal %s state = %q, want %q", id, stored.State, want)
		}
	}

	// Each expiry notifies both parties and leaves a system closure.
	sends := notifier.byCategory("proposal.expired")
	if len(sends) != 2 {
		t.Fatalf("expired notifications = %d, want 2", len(sends))
	}
	messages, err := store.ListMessagesByProposal(context.Background(), overdue.ID)
	if err != nil {
		t.Fatalf("ListMessagesByProposal: %v", err)
	}
	if len(messages) != 1 || !messages[0].System {
		t.Errorf("transcript = %+v, want one system closure", messages)
	}
}

func TestExpireDueSecondRunIsQuiet(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier, Config{})

	if err := store.PutProposal(context.Background(), Proposal{
		ID: "proposal-overdue", ProposerUserID: "alice", ReceiverUserID: "bob",
		State: StatePending, ExpiresAt: testStart.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed proposal: %v", err)
	}

	if _, err := service.ExpireDue(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	before := len(notifier.byCategory("proposal.expired"))

	expired, err := service.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("second sweep expired %d proposals, want 0", len(expired))
	}
	if after := len(notifier.byCategory("proposal.expired")); after != before {
		t.Errorf("second sweep sent %d more notifications", after-before)
	}
}

func TestRemindExpiring(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier, Config{ReminderWindow: 48 * time.Hour})

	proposals := []Proposal{
		{
			ID: "proposal-due-soon", ProposerUserID: "alice", ReceiverUserID: "bob",
			State: StatePending, ExpiresAt: testStart.Add(24 * time.Hour),
		},
		{
			ID: "proposal-due-later", ProposerUserID: "carol", ReceiverUserID: "dave",
			State: StatePending, ExpiresAt: testStart.Add(72 * time.Hour),
		},
		{
			ID: "proposal-overdue", ProposerUserID: "erin", ReceiverUserID: "frank",
			State: StatePending, ExpiresAt: testStart.Add(-time.Hour),
		},
	}
	for _, proposal := range proposals {
		if err := store.PutProposal(context.Background(), proposal); err != nil {
			t.Fatalf("seed proposal %s: %v", proposal.ID, err)
		}
	}

	reminded, err := service.RemindExpiring(context.Background())
	if err != nil {
		t.Fatalf("RemindExpiring: %v", err)
	}
	if reminded != 1 {
		t.Fatalf("reminded = %d, want only the proposal inside the window", reminded)
	}

	sends := notifier.byCategory("proposal.expiring")
	if len(sends) != 1 || sends[0].UserID != "bob" {
		t.Errorf("reminder notifications = %+v, want one for bob", sends)
	}
	if sends[0].ReferenceID != "proposal-due-soon" {
		t.Errorf("reminder reference = %q, want proposal-due-soon", sends[0].ReferenceID)
	}
}
