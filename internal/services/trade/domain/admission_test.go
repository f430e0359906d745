package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var testStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, notifier *fakeNotifier, cfg Config) *Service {
	return NewService(store, notifier, nil, cfg, fixedClock(testStart), countingIDGenerator("id"))
}

func seedGarment(store *fakeStore, id, owner string, availability Availability) {
	_ = store.PutGarment(context.Background(), Garment{
		ID:           id,
		OwnerUserID:  owner,
		Title:        "garment " + id,
		Availability: availability,
		CreatedAt:    testStart,
		UpdatedAt:    testStart,
	})
}

func TestCreateProposal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &fakeNotifier{}
	service := newTestService(store, notifier, Config{ProposalTTL: 72 * time.Hour})
	seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)
	seedGarment(store, "garment-bob", "bob", AvailabilityAvailable)

	proposal, err := service.CreateProposal(context.Background(), CreateProposalInput{
		ProposerUserID:     "alice",
		OfferedGarmentID:   "garment-alice",
		RequestedGarmentID: "garment-bob",
		Message:            "  swap?  ",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	if proposal.State != StatePending {
		t.Errorf("state = %q, want %q", proposal.State, StatePending)
	}
	if proposal.ReceiverUserID != "bob" {
		t.Errorf("receiver = %q, want bob", proposal.ReceiverUserID)
	}
	if proposal.Message != "swap?" {
		t.Errorf("message = %q, want trimmed note", proposal.Message)
	}
	if got, want := proposal.ExpiresAt, testStart.Add(72*time.Hour); !got.Equal(want) {
		t.Errorf("expires at = %v, want %v", got, want)
	}

	stored, err := store.GetProposal(context.Background(), proposal.ID)
	if err != nil {
		t.Fatalf("stored proposal: %v", err)
	}
	if stored.State != StatePending {
		t.Errorf("stored state = %q, want pending", stored.State)
	}

	created := notifier.byCategory("proposal.created")
	if len(created) != 1 || created[0].UserID != "bob" {
		t.Errorf("created notifications = %+v, want one for bob", created)
	}
}

func TestCreateProposalAdmissionChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seed    func(t *testing.T, store *fakeStore, service *Service)
		input   CreateProposalInput
		wantErr error
	}{
		{
			name: "offered garment missing",
			input: CreateProposalInput{
				ProposerUserID:     "alice",
				OfferedGarmentID:   "garment-missing",
				RequestedGarmentID: "garment-bob",
			},
			wantErr: ErrGarmentNotFound,
		},
		{
			name: "not owner of offered garment",
			input: CreateProposalInput{
				ProposerUserID:     "carol",
				OfferedGarmentID:   "garment-alice",
				RequestedGarmentID: "garment-bob",
			},
			wantErr: ErrNotGarmentOwner,
		},
		{
			name: "self trade",
			seed: func(_ *testing.T, store *fakeStore, _ *Service) {
				seedGarment(store, "garment-alice-2", "alice", AvailabilityAvailable)
			},
			input: CreateProposalInput{
				ProposerUserID:     "alice",
				OfferedGarmentID:   "garment-alice",
				RequestedGarmentID: "garment-alice-2",
			},
			wantErr: ErrSelfTrade,
		},
		{
			name: "requested garment reserved",
			seed: func(_ *testing.T, store *fakeStore, _ *Service) {
				seedGarment(store, "garment-reserved", "bob", AvailabilityReserved)
			},
			input: CreateProposalInput{
				ProposerUserID:     "alice",
				OfferedGarmentID:   "garment-alice",
				RequestedGarmentID: "garment-reserved",
			},
			wantErr: ErrGarmentUnavailable,
		},
		{
			name: "note too long",
			input: CreateProposalInput{
				ProposerUserID:     "alice",
				OfferedGarmentID:   "garment-alice",
				RequestedGarmentID: "garment-bob",
				Message:            strings.Repeat("x", 501),
			},
			wantErr: ErrMessageTooLong,
		},
		{
			name: "duplicate active pair",
			seed: func(t *testing.T, _ *fakeStore, service *Service) {
				if _, err := service.CreateProposal(context.Background(), CreateProposalInput{
					ProposerUserID:     "alice",
					OfferedGarmentID:   "garment-alice",
					RequestedGarmentID: "garment-bob",
				}); err != nil {
					t.Fatalf("seed duplicate pair: %v", err)
				}
			},
			input: CreateProposalInput{
				ProposerUserID:     "alice",
				OfferedGarmentID:   "garment-alice",
				RequestedGarmentID: "garment-bob",
			},
			wantErr: ErrDuplicateProposal,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			service := newTestService(store, &fakeNotifier{}, Config{})
			seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)
			seedGarment(store, "garment-bob", "bob", AvailabilityAvailable)
			if tc.seed != nil {
				tc.seed(t, store, service)
			}

			_, err := service.CreateProposal(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("CreateProposal error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCreateProposalAdmissionCap(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{}, Config{AdmissionCap: 2})
	seedGarment(store, "garment-bob", "bob", AvailabilityAvailable)
	for i := 0; i < 3; i++ {
		seedGarment(store, fmt.Sprintf("garment-proposer-%d", i), fmt.Sprintf("user-%d", i), AvailabilityAvailable)
	}

	for i := 0; i < 2; i++ {
		_, err := service.CreateProposal(context.Background(), CreateProposalInput{
			ProposerUserID:     fmt.Sprintf("user-%d", i),
			OfferedGarmentID:   fmt.Sprintf("garment-proposer-%d", i),
			RequestedGarmentID: "garment-bob",
		})
		if err != nil {
			t.Fatalf("proposal %d under the cap: %v", i, err)
		}
	}

	_, err := service.CreateProposal(context.Background(), CreateProposalInput{
		ProposerUserID:     "user-2",
		OfferedGarmentID:   "garment-proposer-2",
		RequestedGarmentID: "garment-bob",
	})
	if !errors.Is(err, ErrGarmentSaturated) {
		t.Fatalf("CreateProposal over the cap error = %v, want %v", err, ErrGarmentSaturated)
	}
}

func TestCreateProposalCapIgnoresSettledProposals(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{}, Config{AdmissionCap: 1})
	seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)
	seedGarment(store, "garment-bob", "bob", AvailabilityAvailable)
	seedGarment(store, "garment-carol", "carol", AvailabilityAvailable)

	first, err := service.CreateProposal(context.Background(), CreateProposalInput{
		ProposerUserID:     "alice",
		OfferedGarmentID:   "garment-alice",
		RequestedGarmentID: "garment-bob",
	})
	if err != nil {
		t.Fatalf("first proposal: %v", err)
	}
	if _, err := service.Reject(context.Background(), TransitionInput{ProposalID: first.ID, ActorUserID: "bob"}); err != nil {
		t.Fatalf("reject first proposal: %v", err)
	}

	// The rejected proposal no longer counts toward the requested garment's cap.
	if _, err := service.CreateProposal(context.Background(), CreateProposalInput{
		ProposerUserID:     "carol",
		OfferedGarmentID:   "garment-carol",
		RequestedGarmentID: "garment-bob",
	}); err != nil {
		t.Fatalf("proposal after settlement: %v", err)
	}
}

func TestWithdrawGarment(t *testing.T) {
	t.Parallel()

	t.Run("owner withdraws available garment", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		service := newTestService(store, &fakeNotifier{}, Config{})
		seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)

		if err := service.WithdrawGarment(context.Background(), "garment-alice", "alice"); err != nil {
			t.Fatalf("WithdrawGarment: %v", err)
		}
		garment, err := store.GetGarment(context.Background(), "garment-alice")
		if err != nil {
			t.Fatalf("GetGarment: %v", err)
		}
		if garment.Availability != AvailabilityWithdrawn {
			t.Errorf("availability = %q, want withdrawn", garment.Availability)
		}
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		service := newTestService(store, &fakeNotifier{}, Config{})
		seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)

		err := service.WithdrawGarment(context.Background(), "garment-alice", "mallory")
		if !errors.Is(err, ErrNotPermitted) {
			t.Fatalf("WithdrawGarment error = %v, want %v", err, ErrNotPermitted)
		}
	})

	t.Run("reserved garment cannot be withdrawn", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore()
		service := newTestService(store, &fakeNotifier{}, Config{})
		seedGarment(store, "garment-alice", "alice", AvailabilityReserved)

		err := service.WithdrawGarment(context.Background(), "garment-alice", "alice")
		if !errors.Is(err, ErrGarmentUnavailable) {
			t.Fatalf("WithdrawGarment error = %v, want %v", err, ErrGarmentUnavailable)
		}
	})
}

func TestListProposalsByUser(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	service := newTestService(store, &fakeNotifier{}, Config{})
	seedGarment(store, "garment-alice", "alice", AvailabilityAvailable)
	seedGarment(store, "garment-bob", "bob", AvailabilityAvailable)

	proposal, err := service.CreateProposal(context.Background(), CreateProposalInput{
		ProposerUserID:     "alice",
		OfferedGarmentID:   "garment-alice",
		RequestedGarmentID: "garment-bob",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	for _, userID := range []string{"alice", "bob"} {
		proposals, err := service.ListProposalsByUser(context.Background(), userID)
		if err != nil {
			t.Fatalf("ListProposalsByUser(%s): %v", userID, err)
		}
		if len(proposals) != 1 || proposals[0].ID != proposal.ID {
			t.Errorf("proposals for %s = %+v, want the created proposal", userID, proposals)
		}
	}

	proposals, err := service.ListProposalsByUser(context.Background(), "carol")
	if err != nil {
		t.Fatalf("ListProposalsByUser(carol): %v", err)
	}
	if len(proposals) != 0 {
		t.Errorf("proposals for non-party = %+v, want none", proposals)
	}
}
