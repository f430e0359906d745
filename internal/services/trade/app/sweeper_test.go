package server

import (
	"context"
	"testing"
	"time"

	"github.com/roperia/roperia/internal/services/trade/storage"
)

func seedOverdueProposal(t *testing.T, ts *testServer, proposalID string) {
	t.Helper()

	ts.seedGarment(t, proposalID+"-offered", "alice")
	ts.seedGarment(t, proposalID+"-requested", "bob")
	if err := ts.store.PutProposal(context.Background(), storage.ProposalRecord{
		ID:                 proposalID,
		ProposerUserID:     "alice",
		ReceiverUserID:     "bob",
		OfferedGarmentID:   proposalID + "-offered",
		RequestedGarmentID: proposalID + "-requested",
		State:              storage.ProposalStatePending,
		CreatedAt:          serverNow.Add(-8 * 24 * time.Hour),
		UpdatedAt:          serverNow.Add(-8 * 24 * time.Hour),
		ExpiresAt:          serverNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed proposal %s: %v", proposalID, err)
	}
}

func TestSweeperExpiresOverdueProposals(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	seedOverdueProposal(t, ts, "proposal-overdue")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(ts.service, time.Hour).Run(ctx)
	}()

	// The first sweep runs before the ticker, so cancelling right after the
	// proposal flips still exercises a full pass.
	deadline := time.Now().Add(2 * time.Second)
	for {
		record, err := ts.store.GetProposal(context.Background(), "proposal-overdue")
		if err != nil {
			t.Fatalf("get proposal: %v", err)
		}
		if record.State == storage.ProposalStateExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("proposal state = %s, want expired", record.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("sweeper run: %v", err)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSweeper(ts.service, time.Hour).Run(ctx); err != nil {
		t.Fatalf("cancelled run returned %v, want nil", err)
	}
}
