package domain

import "context"

// ExpireDue bulk-transitions every pending proposal past its deadline into
// the expired state. The precondition lives in the conditional bulk update
// itself, so a proposal accepted a millisecond earlier is simply excluded.
// Returns the proposals expired by this call.
func (s *Service) ExpireDue(ctx context.Context) ([]Proposal, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}

	expired, err := s.store.ExpireDueProposals(ctx, s.nowUTC())
	if err != nil {
		return nil, err
	}
	for _, proposal := range expired {
		s.finishExpired(ctx, proposal)
	}
	return expired, nil
}

// RemindExpiring requests one reminder notification to the receiver of every
// pending proposal due within the configured reminder window. No dedup state
// is kept: runs inside the window re-notify, a documented limitation of the
// sweep design.
func (s *Service) RemindExpiring(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}

	now := s.nowUTC()
	expiring, err := s.store.ListProposalsExpiringBefore(ctx, now, now.Add(s.cfg.ReminderWindow))
	if err != nil {
		return 0, err
	}
	for _, proposal := range expiring {
		s.notify(ctx, proposal.ReceiverUserID,
			"Proposal expiring soon",
			"A trade proposal addressed to you expires soon. Accept or reject it before the deadline.",
			"proposal.expiring", proposal.ID)
	}
	return len(expiring), nil
}
