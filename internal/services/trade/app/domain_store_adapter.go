package server

import (
	"context"
	"errors"
	"time"

	"github.com/roperia/roperia/internal/services/trade/domain"
	"github.com/roperia/roperia/internal/services/trade/storage"
)

type domainStoreAdapter struct {
	garmentStore    storage.GarmentStore
	proposalStore   storage.ProposalStore
	exchangeStore   storage.ExchangeStore
	sweepStore      storage.SweepStore
	messageStore    storage.MessageStore
	evaluationStore storage.EvaluationStore
}

func newDomainStoreAdapter(
	garmentStore storage.GarmentStore,
	proposalStore storage.ProposalStore,
	exchangeStore storage.ExchangeStore,
	sweepStore storage.SweepStore,
	messageStore storage.MessageStore,
	evaluationStore storage.EvaluationStore,
) *domainStoreAdapter {
	return &domainStoreAdapter{
		garmentStore:    garmentStore,
		proposalStore:   proposalStore,
		exchangeStore:   exchangeStore,
		sweepStore:      sweepStore,
		messageStore:    messageStore,
		evaluationStore: evaluationStore,
	}
}

func (a *domainStoreAdapter) PutGarment(ctx context.Context, garment domain.Garment) error {
	if a == nil || a.garmentStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.garmentStore.PutGarment(ctx, toStorageGarment(garment)))
}

func (a *domainStoreAdapter) GetGarment(ctx context.Context, garmentID string) (domain.Garment, error) {
	if a == nil || a.garmentStore == nil {
		return domain.Garment{}, domain.ErrStoreNotConfigured
	}
	record, err := a.garmentStore.GetGarment(ctx, garmentID)
	if err != nil {
		return domain.Garment{}, mapStorageError(err)
	}
	return toDomainGarment(record), nil
}

func (a *domainStoreAdapter) SetGarmentAvailability(ctx context.Context, garmentID string, from, to domain.Availability, at time.Time) (bool, error) {
	if a == nil || a.garmentStore == nil {
		return false, domain.ErrStoreNotConfigured
	}
	changed, err := a.garmentStore.SetGarmentAvailability(ctx, garmentID, storage.Availability(from), storage.Availability(to), at)
	if err != nil {
		return false, mapStorageError(err)
	}
	return changed, nil
}

func (a *domainStoreAdapter) PutProposal(ctx context.Context, proposal domain.Proposal) error {
	if a == nil || a.proposalStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.proposalStore.PutProposal(ctx, toStorageProposal(proposal)))
}

func (a *domainStoreAdapter) GetProposal(ctx context.Context, proposalID string) (domain.Proposal, error) {
	if a == nil || a.proposalStore == nil {
		return domain.Proposal{}, domain.ErrStoreNotConfigured
	}
	record, err := a.proposalStore.GetProposal(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, mapStorageError(err)
	}
	return toDomainProposal(record), nil
}

func (a *domainStoreAdapter) ListProposalsByUser(ctx context.Context, userID string) ([]domain.Proposal, error) {
	if a == nil || a.proposalStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.proposalStore.ListProposalsByUser(ctx, userID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toDomainProposals(records), nil
}

func (a *domainStoreAdapter) CountActiveProposalsByGarment(ctx context.Context, garmentID string, now time.Time) (int, error) {
	if a == nil || a.proposalStore == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	count, err := a.proposalStore.CountActiveProposalsByGarment(ctx, garmentID, now)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return count, nil
}

func (a *domainStoreAdapter) HasActiveProposalForPair(ctx context.Context, offeredGarmentID, requestedGarmentID string, now time.Time) (bool, error) {
	if a == nil || a.proposalStore == nil {
		return false, domain.ErrStoreNotConfigured
	}
	exists, err := a.proposalStore.HasActiveProposalForPair(ctx, offeredGarmentID, requestedGarmentID, now)
	if err != nil {
		return false, mapStorageError(err)
	}
	return exists, nil
}

func (a *domainStoreAdapter) UpdateProposalState(ctx context.Context, proposalID string, from, to domain.State, at time.Time) error {
	if a == nil || a.proposalStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.proposalStore.UpdateProposalState(ctx, proposalID, storage.ProposalState(from), storage.ProposalState(to), at))
}

func (a *domainStoreAdapter) AcceptExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	if a == nil || a.exchangeStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.exchangeStore.AcceptExchange(ctx, proposalID, offeredGarmentID, requestedGarmentID, at))
}

func (a *domainStoreAdapter) ReleaseExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	if a == nil || a.exchangeStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.exchangeStore.ReleaseExchange(ctx, proposalID, offeredGarmentID, requestedGarmentID, at))
}

func (a *domainStoreAdapter) CompleteExchange(ctx context.Context, proposalID, offeredGarmentID, requestedGarmentID string, at time.Time) error {
	if a == nil || a.exchangeStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.exchangeStore.CompleteExchange(ctx, proposalID, offeredGarmentID, requestedGarmentID, at))
}

func (a *domainStoreAdapter) ExpireDueProposals(ctx context.Context, now time.Time) ([]domain.Proposal, error) {
	if a == nil || a.sweepStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.sweepStore.ExpireDueProposals(ctx, now)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toDomainProposals(records), nil
}

func (a *domainStoreAdapter) ListProposalsExpiringBefore(ctx context.Context, now, deadline time.Time) ([]domain.Proposal, error) {
	if a == nil || a.sweepStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.sweepStore.ListProposalsExpiringBefore(ctx, now, deadline)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toDomainProposals(records), nil
}

func (a *domainStoreAdapter) PutMessage(ctx context.Context, message domain.Message) error {
	if a == nil || a.messageStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.messageStore.PutMessage(ctx, toStorageMessage(message)))
}

func (a *domainStoreAdapter) ListMessagesByProposal(ctx context.Context, proposalID string) ([]domain.Message, error) {
	if a == nil || a.messageStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.messageStore.ListMessagesByProposal(ctx, proposalID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	messages := make([]domain.Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, toDomainMessage(record))
	}
	return messages, nil
}

func (a *domainStoreAdapter) MarkMessagesRead(ctx context.Context, proposalID, readerUserID string, readAt time.Time) (int, error) {
	if a == nil || a.messageStore == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	marked, err := a.messageStore.MarkMessagesRead(ctx, proposalID, readerUserID, readAt)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return marked, nil
}

func (a *domainStoreAdapter) CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) (int, error) {
	if a == nil || a.messageStore == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	count, err := a.messageStore.CountUnreadMessages(ctx, proposalID, readerUserID)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return count, nil
}

func (a *domainStoreAdapter) PutEvaluation(ctx context.Context, evaluation domain.Evaluation) error {
	if a == nil || a.evaluationStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.evaluationStore.PutEvaluation(ctx, toStorageEvaluation(evaluation)))
}

func (a *domainStoreAdapter) HasEvaluation(ctx context.Context, proposalID, evaluatorUserID string) (bool, error) {
	if a == nil || a.evaluationStore == nil {
		return false, domain.ErrStoreNotConfigured
	}
	exists, err := a.evaluationStore.HasEvaluation(ctx, proposalID, evaluatorUserID)
	if err != nil {
		return false, mapStorageError(err)
	}
	return exists, nil
}

func (a *domainStoreAdapter) ListEvaluationsByEvaluatedUser(ctx context.Context, evaluatedUserID string) ([]domain.Evaluation, error) {
	if a == nil || a.evaluationStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.evaluationStore.ListEvaluationsByEvaluatedUser(ctx, evaluatedUserID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	evaluations := make([]domain.Evaluation, 0, len(records))
	for _, record := range records {
		evaluations = append(evaluations, toDomainEvaluation(record))
	}
	return evaluations, nil
}

func (a *domainStoreAdapter) ListDimensions(ctx context.Context) ([]domain.Dimension, error) {
	if a == nil || a.evaluationStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.evaluationStore.ListDimensions(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	dimensions := make([]domain.Dimension, 0, len(records))
	for _, record := range records {
		dimensions = append(dimensions, domain.Dimension{
			ID:     record.ID,
			Name:   record.Name,
			Weight: record.Weight,
		})
	}
	return dimensions, nil
}

func (a *domainStoreAdapter) SetUserReputation(ctx context.Context, userID string, score float64, at time.Time) error {
	if a == nil || a.evaluationStore == nil {
		return domain.ErrStoreNotConfigured
	}
	return mapStorageError(a.evaluationStore.SetUserReputation(ctx, userID, score, at))
}

func (a *domainStoreAdapter) GetUserReputation(ctx context.Context, userID string) (float64, error) {
	if a == nil || a.evaluationStore == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	score, err := a.evaluationStore.GetUserReputation(ctx, userID)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return score, nil
}

func toStorageGarment(garment domain.Garment) storage.GarmentRecord {
	return storage.GarmentRecord{
		ID:           garment.ID,
		OwnerUserID:  garment.OwnerUserID,
		Title:        garment.Title,
		Availability: storage.Availability(garment.Availability),
		CreatedAt:    garment.CreatedAt,
		UpdatedAt:    garment.UpdatedAt,
	}
}

func toDomainGarment(record storage.GarmentRecord) domain.Garment {
	return domain.Garment{
		ID:           record.ID,
		OwnerUserID:  record.OwnerUserID,
		Title:        record.Title,
		Availability: domain.Availability(record.Availability),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func toStorageProposal(proposal domain.Proposal) storage.ProposalRecord {
	return storage.ProposalRecord{
		ID:                 proposal.ID,
		ProposerUserID:     proposal.ProposerUserID,
		ReceiverUserID:     proposal.ReceiverUserID,
		OfferedGarmentID:   proposal.OfferedGarmentID,
		RequestedGarmentID: proposal.RequestedGarmentID,
		Message:            proposal.Message,
		State:              storage.ProposalState(proposal.State),
		Priority:           proposal.Priority,
		IsCounteroffer:     proposal.IsCounteroffer,
		CreatedAt:          proposal.CreatedAt,
		UpdatedAt:          proposal.UpdatedAt,
		RespondedAt:        proposal.RespondedAt,
		ExpiresAt:          proposal.ExpiresAt,
	}
}

func toDomainProposal(record storage.ProposalRecord) domain.Proposal {
	return domain.Proposal{
		ID:                 record.ID,
		ProposerUserID:     record.ProposerUserID,
		ReceiverUserID:     record.ReceiverUserID,
		OfferedGarmentID:   record.OfferedGarmentID,
		RequestedGarmentID: record.RequestedGarmentID,
		Message:            record.Message,
		State:              domain.State(record.State),
		Priority:           record.Priority,
		IsCounteroffer:     record.IsCounteroffer,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
		RespondedAt:        record.RespondedAt,
		ExpiresAt:          record.ExpiresAt,
	}
}

func toDomainProposals(records []storage.ProposalRecord) []domain.Proposal {
	proposals := make([]domain.Proposal, 0, len(records))
	for _, record := range records {
		proposals = append(proposals, toDomainProposal(record))
	}
	return proposals
}

func toStorageMessage(message domain.Message) storage.MessageRecord {
	return storage.MessageRecord{
		ID:           message.ID,
		ProposalID:   message.ProposalID,
		SenderUserID: message.SenderUserID,
		Body:         message.Body,
		System:       message.System,
		SentAt:       message.SentAt,
		ReadAt:       message.ReadAt,
	}
}

func toDomainMessage(record storage.MessageRecord) domain.Message {
	return domain.Message{
		ID:           record.ID,
		ProposalID:   record.ProposalID,
		SenderUserID: record.SenderUserID,
		Body:         record.Body,
		System:       record.System,
		SentAt:       record.SentAt,
		ReadAt:       record.ReadAt,
	}
}

func toStorageEvaluation(evaluation domain.Evaluation) storage.EvaluationRecord {
	record := storage.EvaluationRecord{
		ID:              evaluation.ID,
		ProposalID:      evaluation.ProposalID,
		EvaluatorUserID: evaluation.EvaluatorUserID,
		EvaluatedUserID: evaluation.EvaluatedUserID,
		GeneralRating:   evaluation.GeneralRating,
		Comment:         evaluation.Comment,
		CreatedAt:       evaluation.CreatedAt,
	}
	for dimensionID, rating := range evaluation.DimensionRatings {
		record.DimensionRatings = append(record.DimensionRatings, storage.DimensionRatingRecord{
			DimensionID: dimensionID,
			Rating:      rating,
		})
	}
	return record
}

func toDomainEvaluation(record storage.EvaluationRecord) domain.Evaluation {
	evaluation := domain.Evaluation{
		ID:              record.ID,
		ProposalID:      record.ProposalID,
		EvaluatorUserID: record.EvaluatorUserID,
		EvaluatedUserID: record.EvaluatedUserID,
		GeneralRating:   record.GeneralRating,
		Comment:         record.Comment,
		CreatedAt:       record.CreatedAt,
	}
	if len(record.DimensionRatings) > 0 {
		evaluation.DimensionRatings = make(map[string]int, len(record.DimensionRatings))
		for _, rating := range record.DimensionRatings {
			evaluation.DimensionRatings[rating.DimensionID] = rating.Rating
		}
	}
	return evaluation
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return domain.ErrConflict
	case errors.Is(err, storage.ErrStale):
		return domain.ErrStateChanged
	default:
		return err
	}
}
