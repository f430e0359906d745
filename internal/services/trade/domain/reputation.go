package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// SubmitEvaluationInput describes one post-trade evaluation request.
type SubmitEvaluationInput struct {
	ProposalID       string
	EvaluatorUserID  string
	GeneralRating    int
	Comment          string
	DimensionRatings map[string]int
}

// SubmitEvaluation records one evaluation for the counterparty of a
// completed trade and recomputes the evaluated user's reputation from their
// full evaluation history. One evaluation per (proposal, evaluator).
func (s *Service) SubmitEvaluation(ctx context.Context, input SubmitEvaluationInput) (Evaluation, error) {
	if s == nil || s.store == nil {
		return Evaluation{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Evaluation{}, ErrIDGeneratorNotConfigured
	}
	evaluatorID := strings.TrimSpace(input.EvaluatorUserID)
	if evaluatorID == "" {
		return Evaluation{}, fmt.Errorf("%w: evaluator user id is required", ErrInvalidInput)
	}
	if input.GeneralRating < 1 || input.GeneralRating > 5 {
		return Evaluation{}, ErrRatingOutOfRange
	}
	for dimensionID, rating := range input.DimensionRatings {
		if strings.TrimSpace(dimensionID) == "" {
			return Evaluation{}, ErrUnknownDimension
		}
		if rating < 1 || rating > 5 {
			return Evaluation{}, ErrRatingOutOfRange
		}
	}

	proposal, err := s.GetProposal(ctx, input.ProposalID)
	if err != nil {
		return Evaluation{}, err
	}
	if !proposal.IsParty(evaluatorID) {
		return Evaluation{}, ErrNotPermitted
	}
	if proposal.State != StateCompleted {
		return Evaluation{}, ErrProposalNotCompleted
	}

	exists, err := s.store.HasEvaluation(ctx, proposal.ID, evaluatorID)
	if err != nil {
		return Evaluation{}, err
	}
	if exists {
		return Evaluation{}, ErrDuplicateEvaluation
	}

	// Dimension ids are validated against the reference set before any
	// detail row is written; referential integrity is an application-layer
	// rule here.
	if len(input.DimensionRatings) > 0 {
		dimensions, err := s.store.ListDimensions(ctx)
		if err != nil {
			return Evaluation{}, err
		}
		known := make(map[string]struct{}, len(dimensions))
		for _, dimension := range dimensions {
			known[dimension.ID] = struct{}{}
		}
		for dimensionID := range input.DimensionRatings {
			if _, ok := known[dimensionID]; !ok {
				return Evaluation{}, fmt.Errorf("%w: %s", ErrUnknownDimension, dimensionID)
			}
		}
	}

	evaluationID, err := s.newID()
	if err != nil {
		return Evaluation{}, err
	}
	evaluation := Evaluation{
		ID:               evaluationID,
		ProposalID:       proposal.ID,
		EvaluatorUserID:  evaluatorID,
		EvaluatedUserID:  proposal.Counterparty(evaluatorID),
		GeneralRating:    input.GeneralRating,
		Comment:          strings.TrimSpace(input.Comment),
		CreatedAt:        s.nowUTC(),
		DimensionRatings: input.DimensionRatings,
	}
	if err := s.store.PutEvaluation(ctx, evaluation); err != nil {
		if errors.Is(err, ErrConflict) {
			return Evaluation{}, ErrDuplicateEvaluation
		}
		return Evaluation{}, err
	}

	if err := s.RecomputeReputation(ctx, evaluation.EvaluatedUserID); err != nil {
		return Evaluation{}, err
	}

	s.notify(ctx, evaluation.EvaluatedUserID,
		"New evaluation received",
		"A trade partner evaluated you.",
		"evaluation.received", proposal.ID)
	return evaluation, nil
}

// RecomputeReputation rebuilds one user's stored reputation from scratch:
// the arithmetic mean, across all their evaluations, of each evaluation's
// own weighted-dimension score. A full recomputation every time trades some
// cost for correctness against historical edits.
func (s *Service) RecomputeReputation(ctx context.Context, userID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	evaluations, err := s.store.ListEvaluationsByEvaluatedUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(evaluations) == 0 {
		return nil
	}

	dimensions, err := s.store.ListDimensions(ctx)
	if err != nil {
		return err
	}
	weights := make(map[string]float64, len(dimensions))
	for _, dimension := range dimensions {
		weights[dimension.ID] = dimension.Weight
	}

	var total float64
	for _, evaluation := range evaluations {
		total += evaluation.WeightedScore(weights)
	}
	score := roundToCents(total / float64(len(evaluations)))
	return s.store.SetUserReputation(ctx, userID, score, s.nowUTC())
}

// Reputation returns one user's stored reputation score. A user who has
// never been evaluated scores zero.
func (s *Service) Reputation(ctx context.Context, userID string) (float64, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	score, err := s.store.GetUserReputation(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return score, nil
}

// ListEvaluations lists the evaluations one user has received, oldest first.
func (s *Service) ListEvaluations(ctx context.Context, userID string) ([]Evaluation, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.ListEvaluationsByEvaluatedUser(ctx, userID)
}

func roundToCents(value float64) float64 {
	return math.Round(value*100) / 100
}
