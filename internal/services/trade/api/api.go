// Package api is the public surface of the trade service. Every operation
// returns an explicit outcome instead of leaking internals: domain refusals
// surface verbatim, permission refusals and infrastructure faults collapse to
// generic messages.
package api

import (
	"context"
	"errors"
	"log"

	"github.com/roperia/roperia/internal/services/trade/domain"
)

// Result reports one operation outcome. Message carries the refusal reason
// when Success is false.
type Result struct {
	Success bool
	Message string
}

func okResult() Result {
	return Result{Success: true}
}

// Service exposes the trade lifecycle operations.
type Service struct {
	domain *domain.Service
}

// New wraps the domain service in the public surface.
func New(domainService *domain.Service) *Service {
	return &Service{domain: domainService}
}

// refusals are domain outcomes whose message is safe to show the caller
// verbatim. Everything else is either a permission refusal, a lost race, or
// an infrastructure fault.
var refusals = []error{
	domain.ErrInvalidInput,
	domain.ErrGarmentNotFound,
	domain.ErrProposalNotFound,
	domain.ErrNotGarmentOwner,
	domain.ErrSelfTrade,
	domain.ErrGarmentUnavailable,
	domain.ErrGarmentSaturated,
	domain.ErrDuplicateProposal,
	domain.ErrProposalExpired,
	domain.ErrNegotiationClosed,
	domain.ErrMessageEmpty,
	domain.ErrMessageTooLong,
	domain.ErrProposalNotCompleted,
	domain.ErrDuplicateEvaluation,
	domain.ErrRatingOutOfRange,
	domain.ErrUnknownDimension,
}

func resultFromError(operation string, err error) Result {
	if err == nil {
		return okResult()
	}
	for _, refusal := range refusals {
		if errors.Is(err, refusal) {
			return Result{Message: err.Error()}
		}
	}
	switch {
	case errors.Is(err, domain.ErrStateChanged):
		log.Printf("trade api: %s: %v", operation, err)
		return Result{Message: domain.ErrStateChanged.Error()}
	case errors.Is(err, domain.ErrNotPermitted):
		log.Printf("trade api: %s refused: %v", operation, err)
		return Result{Message: "not permitted"}
	default:
		log.Printf("trade api: %s failed: %v", operation, err)
		return Result{Message: "operation temporarily unavailable"}
	}
}

// CreateProposalResponse carries the created proposal on success.
type CreateProposalResponse struct {
	Result   Result
	Proposal domain.Proposal
}

// CreateProposal admits a new barter proposal.
func (s *Service) CreateProposal(ctx context.Context, input domain.CreateProposalInput) CreateProposalResponse {
	proposal, err := s.domain.CreateProposal(ctx, input)
	return CreateProposalResponse{
		Result:   resultFromError("create proposal", err),
		Proposal: proposal,
	}
}

// TransitionResponse carries the proposal after a lifecycle transition.
type TransitionResponse struct {
	Result   Result
	Proposal domain.Proposal
}

// AcceptProposal commits the receiver and reserves both garments.
func (s *Service) AcceptProposal(ctx context.Context, input domain.TransitionInput) TransitionResponse {
	proposal, err := s.domain.Accept(ctx, input)
	return TransitionResponse{Result: resultFromError("accept proposal", err), Proposal: proposal}
}

// RejectProposal declines a pending proposal.
func (s *Service) RejectProposal(ctx context.Context, input domain.TransitionInput) TransitionResponse {
	proposal, err := s.domain.Reject(ctx, input)
	return TransitionResponse{Result: resultFromError("reject proposal", err), Proposal: proposal}
}

// CancelProposal withdraws a pending or accepted proposal.
func (s *Service) CancelProposal(ctx context.Context, input domain.TransitionInput) TransitionResponse {
	proposal, err := s.domain.Cancel(ctx, input)
	return TransitionResponse{Result: resultFromError("cancel proposal", err), Proposal: proposal}
}

// CompleteProposal records a finished exchange.
func (s *Service) CompleteProposal(ctx context.Context, input domain.TransitionInput) TransitionResponse {
	proposal, err := s.domain.Complete(ctx, input)
	return TransitionResponse{Result: resultFromError("complete proposal", err), Proposal: proposal}
}

// GetProposalResponse carries one proposal lookup.
type GetProposalResponse struct {
	Result   Result
	Proposal domain.Proposal
}

// GetProposal loads one proposal by id.
func (s *Service) GetProposal(ctx context.Context, proposalID string) GetProposalResponse {
	proposal, err := s.domain.GetProposal(ctx, proposalID)
	return GetProposalResponse{Result: resultFromError("get proposal", err), Proposal: proposal}
}

// ListProposalsResponse carries one user's proposals, newest first.
type ListProposalsResponse struct {
	Result    Result
	Proposals []domain.Proposal
}

// ListProposals lists proposals where the user is a party.
func (s *Service) ListProposals(ctx context.Context, userID string) ListProposalsResponse {
	proposals, err := s.domain.ListProposalsByUser(ctx, userID)
	return ListProposalsResponse{Result: resultFromError("list proposals", err), Proposals: proposals}
}

// WithdrawGarment pulls an available garment from the tradable pool.
func (s *Service) WithdrawGarment(ctx context.Context, garmentID, actorUserID string) Result {
	return resultFromError("withdraw garment", s.domain.WithdrawGarment(ctx, garmentID, actorUserID))
}

// SendMessageResponse carries the persisted negotiation message.
type SendMessageResponse struct {
	Result  Result
	Message domain.Message
}

// SendMessage posts one negotiation message on an accepted proposal.
func (s *Service) SendMessage(ctx context.Context, input domain.SendMessageInput) SendMessageResponse {
	message, err := s.domain.SendMessage(ctx, input)
	return SendMessageResponse{Result: resultFromError("send message", err), Message: message}
}

// ListMessagesResponse carries one proposal transcript, oldest first.
type ListMessagesResponse struct {
	Result   Result
	Messages []domain.Message
}

// ListMessages returns the transcript for a party and marks the counterpart
// messages read.
func (s *Service) ListMessages(ctx context.Context, proposalID, readerUserID string) ListMessagesResponse {
	messages, err := s.domain.ListMessages(ctx, proposalID, readerUserID)
	return ListMessagesResponse{Result: resultFromError("list messages", err), Messages: messages}
}

// UnreadCountResponse carries the reader's unread message count.
type UnreadCountResponse struct {
	Result Result
	Count  int
}

// CountUnreadMessages counts unread negotiation messages for the reader.
func (s *Service) CountUnreadMessages(ctx context.Context, proposalID, readerUserID string) UnreadCountResponse {
	count, err := s.domain.CountUnreadMessages(ctx, proposalID, readerUserID)
	return UnreadCountResponse{Result: resultFromError("count unread messages", err), Count: count}
}

// SubmitEvaluationResponse carries the recorded evaluation.
type SubmitEvaluationResponse struct {
	Result     Result
	Evaluation domain.Evaluation
}

// SubmitEvaluation records one post-trade evaluation and refreshes the
// evaluated user's reputation.
func (s *Service) SubmitEvaluation(ctx context.Context, input domain.SubmitEvaluationInput) SubmitEvaluationResponse {
	evaluation, err := s.domain.SubmitEvaluation(ctx, input)
	return SubmitEvaluationResponse{Result: resultFromError("submit evaluation", err), Evaluation: evaluation}
}

// ReputationResponse carries one user's aggregate reputation score.
type ReputationResponse struct {
	Result Result
	Score  float64
}

// Reputation returns one user's reputation, zero when never evaluated.
func (s *Service) Reputation(ctx context.Context, userID string) ReputationResponse {
	score, err := s.domain.Reputation(ctx, userID)
	return ReputationResponse{Result: resultFromError("reputation", err), Score: score}
}

// ListEvaluationsResponse carries the evaluations one user received.
type ListEvaluationsResponse struct {
	Result      Result
	Evaluations []domain.Evaluation
}

// ListEvaluations lists the evaluations recorded against one user.
func (s *Service) ListEvaluations(ctx context.Context, userID string) ListEvaluationsResponse {
	evaluations, err := s.domain.ListEvaluations(ctx, userID)
	return ListEvaluationsResponse{Result: resultFromError("list evaluations", err), Evaluations: evaluations}
}
