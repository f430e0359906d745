package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/roperia/roperia/internal/services/trade/api"
	"github.com/roperia/roperia/internal/services/trade/domain"
)

// NewHandler builds the trade HTTP surface: JSON endpoints over the public
// api plus the negotiation websocket.
func NewHandler(apiService *api.Service, hub *negotiationHub) http.Handler {
	h := &handler{api: apiService}
	mux := http.NewServeMux()

	mux.HandleFunc(http.MethodGet+" /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if hub != nil {
		mux.Handle("/ws", newWSHandler(hub))
	}

	mux.HandleFunc(http.MethodPost+" /proposals", h.handleCreateProposal)
	mux.HandleFunc(http.MethodGet+" /proposals", h.handleListProposals)
	mux.HandleFunc(http.MethodGet+" /proposals/{id}", h.handleGetProposal)
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/accept", h.transition((*api.Service).AcceptProposal))
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/reject", h.transition((*api.Service).RejectProposal))
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/cancel", h.transition((*api.Service).CancelProposal))
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/complete", h.transition((*api.Service).CompleteProposal))
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/messages", h.handleSendMessage)
	mux.HandleFunc(http.MethodGet+" /proposals/{id}/messages", h.handleListMessages)
	mux.HandleFunc(http.MethodGet+" /proposals/{id}/messages/unread", h.handleUnreadCount)
	mux.HandleFunc(http.MethodPost+" /proposals/{id}/evaluations", h.handleSubmitEvaluation)
	mux.HandleFunc(http.MethodPost+" /garments/{id}/withdraw", h.handleWithdrawGarment)
	mux.HandleFunc(http.MethodGet+" /users/{id}/reputation", h.handleReputation)
	mux.HandleFunc(http.MethodGet+" /users/{id}/evaluations", h.handleListEvaluations)

	return mux
}

type handler struct {
	api *api.Service
}

type proposalPayload struct {
	ID                 string     `json:"id"`
	ProposerUserID     string     `json:"proposer_user_id"`
	ReceiverUserID     string     `json:"receiver_user_id"`
	OfferedGarmentID   string     `json:"offered_garment_id"`
	RequestedGarmentID string     `json:"requested_garment_id"`
	Message            string     `json:"message,omitempty"`
	State              string     `json:"state"`
	IsCounteroffer     bool       `json:"is_counteroffer,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	RespondedAt        *time.Time `json:"responded_at,omitempty"`
	ExpiresAt          time.Time  `json:"expires_at"`
}

func toProposalPayload(proposal domain.Proposal) proposalPayload {
	return proposalPayload{
		ID:                 proposal.ID,
		ProposerUserID:     proposal.ProposerUserID,
		ReceiverUserID:     proposal.ReceiverUserID,
		OfferedGarmentID:   proposal.OfferedGarmentID,
		RequestedGarmentID: proposal.RequestedGarmentID,
		Message:            proposal.Message,
		State:              string(proposal.State),
		IsCounteroffer:     proposal.IsCounteroffer,
		CreatedAt:          proposal.CreatedAt,
		UpdatedAt:          proposal.UpdatedAt,
		RespondedAt:        proposal.RespondedAt,
		ExpiresAt:          proposal.ExpiresAt,
	}
}

type messagePayload struct {
	ID           string     `json:"id"`
	ProposalID   string     `json:"proposal_id"`
	SenderUserID string     `json:"sender_user_id"`
	Body         string     `json:"body"`
	System       bool       `json:"system,omitempty"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
}

func toMessagePayload(message domain.Message) messagePayload {
	return messagePayload{
		ID:           message.ID,
		ProposalID:   message.ProposalID,
		SenderUserID: message.SenderUserID,
		Body:         message.Body,
		System:       message.System,
		SentAt:       message.SentAt,
		ReadAt:       message.ReadAt,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("trade http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeResult maps a refused api result to one JSON error. out-of-band
// failures already collapsed to generic messages inside the api layer; the
// HTTP status only distinguishes refusal classes.
func writeResult(w http.ResponseWriter, result api.Result) {
	status := http.StatusUnprocessableEntity
	switch {
	case result.Message == "not permitted":
		status = http.StatusForbidden
	case result.Message == domain.ErrStateChanged.Error():
		status = http.StatusConflict
	case result.Message == "operation temporarily unavailable":
		status = http.StatusServiceUnavailable
	case strings.HasPrefix(result.Message, domain.ErrGarmentNotFound.Error()),
		strings.HasPrefix(result.Message, domain.ErrProposalNotFound.Error()):
		status = http.StatusNotFound
	}
	writeError(w, status, result.Message)
}

func (h *handler) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ProposerUserID     string `json:"proposer_user_id"`
		OfferedGarmentID   string `json:"offered_garment_id"`
		RequestedGarmentID string `json:"requested_garment_id"`
		Message            string `json:"message"`
		IsCounteroffer     bool   `json:"is_counteroffer"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	response := h.api.CreateProposal(r.Context(), domain.CreateProposalInput{
		ProposerUserID:     request.ProposerUserID,
		OfferedGarmentID:   request.OfferedGarmentID,
		RequestedGarmentID: request.RequestedGarmentID,
		Message:            request.Message,
		IsCounteroffer:     request.IsCounteroffer,
	})
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusCreated, toProposalPayload(response.Proposal))
}

func (h *handler) handleListProposals(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	response := h.api.ListProposals(r.Context(), userID)
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	proposals := make([]proposalPayload, 0, len(response.Proposals))
	for _, proposal := range response.Proposals {
		proposals = append(proposals, toProposalPayload(proposal))
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

func (h *handler) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	response := h.api.GetProposal(r.Context(), r.PathValue("id"))
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusOK, toProposalPayload(response.Proposal))
}

// transition adapts the four lifecycle endpoints, which share one request
// shape, onto their api methods.
func (h *handler) transition(invoke func(*api.Service, context.Context, domain.TransitionInput) api.TransitionResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			ActorUserID string `json:"actor_user_id"`
			Reason      string `json:"reason"`
		}
		if !decodeJSON(w, r, &request) {
			return
		}

		response := invoke(h.api, r.Context(), domain.TransitionInput{
			ProposalID:  r.PathValue("id"),
			ActorUserID: request.ActorUserID,
			Reason:      request.Reason,
		})
		if !response.Result.Success {
			writeResult(w, response.Result)
			return
		}
		writeJSON(w, http.StatusOK, toProposalPayload(response.Proposal))
	}
}

func (h *handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var request struct {
		SenderUserID string `json:"sender_user_id"`
		Body         string `json:"body"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	response := h.api.SendMessage(r.Context(), domain.SendMessageInput{
		ProposalID:   r.PathValue("id"),
		SenderUserID: request.SenderUserID,
		Body:         request.Body,
	})
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusCreated, toMessagePayload(response.Message))
}

func (h *handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	reader := strings.TrimSpace(r.URL.Query().Get("reader"))
	response := h.api.ListMessages(r.Context(), r.PathValue("id"), reader)
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	messages := make([]messagePayload, 0, len(response.Messages))
	for _, message := range response.Messages {
		messages = append(messages, toMessagePayload(message))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	reader := strings.TrimSpace(r.URL.Query().Get("reader"))
	response := h.api.CountUnreadMessages(r.Context(), r.PathValue("id"), reader)
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": response.Count})
}

func (h *handler) handleSubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	var request struct {
		EvaluatorUserID  string         `json:"evaluator_user_id"`
		GeneralRating    int            `json:"general_rating"`
		Comment          string         `json:"comment"`
		DimensionRatings map[string]int `json:"dimension_ratings"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	response := h.api.SubmitEvaluation(r.Context(), domain.SubmitEvaluationInput{
		ProposalID:       r.PathValue("id"),
		EvaluatorUserID:  request.EvaluatorUserID,
		GeneralRating:    request.GeneralRating,
		Comment:          request.Comment,
		DimensionRatings: request.DimensionRatings,
	})
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":                response.Evaluation.ID,
		"evaluated_user_id": response.Evaluation.EvaluatedUserID,
	})
}

func (h *handler) handleWithdrawGarment(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ActorUserID string `json:"actor_user_id"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	result := h.api.WithdrawGarment(r.Context(), r.PathValue("id"), request.ActorUserID)
	if !result.Success {
		writeResult(w, result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"withdrawn": true})
}

func (h *handler) handleReputation(w http.ResponseWriter, r *http.Request) {
	response := h.api.Reputation(r.Context(), r.PathValue("id"))
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"score": response.Score})
}

func (h *handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	response := h.api.ListEvaluations(r.Context(), r.PathValue("id"))
	if !response.Result.Success {
		writeResult(w, response.Result)
		return
	}
	evaluations := make([]map[string]any, 0, len(response.Evaluations))
	for _, evaluation := range response.Evaluations {
		evaluations = append(evaluations, map[string]any{
			"id":                evaluation.ID,
			"proposal_id":       evaluation.ProposalID,
			"evaluator_user_id": evaluation.EvaluatorUserID,
			"general_rating":    evaluation.GeneralRating,
			"comment":           evaluation.Comment,
			"dimension_ratings": evaluation.DimensionRatings,
			"created_at":        evaluation.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": evaluations})
}
