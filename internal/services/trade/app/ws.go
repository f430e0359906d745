package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/roperia/roperia/internal/services/trade/domain"
)

// wsFrame is one JSON frame pushed to negotiation subscribers.
type wsFrame struct {
	Type         string    `json:"type"`
	ProposalID   string    `json:"proposal_id"`
	MessageID    string    `json:"message_id,omitempty"`
	SenderUserID string    `json:"sender_user_id,omitempty"`
	Body         string    `json:"body,omitempty"`
	System       bool      `json:"system,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// negotiationHub fans persisted negotiation messages out to websocket
// subscribers, one room per proposal. It implements domain.Broadcaster.
type negotiationHub struct {
	mu    sync.Mutex
	rooms map[string]map[*wsPeer]struct{}
}

func newNegotiationHub() *negotiationHub {
	return &negotiationHub{rooms: make(map[string]map[*wsPeer]struct{})}
}

func (h *negotiationHub) join(proposalID string, peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[proposalID]
	if !ok {
		room = make(map[*wsPeer]struct{})
		h.rooms[proposalID] = room
	}
	room[peer] = struct{}{}
}

func (h *negotiationHub) leave(proposalID string, peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[proposalID]
	if !ok {
		return
	}
	delete(room, peer)
	if len(room) == 0 {
		delete(h.rooms, proposalID)
	}
}

func (h *negotiationHub) subscribers(proposalID string) []*wsPeer {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := make([]*wsPeer, 0, len(h.rooms[proposalID]))
	for peer := range h.rooms[proposalID] {
		peers = append(peers, peer)
	}
	return peers
}

// Broadcast pushes one persisted message to every live subscriber of the
// proposal room. A slow or broken peer is skipped, not retried.
func (h *negotiationHub) Broadcast(proposalID string, message domain.Message) error {
	frame := wsFrame{
		Type:         "message",
		ProposalID:   proposalID,
		MessageID:    message.ID,
		SenderUserID: message.SenderUserID,
		Body:         message.Body,
		System:       message.System,
		SentAt:       message.SentAt,
	}
	for _, peer := range h.subscribers(proposalID) {
		if err := peer.writeFrame(frame); err != nil {
			log.Printf("trade: websocket push for proposal %s: %v", proposalID, err)
		}
	}
	return nil
}

// handleWSConn serves one subscriber connection: join the proposal room,
// drain inbound frames until the peer hangs up, leave.
func handleWSConn(conn *websocket.Conn, hub *negotiationHub) {
	defer conn.Close()

	proposalID := strings.TrimSpace(conn.Request().URL.Query().Get("proposal"))
	if proposalID == "" {
		return
	}

	peer := newWSPeer(json.NewEncoder(conn))
	hub.join(proposalID, peer)
	defer hub.leave(proposalID, peer)

	// Sends go through the HTTP surface; inbound websocket frames are
	// drained and discarded to detect disconnects.
	buffer := make([]byte, 512)
	for {
		if _, err := conn.Read(buffer); err != nil {
			if err != io.EOF {
				log.Printf("trade: websocket read for proposal %s: %v", proposalID, err)
			}
			return
		}
	}
}

func newWSHandler(hub *negotiationHub) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, hub)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}
