package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type conversationReq struct {
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	Personality string `json:"personality"`
}

type conversationResp struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id"`
	Response string `json:"response"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	if req.UserID == "" {
		// First contact without an identity: mint one and hand it back so
		// the client can keep the conversation's memory going.
		req.UserID = uuid.NewString()
	}

	reply, err := s.Chat.Respond(r.Context(), req.Message, req.Personality)
	if err != nil {
		log.Printf("[SERVER] Chat reply failed for user=%s: %v", req.UserID, err)
		writeError(w, http.StatusBadGateway, "failed to generate response")
		return
	}

	writeJSON(w, http.StatusOK, conversationResp{Success: true, UserID: req.UserID, Response: reply})

	// Memory is best-effort: the user already has their reply, so a storage
	// failure is logged, never surfaced.
	go s.recordTurn(req.UserID, req.Message, reply)
}

func (s *Server) recordTurn(userID, input, reply string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.Pipeline.RecordTurn(ctx, userID, input, reply); err != nil {
		log.Printf("[SERVER] Failed to record turn for user=%s: %v", userID, err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS policy is enforced at the router; the handshake accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Type     string `json:"type"` // "delta", "done" or "error"
	Content  string `json:"content,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleConversationWS streams one chat turn over a websocket: the client
// sends a single conversation request, receives delta events as the model
// produces them, then a final done event with the full reply.
func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var req conversationReq
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: "bad request"})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: "user_id and message required"})
		return
	}

	reply, err := s.Chat.RespondStream(r.Context(), req.Message, req.Personality, func(delta string) {
		_ = conn.WriteJSON(wsEvent{Type: "delta", Content: delta})
	})
	if err != nil {
		log.Printf("[SERVER] Streamed reply failed for user=%s: %v", req.UserID, err)
		_ = conn.WriteJSON(wsEvent{Type: "error", Error: "failed to generate response"})
		return
	}

	_ = conn.WriteJSON(wsEvent{Type: "done", Response: reply})

	go s.recordTurn(req.UserID, req.Message, reply)
}

func (s *Server) handleRecentSummary(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	summary, ok, err := s.Pipeline.RecentSummary(r.Context(), userID)
	if err != nil {
		log.Printf("[SERVER] Recent summary failed for user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "no conversation history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}
