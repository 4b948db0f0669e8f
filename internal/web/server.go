// Package web serves the browser chat front end. It is thin glue over the
// chat orchestrator: it renders clarification question lists and response
// text, and feeds raw user input back into the chat operation unmodified.
package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memchat/memchat/internal/chat"
)

// OpenConversation creates (or resumes) the orchestrator for a session id.
type OpenConversation func(sessionID string) (*chat.Conversation, error)

// Server is the HTTP chat front end. One Conversation is kept per session
// id; per-session turn ordering is enforced by the Conversation itself.
// Conversations are retained for the life of the process: a Conversation
// carries the session's clarification state, which must survive between
// requests, and the population is bounded by the distinct session ids seen.
type Server struct {
	log  *zap.Logger
	open OpenConversation

	mu    sync.Mutex
	convs map[string]*chat.Conversation
}

// NewServer creates a Server. logger may be nil.
func NewServer(open OpenConversation, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		log:   logger,
		open:  open,
		convs: make(map[string]*chat.Conversation),
	}
}

// Handler returns the HTTP handler for the chat UI and API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	return mux
}

// ListenAndServe serves the chat UI on addr until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("web front end listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// chatResponse mirrors the chat operation's result: content is a question
// list for clarifications and a string for responses.
type chatResponse struct {
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Content   any    `json:"content"`
}

func (s *Server) conversation(sessionID string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[sessionID]; ok {
		return conv, nil
	}
	conv, err := s.open(sessionID)
	if err != nil {
		return nil, err
	}
	s.convs[sessionID] = conv
	return conv, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	conv, err := s.conversation(req.SessionID)
	if err != nil {
		s.log.Error("open conversation failed", zap.String("session", req.SessionID), zap.Error(err))
		http.Error(w, "failed to open conversation", http.StatusInternalServerError)
		return
	}

	result, err := conv.Chat(r.Context(), req.Message)
	if err != nil {
		s.log.Error("turn failed", zap.String("session", req.SessionID), zap.Error(err))
		http.Error(w, "turn failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	resp := chatResponse{SessionID: req.SessionID, Type: string(result.Type)}
	if result.Type == chat.ResultClarification {
		resp.Content = result.Questions
	} else {
		resp.Content = result.Reply
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}
