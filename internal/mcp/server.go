// Package mcp exposes the chat operation as an MCP tool over stdio, so MCP
// clients can hold memory-backed conversations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memchat/memchat/internal/chat"
)

// OpenConversation creates (or resumes) the orchestrator for a session id.
type OpenConversation func(sessionID string) (*chat.Conversation, error)

// Server wraps an MCP server with one Conversation per session id.
// Conversations are retained for the life of the process so clarification
// state survives between tool calls; an MCP client drives few sessions, so
// the map stays small.
type Server struct {
	mcp  *server.MCPServer
	open OpenConversation

	mu    sync.Mutex
	convs map[string]*chat.Conversation
}

// NewServer builds the MCP server and registers the chat tool.
func NewServer(version string, open OpenConversation) *Server {
	s := &Server{
		open:  open,
		convs: make(map[string]*chat.Conversation),
	}

	s.mcp = server.NewMCPServer(
		"memchat",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.mcp.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to a memory-backed chat session. "+
				"Returns either the assistant's response or a list of clarifying questions; "+
				"answer clarifying questions by calling chat again with the same session_id."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session identifier; reuse it to continue a conversation and its memory"),
			),
			mcp.WithString("message",
				mcp.Required(),
				mcp.Description("The user's message, passed through unmodified"),
			),
		),
		s.handleChat,
	)

	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
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

func (s *Server) handleChat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	conv, err := s.conversation(sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to open conversation: %v", err)), nil
	}

	result, err := conv.Chat(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("turn failed: %v", err)), nil
	}

	out := map[string]any{"type": string(result.Type)}
	if result.Type == chat.ResultClarification {
		out["content"] = result.Questions
	} else {
		out["content"] = result.Reply
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
