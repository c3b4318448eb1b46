package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// ProjectNotifier pushes notifications to clients following a project.
type ProjectNotifier interface {
	NotifyProject(ctx context.Context, project string, payload map[string]any) error
}

// MCPNotifier implements ProjectNotifier using MCP server push.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

var _ ProjectNotifier = (*MCPNotifier)(nil)

// NewMCPNotifier creates a notifier that pushes via MCP.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// NotifyProject sends payload to every session subscribed to project.
// Best-effort: sessions that are gone are dropped silently.
func (n *MCPNotifier) NotifyProject(_ context.Context, project string, payload map[string]any) error {
	var errs []error
	for _, sid := range n.sessions.SessionsFor(project) {
		err := n.mcpServer.SendNotificationToSpecificClient(sid, "notifications/message", payload)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.sessions.Remove(sid)
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
