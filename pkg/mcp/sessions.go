package mcp

import "sync"

// SessionRegistry maps project names to the MCP sessions subscribed to them.
// Sessions subscribe by calling flowcode.connect.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{} // project → session IDs
}

// NewSessionRegistry creates a new empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]map[string]struct{})}
}

// Register subscribes a session to a project. Registering twice is a no-op.
func (r *SessionRegistry) Register(project, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[project]
	if !ok {
		set = make(map[string]struct{})
		r.sessions[project] = set
	}
	set[sessionID] = struct{}{}
}

// SessionsFor returns the sessions subscribed to a project.
func (r *SessionRegistry) SessionsFor(project string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions[project]))
	for sid := range r.sessions[project] {
		out = append(out, sid)
	}
	return out
}

// Remove drops a session from every project.
// Called when a session disconnects.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for project, set := range r.sessions {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.sessions, project)
		}
	}
}
