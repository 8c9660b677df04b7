package lsp

import "github.com/dshills/lspmux/internal/logging"

// Registry holds at most one live session per key. It is confined to the
// tick goroutine, like the sessions it holds, so it needs no locking.
type Registry struct {
	log      *logging.Logger
	sessions map[SessionKey]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		log:      log.WithComponent("registry"),
		sessions: make(map[SessionKey]*Session),
	}
}

// GetOrCreate returns the live session for key, or invokes factory to make
// one and registers it. A factory failure registers nothing and is returned
// to the caller.
func (r *Registry) GetOrCreate(key SessionKey, factory func() (*Session, error)) (*Session, error) {
	if s, ok := r.sessions[key]; ok {
		return s, nil
	}

	s, err := factory()
	if err != nil {
		r.log.Warn("session start failed", "key", key.String(), "error", err)
		return nil, &SessionError{Key: key, Err: err}
	}
	r.sessions[key] = s
	r.log.Info("session registered", "key", key.String())
	return s, nil
}

// Get returns the live session for key, if any.
func (r *Registry) Get(key SessionKey) (*Session, bool) {
	s, ok := r.sessions[key]
	return s, ok
}

// Remove deletes the entry for s's key, but only if s is still the
// registered session for that key. A session that died and was replaced
// must not delete its successor's entry.
func (r *Registry) Remove(s *Session) {
	if cur, ok := r.sessions[s.key]; ok && cur == s {
		delete(r.sessions, s.key)
		r.log.Info("session removed", "key", s.key.String())
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
