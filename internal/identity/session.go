package identity

import (
	"context"
	"sync"
)

// Session is the explicit session context handed to components that need
// the current principal. Subscribers are told about every change; a nil
// principal means the session ended.
type Session struct {
	mu     sync.RWMutex
	creds  *Credentials
	subs   map[int64]func(*Principal)
	nextID int64
}

// NewSession returns a session established with creds.
func NewSession(creds *Credentials) *Session {
	s := &Session{subs: map[int64]func(*Principal){}}
	if creds != nil {
		cp := *creds
		s.creds = &cp
	}
	return s
}

// Principal returns the current principal, or nil once the session ended.
func (s *Session) Principal() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	p := s.creds.Principal
	return &p
}

// Credentials returns a copy of the current credentials, or nil.
func (s *Session) Credentials() *Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return nil
	}
	cp := *s.creds
	return &cp
}

// Active reports whether the session still has a principal.
func (s *Session) Active() bool {
	return s.Principal() != nil
}

// Subscribe registers fn for principal changes and returns its disposer.
// fn runs synchronously on the goroutine that changed the session and must
// not call back into Subscribe or End.
func (s *Session) Subscribe(fn func(*Principal)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// End clears the principal and notifies subscribers with nil.
func (s *Session) End() {
	s.mu.Lock()
	if s.creds == nil {
		s.mu.Unlock()
		return
	}
	s.creds = nil
	fns := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range fns {
		fn(nil)
	}
}

// snapshotSubs copies subscribers; callers hold s.mu.
func (s *Session) snapshotSubs() []func(*Principal) {
	fns := make([]func(*Principal), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return fns
}

type sessionKey struct{}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext extracts the session attached by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}

// PrincipalFromContext returns the active principal carried by ctx.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return nil, false
	}
	p := sess.Principal()
	return p, p != nil
}
