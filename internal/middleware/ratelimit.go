// Package middleware holds gRPC interceptors shared by the API server.
package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/normalize"
)

// idleTTL is how long an unused limiter is kept.
const idleTTL = 10 * time.Minute

// LimiterStore maintains per-key rate limiters and performs periodic cleanup.
type LimiterStore struct {
	mu              sync.Mutex
	limit           rate.Limit
	burst           int
	clients         map[string]*clientEntry
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiterStore creates a new store for per-key rate limiters.
// limitPerMinute controls allowed events per minute; burst is the burst capacity.
func NewLimiterStore(limitPerMinute int, burst int, cleanupInterval time.Duration) *LimiterStore {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	s := &LimiterStore{
		limit:           rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:           burst,
		clients:         map[string]*clientEntry{},
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	go s.cleanupLoop()
	return s
}

func (s *LimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-s.stopCh:
			return
		}
	}
}

// evictIdle drops limiters not used within idleTTL.
func (s *LimiterStore) evictIdle() {
	cutoff := s.now().Add(-idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.clients {
		if v.lastSeen.Before(cutoff) {
			delete(s.clients, k)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// getLimiter returns or creates a limiter for key
func (s *LimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.clients[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	s.clients[key] = &clientEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Allow checks whether an event for the given key is permitted.
func (s *LimiterStore) Allow(key string) bool {
	return s.getLimiter(key).AllowN(s.now(), 1)
}

// Len reports how many keys currently have a limiter.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// KeyFunc derives the limiter key of a request. An empty key falls back to
// the peer address.
type KeyFunc func(ctx context.Context, req any) string

// Rule rate limits one method.
type Rule struct {
	Store *LimiterStore
	Key   KeyFunc
}

// ByEmail keys requests that carry an email, protecting accounts rather
// than addresses.
func ByEmail(_ context.Context, req any) string {
	type emailGetter interface{ GetEmail() string }
	if eg, ok := req.(emailGetter); ok {
		if e := normalize.Email(eg.GetEmail()); e != "" {
			return "email:" + e
		}
	}
	return ""
}

// ByPrincipal keys requests by the authenticated user.
func ByPrincipal(ctx context.Context, _ any) string {
	if p, ok := identity.PrincipalFromContext(ctx); ok {
		return "user:" + p.ID
	}
	return ""
}

// PeerKey returns the remote address of the caller.
func PeerKey(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "peer:" + p.Addr.String()
	}
	return "unknown"
}

// ErrRateLimited is returned when a caller exceeds its budget.
var ErrRateLimited = apperr.E("middleware.RateLimit", apperr.RateLimited, "rate limit exceeded", nil)

// RateLimitUnaryInterceptor returns a grpc.UnaryServerInterceptor that applies
// the rule registered for the called method. Methods without a rule pass
// through untouched.
func RateLimitUnaryInterceptor(rules map[string]Rule) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rule, ok := rules[info.FullMethod]
		if !ok || rule.Store == nil {
			return handler(ctx, req)
		}

		var key string
		if rule.Key != nil {
			key = rule.Key(ctx, req)
		}
		if key == "" {
			key = PeerKey(ctx)
		}

		if !rule.Store.Allow(key) {
			return nil, ErrRateLimited
		}
		return handler(ctx, req)
	}
}
