package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/identity"
)

type dummy struct{ email string }

func (d dummy) GetEmail() string { return d.email }

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	// allow 5 events immediately then the 6th should be rejected
	s := NewLimiterStore(5, 5, time.Hour)
	defer s.Stop()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	key := "test@example.com"
	for i := 0; i < 5; i++ {
		if !s.Allow(key) {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}

	if s.Allow(key) {
		t.Fatalf("expected limiter to block after burst consumed")
	}

	// one token refills every 12s at 5/min
	now = now.Add(13 * time.Second)
	if !s.Allow(key) {
		t.Fatalf("expected a refilled token")
	}

	// idle entries are evicted
	now = now.Add(idleTTL + time.Second)
	s.evictIdle()
	if n := s.Len(); n != 0 {
		t.Fatalf("expected idle limiter to be evicted, have %d", n)
	}
}

func TestLimiterStore_StopTwice(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestKeyFuncs(t *testing.T) {
	ctx := context.Background()

	if k := ByEmail(ctx, dummy{email: " A@Example.com "}); k != "email:a@example.com" {
		t.Fatalf("ByEmail = %q", k)
	}
	if k := ByEmail(ctx, dummy{}); k != "" {
		t.Fatalf("ByEmail on blank email = %q", k)
	}
	if k := ByEmail(ctx, struct{}{}); k != "" {
		t.Fatalf("ByEmail without email = %q", k)
	}

	if k := ByPrincipal(ctx, nil); k != "" {
		t.Fatalf("ByPrincipal without session = %q", k)
	}
	sess := identity.NewSession(&identity.Credentials{Principal: identity.Principal{ID: "u1"}})
	if k := ByPrincipal(identity.WithSession(ctx, sess), nil); k != "user:u1" {
		t.Fatalf("ByPrincipal = %q", k)
	}

	if k := PeerKey(ctx); k != "unknown" {
		t.Fatalf("PeerKey without peer = %q", k)
	}
	pctx := peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}})
	if k := PeerKey(pctx); k != "peer:10.0.0.1:4000" {
		t.Fatalf("PeerKey = %q", k)
	}
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	store := NewLimiterStore(60, 2, time.Hour)
	defer store.Stop()

	const limited = "/chat.v1.ChatService/Login"
	interceptor := RateLimitUnaryInterceptor(map[string]Rule{
		limited: {Store: store, Key: ByEmail},
	})

	calls := 0
	handler := func(ctx context.Context, req any) (any, error) {
		calls++
		return "ok", nil
	}
	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: limited}

	for i := 0; i < 2; i++ {
		if _, err := interceptor(ctx, dummy{email: "a@example.com"}, info, handler); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	_, err := interceptor(ctx, dummy{email: "a@example.com"}, info, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
	if !apperr.Is(err, apperr.RateLimited) {
		t.Fatalf("expected RateLimited kind, got %v", apperr.KindOf(err))
	}

	// a different account has its own budget
	if _, err := interceptor(ctx, dummy{email: "b@example.com"}, info, handler); err != nil {
		t.Fatalf("other key: %v", err)
	}

	// unlimited methods pass through
	open := &grpc.UnaryServerInfo{FullMethod: "/chat.v1.ChatService/Me"}
	for i := 0; i < 5; i++ {
		if _, err := interceptor(ctx, nil, open, handler); err != nil {
			t.Fatalf("unlimited method: %v", err)
		}
	}

	if calls != 8 {
		t.Fatalf("handler calls = %d, want 8", calls)
	}
}
