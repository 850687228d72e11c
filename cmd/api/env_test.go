package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/PaulBabatuyi/duochat/internal/auth"
	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/data/datatest"
	"github.com/PaulBabatuyi/duochat/internal/directory"
	"github.com/PaulBabatuyi/duochat/internal/feed"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/middleware"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

const bufSize = 1024 * 1024

// stores bundles the persistence the API runs on.
type stores struct {
	accounts identity.AccountStore
	users    directory.UserStore
	rooms    conversation.RoomStore
	msgs     conversation.MessageStore
}

func memoryStores() (stores, *datatest.Store) {
	m := datatest.New()
	return stores{accounts: m, users: m, rooms: m, msgs: m}, m
}

type testEnv struct {
	srv    *Server
	ids    *identity.Service
	hub    *feed.Hub
	client chatv1.ChatServiceClient
}

type envOptions struct {
	sendPerMinute int
	sendBurst     int
	sessionCheck  time.Duration
}

func newTestEnv(t *testing.T, st stores, opts envOptions) *testEnv {
	t.Helper()
	if opts.sendPerMinute == 0 {
		opts.sendPerMinute, opts.sendBurst = 6000, 1000
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := feed.NewHub()
	ids := identity.NewService(st.accounts, auth.NewJWTManager("test-secret", time.Hour), identity.NewMemoryRevocations(), log)
	dir := directory.NewService(st.users, nil, log)
	conv := conversation.NewService(st.rooms, st.msgs, hub, nil, log)

	sendLimiter := middleware.NewLimiterStore(opts.sendPerMinute, opts.sendBurst, time.Minute)
	t.Cleanup(sendLimiter.Stop)
	srv := newServer(ids, dir, conv, sendLimiter, log)
	if opts.sessionCheck > 0 {
		srv.sessionCheck = opts.sessionCheck
	}

	// set up bufconn server
	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			authUnaryInterceptor(ids),
			middleware.RateLimitUnaryInterceptor(map[string]middleware.Rule{
				chatv1.ChatService_SendMessage_FullMethodName: {Store: sendLimiter, Key: middleware.ByPrincipal},
			}),
		),
		grpc.ChainStreamInterceptor(authStreamInterceptor(ids)),
	)
	registerService(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	// Dialer via bufconn
	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{srv: srv, ids: ids, hub: hub, client: chatv1.NewChatServiceClient(conn)}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// signUp registers email and returns the response and an authenticated context.
func (e *testEnv) signUp(t *testing.T, email string) (*chatv1.AuthResponse, context.Context) {
	t.Helper()
	resp, err := e.client.Register(context.Background(), &chatv1.RegisterRequest{
		Email:           email,
		Password:        "testPass123",
		ConfirmPassword: "testPass123",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return resp, withToken(context.Background(), resp.Token)
}
