package main

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/directory"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/middleware"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

// Server implements the chat service and the websocket endpoint on top of
// the identity, directory and conversation services.
type Server struct {
	chatv1.UnimplementedChatServiceServer

	identity     *identity.Service
	directory    *directory.Service
	conversation *conversation.Service

	// sendLimiter is shared by SendMessage and websocket sends
	sendLimiter *middleware.LimiterStore

	// sessionCheck is how often long-lived connections re-check their token
	sessionCheck time.Duration

	// ready reports whether backing services are reachable; nil means always
	ready func(ctx context.Context) error

	log *slog.Logger
}

// newServer returns a ready-to-use Server wired with the domain services.
func newServer(ids *identity.Service, dir *directory.Service, conv *conversation.Service, sendLimiter *middleware.LimiterStore, log *slog.Logger) *Server {
	return &Server{
		identity:     ids,
		directory:    dir,
		conversation: conv,
		sendLimiter:  sendLimiter,
		sessionCheck: 30 * time.Second,
		log:          log.With("component", "api"),
	}
}

// watchSession re-checks sess every sessionCheck until ctx is done or the
// session ends. Revocation and expiry end the session, so its subscribers
// can tear the connection down.
func (s *Server) watchSession(ctx context.Context, sess *identity.Session) {
	ticker := time.NewTicker(s.sessionCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.identity.Check(ctx, sess); err != nil && !sess.Active() {
				return
			}
		}
	}
}

// registerService registers the ChatService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	chatv1.RegisterChatServiceServer(s, srv)
}
