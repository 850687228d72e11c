package main

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/PaulBabatuyi/duochat/internal/apperr"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

// publicMethods don't require authentication.
var publicMethods = map[string]bool{
	chatv1.ChatService_Register_FullMethodName: true,
	chatv1.ChatService_Login_FullMethodName:    true,
}

// bearerToken extracts the token of an "authorization: Bearer <token>" header.
// A bare token is accepted as well.
func bearerToken(header string) string {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 2 && strings.EqualFold(fields[0], "bearer"):
		return fields[1]
	case len(fields) == 1 && !strings.EqualFold(fields[0], "bearer"):
		return fields[0]
	}
	return ""
}

// authenticate verifies the token in ctx's metadata and attaches a session.
func authenticate(ctx context.Context, ids *identity.Service) (context.Context, error) {
	const op = "api.authenticate"

	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, apperr.E(op, apperr.Auth, "missing metadata", nil)
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, apperr.E(op, apperr.Auth, "missing authorization header", nil)
	}

	creds, err := ids.Authenticate(ctx, bearerToken(authHeaders[0]))
	if err != nil {
		return nil, err
	}
	return identity.WithSession(ctx, identity.NewSession(creds)), nil
}

// authUnaryInterceptor returns a UnaryServerInterceptor that enforces JWT authentication
// for all methods except the public ones (Register, Login).
func authUnaryInterceptor(ids *identity.Service) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, ids)
		if err != nil {
			return nil, rpcError(err)
		}
		return handler(ctx, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(ids *identity.Service) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), ids)
		if err != nil {
			return rpcError(err)
		}
		return handler(srv, sessionServerStream{ServerStream: ss, ctx: ctx})
	}
}

// sessionServerStream wraps grpc.ServerStream to override Context()
type sessionServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with the session)
func (s sessionServerStream) Context() context.Context { return s.ctx }
