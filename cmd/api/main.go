package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/PaulBabatuyi/duochat/internal/auth"
	"github.com/PaulBabatuyi/duochat/internal/config"
	"github.com/PaulBabatuyi/duochat/internal/conversation"
	"github.com/PaulBabatuyi/duochat/internal/data"
	"github.com/PaulBabatuyi/duochat/internal/db"
	"github.com/PaulBabatuyi/duochat/internal/directory"
	"github.com/PaulBabatuyi/duochat/internal/feed"
	"github.com/PaulBabatuyi/duochat/internal/identity"
	"github.com/PaulBabatuyi/duochat/internal/middleware"
	"github.com/PaulBabatuyi/duochat/internal/rpc/chatv1"
)

func main() {
	// Read configuration from .env and the environment
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		logger.Error("failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Create stores
	accounts := data.NewAccountsStore(dbClient.AccountsCollection())
	users := data.NewUsersStore(dbClient.UsersCollection())
	rooms := data.NewRoomsStore(dbClient.RoomsCollection())
	msgs := data.NewMessagesStore(dbClient.MessagesCollection())

	// Dual writes run in a transaction only when the deployment supports it
	var tx directory.Transactor
	if cfg.MongoTransactions {
		tx = dbClient
	}

	// Live updates and revocations stay in process unless Redis is configured,
	// in which case every instance shares them
	var notifier feed.Notifier = feed.NewHub()
	var revoked identity.Revocations = identity.NewMemoryRevocations()
	var rdb *redis.Client
	feedCtx, stopFeed := context.WithCancel(ctx)
	if cfg.UseRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Error("failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}

		redisFeed := feed.NewRedisFeed(rdb, logger)
		go func() {
			if err := redisFeed.Run(feedCtx); err != nil {
				logger.Error("room feed stopped", "error", err)
			}
		}()
		notifier = redisFeed
		revoked = identity.NewRedisRevocations(rdb)
	}

	// JWT_KEYS enables key rotation; JWT_SECRET is the single-key fallback
	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.TokenTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	}

	ids := identity.NewService(accounts, jwtMgr, revoked, logger)
	dir := directory.NewService(users, tx, logger)
	conv := conversation.NewService(rooms, msgs, notifier, tx, logger)

	// Register/Login are limited per account, sends per user
	authLimiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	sendLimiter := middleware.NewLimiterStore(cfg.SendRatePerMinute, 10, time.Minute)
	rules := map[string]middleware.Rule{
		chatv1.ChatService_Register_FullMethodName:    {Store: authLimiter, Key: middleware.ByEmail},
		chatv1.ChatService_Login_FullMethodName:       {Store: authLimiter, Key: middleware.ByEmail},
		chatv1.ChatService_SendMessage_FullMethodName: {Store: sendLimiter, Key: middleware.ByPrincipal},
	}

	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Error("failed to load TLS certs", "error", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	// auth runs first so per-user limits can see the principal
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			authUnaryInterceptor(ids),
			middleware.RateLimitUnaryInterceptor(rules),
		),
		grpc.ChainStreamInterceptor(authStreamInterceptor(ids)),
	)

	grpcServer := grpc.NewServer(serverOpts...)

	srv := newServer(ids, dir, conv, sendLimiter, logger)
	srv.ready = dbClient.Ping
	registerService(grpcServer, srv)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(chatv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	// Listen and serve
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Error("failed to listen", "port", cfg.GRPCPort, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server exit", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server exit", "error", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM; steps run in dependency order
	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, map[string]gfshutdown.Operation{
		"duochat": func(ctx context.Context) error {
			logger.Info("shutting down")
			healthSrv.Shutdown()

			// live Subscribe streams never finish on their own
			stopped := make(chan struct{})
			go func() {
				grpcServer.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-ctx.Done():
				grpcServer.Stop()
			}

			err := httpServer.Shutdown(ctx)

			stopFeed()
			authLimiter.Stop()
			sendLimiter.Stop()
			if rdb != nil {
				err = errors.Join(err, rdb.Close())
			}
			return errors.Join(err, dbClient.Close(ctx))
		},
	})

	exitCode := <-wait
	logger.Info("shutdown complete", "exit_code", exitCode)
	os.Exit(exitCode)
}
