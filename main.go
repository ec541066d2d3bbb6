package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"chatrelay/internal/auth"
	"chatrelay/internal/config"
	"chatrelay/internal/database/db_client"
	"chatrelay/internal/http/http_server"
	"chatrelay/internal/lastseen"
	"chatrelay/internal/redis/messagestream"
	"chatrelay/internal/redis/redis_client"
	"chatrelay/internal/registry"
	"chatrelay/internal/relay"
	"chatrelay/internal/services/history"
	"chatrelay/internal/syncmsg"
	"chatrelay/internal/ws"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

// @title			Chat Relay API
// @version		1.0
// @description	Room listing and message history for the websocket chat relay.
// @BasePath		/
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully",
		zap.String("sink", cfg.SinkBackend),
		zap.Uint16("port", cfg.HttpServerPort),
		zap.Bool("auth", cfg.JwtSecret != ""),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Postgres db client
	var pgDb *sql.DB
	var historySvc history.IHistoryService
	if cfg.UsesPostgres() {
		pgDb, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()
		if err := db_client.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
		historySvc = history.NewHistoryService(pgDb)
	}

	// 4. Delivery sink behind the async forwarder
	var sink relay.DeliverySink
	switch cfg.SinkBackend {
	case config.SinkRedis:
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		sink = messagestream.NewPublisher(redisClient)
		// Background: stream ➜ messages table
		syncmsg.Run(ctx, redisClient, pgDb)
	case config.SinkPostgres:
		sink = historySvc
	}

	var opts []relay.Option
	if sink != nil {
		fwd := relay.NewForwarder(sink, relay.ForwarderConfig{
			QueueSize: cfg.SinkQueueSize,
			Workers:   cfg.SinkWorkers,
			Timeout:   cfg.SinkTimeout,
		})
		defer fwd.Close()
		opts = append(opts, relay.WithForwarder(fwd))
	}

	// 5. Rooms + relay
	reg := registry.New()
	rl := relay.New(reg, opts...)

	// 6. Background: last-seen stamper
	if pgDb != nil {
		lastseen.Run(ctx, reg, pgDb, cfg.LastSeenInterval)
	}

	// 7. Initialize the WS server
	wsCfg := ws.Config{ReadLimit: cfg.WsReadLimit}
	if cfg.JwtSecret != "" {
		wsCfg.Identity = auth.NewRequestResolver(auth.DefaultTokenConfig(cfg.JwtSecret))
	}
	wsSrv := ws.NewWsServer(rl, wsCfg)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, reg, historySvc)
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			Log.Error("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("shutdown")
		_ = httpServer.Dispose()
	}
}
