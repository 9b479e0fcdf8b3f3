package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sketchrelay/internal/config"
	"sketchrelay/internal/database/db_client"
	"sketchrelay/internal/http/http_server"
	"sketchrelay/internal/redis/redis_client"
	"sketchrelay/internal/services/strokelog"
	"sketchrelay/internal/syncrooms"
	"sketchrelay/internal/syncstrokes"
	"sketchrelay/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis: stroke log storage + room fan-out channels
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client (stroke archive only)
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Stroke log service
	strokes := strokelog.New(redisClient)

	// 6. Background: stream tailer ➜ stroke archive, 10 s room mirror
	syncstrokes.Run(ctx, redisClient, pgDb)
	syncrooms.Run(ctx, redisClient, pgDb)

	// 7. WebSockets hub + Redis fan-out
	hub := ws.NewHub()

	// 8. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, redisClient, strokes)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, hub, strokes)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
