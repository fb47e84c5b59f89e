package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mikeboe/querymind/pkg/chat"
	"github.com/mikeboe/querymind/pkg/clients"
	"github.com/mikeboe/querymind/pkg/config"
	"github.com/mikeboe/querymind/pkg/database"
	"github.com/mikeboe/querymind/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg := config.Load()
	ctx := context.Background()

	asker, err := clients.NewAsker(ctx, cfg.Rag)
	if err != nil {
		slog.Error("Failed to init answer provider", "error", err)
		os.Exit(1)
	}

	// Signed-in sessions are only persisted when a database is configured.
	var store chat.MessageStore
	if cfg.PersistenceEnabled() {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.PoolOptions{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		store = db
	} else {
		slog.Warn("DATABASE_URL not set, history is kept in memory only")
	}

	sessions := server.NewSessions(asker, store)
	sessions.IdleTTL = cfg.SessionIdleTTL
	handler := server.NewHandler(sessions)

	r := gin.New()
	r.Use(gin.Recovery(), server.RequestLogger(slog.Default()))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"}, // Allow all for dev
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID", "X-Session-ID", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Session-ID", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port, "provider", cfg.Rag.Provider)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
