package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildboard/engine-server-go/internal/config"
	"github.com/buildboard/engine-server-go/internal/game"
	"github.com/buildboard/engine-server-go/internal/game/content"
	"github.com/buildboard/engine-server-go/internal/repository"
	"github.com/buildboard/engine-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting engine server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Load game content tables
	provider, err := content.LoadDir(cfg.Content.Dir)
	if err != nil {
		logger.Fatal("failed to load content", zap.Error(err), zap.String("dir", cfg.Content.Dir))
	}
	logger.Info("content loaded", zap.String("dir", cfg.Content.Dir))

	// Initialize database-backed game store when configured
	var store *repository.GameStore
	if cfg.Database.URL != "" {
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		store = repository.NewGameStore(db, logger)
		if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
			logger.Fatal("failed to ensure schema", zap.Error(schemaErr))
		}
		logger.Info("game store initialized",
			zap.Int32("max_conns", cfg.Database.MaxConns),
		)
	} else {
		logger.Warn("database url not configured; saved games disabled")
	}

	// Initialize game engine
	engine := game.NewEngine(provider, logger, game.Options{
		ChoiceTimeout:   cfg.Engine.ChoiceTimeout,
		PacingDelay:     cfg.Engine.MovePacingDelay,
		StartingMoney:   cfg.Engine.StartingMoney,
		RollbackEnabled: cfg.Engine.RollbackEnabled,
	})
	engine.CompleteWiring()
	logger.Info("game engine initialized",
		zap.Duration("choice_timeout", cfg.Engine.ChoiceTimeout),
		zap.Bool("rollback_enabled", cfg.Engine.RollbackEnabled),
	)

	// Initialize websocket hub
	hub := server.NewHub(engine, logger)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS(ctx))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.WebSocket.Address,
		Handler: mux,
	}

	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.WebSocket.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("WebSocket server error", zap.Error(serveErr))
		}
	}()

	logger.Info("engine server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}

	persistOnShutdown(shutdownCtx, engine, store, cfg.Engine.ReplayDir, logger)

	cancel()
	logger.Info("engine server stopped")
}

// persistOnShutdown writes the running game's state and replay journal
// before exit so it can be resumed. Both writes are best-effort.
func persistOnShutdown(ctx context.Context, engine *game.Engine, store *repository.GameStore, replayDir string, logger *zap.Logger) {
	gameID := engine.GameID()
	if gameID == "" {
		return
	}

	if store != nil {
		blob, err := engine.GetStateForSync()
		if err != nil {
			logger.Error("failed to serialize game state", zap.Error(err))
		} else {
			checksum, err := game.ComputeChecksum(engine.Store().Get())
			if err != nil {
				logger.Error("failed to checksum game state", zap.Error(err))
			} else if err := store.Save(ctx, gameID, blob, checksum.Hash); err != nil {
				logger.Error("failed to save game", zap.Error(err), zap.String("game_id", gameID))
			} else {
				logger.Info("game saved", zap.String("game_id", gameID))
			}
		}
	}

	if replayDir != "" {
		if err := engine.ReplayJournal().Save(replayDir); err != nil {
			logger.Error("failed to save replay", zap.Error(err), zap.String("game_id", gameID))
		} else {
			logger.Info("replay saved", zap.String("game_id", gameID), zap.String("dir", replayDir))
		}
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
