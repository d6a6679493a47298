package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbonduro/interop/internal/auth"
	"github.com/vbonduro/interop/internal/config"
	"github.com/vbonduro/interop/internal/db"
	"github.com/vbonduro/interop/internal/logging"
	"github.com/vbonduro/interop/internal/photostore/local"
	"github.com/vbonduro/interop/internal/service"
	"github.com/vbonduro/interop/internal/store"
	"github.com/vbonduro/interop/internal/vision"
	claudevision "github.com/vbonduro/interop/internal/vision/claude"
	ollamavision "github.com/vbonduro/interop/internal/vision/ollama"
	"github.com/vbonduro/interop/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, logging.Options{File: cfg.LogFile, MaxSizeMB: cfg.LogMaxSizeMB})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	photoStg, err := local.NewLocalPhotoStore(cfg.MediaPath)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}

	targetService := service.NewTargetService(store.NewTargetStore(database), photoStg, newVisionAnalyzer(cfg, logger), logger)
	server := web.NewServer(targetService, auth.NewVerifier(cfg.JWTSecret), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

// runToken mints a bearer token for an existing user id.
func runToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user id to issue the token for")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID <= 0 {
		return errors.New("token: -user must be a positive id")
	}

	token, err := auth.NewVerifier(cfg.JWTSecret).Issue(*userID, *ttl)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	fmt.Println(token)
	return nil
}

// newVisionAnalyzer returns nil when classification is disabled.
func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) vision.VisionAnalyzer {
	switch cfg.VisionBackend {
	case config.VisionClaude:
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	case config.VisionOllama:
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel)
	default:
		logger.Info("image classification disabled")
		return nil
	}
}
