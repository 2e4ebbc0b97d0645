package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/voxd/voxd/internal/audio"
	"github.com/voxd/voxd/internal/chat"
	"github.com/voxd/voxd/internal/clipboard"
	"github.com/voxd/voxd/internal/config"
	"github.com/voxd/voxd/internal/handlers"
	"github.com/voxd/voxd/internal/llm"
	"github.com/voxd/voxd/internal/server"
	"github.com/voxd/voxd/internal/session"
	"github.com/voxd/voxd/internal/transcribe"
	"github.com/voxd/voxd/internal/tts"
	"github.com/voxd/voxd/pkg/logger"
)

// Loads configuration, wires the session pipeline and serves the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg := logger.New(cfg.Debug)
	logg.Info("logger initialized")

	registry := session.NewRegistry(logg)
	if cfg.Status.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Status.RedisAddr})
		if err := rc.Ping().Err(); err != nil {
			logg.Warnf("redis unreachable, status mirror disabled: %v", err)
		} else {
			ttl := time.Duration(cfg.Status.RedisTTLMins) * time.Minute
			registry.WithRedisMirror(rc, ttl)
			logg.Infof("status mirror enabled on %s", cfg.Status.RedisAddr)
		}
	}

	store, err := buildChatStore(cfg, logg)
	if err != nil {
		logg.Fatalf("Failed to initialize chat store: %v", err)
	}

	mic, err := audio.NewMic(cfg.Audio.SampleRate, cfg.Audio.ChunkSize, logg)
	if err != nil {
		logg.Fatalf("Failed to open audio device: %v", err)
	}
	defer mic.Close()

	var provider llm.Provider
	if cfg.LLM.Provider == "ollama" {
		provider = llm.NewOllamaProvider(cfg.LLM, logg)
	} else {
		provider = llm.NewOpenAIClient(cfg.LLM, logg)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry.StartJanitor(rootCtx, time.Minute, cfg.Status.SessionTTL())

	h := handlers.New(rootCtx, handlers.Deps{
		Settings:    cfg,
		Registry:    registry,
		Stream:      mic,
		Transcriber: transcribe.NewWhisperClient(cfg.STT.BaseURL, logg),
		Provider:    provider,
		Saver:       llm.NewResponseSaver(cfg.LLM.OutputFile, logg),
		Clip:        clipboard.System{},
		Store:       store,
		Synth:       tts.NewKokoro(cfg.TTS, logg),
		Player:      tts.NewSpeaker(24000, cfg.Audio.ChunkSize, logg),
		Logger:      logg,
	})

	router := server.NewRouter(h, logg, cfg.Debug)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.Handler(),
	}
	go func() {
		logg.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalf("Server exiting: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Errorf("Shutdown err %v", err)
	}
	logg.Info("Shutdown system")
}

func buildChatStore(cfg *config.Settings, logg *logger.Logger) (chat.Store, error) {
	if cfg.Chat.Store == "mysql" {
		db, err := gorm.Open(mysql.Open(cfg.Chat.DB.DSN()), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		return chat.NewGormStore(db, logg)
	}
	return chat.NewFileStore(cfg.Chat.HistoryDir, logg)
}
