// Package main runs the audio conferencing signaling server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-conference/sfu-server/config"
	"github.com/aura-conference/sfu-server/internal/conference/auth"
	"github.com/aura-conference/sfu-server/internal/conference/ice"
	"github.com/aura-conference/sfu-server/internal/conference/room"
	"github.com/aura-conference/sfu-server/internal/httpapi"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	decoder := auth.NewDecoder(cfg.JWT.Secret)

	fallback := ice.NewStaticProvider(cfg.WebRTC.ICEUrls)
	var iceProvider ice.Provider = fallback
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		primary := ice.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
		iceProvider = ice.NewFallbackProvider(primary, fallback, logger)
	}

	registry := room.NewRegistry(iceProvider, logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Log:         logger,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		IceProvider: iceProvider,
		Decoder:     decoder,
		Registry:    registry,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
