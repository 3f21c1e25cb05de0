// Package main provides the main entry point for the Brokle telemetry
// ingestion server: OTLP trace ingestion, PII redaction, and span
// canonicalization.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"brokle/internal/config"
	obsServices "brokle/internal/core/services/observability"
	"brokle/internal/core/services/observability/canonicalize"
	httpTransport "brokle/internal/transport/http"
	obsHandlers "brokle/internal/transport/http/handlers/observability"
	"brokle/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLoggerWithFormat(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	canonicalizer := canonicalize.NewCanonicalizeService(logger)
	pipeline := obsServices.NewSpanNormalizationPipeline(canonicalizer)

	piiRedactor := obsServices.NewPiiRedactionService(obsServices.PiiRedactionConfig{
		PiiBearingAttributeKeys:        cfg.Observability.PII.BearingAttributeKeys,
		IsLangevalsConfigured:          cfg.Observability.PII.IsLangevalsConfigured(),
		IsProduction:                   cfg.IsProduction(),
		PiiRedactionMaxAttributeLength: cfg.Observability.PII.MaxAttributeLength,
	}, logger)

	otlpHandler := obsHandlers.NewOTLPHandler(pipeline, piiRedactor, cfg.Observability.PII, logger)
	server := httpTransport.NewServer(cfg, logger, otlpHandler)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
