// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command honeypot starts the scam-engagement API server.
//
// The server receives suspected scam messages, classifies them, keeps the
// counterparty engaged with planned replies, extracts fraud intelligence
// from the exchange, and reports the final result to the configured
// collector when the engagement ends.
//
// Usage:
//
//	go run ./cmd/honeypot
//	go run ./cmd/honeypot -port 9090
//
// With a remote reasoner:
//
//	OPENAI_API_KEY=sk-... OPENAI_MODEL=gpt-4o-mini go run ./cmd/honeypot
//
// Without OPENAI_API_KEY the server runs entirely on the deterministic
// rule-based reasoner.
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/api/health
//
//	# Process a message
//	curl -X POST http://localhost:8080/api/message \
//	  -H "Content-Type: application/json" \
//	  -d '{"sessionId": "abc", "message": {"sender": "scammer", "text": "Your account is blocked, share your UPI pin urgently"}}'
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/honeypot/services/honeypot"
	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/dialog"
	"github.com/AleutianAI/honeypot/services/honeypot/engine"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
	"github.com/AleutianAI/honeypot/services/honeypot/reasoner"
	"github.com/AleutianAI/honeypot/services/honeypot/report"
	"github.com/AleutianAI/honeypot/services/honeypot/session"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides PORT)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg := config.FromEnv()
	if *port != 0 {
		cfg.Port = *port
	}

	rules, err := config.GetRules()
	if err != nil {
		logger.Error("failed to load engagement rules", "error", err)
		os.Exit(1)
	}

	extractor := intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords)
	planner := dialog.NewPlanner(rules, extractor)
	ruleBased := reasoner.NewRuleBased(rules, extractor, planner)

	var rsn reasoner.Reasoner = ruleBased
	if cfg.OpenAIAPIKey != "" {
		remote, err := reasoner.NewOpenAIReasoner(cfg, logger)
		if err != nil {
			logger.Error("failed to build remote reasoner", "error", err)
			os.Exit(1)
		}
		rsn = reasoner.WithFallback(remote, ruleBased, logger)
		logger.Info("remote reasoner enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, running on the rule-based reasoner only")
	}

	store := session.NewStore()
	reporter := report.NewReporter(cfg, logger)
	eng := engine.New(store, rsn, reporter, planner, extractor, cfg, logger)
	handlers := honeypot.NewHandlers(eng, store)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("honeypot"))
	if *debug {
		router.Use(gin.Logger())
	}

	api := router.Group("/api")
	api.Use(honeypot.APIKeyAuth(cfg.APIKey))
	honeypot.RegisterRoutes(api, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting honeypot server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down honeypot server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
