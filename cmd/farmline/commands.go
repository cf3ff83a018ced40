package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/farmline/internal/answer"
	answeropenai "github.com/nadzzz/farmline/internal/answer/openai"
	"github.com/nadzzz/farmline/internal/call"
	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/health"
	"github.com/nadzzz/farmline/internal/metrics"
	"github.com/nadzzz/farmline/internal/notify/exotel"
	"github.com/nadzzz/farmline/internal/session"
	"github.com/nadzzz/farmline/internal/tracing"
	"github.com/nadzzz/farmline/internal/transport"
	grpctransport "github.com/nadzzz/farmline/internal/transport/grpc"
	httptransport "github.com/nadzzz/farmline/internal/transport/http"
	"github.com/nadzzz/farmline/internal/tts"
	ttsopenai "github.com/nadzzz/farmline/internal/tts/openai"
	"github.com/nadzzz/farmline/internal/tts/piper"
)

func buildServeCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging)
			return serve(cmd.Context(), cfg)
		},
	}
}

func buildCheckCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and report what is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "webhook:     http://:%d%s (enabled=%t)\n", cfg.Transports.HTTP.Port, cfg.Transports.HTTP.Path, cfg.Transports.HTTP.Enabled)
			fmt.Fprintf(out, "grpc health: :%d (enabled=%t)\n", cfg.Transports.GRPC.Port, cfg.Transports.GRPC.Enabled)
			fmt.Fprintf(out, "answer:      model=%s api_key_set=%t\n", cfg.Answer.Model, cfg.Answer.APIKey != "")
			fmt.Fprintf(out, "tts:         backend=%s enabled=%t\n", cfg.TTS.Backend, cfg.TTS.Enabled)
			fmt.Fprintf(out, "sms:         exotel configured=%t\n", cfg.Notify.Exotel.Complete())
			fmt.Fprintf(out, "tracing:     endpoint=%q\n", cfg.Tracing.Endpoint)
			return nil
		},
	}
}

// newSynthesizer returns the configured TTS backend, or nil when disabled.
func newSynthesizer(cfg config.TTSConfig, answerCfg config.AnswerConfig) tts.Synthesizer {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Backend {
	case "piper":
		slog.Info("using Piper TTS", "endpoint", cfg.Piper.Endpoint, "per_language", len(cfg.Piper.Endpoints))
		return piper.New(cfg.Piper)
	default:
		slog.Info("using OpenAI TTS", "model", cfg.OpenAI.Model, "voice", cfg.OpenAI.Voice)
		return ttsopenai.New(answeropenai.NewClient(answerCfg), cfg.OpenAI)
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	slog.Info("farmline starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "farmline", version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	synth := newSynthesizer(cfg.TTS, cfg.Answer)
	if synth != nil {
		defer synth.Close()
	}

	var answers answer.Service = answeropenai.New(answeropenai.NewClient(cfg.Answer), cfg.Answer, synth)
	answers = answer.Limit(answers, cfg.Answer.MaxConcurrent)
	slog.Info("using OpenAI answers", "model", cfg.Answer.Model, "max_concurrent", cfg.Answer.MaxConcurrent)

	store := session.NewMemoryStore()
	handler := call.NewHandler(cfg.Call, store, answers, exotel.New(cfg.Notify.Exotel),
		call.WithMetrics(m),
		call.WithPublicURL(cfg.Transports.HTTP.PublicURL),
	)

	// Initialize enabled transports.
	var transports []transport.Transport
	var grpcTransport *grpctransport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP, handler,
			httptransport.WithDrainTimeout(cfg.Call.DrainTimeout()),
		))
	}
	if cfg.Transports.GRPC.Enabled {
		grpcTransport = grpctransport.New(cfg.Transports.GRPC.Port)
		transports = append(transports, grpcTransport)
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort, reg, store.Len)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	g.Go(func() error { return handler.SweepIdle(gctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx); err != nil {
				return fmt.Errorf("%s transport: %w", t.Name(), err)
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	if grpcTransport != nil {
		grpcTransport.SetServing(true)
	}
	slog.Info("farmline ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"webhook_path", cfg.Transports.HTTP.Path)

	<-gctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	err = g.Wait()
	slog.Info("farmline stopped", "active_calls", store.Len())
	return err
}
