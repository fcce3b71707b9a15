// Package api exposes the CareRouter HTTP surface: the chat endpoint, the health and
// metrics endpoints and the Twilio WhatsApp webhook.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/CareRouter/internal/messaging"
	"github.com/BTreeMap/CareRouter/internal/metrics"
	"github.com/BTreeMap/CareRouter/internal/models"
)

// Server configuration constants
const (
	DefaultAddr          = ":8080"
	DefaultMaxBodyBytes  = 64 << 10
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 90 * time.Second
	DefaultShutdownGrace = 10 * time.Second
)

// Turner runs one conversational turn. flow.Manager satisfies it.
type Turner interface {
	ProcessMessage(ctx context.Context, userID, message string) models.Envelope
}

// Server serves the HTTP API.
type Server struct {
	turner    Turner
	sender    messaging.Sender
	validator *messaging.Validator
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	addr      string
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithSender enables outbound WhatsApp replies for the Twilio webhook. Without a sender
// the reply is returned inline as TwiML.
func WithSender(sender messaging.Sender) Option {
	return func(s *Server) { s.sender = sender }
}

// WithValidator enables Twilio signature checks on the webhook.
func WithValidator(v *messaging.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a Server over turner.
func NewServer(turner Turner, opts ...Option) *Server {
	s := &Server{turner: turner, addr: DefaultAddr, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/chat", s.chatHandler)
	r.Post("/webhooks/twilio", s.twilioWebhookHandler)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
