package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhall/voxhall/internal/metrics"
	"github.com/voxhall/voxhall/pkg/interaction"
)

// Signature headers sent by the platform with every webhook delivery
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

const transportWebhook = "webhook"

// ServerOptions configures the webhook server
type ServerOptions struct {
	Port int    // Server port (default: 8430)
	Host string // Server host (default: "0.0.0.0")
	Path string // Interactions endpoint path (default: "/interactions")
}

// Server is the HTTP delivery adapter. It reads the signature headers and
// raw body, verifies authenticity, and only then hands the parsed payload
// to the dispatcher. Any verification failure short-circuits to 401 with an
// empty body before the payload is parsed.
type Server struct {
	options        ServerOptions
	server         *http.Server
	verifier       *Verifier
	dispatcher     *interaction.Dispatcher
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new webhook server
func NewServer(options ServerOptions, verifier *Verifier, dispatcher *interaction.Dispatcher, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8430
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Path == "" {
		options.Path = "/interactions"
	}

	if verifier == nil {
		return nil, fmt.Errorf("signature verifier is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		options:    options,
		verifier:   verifier,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		startTime:  time.Now(),
	}, nil
}

// Start starts the webhook server and blocks until it stops
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(s.options.Path, s.handleInteraction)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: mux,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Str("path", s.options.Path).
		Msg("Starting webhook server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start webhook server: %w", err)
	}

	return nil
}

// Stop gracefully stops the webhook server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down webhook server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown webhook server: %w", err)
	}

	s.logger.Info().Msg("Webhook server stopped")
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).Seconds(),
		"timestamp": time.Now().UnixMilli(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleInteraction handles one signed interaction delivery
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Verification gates everything: the body is not parsed until the
	// signature over timestamp||body checks out.
	signature := r.Header.Get(HeaderSignature)
	timestamp := r.Header.Get(HeaderTimestamp)
	if !s.verifier.Verify(timestamp, rawBody, signature) {
		s.logger.Warn().
			Str("ip", r.RemoteAddr).
			Msg("Invalid interaction signature")
		if s.metrics != nil {
			s.metrics.SignatureFailuresTotal.Inc()
		}
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload interaction.Payload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse interaction payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if s.metrics != nil {
		s.metrics.InteractionsReceivedTotal.WithLabelValues(transportWebhook, payload.Kind.String()).Inc()
	}

	envelope, err := s.dispatcher.Handle(r.Context(), payload)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("interactionId", payload.ID).
			Msg("Failed to handle interaction")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	duration := time.Since(startTime)
	if s.metrics != nil {
		s.metrics.ResponseLatency.WithLabelValues(transportWebhook).Observe(duration.Seconds())
	}

	s.logger.Info().
		Str("interactionId", payload.ID).
		Str("response", envelope.Kind.String()).
		Dur("duration", duration).
		Msg("Interaction handled")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response envelope")
	}
}
