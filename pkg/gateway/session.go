package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/voxhall/voxhall/internal/metrics"
	"github.com/voxhall/voxhall/pkg/interaction"
)

const transportGateway = "gateway"

// SessionConfig holds gateway session configuration
type SessionConfig struct {
	// URL of the platform gateway websocket endpoint. Required.
	URL string
	// Token authenticates the identify frame. Required.
	Token string
	// Dispatcher handles inbound interaction payloads. Required.
	Dispatcher *interaction.Dispatcher
	// Callbacks delivers the resulting envelopes out of band. Required.
	Callbacks *CallbackClient
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Session is the push-channel delivery adapter: a client websocket
// connection to the platform gateway. Payloads arriving here are already
// authenticated by the channel itself, so there is no signature step; every
// resulting envelope is delivered through the callback endpoint because the
// channel has no synchronous response slot.
type Session struct {
	cfg    SessionConfig
	id     string
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	seqMu   sync.Mutex
	lastSeq int64

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSession creates a new gateway session
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Callbacks == nil {
		return nil, fmt.Errorf("callback client is required")
	}

	sessionID, _ := gonanoid.New()

	return &Session{
		cfg:    cfg,
		id:     sessionID,
		logger: cfg.Logger.With().Str("sessionId", sessionID).Logger(),
		done:   make(chan struct{}),
	}, nil
}

// Connect dials the gateway, completes the hello/identify handshake, and
// starts the heartbeat. Run must be called afterwards to process events.
func (s *Session) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	s.conn = conn

	hello, err := s.readHello()
	if err != nil {
		conn.Close()
		return err
	}

	if err := s.writeFrame(Frame{Op: OpIdentify, Data: mustMarshal(identifyData{Token: s.cfg.Token})}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to identify: %w", err)
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}

	s.wg.Add(1)
	go s.heartbeatLoop(interval)

	s.logger.Info().
		Str("url", s.cfg.URL).
		Dur("heartbeatInterval", interval).
		Msg("Gateway session established")

	return nil
}

// readHello waits for the server's hello frame
func (s *Session) readHello() (*helloData, error) {
	s.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer s.conn.SetReadDeadline(time.Time{})

	var frame Frame
	if err := s.conn.ReadJSON(&frame); err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if frame.Op != OpHello {
		return nil, fmt.Errorf("expected hello frame, got op %d", frame.Op)
	}

	var hello helloData
	if err := json.Unmarshal(frame.Data, &hello); err != nil {
		return nil, fmt.Errorf("failed to parse hello: %w", err)
	}

	return &hello, nil
}

// Run reads gateway frames until the connection closes or Close is called
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	for {
		var frame Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error().Err(err).Msg("Gateway connection error")
			}
			return fmt.Errorf("gateway read failed: %w", err)
		}

		s.handleFrame(ctx, frame)
	}
}

// handleFrame processes a single gateway frame
func (s *Session) handleFrame(ctx context.Context, frame Frame) {
	if frame.Seq > 0 {
		s.seqMu.Lock()
		s.lastSeq = frame.Seq
		s.seqMu.Unlock()
	}

	switch frame.Op {
	case OpHeartbeatAck:
		s.logger.Debug().Msg("Heartbeat acknowledged")

	case OpHeartbeat:
		// Server requested an immediate heartbeat
		if err := s.sendHeartbeat(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send requested heartbeat")
		}

	case OpDispatch:
		s.handleDispatch(ctx, frame)

	default:
		s.logger.Debug().Int("op", frame.Op).Msg("Ignoring gateway frame")
	}
}

// handleDispatch routes a dispatch event. Only interaction events are
// handled; everything else is ignored.
func (s *Session) handleDispatch(ctx context.Context, frame Frame) {
	if frame.Type != EventInteractionCreate {
		s.logger.Debug().Str("event", frame.Type).Msg("Ignoring gateway event")
		return
	}

	var payload interaction.Payload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse interaction payload")
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.InteractionsReceivedTotal.WithLabelValues(transportGateway, payload.Kind.String()).Inc()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleInteraction(ctx, payload)
	}()
}

// handleInteraction resolves one interaction and delivers its envelope
func (s *Session) handleInteraction(ctx context.Context, payload interaction.Payload) {
	startTime := time.Now()

	envelope, err := s.cfg.Dispatcher.Handle(ctx, payload)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("interactionId", payload.ID).
			Msg("Failed to handle interaction")
		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ResponseLatency.WithLabelValues(transportGateway).Observe(time.Since(startTime).Seconds())
	}

	if err := s.cfg.Callbacks.Deliver(ctx, payload.ID, payload.Token, envelope); err != nil {
		// Delivery is not retried; the failure is recorded and logged
		s.logger.Error().
			Err(err).
			Str("interactionId", payload.ID).
			Str("response", envelope.Kind.String()).
			Msg("Failed to deliver callback")
		return
	}

	s.logger.Info().
		Str("interactionId", payload.ID).
		Str("response", envelope.Kind.String()).
		Dur("duration", time.Since(startTime)).
		Msg("Interaction handled")
}

// heartbeatLoop keeps the session alive at the negotiated interval
func (s *Session) heartbeatLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.sendHeartbeat(); err != nil {
				s.logger.Error().Err(err).Msg("Failed to send heartbeat")
				return
			}
		}
	}
}

func (s *Session) sendHeartbeat() error {
	s.seqMu.Lock()
	seq := s.lastSeq
	s.seqMu.Unlock()

	return s.writeFrame(Frame{Op: OpHeartbeat, Data: mustMarshal(heartbeatData(seq))})
}

// writeFrame serializes writes; gorilla connections allow one writer at a time
func (s *Session) writeFrame(frame Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(frame)
}

// Close stops the heartbeat, waits for in-flight interactions, and closes
// the connection
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
		s.wg.Wait()
		s.logger.Info().Msg("Gateway session closed")
	})
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
