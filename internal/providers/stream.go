package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"AlphaPulse/internal/domain/models"
	"AlphaPulse/internal/domain/repository"
	applogger "AlphaPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

const streamConfidence = 0.95

// StreamConfig configures the realtime trade stream.
type StreamConfig struct {
	WebSocketURL   string
	APIKey         string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	Staleness      time.Duration
}

type lastTrade struct {
	price    float64
	volume   float64
	tradedAt time.Time
}

// Stream is the head of the intraday price chain: it serves the most recent
// trade from a realtime WebSocket feed with zero outbound calls at resolve
// time. Fetch only answers for subscribed symbols whose last trade is within
// the staleness window; everything else falls through to the REST providers.
type Stream struct {
	cfg StreamConfig
	log *applogger.Logger

	mu     sync.RWMutex
	trades map[string]lastTrade
	conn   *websocket.Conn
}

func NewStream(cfg StreamConfig, log *applogger.Logger) *Stream {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.Staleness == 0 {
		cfg.Staleness = 15 * time.Second
	}
	return &Stream{cfg: cfg, log: log, trades: make(map[string]lastTrade)}
}

func (s *Stream) Name() string { return "stream" }

// Fetch serves the cached last trade. It never blocks on the network.
func (s *Stream) Fetch(_ context.Context, subject string, class repository.DataClass) (models.Datum, float64, error) {
	if class != repository.ClassPriceIntraday {
		return models.Datum{}, 0, ErrUnsupportedClass
	}

	s.mu.RLock()
	t, ok := s.trades[strings.ToUpper(subject)]
	s.mu.RUnlock()

	if !ok {
		return models.Datum{}, 0, fmt.Errorf("stream: %s not subscribed", subject)
	}
	if time.Since(t.tradedAt) > s.cfg.Staleness {
		return models.Datum{}, 0, fmt.Errorf("stream: %s last trade stale", subject)
	}
	return models.Datum{Price: t.price, Volume: t.volume, AsOf: t.tradedAt}, streamConfidence, nil
}

// Run maintains the WebSocket session until ctx is canceled, reconnecting
// with a fixed delay after any failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.session(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("stream session ended", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.cfg.WebSocketURL, s.cfg.APIKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	for _, sym := range s.cfg.Symbols {
		msg := map[string]string{"type": "subscribe", "symbol": strings.ToUpper(sym)}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("stream subscribe %s: %w", sym, err)
		}
	}
	s.log.Info("stream connected", applogger.Int("symbols", len(s.cfg.Symbols)))

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.pingLoop(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream read: %w", err)
		}
		s.consume(b)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

type streamTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type streamMessage struct {
	Type string        `json:"type"`
	Data []streamTrade `json:"data"`
}

func (s *Stream) consume(b []byte) {
	var m streamMessage
	if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
		// ignore non-trade frames
		return
	}
	s.mu.Lock()
	for _, t := range m.Data {
		s.trades[strings.ToUpper(t.S)] = lastTrade{
			price:    t.P,
			volume:   t.V,
			tradedAt: time.UnixMilli(t.T),
		}
	}
	s.mu.Unlock()
}

// Close tears down the active connection, if any.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
