package ratesource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

var ErrStreamClosed = errors.New("rate stream closed before first snapshot")

// StreamSource keeps a websocket open and remembers the last full rate
// snapshot pushed by the server. The connection is dialed on first fetch
// and redialed after it drops.
type StreamSource struct {
	name      string
	url       string
	subscribe []byte
	dialer    *websocket.Dialer
	logger    *zap.Logger

	mu    sync.Mutex
	conn  *streamConn
	rates []domain.RateEntry
}

type streamConn struct {
	ws    *websocket.Conn
	ready chan struct{} // closed on the first snapshot
	done  chan struct{} // closed when the read loop exits
}

// NewStreamSource creates a source for url. subscribe, when not empty, is
// sent as a text frame right after the handshake.
func NewStreamSource(name, url string, subscribe []byte, logger *zap.Logger) *StreamSource {
	return &StreamSource{
		name:      name,
		url:       url,
		subscribe: subscribe,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}
}

func (s *StreamSource) Name() string { return s.name }

// FetchRates returns the latest snapshot, waiting for the first one after a
// (re)connect.
func (s *StreamSource) FetchRates(ctx context.Context) ([]domain.RateEntry, error) {
	s.mu.Lock()
	if s.conn == nil {
		if err := s.connect(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	c := s.conn
	s.mu.Unlock()

	select {
	case <-c.ready:
	case <-c.done:
		// a snapshot may have landed right before the close
		select {
		case <-c.ready:
		default:
			return nil, ErrStreamClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RateEntry(nil), s.rates...), nil
}

// connect must be called with s.mu held.
func (s *StreamSource) connect(ctx context.Context) error {
	ws, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}
	if len(s.subscribe) > 0 {
		if err := ws.WriteMessage(websocket.TextMessage, s.subscribe); err != nil {
			ws.Close()
			return fmt.Errorf("failed to subscribe on %s: %w", s.url, err)
		}
	}

	c := &streamConn{
		ws:    ws,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	s.conn = c
	s.logger.Info("Rate stream connected", zap.String("source", s.name), zap.String("url", s.url))

	go s.readLoop(c)
	return nil
}

func (s *StreamSource) readLoop(c *streamConn) {
	defer func() {
		c.ws.Close()
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		s.mu.Unlock()
		close(c.done)
	}()

	var once sync.Once
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			s.logger.Warn("Rate stream read error", zap.String("source", s.name), zap.Error(err))
			return
		}

		rates, err := decodeRates(message)
		if errors.Is(err, errNotSnapshot) {
			continue
		}
		if err != nil {
			s.logger.Warn("Skipping malformed stream message", zap.String("source", s.name), zap.Error(err))
			continue
		}

		s.mu.Lock()
		s.rates = rates
		s.mu.Unlock()
		once.Do(func() { close(c.ready) })
	}
}

// Close drops the current connection, if any.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	err := c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.ws.Close()
	return err
}
