// Package binance keeps the latest mini-ticker price for every symbol the
// monitor has asked about, fed by a single websocket subscription.
package binance

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

type Source struct {
	url          string
	dialer       *websocket.Dialer
	maxStaleness time.Duration
	idleAfter    time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu     sync.Mutex
	latest map[string]domain.Quote
	// wanted maps each subscribed symbol to when Fetch last asked for it.
	wanted map[string]time.Time
	conn   *websocket.Conn
	nextID uint64

	writeMu sync.Mutex
}

// NewSource builds a stream source. Symbols nobody has fetched for idleAfter
// are unsubscribed; zero keeps every symbol subscribed.
func NewSource(url string, maxStaleness, idleAfter, handshakeTimeout time.Duration, logger *zap.Logger) *Source {
	return &Source{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		maxStaleness: maxStaleness,
		idleAfter:    idleAfter,
		logger:       logger,
		now:          time.Now,
		latest:       make(map[string]domain.Quote),
		wanted:       make(map[string]time.Time),
	}
}

func (s *Source) Name() string { return "binance" }

// Fetch never blocks on the network. Symbols seen for the first time are
// subscribed and show up once the stream delivers a tick for them.
func (s *Source) Fetch(_ context.Context, symbols []string) map[string]domain.Quote {
	quotes := make(map[string]domain.Quote, len(symbols))
	var unseen []string

	now := s.now()
	s.mu.Lock()
	for _, symbol := range symbols {
		if _, ok := s.wanted[symbol]; !ok {
			unseen = append(unseen, symbol)
		}
		s.wanted[symbol] = now
		if quote, ok := s.latest[symbol]; ok && now.Sub(quote.ObservedAt) <= s.maxStaleness {
			quotes[symbol] = quote
		}
	}
	idle := s.dropIdleLocked(now)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return quotes
	}
	if len(unseen) > 0 {
		if err := s.send(conn, "SUBSCRIBE", unseen); err != nil {
			// The reconnect path resubscribes everything in wanted.
			s.logger.Warn("ws subscribe failed", zap.Strings("symbols", unseen), zap.Error(err))
		}
	}
	if len(idle) > 0 {
		if err := s.send(conn, "UNSUBSCRIBE", idle); err != nil {
			s.logger.Warn("ws unsubscribe failed", zap.Strings("symbols", idle), zap.Error(err))
		}
	}
	return quotes
}

// Run maintains the stream connection until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = initialBackoff
		}
		s.logger.Warn("ws stream disconnected", zap.String("url", s.url), zap.Duration("retry_in", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Source) session(ctx context.Context) (bool, error) {
	s.logger.Info("ws connect start", zap.String("url", s.url))
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	s.logger.Info("ws connect success", zap.String("url", s.url))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()

	s.mu.Lock()
	s.conn = conn
	symbols := make([]string, 0, len(s.wanted))
	for symbol := range s.wanted {
		symbols = append(symbols, symbol)
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
	}()

	if len(symbols) > 0 {
		if err := s.send(conn, "SUBSCRIBE", symbols); err != nil {
			return true, err
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.handle(data)
	}
}

func (s *Source) handle(data []byte) {
	quote, ok, err := decodeTicker(data, s.now())
	if err != nil {
		s.logger.Debug("ws message ignored", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	s.mu.Lock()
	// Ticks still in flight after an UNSUBSCRIBE are dropped.
	if _, ok := s.wanted[quote.Symbol]; !ok {
		s.mu.Unlock()
		return
	}
	if current, exists := s.latest[quote.Symbol]; !exists || !quote.ObservedAt.Before(current.ObservedAt) {
		s.latest[quote.Symbol] = quote
	}
	s.mu.Unlock()
}

// dropIdleLocked forgets symbols not fetched within idleAfter and returns them.
func (s *Source) dropIdleLocked(now time.Time) []string {
	if s.idleAfter <= 0 {
		return nil
	}
	var idle []string
	for symbol, lastFetch := range s.wanted {
		if now.Sub(lastFetch) > s.idleAfter {
			delete(s.wanted, symbol)
			delete(s.latest, symbol)
			idle = append(idle, symbol)
		}
	}
	return idle
}

func (s *Source) send(conn *websocket.Conn, method string, symbols []string) error {
	params := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		params = append(params, streamName(symbol))
	}

	s.mu.Lock()
	s.nextID++
	request := subscribeRequest{Method: method, Params: params, ID: s.nextID}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.logger.Info("ws stream request", zap.String("method", method), zap.Int("symbol_count", len(symbols)), zap.Strings("streams", params))
	return conn.WriteJSON(request)
}
