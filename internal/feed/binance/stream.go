package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"volharvest/internal/domain"
	"volharvest/internal/feed"
)

// StreamConfig configures websocket stream behavior.
type StreamConfig struct {
	// URL is the combined-streams endpoint.
	URL string
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// ReconnectMin is initial delay before a reconnect attempt.
	ReconnectMin time.Duration
	// ReconnectMax is maximum delay between reconnect attempts.
	ReconnectMax time.Duration
}

// DefaultStreamConfig returns default stream configuration for USD-M
// futures. Binance pings every 3 minutes and allows idle reads well past
// that, so the read timeout just needs to cover one server ping cycle.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:          "wss://fstream.binance.com/stream",
		PingInterval: 3 * time.Minute,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Second,
		ReconnectMin: 1 * time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// Event channel buffers: bursts are absorbed here, then sends block so no
// event is dropped.
const (
	tradeBufferSize       = 10000
	liquidationBufferSize = 1024
)

// Stream consumes Binance combined streams (aggTrade + forceOrder) and
// publishes domain trades and liquidations. The subscription set is part
// of the stream URL, so a reconnect is a plain redial.
type Stream struct {
	cfg StreamConfig
	log *logrus.Entry

	// set by Subscribe
	streamURL string
	symbols   map[string]string // Binance symbol -> instrument symbol

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	trades       chan domain.Trade
	liquidations chan domain.Liquidation

	reconnects atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewStream creates a stream with the given configuration. A nil config
// uses DefaultStreamConfig; a nil logger discards output.
func NewStream(config *StreamConfig, log *logrus.Entry) *Stream {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}

	return &Stream{
		cfg:     cfg,
		log:     log,
		symbols: make(map[string]string),
		done:    make(chan struct{}),
	}
}

// Compile-time interface check.
var _ feed.StreamSource = (*Stream)(nil)

// Subscribe connects to the combined aggTrade and forceOrder streams for
// the given symbols. The returned channels stay open across reconnects and
// close only after Close.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) (<-chan domain.Trade, <-chan domain.Liquidation, error) {
	if s.closed.Load() {
		return nil, nil, fmt.Errorf("stream closed")
	}
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("no symbols to subscribe")
	}
	if s.streamURL != "" {
		return nil, nil, fmt.Errorf("already subscribed")
	}

	streams := make([]string, 0, len(symbols)*2)
	for _, symbol := range symbols {
		binanceSymbol := FormatSymbol(symbol)
		s.symbols[binanceSymbol] = symbol
		lower := strings.ToLower(binanceSymbol)
		streams = append(streams, lower+"@aggTrade", lower+"@forceOrder")
	}
	s.streamURL = s.cfg.URL + "?streams=" + strings.Join(streams, "/")

	if err := s.connect(ctx); err != nil {
		return nil, nil, err
	}

	s.trades = make(chan domain.Trade, tradeBufferSize)
	s.liquidations = make(chan domain.Liquidation, liquidationBufferSize)

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s.trades, s.liquidations, nil
}

// Reconnects returns how many times the stream has redialed.
func (s *Stream) Reconnects() uint64 {
	return s.reconnects.Load()
}

// Close closes the connection and the subscription channels.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	// Channels close after both loops exit so no send races the close.
	s.wg.Wait()
	if s.trades != nil {
		close(s.trades)
		close(s.liquidations)
	}
	return nil
}

// connect establishes the websocket connection.
func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

// readLoop reads messages and dispatches them, redialing on errors.
func (s *Stream) readLoop() {
	defer s.wg.Done()

	b := &backoff.Backoff{
		Min:    s.cfg.ReconnectMin,
		Max:    s.cfg.ReconnectMax,
		Factor: 2,
		Jitter: true,
	}

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.redial(b) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			s.log.WithError(err).Warn("stream read failed, reconnecting")
			s.dropConn()
			if !s.redial(b) {
				return
			}
			continue
		}

		// Reset backoff on successful read
		b.Reset()

		s.handleMessage(message)
	}
}

// redial reconnects with backoff until it succeeds or the stream closes.
func (s *Stream) redial(b *backoff.Backoff) bool {
	for !s.closed.Load() {
		select {
		case <-s.done:
			return false
		case <-time.After(b.Duration()):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s.connect(ctx)
		cancel()

		if err == nil {
			s.reconnects.Add(1)
			s.log.WithField("reconnects", s.reconnects.Load()).Info("stream reconnected")
			return true
		}
		s.log.WithError(err).Warn("stream reconnect failed")
	}
	return false
}

func (s *Stream) dropConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// pingLoop sends periodic ping frames. Binance also pings on its own;
// gorilla's default ping handler answers those with pongs.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle redial
				}
			}
			s.connMu.Unlock()
		}
	}
}

// handleMessage parses a combined-stream envelope and dispatches on the
// stream suffix.
func (s *Stream) handleMessage(message []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.log.WithError(err).Debug("unparseable stream message")
		return
	}

	switch {
	case strings.HasSuffix(env.Stream, "@aggTrade"):
		s.handleAggTrade(env.Data)
	case strings.HasSuffix(env.Stream, "@forceOrder"):
		s.handleForceOrder(env.Data)
	}
}

func (s *Stream) handleAggTrade(data json.RawMessage) {
	var ev aggTradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.WithError(err).Debug("unparseable aggTrade event")
		return
	}

	symbol, ok := s.symbols[ev.Symbol]
	if !ok {
		return
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("bad aggTrade price")
		return
	}
	size, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("bad aggTrade quantity")
		return
	}

	// m=true means the buyer was the maker, so the aggressor sold.
	side := domain.TradeSideBuy
	if ev.BuyerIsMaker {
		side = domain.TradeSideSell
	}

	trade := domain.Trade{
		Symbol:    symbol,
		Price:     price,
		Size:      size,
		Side:      side,
		Timestamp: time.UnixMilli(ev.TradeTime).UTC(),
	}
	if err := trade.Validate(); err != nil {
		s.log.WithError(err).Warn("invalid trade dropped")
		return
	}

	// Block until we can send - never drop events
	select {
	case s.trades <- trade:
	case <-s.done:
	}
}

func (s *Stream) handleForceOrder(data json.RawMessage) {
	var ev forceOrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.log.WithError(err).Debug("unparseable forceOrder event")
		return
	}

	symbol, ok := s.symbols[ev.Order.Symbol]
	if !ok {
		return
	}

	avgPrice, err := decimal.NewFromString(ev.Order.AvgPrice)
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("bad forceOrder price")
		return
	}
	filled, err := decimal.NewFromString(ev.Order.FilledQty)
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("bad forceOrder quantity")
		return
	}

	side := domain.TradeSideBuy
	if ev.Order.Side == "SELL" {
		side = domain.TradeSideSell
	}

	liq := domain.Liquidation{
		Symbol:    symbol,
		Side:      side,
		Value:     avgPrice.Mul(filled),
		Timestamp: time.UnixMilli(ev.Order.TradeTime).UTC(),
	}
	if err := liq.Validate(); err != nil {
		s.log.WithError(err).Warn("invalid liquidation dropped")
		return
	}

	select {
	case s.liquidations <- liq:
	case <-s.done:
	}
}

// Combined-stream message types (USD-M futures).

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type aggTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

type forceOrderEvent struct {
	// EventType must be declared: without it the "e" key would match the
	// EventTime field's "E" tag case-insensitively and fail to decode.
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Order     struct {
		Symbol    string `json:"s"`
		Side      string `json:"S"`
		AvgPrice  string `json:"ap"`
		FilledQty string `json:"z"`
		TradeTime int64  `json:"T"`
	} `json:"o"`
}
