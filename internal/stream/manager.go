package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-service/internal/cache"
	"github.com/yourorg/market-data-service/internal/metrics"
	"github.com/yourorg/market-data-service/internal/model"
)

// Conn is the subset of a websocket connection the manager needs,
// abstracted so reconnect behavior can be driven in tests.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens stream connections.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// TickPublisher receives every normalized stream trade. Optional fan-out,
// typically Kafka.
type TickPublisher interface {
	PublishTrade(ctx context.Context, symbol string, price, size float64, ts time.Time) error
}

// Config holds the stream connection settings.
type Config struct {
	// EndpointFast is the low-latency feed, tried on even attempts;
	// EndpointDelayed is the higher-latency fallback used on odd attempts.
	EndpointFast    string
	EndpointDelayed string

	APIKey    string
	APISecret string

	// WatchList is the fixed symbol set subscribed for trades, quotes,
	// minute bars and daily bars.
	WatchList []string

	ReconnectDelay    time.Duration
	MaxReconnects     int
	AuthTimeout       time.Duration
	HeartbeatInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 15 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
}

// Manager owns the single streaming connection: connect, authenticate,
// subscribe, heartbeat, reconnect, and demux of inbound messages into the
// live cache. Failures are logged and absorbed; nothing is thrown past the
// manager boundary.
type Manager struct {
	cfg       Config
	dialer    Dialer
	liveCache *cache.LiveCache
	publisher TickPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu       sync.RWMutex
	state    model.StreamState
	attempts int

	lifecycleMu sync.Mutex
	running     bool
	baseCtx     context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewManager creates a stream manager. publisher may be nil.
func NewManager(cfg Config, liveCache *cache.LiveCache, publisher TickPublisher, m *metrics.Metrics, logger *zap.Logger) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:       cfg,
		dialer:    wsDialer{},
		liveCache: liveCache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		state:     model.StreamDisconnected,
	}
}

// SetDialer overrides the transport dialer. Test hook.
func (m *Manager) SetDialer(d Dialer) { m.dialer = d }

// State returns the current connection state.
func (m *Manager) State() model.StreamState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Live reports whether the stream is authenticated (or further) and live
// data can be expected in the cache.
func (m *Manager) Live() bool {
	switch m.State() {
	case model.StreamAuthenticated, model.StreamSubscribed:
		return true
	}
	return false
}

// Attempts returns how many connection attempts have been made since the
// last restart.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

func (m *Manager) setState(s model.StreamState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Start launches the connection loop. A no-op while a loop is already
// running; returns immediately.
func (m *Manager) Start(ctx context.Context) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.baseCtx = ctx
	m.done = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	done := m.done
	go func() {
		m.run(runCtx)
		m.lifecycleMu.Lock()
		m.running = false
		m.lifecycleMu.Unlock()
		close(done)
	}()
}

// Stop tears the connection down and waits for the loop to exit.
func (m *Manager) Stop() {
	m.lifecycleMu.Lock()
	cancel, done, running := m.cancel, m.done, m.running
	m.lifecycleMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if running && done != nil {
		<-done
	}
}

// Restart stops any running loop, resets the failure budget, and starts
// over on the context given to the first Start. This is how operators
// recover a stream that exhausted its reconnect attempts without
// restarting the process.
func (m *Manager) Restart() {
	m.lifecycleMu.Lock()
	ctx := m.baseCtx
	m.lifecycleMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	m.Stop()
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
	m.Start(ctx)
}

// run drives the reconnect loop: a constant delay between attempts,
// bounded at MaxReconnects consecutive failures. A session that reaches
// the authenticated state resets the failure budget. Once the budget is
// exhausted the manager stays disconnected until process restart and
// callers must tolerate stale or absent live data.
func (m *Manager) run(ctx context.Context) {
	defer m.setState(model.StreamDisconnected)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(m.cfg.ReconnectDelay),
			uint64(m.cfg.MaxReconnects-1),
		),
		ctx,
	)

	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return m.session(ctx, policy)
	}

	if err := backoff.Retry(op, policy); err != nil && ctx.Err() == nil {
		m.logger.Error("Stream reconnect attempts exhausted, staying disconnected",
			zap.Int("maxReconnects", m.cfg.MaxReconnects),
			zap.Error(err))
		m.metrics.StreamEvents.WithLabelValues("gave_up").Inc()
	}
}

// session runs one full connection lifecycle and returns when the
// transport dies or the context is canceled.
func (m *Manager) session(ctx context.Context, policy backoff.BackOff) error {
	m.mu.Lock()
	attempt := m.attempts
	m.attempts++
	m.mu.Unlock()

	// Even attempts go to the low-latency feed, odd attempts to the
	// delayed fallback.
	endpoint := m.cfg.EndpointFast
	if attempt%2 == 1 && m.cfg.EndpointDelayed != "" {
		endpoint = m.cfg.EndpointDelayed
	}

	m.setState(model.StreamConnecting)
	m.logger.Info("Connecting to market data stream",
		zap.String("endpoint", endpoint),
		zap.Int("attempt", attempt+1))

	conn, err := m.dialer.DialContext(ctx, endpoint)
	if err != nil {
		m.setState(model.StreamDisconnected)
		m.metrics.StreamEvents.WithLabelValues("dial_error").Inc()
		m.logger.Warn("Stream dial failed", zap.String("endpoint", endpoint), zap.Error(err))
		return err
	}
	defer conn.Close()

	// Close the transport when the context dies so the read loop unblocks.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sessionDone:
		}
	}()

	m.setState(model.StreamConnected)
	m.metrics.StreamEvents.WithLabelValues("connect").Inc()

	if err := m.authenticate(conn); err != nil {
		m.setState(model.StreamDisconnected)
		m.metrics.StreamEvents.WithLabelValues("auth_error").Inc()
		m.logger.Warn("Stream authentication failed", zap.Error(err))
		return err
	}
	m.setState(model.StreamAuthenticated)
	m.metrics.StreamEvents.WithLabelValues("authenticated").Inc()

	// Reaching authenticated proves the endpoint works; reset the
	// consecutive-failure budget.
	policy.Reset()

	if err := conn.WriteJSON(subscribeMessage{
		Action:    "subscribe",
		Trades:    m.cfg.WatchList,
		Quotes:    m.cfg.WatchList,
		Bars:      m.cfg.WatchList,
		DailyBars: m.cfg.WatchList,
	}); err != nil {
		m.setState(model.StreamDisconnected)
		return fmt.Errorf("subscribe failed: %w", err)
	}
	m.setState(model.StreamSubscribed)
	m.logger.Info("Stream subscribed", zap.Strings("watchList", m.cfg.WatchList))

	// Heartbeat to detect a silently dead transport.
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go func() {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(m.cfg.HeartbeatInterval / 2)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					m.logger.Warn("Stream heartbeat failed", zap.Error(err))
					conn.Close()
					return
				}
			case <-heartbeatDone:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.setState(model.StreamDisconnected)
			m.metrics.StreamEvents.WithLabelValues("close").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			m.logger.Warn("Stream read failed", zap.Error(err))
			return err
		}
		m.handleFrame(data)
	}
}

// authenticate sends credentials and waits for the authenticated ack
// within the auth timeout. The server may send a connected ack first.
func (m *Manager) authenticate(conn Conn) error {
	if err := conn.WriteJSON(authMessage{
		Action: "auth",
		Key:    m.cfg.APIKey,
		Secret: m.cfg.APISecret,
	}); err != nil {
		return fmt.Errorf("auth send failed: %w", err)
	}

	deadline := time.Now().Add(m.cfg.AuthTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer conn.SetReadDeadline(time.Time{})

	for time.Now().Before(deadline) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("auth ack read failed: %w", err)
		}

		var msgs []inboundMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			continue
		}
		for _, msg := range msgs {
			switch msg.Type {
			case msgTypeSuccess:
				if msg.Msg == ackAuthenticated {
					return nil
				}
				// "connected" ack; keep waiting.
			case msgTypeError:
				return fmt.Errorf("auth rejected: code %d %s", msg.Code, msg.Msg)
			}
		}
	}
	return errors.New("timed out waiting for auth ack")
}

// handleFrame demuxes one inbound frame into the live cache. Unrecognized
// message types are ignored so newer server message kinds do not break us.
func (m *Manager) handleFrame(data []byte) {
	var msgs []inboundMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		m.logger.Debug("Dropping undecodable stream frame", zap.Error(err))
		m.metrics.StreamMessages.WithLabelValues("undecodable").Inc()
		return
	}

	for _, msg := range msgs {
		switch msg.Type {
		case msgTypeTrade:
			m.metrics.StreamMessages.WithLabelValues("trade").Inc()
			m.liveCache.UpdateTrade(msg.Symbol, model.LiveTrade{
				Price:     msg.Price,
				Size:      msg.Size,
				Timestamp: msg.Timestamp,
			})
			if m.publisher != nil {
				if err := m.publisher.PublishTrade(context.Background(), msg.Symbol, msg.Price, msg.Size, msg.Timestamp); err != nil {
					m.logger.Debug("Tick publish failed", zap.String("symbol", msg.Symbol), zap.Error(err))
				}
			}
		case msgTypeQuote:
			m.metrics.StreamMessages.WithLabelValues("quote").Inc()
			m.liveCache.UpdateQuote(msg.Symbol, model.LiveQuote{
				BidPrice:  msg.BidPrice,
				AskPrice:  msg.AskPrice,
				BidSize:   msg.BidSize,
				AskSize:   msg.AskSize,
				Timestamp: msg.Timestamp,
			})
		case msgTypeBar:
			m.metrics.StreamMessages.WithLabelValues("bar").Inc()
			m.liveCache.UpdateMinuteBar(msg.Symbol, model.LiveBar{
				Open:      msg.Open,
				High:      msg.High,
				Low:       msg.Low,
				Close:     msg.Close,
				Volume:    msg.Volume,
				Timestamp: msg.Timestamp,
			})
		case msgTypeDailyBar:
			m.metrics.StreamMessages.WithLabelValues("daily_bar").Inc()
			m.liveCache.UpdateDailyBar(msg.Symbol, model.LiveBar{
				Open:      msg.Open,
				High:      msg.High,
				Low:       msg.Low,
				Close:     msg.Close,
				Volume:    msg.Volume,
				Timestamp: msg.Timestamp,
			})
		case msgTypeError:
			m.metrics.StreamMessages.WithLabelValues("error").Inc()
			m.logger.Warn("Stream error message",
				zap.Int("code", msg.Code),
				zap.String("msg", msg.Msg))
		case msgTypeSubscription, msgTypeSuccess:
			// Control acks outside the auth phase carry nothing we need.
		default:
			m.metrics.StreamMessages.WithLabelValues("unknown").Inc()
		}
	}
}
