// Package mockserver implements MockedExchangeServer (spec §4.6.1): a local HTTP+WebSocket
// server parameterized by a plugin.ExchangePlugin, serving deterministic synthesized candles so
// a feed engine's REST/WS strategies can be exercised against a real wire protocol without
// touching a live exchange. Grounded on the teacher library's per-exchange adapter structure
// mirrored from the other side, with its router, rate limiter and connection bookkeeping learned
// from the rest of the pack (see DESIGN.md).
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/interval"
	"github.com/candlefeed/candles-feed/metrics"
	"github.com/candlefeed/candles-feed/mockserver/candlefactory"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
	"github.com/candlefeed/candles-feed/processor"
)

const (
	defaultRESTRatePerSecond = 20.0
	defaultRESTBurst         = 40
	defaultWSRatePerSecond   = 5.0
	defaultWSBurst           = 10
	defaultShutdownDeadline  = 5 * time.Second
	defaultRESTLimit         = 500
)

// TradingPairSeed is one (base, quote, seed_price) triple preloaded at construction (spec
// §4.6.3), anchoring candlefactory.Factory's deterministic synthesis for that pair.
type TradingPairSeed struct {
	Base      string
	Quote     string
	SeedPrice float64
}

func (s TradingPairSeed) pair() string { return s.Base + "-" + s.Quote }

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the server's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock overrides the server's time source (spec §4.6.1 "pluggable time source").
func WithClock(c Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLatency sets the simulated network delay window applied to every route: each request
// sleeps a duration drawn uniformly from [latencyMs-jitterMs, latencyMs+jitterMs] (spec §4.6.1
// step 1), clamped at zero.
func WithLatency(latencyMs, jitterMs int) Option {
	return func(s *Server) { s.latencyMs, s.jitterMs = latencyMs, jitterMs }
}

// WithRESTRateLimit overrides the per-IP REST bucket (requests/second, burst).
func WithRESTRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.restLimiter = NewIPRateLimiter(perSecond, burst) }
}

// WithWSRateLimit overrides the per-IP WS bucket (connections-or-messages/second, burst).
func WithWSRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.wsLimiter = NewIPRateLimiter(perSecond, burst) }
}

// WithFault sets the default fault configuration for the REST candles route (spec §4.6.1
// "simulates faults"; off by default). The WebSocket route has no fault injection.
func WithFault(cfg FaultConfig) Option {
	return func(s *Server) { s.defaultFault = cfg }
}

// WithRouteFault overrides the fault configuration for one route path only (supplemented feature
// #3: per-route, not just global, fault scoping).
func WithRouteFault(route string, cfg FaultConfig) Option {
	return func(s *Server) {
		if s.routeFault == nil {
			s.routeFault = make(map[string]FaultConfig)
		}
		s.routeFault[route] = cfg
	}
}

// WithRandSource overrides the RNG backing fault injection, for deterministic fault tests.
func WithRandSource(r *rand.Rand) Option {
	return func(s *Server) { s.rng = r }
}

// WithServerMetrics attaches prometheus collectors to this server's request handling. Unset by
// default: a server with no metrics attached records nothing beyond its own in-memory state.
func WithServerMetrics(m *metrics.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is MockedExchangeServer (spec §4.6.1): one HTTP+WS listener parameterized by a single
// plugin.ExchangePlugin.
type Server struct {
	plugin  plugin.ExchangePlugin
	factory *candlefactory.Factory

	seedMu     sync.RWMutex
	seedPrices map[string]float64 // canonical pair -> seed price

	storeMu sync.Mutex // guards store and locks maps themselves, not their contents
	store   map[string][]candle.Data
	locks   map[string]*sync.Mutex

	subMu       sync.RWMutex
	subscribers map[string]map[string]*wsConn // subscription key -> connection id -> conn

	restLimiter *IPRateLimiter
	wsLimiter   *IPRateLimiter

	defaultFault FaultConfig
	routeFault   map[string]FaultConfig
	rng          *rand.Rand

	latencyMs int
	jitterMs  int

	clock  Clock
	logger zerolog.Logger

	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	restPath string
	wsPath   string

	metrics *metrics.ServerMetrics
}

// wsConn wraps one upgraded WebSocket connection with a write mutex: gorilla/websocket forbids
// concurrent writes from multiple goroutines on the same connection, and a connection can be
// written to both by its own read loop (error replies) and by PushCandle broadcasts.
type wsConn struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// CreateMockServer instantiates exchangeType's plugin from registry, constructs a Server seeded
// with tradingPairs, and starts it listening on host:port (spec §4.6.3). Pass port 0 to bind an
// ephemeral port; the bound address is available via Server.RESTBaseURL/WSBaseURL after Start
// returns.
func CreateMockServer(registry *plugin.Registry, exchangeType plugin.ExchangeType, host string, port int, seed int64, tradingPairs []TradingPairSeed, opts ...Option) (*Server, error) {
	p, err := registry.New(exchangeType)
	if err != nil {
		return nil, err
	}

	s := &Server{
		plugin:       p,
		factory:      candlefactory.New(seed),
		seedPrices:   make(map[string]float64, len(tradingPairs)),
		store:        make(map[string][]candle.Data),
		locks:        make(map[string]*sync.Mutex),
		subscribers:  make(map[string]map[string]*wsConn),
		restLimiter:  NewIPRateLimiter(defaultRESTRatePerSecond, defaultRESTBurst),
		wsLimiter:    NewIPRateLimiter(defaultWSRatePerSecond, defaultWSBurst),
		rng:          rand.New(rand.NewSource(seed)),
		clock:        systemClock{},
		logger:       log.Logger,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	for _, tp := range tradingPairs {
		s.seedPrices[tp.pair()] = tp.SeedPrice
	}
	for _, opt := range opts {
		opt(s)
	}

	restRoutes := p.RESTRoutes()
	if len(restRoutes) != 1 {
		return nil, fmt.Errorf("mockserver: plugin %s must register exactly one REST route, got %d", p.ExchangeType(), len(restRoutes))
	}
	for route := range restRoutes {
		s.restPath = route
	}
	s.wsPath = p.WSRoute()

	router := chi.NewRouter()
	for route, method := range restRoutes {
		router.Method(method, route, http.HandlerFunc(s.handleRESTCandles))
	}
	if s.wsPath != "" {
		router.Get(s.wsPath, s.handleWS)
	}
	s.router = router

	if err := s.Start(host, port); err != nil {
		return nil, err
	}
	return s, nil
}

// Start binds the listening socket and begins serving in a background goroutine.
func (s *Server) Start(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("mockserver: listen: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.router}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Warn().Err(err).Msg("mockserver: serve exited")
		}
	}()
	return nil
}

// Stop closes the listening socket, then lets in-flight requests finish up to the shutdown
// deadline (spec §5 "Mock servers stop by closing the listening socket, then cancelling all
// per-connection tasks, then awaiting their completion up to the same deadline").
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownDeadline)
	defer cancel()

	s.restLimiter.Close()
	s.wsLimiter.Close()

	s.subMu.Lock()
	for _, conns := range s.subscribers {
		for _, c := range conns {
			c.conn.Close()
		}
	}
	s.subMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// RESTBaseURL returns this server's bound REST base URL.
func (s *Server) RESTBaseURL() string {
	return fmt.Sprintf("http://%s", s.listener.Addr().String())
}

// WSBaseURL returns this server's bound WebSocket base URL, or "" if the plugin registers no WS
// route.
func (s *Server) WSBaseURL() string {
	if s.wsPath == "" {
		return ""
	}
	return fmt.Sprintf("ws://%s", s.listener.Addr().String())
}

// SeedCandles merges candles directly into the store for (pair, intervalToken), taking
// precedence over anything candlefactory would later synthesize for the same timestamps. Used to
// set up deterministic test fixtures (spec scenario S1's "seeded with 10 minute-bars").
func (s *Server) SeedCandles(pair, intervalToken string, candles []candle.Data) {
	key := storeKey(pair, intervalToken)
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	s.storeMu.Lock()
	existing := s.store[key]
	s.storeMu.Unlock()

	merged := processor.Merge(existing, candles)

	s.storeMu.Lock()
	s.store[key] = merged
	s.storeMu.Unlock()
}

// PushCandle merges c into the store for (pair, intervalToken) and broadcasts it, formatted by
// the plugin, to every WS subscriber of that (pair, interval) (spec §5 "broadcasts to WS
// subscribers are per-subscription-key and ordered").
func (s *Server) PushCandle(pair, intervalToken string, c candle.Data, isFinal bool) error {
	s.SeedCandles(pair, intervalToken, []candle.Data{c})

	msg, err := s.plugin.FormatWSCandleMessage(c, pair, intervalToken, isFinal)
	if err != nil {
		return err
	}

	key := s.plugin.CreateWSSubscriptionKey(pair, intervalToken)
	s.subMu.RLock()
	conns := s.subscribers[key]
	targets := make([]*wsConn, 0, len(conns))
	for _, wc := range conns {
		targets = append(targets, wc)
	}
	s.subMu.RUnlock()

	for _, wc := range targets {
		if err := wc.writeJSON(msg); err != nil {
			s.logger.Warn().Err(err).Str("conn", wc.id).Msg("mockserver: push failed")
		}
	}
	return nil
}

func storeKey(pair, intervalToken string) string { return pair + "|" + intervalToken }

func (s *Server) lockFor(key string) *sync.Mutex {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	mu, ok := s.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[key] = mu
	}
	return mu
}

func (s *Server) seedPriceFor(pair string) float64 {
	s.seedMu.RLock()
	defer s.seedMu.RUnlock()
	if p, ok := s.seedPrices[pair]; ok {
		return p
	}
	return 1
}

// resolveWindow returns the candles in [start,end] for (pair, intervalToken), synthesizing any
// missing ones via candlefactory and letting explicitly seeded/pushed candles win over synthesized
// ones at the same timestamp, then caching the merge back into the store so repeated requests for
// the same window are consistent (spec §4.6.1).
func (s *Server) resolveWindow(pair, intervalToken string, req plugin.CandleRequest) ([]candle.Data, error) {
	key := storeKey(pair, intervalToken)
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	intervalWidth, err := interval.Seconds(intervalToken)
	if err != nil {
		return nil, err
	}

	end := req.EndTime
	if end == 0 {
		end = s.clock.Now().Unix()
	}
	start := req.StartTime
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRESTLimit
	}
	if start == 0 {
		start = (end/intervalWidth)*intervalWidth - intervalWidth*int64(limit-1)
	}

	synthesized, err := s.factory.Window(pair, intervalToken, start, end, s.seedPriceFor(pair))
	if err != nil {
		return nil, err
	}

	s.storeMu.Lock()
	existing := append([]candle.Data(nil), s.store[key]...)
	s.storeMu.Unlock()

	merged := processor.Merge(synthesized, existing)

	s.storeMu.Lock()
	s.store[key] = processor.Merge(s.store[key], merged)
	s.storeMu.Unlock()

	windowed := make([]candle.Data, 0, len(merged))
	for _, c := range merged {
		if c.Timestamp >= start && c.Timestamp <= end {
			windowed = append(windowed, c)
		}
	}
	if len(windowed) > limit {
		windowed = windowed[len(windowed)-limit:]
	}
	return windowed, nil
}

func (s *Server) faultFor(route string) FaultConfig {
	if cfg, ok := s.routeFault[route]; ok {
		return cfg
	}
	return s.defaultFault
}

// simulateDelay sleeps a duration drawn from [latencyMs-jitterMs, latencyMs+jitterMs], clamped at
// zero (spec §4.6.1 step 1).
func (s *Server) simulateDelay() {
	if s.latencyMs <= 0 && s.jitterMs <= 0 {
		return
	}
	lo := s.latencyMs - s.jitterMs
	if lo < 0 {
		lo = 0
	}
	hi := s.latencyMs + s.jitterMs
	if hi <= lo {
		time.Sleep(time.Duration(lo) * time.Millisecond)
		return
	}
	span := hi - lo
	d := lo + s.rng.Intn(span+1)
	time.Sleep(time.Duration(d) * time.Millisecond)
}

func (s *Server) handleRESTCandles(w http.ResponseWriter, r *http.Request) {
	s.simulateDelay()

	if !s.restLimiter.Allow(extractIP(r)) {
		if s.metrics != nil {
			s.metrics.RateLimitHits.WithLabelValues(string(s.plugin.ExchangeType()), "rest").Inc()
		}
		s.recordRequest(http.StatusTooManyRequests)
		writeRateLimited(w)
		return
	}

	switch s.faultFor(s.restPath).roll(s.rng) {
	case faultDrop:
		s.recordFault("drop")
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
		return
	case faultMalformedJSON:
		s.recordFault("malformed_json")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"not":"valid json`))
		return
	case fault5xx:
		s.recordFault("5xx")
		s.recordRequest(http.StatusBadGateway)
		http.Error(w, "simulated upstream failure", http.StatusBadGateway)
		return
	}

	req, err := s.plugin.ParseRESTCandlesParams(r)
	if err != nil {
		s.recordRequest(http.StatusBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pair, err := s.plugin.NormalizeTradingPair(req.Symbol)
	if err != nil {
		s.recordRequest(http.StatusBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	candles, err := s.resolveWindow(pair, req.Interval, req)
	if err != nil {
		s.recordRequest(http.StatusBadRequest)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := s.plugin.FormatRESTCandles(candles, pair, req.Interval)
	if err != nil {
		s.recordRequest(http.StatusInternalServerError)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.recordRequest(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("mockserver: encode REST response failed")
	}
}

func (s *Server) recordRequest(status int) {
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(string(s.plugin.ExchangeType()), s.restPath, fmt.Sprintf("%d", status)).Inc()
	}
}

func (s *Server) recordFault(kind string) {
	if s.metrics != nil {
		s.metrics.FaultsInjected.WithLabelValues(string(s.plugin.ExchangeType()), s.restPath, kind).Inc()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.simulateDelay()

	if !s.wsLimiter.Allow(extractIP(r)) {
		if s.metrics != nil {
			s.metrics.RateLimitHits.WithLabelValues(string(s.plugin.ExchangeType()), "ws").Inc()
		}
		writeRateLimited(w)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("mockserver: ws upgrade failed")
		return
	}
	wc := &wsConn{id: uuid.NewString(), conn: conn}
	if s.metrics != nil {
		s.metrics.WSConnections.WithLabelValues(string(s.plugin.ExchangeType())).Inc()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.WSConnections.WithLabelValues(string(s.plugin.ExchangeType())).Dec()
		}
	}()
	defer s.removeConn(wc)
	defer conn.Close()

	for {
		var raw interface{}
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}

		subs, err := s.plugin.ParseWSSubscription(raw)
		if err != nil || len(subs) == 0 {
			_ = wc.writeJSON(map[string]string{"error": "unrecognized subscription message"})
			continue
		}
		for _, sub := range subs {
			pair, err := s.plugin.NormalizeTradingPair(sub.Symbol)
			if err != nil {
				_ = wc.writeJSON(map[string]string{"error": err.Error()})
				continue
			}
			key := s.plugin.CreateWSSubscriptionKey(pair, sub.Interval)
			s.addConn(key, wc)
		}
	}
}

func (s *Server) addConn(key string, wc *wsConn) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	conns, ok := s.subscribers[key]
	if !ok {
		conns = make(map[string]*wsConn)
		s.subscribers[key] = conns
	}
	conns[wc.id] = wc
}

func (s *Server) removeConn(wc *wsConn) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for key, conns := range s.subscribers {
		delete(conns, wc.id)
		if len(conns) == 0 {
			delete(s.subscribers, key)
		}
	}
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
}
