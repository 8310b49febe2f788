// Package server is the web front-end of the ATM client: a server-rendered
// page plus a JSON API, both driving one dapp.Session per browser session.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"atmdapp/internal/config"
	"atmdapp/internal/dapp"
	"atmdapp/internal/hmacauth"
	"atmdapp/internal/idempotency"
)

var (
	errNotConnected = errors.New("no account connected")
	errInFlight     = errors.New("a request with this key is still running")
)

// Options carries the optional collaborators of a Server.
type Options struct {
	Clock  clock.Clock
	Logger *zap.Logger
	// ChainHealth probes the node; nil skips the check.
	ChainHealth func(context.Context) error
}

type Server struct {
	cfg        *config.AppConfig
	store      idempotency.Store
	sessions   *sessionRegistry
	auth       *hmacauth.Verifier
	httpServer *http.Server
	metrics    *metricsRegistry
	clock      clock.Clock
	log        *zap.Logger

	depositAmount  *big.Int
	withdrawAmount *big.Int

	chainHealthFn func(context.Context) error
	dbHealthFn    func(context.Context) error

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	// background tracks form transactions that outlive their request.
	background sync.WaitGroup
}

func NewServer(cfg *config.AppConfig, env *dapp.Env, store idempotency.Store, opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	deposit, err := parseAmount(cfg.Contract.DepositAmount)
	if err != nil {
		return nil, fmt.Errorf("contract.deposit_amount: %w", err)
	}
	withdraw, err := parseAmount(cfg.Contract.WithdrawAmount)
	if err != nil {
		return nil, fmt.Errorf("contract.withdraw_amount: %w", err)
	}

	secret := cfg.Service.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("session secret: %w", err)
		}
		opts.Logger.Warn("no session secret configured, sessions will not survive a restart")
	}

	metrics := newMetricsRegistry()

	s := &Server{
		cfg:   cfg,
		store: store,
		auth: &hmacauth.Verifier{
			Secret: secret,
			MaxAge: cfg.Service.SessionMaxAge,
			Now:    opts.Clock.Now,
		},
		metrics:        metrics,
		clock:          opts.Clock,
		log:            opts.Logger,
		depositAmount:  deposit,
		withdrawAmount: withdraw,
		chainHealthFn:  opts.ChainHealth,
		inflight:       make(map[string]struct{}),
	}
	s.sessions = newSessionRegistry(env, opts.Clock, cfg.Notification.TTL,
		cfg.Service.SessionIdleTimeout, cfg.Service.MaxSessions, metrics.setActiveSessions)

	if checker, ok := store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}

	withSession := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}

	mux := http.NewServeMux()
	mux.Handle("/", withSession(s.handleIndex))
	mux.Handle("/connect", withSession(s.handleConnectForm))
	mux.Handle("/balance", withSession(s.handleBalanceForm))
	mux.Handle("/deposit", withSession(s.handleTxForm(dapp.KindDeposit)))
	mux.Handle("/withdraw", withSession(s.handleTxForm(dapp.KindWithdrawal)))
	mux.Handle("/api/v1/state", withSession(s.handleState))
	mux.Handle("/api/v1/connect", withSession(s.handleConnect))
	mux.Handle("/api/v1/deposit", withSession(s.handleTx(dapp.KindDeposit)))
	mux.Handle("/api/v1/withdraw", withSession(s.handleTx(dapp.KindWithdrawal)))
	mux.Handle("/api/v1/metrics", metrics.handler())
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           requestIDMiddleware(s.logRequests(mux)),
		ReadHeaderTimeout: cfg.Service.ReadHeaderTimeout,
	}
	return s, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("web front-end listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running form
// transactions until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) session(r *http.Request) *dapp.Session {
	return s.sessions.get(r.Context(), hmacauth.SessionID(r.Context()))
}

// ensureBalance reads the balance when the session needs one and records
// the outcome of any read it issued.
func (s *Server) ensureBalance(ctx context.Context, sess *dapp.Session) dapp.State {
	before := sess.State()
	st := sess.EnsureBalance(ctx)
	s.observeRead(before, st)
	return st
}

func (s *Server) refreshBalance(ctx context.Context, sess *dapp.Session) dapp.State {
	before := sess.State()
	st := sess.RefreshBalance(ctx)
	s.observeRead(before, st)
	return st
}

func (s *Server) observeRead(before, after dapp.State) {
	if after.Balance.Seq == before.Balance.Seq {
		return
	}
	switch after.Balance.Status {
	case dapp.BalanceLoaded:
		s.metrics.incBalanceRead("success")
	case dapp.BalanceFailed:
		s.metrics.incBalanceRead("failed")
	}
}

func (s *Server) connect(ctx context.Context, sess *dapp.Session) dapp.State {
	st := sess.Connect(ctx)
	switch {
	case st.Region() == dapp.RegionInstallWallet:
		s.metrics.incConnect("no_wallet")
	case st.Region() == dapp.RegionDashboard:
		s.metrics.incConnect("success")
	default:
		s.metrics.incConnect("failed")
	}
	return st
}

// responseEncoder turns a fresh outcome into the status and body stored for
// replays.
type responseEncoder func(res dapp.TxResult, st dapp.State) (int, []byte)

// transact runs kind for the session sid unless clientKey already has a
// recorded outcome, in which case that outcome is returned with replayed set.
func (s *Server) transact(ctx context.Context, sid string, sess *dapp.Session, kind dapp.Kind, amount *big.Int, clientKey string, encode responseEncoder) (idempotency.Record, bool, error) {
	var key string
	if clientKey != "" {
		key = idempotency.Key(sid, clientKey)
		if rec := s.lookup(ctx, key); rec != nil {
			s.metrics.incTransaction(string(kind), "replayed")
			return *rec, true, nil
		}
	}

	if sess.State().Region() != dapp.RegionDashboard {
		return idempotency.Record{}, false, errNotConnected
	}

	if key != "" {
		if !s.claim(key) {
			return idempotency.Record{}, false, errInFlight
		}
		defer s.release(key)
		// The previous holder may have finished between lookup and claim.
		if rec := s.lookup(ctx, key); rec != nil {
			s.metrics.incTransaction(string(kind), "replayed")
			return *rec, true, nil
		}
	}

	timeout := s.cfg.Chain.TxTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	before := sess.State()
	res, st := sess.Transact(txCtx, kind, amount)
	s.observeRead(before, st)

	result := "failed"
	if res.Success {
		result = "success"
	}
	s.metrics.incTransaction(string(kind), result)

	now := s.clock.Now()
	rec := idempotency.Record{
		Kind:      string(kind),
		Amount:    amount.String(),
		Success:   res.Success,
		TxHash:    res.TxHash,
		Message:   res.Message,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Service.IdempotencyWindow),
	}
	rec.StatusCode, rec.Response = encode(res, st)

	if key != "" {
		if err := s.store.Save(ctx, key, rec); err != nil {
			s.log.Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rec, false, nil
}

func (s *Server) lookup(ctx context.Context, key string) *idempotency.Record {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return rec
}

func (s *Server) claim(key string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Server) release(key string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, key)
}

func (s *Server) defaultAmount(kind dapp.Kind) *big.Int {
	if kind == dapp.KindWithdrawal {
		return new(big.Int).Set(s.withdrawAmount)
	}
	return new(big.Int).Set(s.depositAmount)
}

// parseAmount accepts a non-negative base-10 integer. Everything else is up
// to the contract.
func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-Id")))
	})
}
