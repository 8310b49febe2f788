package dapp

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 5 * time.Second

// TxResult summarizes one transaction attempt for callers that need more
// than the resulting state.
type TxResult struct {
	Kind    Kind
	Amount  *big.Int
	Success bool
	Message string
	TxHash  string
	Err     error
}

// Session runs one isolated instance of the client: its own state, its own
// contract handle and its own notification timers. Remote calls run outside
// the lock, so a read and a transaction may be in flight together.
type Session struct {
	env   *Env
	clock clock.Clock
	ttl   time.Duration

	mu    sync.Mutex
	state State
	// dismissAt is when the visible notification is cleared.
	dismissAt time.Time
}

func NewSession(env *Env, clk clock.Clock, ttl time.Duration) *Session {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Session{env: env, clock: clk, ttl: ttl}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// apply runs ev through Reduce and arms the dismissal timer of any
// notification the transition raised.
func (s *Session) apply(ev Event) State {
	s.mu.Lock()
	if ev == nil {
		st := s.state
		s.mu.Unlock()
		return st
	}
	prevID := s.state.Notification.ID
	s.state = Reduce(s.state, ev)
	st := s.state
	raised := st.Notification.Visible && st.Notification.ID != prevID
	if raised {
		s.dismissAt = s.clock.Now().Add(s.ttl)
	}
	s.mu.Unlock()

	if raised {
		id := st.Notification.ID
		// Never cancelled: a newer notification has a different id and
		// survives this callback.
		s.clock.AfterFunc(s.ttl, func() {
			s.apply(NotificationExpired{ID: id})
		})
	}
	return st
}

// NotificationDeadline reports when the visible notification will be
// dismissed. ok is false when no notification is shown.
func (s *Session) NotificationDeadline() (deadline time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Notification.Visible {
		return time.Time{}, false
	}
	return s.dismissAt, true
}

// Init detects the wallet and picks up an account authorized earlier.
func (s *Session) Init(ctx context.Context) State {
	st := s.apply(s.env.Detect())
	if st.Wallet != WalletPresent {
		return st
	}
	ev := s.env.Authorize(ctx, false)
	st = s.apply(ev)
	if c, ok := ev.(Connected); ok && st.Account == c.Account {
		st = s.apply(s.env.LoadProfile(ctx, c.Account))
	}
	return st
}

// Connect prompts the wallet for authorization and rebinds the contract.
func (s *Session) Connect(ctx context.Context) State {
	if s.State().Wallet != WalletPresent {
		return s.State()
	}
	ev := s.env.Authorize(ctx, true)
	st := s.apply(ev)
	if c, ok := ev.(Connected); ok && st.Account == c.Account {
		st = s.apply(s.env.LoadProfile(ctx, c.Account))
	}
	return st
}

// RefreshBalance issues a read. Responses that arrive after a newer read was
// issued are dropped by Reduce.
func (s *Session) RefreshBalance(ctx context.Context) State {
	st := s.apply(BalanceRequested{})
	if st.Balance.Status != BalanceLoading {
		return st
	}
	return s.apply(s.env.ReadBalance(ctx, st.Contract, st.Balance.Seq))
}

// EnsureBalance reads the balance only when the current one is unknown.
func (s *Session) EnsureBalance(ctx context.Context) State {
	if !s.State().NeedsBalance() {
		return s.State()
	}
	return s.RefreshBalance(ctx)
}

func (s *Session) Deposit(ctx context.Context, amount *big.Int) (TxResult, State) {
	return s.Transact(ctx, KindDeposit, amount)
}

func (s *Session) Withdraw(ctx context.Context, amount *big.Int) (TxResult, State) {
	return s.Transact(ctx, KindWithdrawal, amount)
}

// Transact runs one deposit or withdrawal to confirmation and refreshes the
// balance after a success. Without a bound contract it does nothing.
func (s *Session) Transact(ctx context.Context, kind Kind, amount *big.Int) (TxResult, State) {
	st := s.State()
	if st.Region() != RegionDashboard {
		return TxResult{Kind: kind, Amount: amount}, st
	}

	s.apply(TxStarted{Kind: kind, Amount: amount})
	ev := s.env.Transact(ctx, st.Contract, kind, amount)
	st = s.apply(ev)

	res := TxResult{Kind: kind, Amount: amount}
	switch e := ev.(type) {
	case TxSucceeded:
		res.Success = true
		res.Message = kind.successMessage()
		res.TxHash = e.Hash.Hex()
		st = s.EnsureBalance(ctx)
	case TxFailed:
		res.Message = kind.failureMessage()
		res.Err = e.Err
	}
	return res, st
}
