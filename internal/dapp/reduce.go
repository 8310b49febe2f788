package dapp

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"atmdapp/internal/atm"
	"atmdapp/internal/profile"
)

// Event is anything that changes State.
type Event interface {
	isEvent()
}

type WalletDetected struct {
	Present bool
}

// Connected carries the authorized account together with the contract handle
// bound to it, so both appear in the same transition.
type Connected struct {
	Account  common.Address
	Contract atm.ATM
}

type ConnectFailed struct {
	Err error
}

type BalanceRequested struct{}

type BalanceFetched struct {
	Seq   uint64
	Value *big.Int
}

type BalanceFetchFailed struct {
	Seq uint64
	Err error
}

type ProfileLoaded struct {
	Account common.Address
	Profile *profile.Profile
}

type TxStarted struct {
	Kind   Kind
	Amount *big.Int
}

type TxSucceeded struct {
	Kind           Kind
	Amount         *big.Int
	Hash           common.Hash
	NotificationID string
}

type TxFailed struct {
	Kind           Kind
	Amount         *big.Int
	Err            error
	NotificationID string
}

type NotificationExpired struct {
	ID string
}

func (WalletDetected) isEvent()      {}
func (Connected) isEvent()           {}
func (ConnectFailed) isEvent()       {}
func (BalanceRequested) isEvent()    {}
func (BalanceFetched) isEvent()      {}
func (BalanceFetchFailed) isEvent()  {}
func (ProfileLoaded) isEvent()       {}
func (TxStarted) isEvent()           {}
func (TxSucceeded) isEvent()         {}
func (TxFailed) isEvent()            {}
func (NotificationExpired) isEvent() {}

const (
	connectFailedText = "Wallet authorization failed"
	balanceFailedText = "Balance unavailable"
)

// Reduce is the only state transition function. A nil event returns s
// unchanged.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case WalletDetected:
		if s.Wallet == WalletAbsent {
			return s
		}
		if e.Present {
			s.Wallet = WalletPresent
		} else {
			s = State{Wallet: WalletAbsent}
		}

	case Connected:
		if s.Wallet != WalletPresent || e.Account == (common.Address{}) || e.Contract == nil {
			return s
		}
		s.Account = e.Account
		s.Contract = e.Contract
		s.ConnectError = ""
		s.Profile = nil
		s.Balance = Balance{Seq: s.Balance.Seq}

	case ConnectFailed:
		if s.Wallet != WalletPresent {
			return s
		}
		s.ConnectError = connectFailedText

	case BalanceRequested:
		if s.Region() != RegionDashboard {
			return s
		}
		s.Balance = Balance{
			Value:  s.Balance.Value,
			Status: BalanceLoading,
			Seq:    s.Balance.Seq + 1,
		}

	case BalanceFetched:
		if e.Seq != s.Balance.Seq || s.Balance.Status != BalanceLoading {
			return s
		}
		s.Balance = Balance{
			Value:  copyInt(e.Value),
			Status: BalanceLoaded,
			Seq:    s.Balance.Seq,
		}

	case BalanceFetchFailed:
		if e.Seq != s.Balance.Seq || s.Balance.Status != BalanceLoading {
			return s
		}
		s.Balance = Balance{
			Value:  s.Balance.Value,
			Status: BalanceFailed,
			Err:    balanceFailedText,
			Seq:    s.Balance.Seq,
		}

	case ProfileLoaded:
		if e.Account != s.Account {
			return s
		}
		s.Profile = e.Profile

	case TxStarted:
		if s.Region() != RegionDashboard {
			return s
		}
		s.Pending++

	case TxSucceeded:
		s = settle(s)
		// Any value shown now predates the confirmed change.
		if s.Region() == RegionDashboard {
			s.Balance = Balance{Value: s.Balance.Value, Status: BalanceUnknown, Seq: s.Balance.Seq}
		}
		s.Notification = Notification{
			ID:      e.NotificationID,
			Message: e.Kind.successMessage(),
			Success: true,
			Kind:    e.Kind,
			Amount:  copyInt(e.Amount),
			Visible: true,
		}

	case TxFailed:
		s = settle(s)
		s.Notification = Notification{
			ID:      e.NotificationID,
			Message: e.Kind.failureMessage(),
			Success: false,
			Kind:    e.Kind,
			Amount:  copyInt(e.Amount),
			Visible: true,
		}

	case NotificationExpired:
		if !s.Notification.Visible || s.Notification.ID != e.ID {
			return s
		}
		s.Notification = Notification{}
	}
	return s
}

func settle(s State) State {
	if s.Pending > 0 {
		s.Pending--
	}
	return s
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
