// Package dapp holds the client state of one ATM session and the single
// function allowed to change it.
//
// Front-ends never mutate State directly. They feed Events produced by the
// commands in this package (or by timers and user input) through Reduce, and
// render whatever State comes out.
package dapp

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"atmdapp/internal/atm"
	"atmdapp/internal/profile"
)

type WalletStatus int

const (
	WalletUnknown WalletStatus = iota
	WalletAbsent
	WalletPresent
)

type BalanceStatus int

const (
	// BalanceUnknown means no read happened since the last state change; a
	// read is due.
	BalanceUnknown BalanceStatus = iota
	BalanceLoading
	BalanceLoaded
	// BalanceFailed waits for an explicit retry.
	BalanceFailed
)

// Balance is the last value read from the contract. It is display state
// only; the contract is the authority.
type Balance struct {
	Value  *big.Int
	Status BalanceStatus
	Err    string
	// Seq identifies the latest issued read. Older responses are dropped.
	Seq uint64
}

// Kind names a state-changing contract operation.
type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindWithdrawal Kind = "Withdrawal"
)

func (k Kind) successMessage() string {
	if k == KindWithdrawal {
		return "Withdrawal successful"
	}
	return "Deposit successful"
}

func (k Kind) failureMessage() string {
	if k == KindWithdrawal {
		return "Withdrawal failed"
	}
	return "Deposit failed"
}

// Notification is the transient banner raised after a transaction attempt.
type Notification struct {
	ID      string
	Message string
	Success bool
	Kind    Kind
	Amount  *big.Int
	Visible bool
}

// Text renders the banner line, e.g. "Deposit successful (Deposit 50 ETH)".
func (n Notification) Text(unit string) string {
	if !n.Visible {
		return ""
	}
	if n.Kind == "" {
		return n.Message
	}
	amount := "0"
	if n.Amount != nil {
		amount = n.Amount.String()
	}
	return fmt.Sprintf("%s (%s %s %s)", n.Message, n.Kind, amount, unit)
}

// Region is the part of the page a state renders.
type Region int

const (
	RegionDetecting Region = iota
	RegionInstallWallet
	RegionConnect
	RegionDashboard
)

func (r Region) String() string {
	switch r {
	case RegionInstallWallet:
		return "install"
	case RegionConnect:
		return "connect"
	case RegionDashboard:
		return "dashboard"
	default:
		return "detecting"
	}
}

// State is one snapshot of a session. Reduce returns a new value for every
// transition; fields holding pointers are never mutated in place.
type State struct {
	Wallet       WalletStatus
	Account      common.Address
	Contract     atm.ATM
	Balance      Balance
	Profile      *profile.Profile
	Pending      int
	ConnectError string
	Notification Notification
}

func (s State) HasAccount() bool {
	return s.Account != (common.Address{})
}

// Region picks what to show. Without a wallet nothing but the install prompt
// is ever shown.
func (s State) Region() Region {
	switch {
	case s.Wallet == WalletUnknown:
		return RegionDetecting
	case s.Wallet == WalletAbsent:
		return RegionInstallWallet
	case !s.HasAccount() || s.Contract == nil:
		return RegionConnect
	default:
		return RegionDashboard
	}
}

// NeedsBalance reports whether rendering this state should trigger a read.
func (s State) NeedsBalance() bool {
	return s.Region() == RegionDashboard && s.Balance.Status == BalanceUnknown
}

// FormatUnits renders a raw contract amount with the given number of display
// decimals, e.g. 1500 with 3 decimals is "1.5".
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}
