package dapp

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"atmdapp/internal/atm"
	"atmdapp/internal/profile"
	"atmdapp/internal/wallet"
)

// Binder builds the contract handle for an authorized account.
type Binder func(account common.Address) (atm.ATM, error)

// Env carries the collaborators the commands talk to. Commands perform one
// remote interaction each and describe the outcome as an Event; they never
// touch State.
type Env struct {
	// Wallet is nil when no wallet capability was detected.
	Wallet   wallet.Provider
	Bind     Binder
	Profiles profile.Source
	NewID    func() string
	Log      *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *Env) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// Detect reports whether a wallet capability exists.
func (e *Env) Detect() Event {
	return WalletDetected{Present: e.Wallet != nil}
}

// Authorize resolves the active account and binds the contract to it. With
// prompt unset it only looks at accounts authorized earlier and returns nil
// when there are none.
func (e *Env) Authorize(ctx context.Context, prompt bool) Event {
	if e.Wallet == nil {
		return ConnectFailed{Err: wallet.ErrNoWallet}
	}

	var (
		accounts []common.Address
		err      error
	)
	if prompt {
		accounts, err = e.Wallet.RequestAccounts(ctx)
	} else {
		accounts, err = e.Wallet.Accounts(ctx)
	}
	if err == nil {
		var account common.Address
		account, err = wallet.First(accounts)
		if err == nil {
			return e.bind(account)
		}
	}

	if !prompt && errors.Is(err, wallet.ErrNoAccounts) {
		return nil
	}
	e.logger().Warn("wallet authorization failed",
		zap.Bool("prompt", prompt),
		zap.String("wallet", e.Wallet.Name()),
		zap.Error(err))
	return ConnectFailed{Err: err}
}

func (e *Env) bind(account common.Address) Event {
	if e.Bind == nil {
		return ConnectFailed{Err: errors.New("no contract binder configured")}
	}
	contract, err := e.Bind(account)
	if err != nil {
		e.logger().Error("bind contract", zap.Stringer("account", account), zap.Error(err))
		return ConnectFailed{Err: err}
	}
	e.logger().Info("account connected", zap.Stringer("account", account))
	return Connected{Account: account, Contract: contract}
}

// ReadBalance performs the read issued as seq.
func (e *Env) ReadBalance(ctx context.Context, contract atm.ATM, seq uint64) Event {
	if contract == nil {
		return BalanceFetchFailed{Seq: seq, Err: errors.New("contract not bound")}
	}
	value, err := contract.GetBalance(ctx)
	if err != nil {
		e.logger().Error("balance read failed", zap.Uint64("seq", seq), zap.Error(err))
		return BalanceFetchFailed{Seq: seq, Err: err}
	}
	return BalanceFetched{Seq: seq, Value: value}
}

// LoadProfile fetches holder details. Failures leave the profile empty.
func (e *Env) LoadProfile(ctx context.Context, account common.Address) Event {
	if e.Profiles == nil {
		return nil
	}
	prof, err := e.Profiles.Lookup(ctx, account)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			e.logger().Warn("profile lookup failed", zap.Stringer("account", account), zap.Error(err))
		}
		return ProfileLoaded{Account: account}
	}
	return ProfileLoaded{Account: account, Profile: &prof}
}

// Transact submits kind with amount and waits for confirmation. Every call is
// a fresh attempt.
func (e *Env) Transact(ctx context.Context, contract atm.ATM, kind Kind, amount *big.Int) Event {
	fail := func(err error) Event {
		e.logger().Error("transaction failed",
			zap.String("kind", string(kind)),
			zap.Stringer("amount", amount),
			zap.Error(err))
		return TxFailed{Kind: kind, Amount: amount, Err: err, NotificationID: e.newID()}
	}

	if contract == nil {
		return fail(errors.New("contract not bound"))
	}
	if amount == nil {
		return fail(errors.New("amount is required"))
	}

	var (
		tx  atm.Transaction
		err error
	)
	switch kind {
	case KindDeposit:
		tx, err = contract.Deposit(ctx, amount)
	case KindWithdrawal:
		tx, err = contract.Withdraw(ctx, amount)
	default:
		err = errors.New("unknown transaction kind " + string(kind))
	}
	if err != nil {
		return fail(err)
	}
	if err := tx.Wait(ctx); err != nil {
		return fail(err)
	}

	e.logger().Info("transaction confirmed",
		zap.String("kind", string(kind)),
		zap.Stringer("amount", amount),
		zap.Stringer("tx", tx.Hash()))
	return TxSucceeded{Kind: kind, Amount: amount, Hash: tx.Hash(), NotificationID: e.newID()}
}
