// Package atm is the client-side handle of the deployed ATM contract.
package atm

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrReverted is returned by Transaction.Wait when the receipt reports failure.
	ErrReverted = errors.New("transaction reverted")
	// ErrNoSigner is returned for state-changing calls on a read-only handle.
	ErrNoSigner = errors.New("contract handle has no signer")
)

// ATM abstracts the on-chain ATM contract.
type ATM interface {
	GetBalance(ctx context.Context) (*big.Int, error)
	Deposit(ctx context.Context, amount *big.Int) (Transaction, error)
	Withdraw(ctx context.Context, amount *big.Int) (Transaction, error)
}

// Transaction is a submitted state change awaiting confirmation.
type Transaction interface {
	Hash() common.Hash
	// Wait blocks until the change is final or ctx is done.
	Wait(ctx context.Context) error
}

// HealthChecker is implemented by handles backed by a live node.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
