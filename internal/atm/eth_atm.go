package atm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"atmdapp/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Backend is what a bound handle needs from the node: calls, transaction
// submission and receipt lookups. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractCaller
	bind.ContractTransactor
	bind.DeployBackend
}

var parsedATMABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(contracts.ATMABI))
})

// EthATM calls the ATM contract through a signer-bound contract binding.
type EthATM struct {
	backend   Backend
	contract  *bind.BoundContract
	abi       abi.ABI
	address   common.Address
	transacts *bind.TransactOpts
}

// Bind builds a handle for the contract at address. A nil signer yields a
// read-only handle. Bind does not touch the network.
func Bind(address common.Address, backend Backend, signer *bind.TransactOpts) (*EthATM, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	parsed, err := parsedATMABI()
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &EthATM{
		backend:   backend,
		contract:  bind.NewBoundContract(address, parsed, backend, backend, nil),
		abi:       parsed,
		address:   address,
		transacts: signer,
	}, nil
}

func (c *EthATM) Address() common.Address { return c.address }

func (c *EthATM) GetBalance(ctx context.Context) (*big.Int, error) {
	opts := &bind.CallOpts{Context: ctx}
	if c.transacts != nil {
		opts.From = c.transacts.From
	}
	var out []interface{}
	if err := c.contract.Call(opts, &out, contracts.MethodGetBalance); err != nil {
		return nil, fmt.Errorf("getBalance call: %w", c.decodeRevert(err))
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getBalance: unexpected %d outputs", len(out))
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getBalance: unexpected output type %T", out[0])
	}
	return balance, nil
}

func (c *EthATM) Deposit(ctx context.Context, amount *big.Int) (Transaction, error) {
	return c.transact(ctx, contracts.MethodDeposit, amount)
}

func (c *EthATM) Withdraw(ctx context.Context, amount *big.Int) (Transaction, error) {
	return c.transact(ctx, contracts.MethodWithdraw, amount)
}

func (c *EthATM) transact(ctx context.Context, method string, amount *big.Int) (Transaction, error) {
	if c.transacts == nil {
		return nil, ErrNoSigner
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %v", amount)
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, amount)
	if err != nil {
		return nil, fmt.Errorf("%s tx: %w", method, c.decodeRevert(err))
	}
	return &ethTransaction{tx: tx, backend: c.backend}, nil
}

// Ping checks the node behind the handle answers.
func (c *EthATM) Ping(ctx context.Context) error {
	bn, ok := c.backend.(interface {
		BlockNumber(ctx context.Context) (uint64, error)
	})
	if !ok {
		return nil
	}
	_, err := bn.BlockNumber(ctx)
	return err
}

type ethTransaction struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (t *ethTransaction) Hash() common.Hash { return t.tx.Hash() }

func (t *ethTransaction) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return fmt.Errorf("wait for receipt: %w", err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return fmt.Errorf("%w: %s", ErrReverted, t.tx.Hash().Hex())
	}
	return nil
}

// RevertError is a contract revert whose reason could be decoded.
type RevertError struct {
	Name string
	Args []interface{}
	err  error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %s%v", e.Name, e.Args)
}

func (e *RevertError) Unwrap() error { return e.err }

// decodeRevert turns node revert data into a RevertError when it matches a
// custom error of the contract or a plain Error(string). Anything else is
// returned untouched.
func (c *EthATM) decodeRevert(err error) error {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return err
	}
	data := revertData(de.ErrorData())
	if len(data) < 4 {
		return err
	}
	for name, e := range c.abi.Errors {
		if !bytes.Equal(e.ID[:4], data[:4]) {
			continue
		}
		args, uerr := e.Inputs.Unpack(data[4:])
		if uerr != nil {
			return err
		}
		return &RevertError{Name: name, Args: args, err: err}
	}
	if reason, uerr := abi.UnpackRevert(data); uerr == nil {
		return &RevertError{Name: "Error", Args: []interface{}{reason}, err: err}
	}
	return err
}

func revertData(v interface{}) []byte {
	switch d := v.(type) {
	case string:
		b, err := hexutil.Decode(d)
		if err != nil {
			return nil
		}
		return b
	case []byte:
		return d
	default:
		return nil
	}
}
