// Package wallet binds the client to a wallet capability: something that knows
// which accounts the user authorized and can sign transactions for them.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNoWallet means no wallet capability exists in this environment.
	ErrNoWallet = errors.New("no wallet provider available")
	// ErrNoAccounts means the provider answered but granted no account.
	ErrNoAccounts = errors.New("no authorized accounts")
	// ErrUnknownAccount is returned when asked to sign for an account the provider does not hold.
	ErrUnknownAccount = errors.New("account not managed by wallet")
)

// Provider abstracts the wallet capability.
type Provider interface {
	Name() string
	// Accounts lists accounts authorized earlier, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts asks the wallet to authorize accounts.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Transactor returns signing options bound to account. It performs no network call.
	Transactor(account common.Address) (*bind.TransactOpts, error)
}

// ChainIDReader resolves the network id when it is not configured.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

type Config struct {
	Kind          string // rpc, key, none
	RPCURL        string
	PrivateKeyHex string
	ChainID       int64
}

// Detect looks for the configured wallet capability. A missing capability
// yields ErrNoWallet, which callers treat as terminal.
func Detect(ctx context.Context, cfg Config, chain ChainIDReader) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "none":
		return nil, ErrNoWallet
	case "rpc":
		p, err := detectRPC(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "key":
		chainID, err := resolveChainID(ctx, cfg.ChainID, chain)
		if err != nil {
			return nil, err
		}
		p, err := NewKeyProvider(cfg.PrivateKeyHex, chainID)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown wallet kind %q", cfg.Kind)
	}
}

func detectRPC(ctx context.Context, cfg Config) (*RPCProvider, error) {
	if cfg.RPCURL == "" {
		return nil, ErrNoWallet
	}
	cli, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNoWallet, cfg.RPCURL, err)
	}
	p := NewRPCProvider(cli, nil)
	// eth_chainId doubles as the presence probe.
	chainID, err := p.chainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoWallet, err)
	}
	if cfg.ChainID != 0 && chainID.Cmp(big.NewInt(cfg.ChainID)) != 0 {
		cli.Close()
		return nil, fmt.Errorf("wallet is on chain %s, expected %d", chainID, cfg.ChainID)
	}
	p.chain = chainID
	return p, nil
}

func resolveChainID(ctx context.Context, configured int64, chain ChainIDReader) (*big.Int, error) {
	if configured != 0 {
		return big.NewInt(configured), nil
	}
	if chain == nil {
		return nil, errors.New("chain id is not configured and no chain backend is available")
	}
	id, err := chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	return id, nil
}

// First returns the first account, the one the wallet considers active.
func First(accounts []common.Address) (common.Address, error) {
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return accounts[0], nil
}
