package wallet

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// FakeProvider is an in-memory wallet for tests and demos. Accounts in
// Authorized are returned without prompting; RequestAccounts grants Grant
// unless RequestErr is set.
type FakeProvider struct {
	mu         sync.Mutex
	Authorized []common.Address
	Grant      []common.Address
	RequestErr error
	requests   int
}

func (f *FakeProvider) Name() string { return "fake" }

func (f *FakeProvider) Accounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Address(nil), f.Authorized...), nil
}

func (f *FakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.RequestErr != nil {
		return nil, f.RequestErr
	}
	if len(f.Grant) == 0 {
		return nil, ErrNoAccounts
	}
	f.Authorized = append([]common.Address(nil), f.Grant...)
	return append([]common.Address(nil), f.Grant...), nil
}

func (f *FakeProvider) Transactor(account common.Address) (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: account}, nil
}

// Requests reports how many times authorization was requested.
func (f *FakeProvider) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}
