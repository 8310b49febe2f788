package atm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// FakeATM keeps the contract balance in memory. State changes apply when the
// returned transaction is waited on, like a real confirmation.
type FakeATM struct {
	mu          sync.Mutex
	balance     *big.Int
	balanceErr  error
	depositErr  error
	withdrawErr error
	waitErr     error
	hold        chan struct{}
	reads       int
	submitted   int
}

func NewFakeATM(initial int64) *FakeATM {
	return &FakeATM{balance: big.NewInt(initial)}
}

// FailBalance makes GetBalance return err until cleared with nil.
func (f *FakeATM) FailBalance(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceErr = err
}

// FailDeposit makes Deposit submissions fail with err.
func (f *FakeATM) FailDeposit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.depositErr = err
}

// FailWithdraw makes Withdraw submissions fail with err.
func (f *FakeATM) FailWithdraw(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawErr = err
}

// FailConfirmation makes every confirmation wait fail with err.
func (f *FakeATM) FailConfirmation(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
}

// HoldConfirmations makes confirmation waits block until release is called
// or their context ends.
func (f *FakeATM) HoldConfirmations() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.hold = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.hold == ch {
				f.hold = nil
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *FakeATM) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *FakeATM) Submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted
}

func (f *FakeATM) GetBalance(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *FakeATM) Deposit(_ context.Context, amount *big.Int) (Transaction, error) {
	return f.submit("deposit", amount, 1)
}

func (f *FakeATM) Withdraw(_ context.Context, amount *big.Int) (Transaction, error) {
	return f.submit("withdraw", amount, -1)
}

func (f *FakeATM) submit(method string, amount *big.Int, sign int) (Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %v", amount)
	}
	switch {
	case sign > 0 && f.depositErr != nil:
		return nil, f.depositErr
	case sign < 0 && f.withdrawErr != nil:
		return nil, f.withdrawErr
	}
	f.submitted++
	return &fakeTransaction{
		atm:    f,
		hash:   fakeHash(fmt.Sprintf("%s:%s:%d", method, amount, f.submitted)),
		amount: new(big.Int).Set(amount),
		sign:   sign,
	}, nil
}

type fakeTransaction struct {
	atm    *FakeATM
	hash   common.Hash
	amount *big.Int
	sign   int
	done   bool
}

func (t *fakeTransaction) Hash() common.Hash { return t.hash }

func (t *fakeTransaction) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := t.atm
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waitErr != nil {
		return f.waitErr
	}
	if t.done {
		return nil
	}
	if t.sign < 0 && f.balance.Cmp(t.amount) < 0 {
		return fmt.Errorf("%w: %s", ErrReverted, t.hash.Hex())
	}
	if t.sign > 0 {
		f.balance.Add(f.balance, t.amount)
	} else {
		f.balance.Sub(f.balance, t.amount)
	}
	t.done = true
	return nil
}

func fakeHash(input string) common.Hash {
	return common.Hash(sha256.Sum256([]byte(input)))
}
