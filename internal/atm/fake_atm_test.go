package atm

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeATMAppliesOnConfirmation(t *testing.T) {
	f := NewFakeATM(100)
	ctx := context.Background()

	tx, err := f.Deposit(ctx, big.NewInt(50))
	require.NoError(t, err)

	bal, _ := f.GetBalance(ctx)
	require.Equal(t, int64(100), bal.Int64(), "unconfirmed deposit must not change the balance")

	require.NoError(t, tx.Wait(ctx))
	require.NoError(t, tx.Wait(ctx), "waiting twice is harmless")

	bal, _ = f.GetBalance(ctx)
	require.Equal(t, int64(150), bal.Int64())
	require.Equal(t, 1, f.Submitted())
	require.Equal(t, 2, f.Reads())
}

func TestFakeATMWithdrawBeyondBalanceReverts(t *testing.T) {
	f := NewFakeATM(10)
	tx, err := f.Withdraw(context.Background(), big.NewInt(30))
	require.NoError(t, err)
	require.ErrorIs(t, tx.Wait(context.Background()), ErrReverted)

	bal, _ := f.GetBalance(context.Background())
	require.Equal(t, int64(10), bal.Int64())
}

func TestFakeATMFailures(t *testing.T) {
	f := NewFakeATM(10)
	boom := errors.New("boom")

	f.FailBalance(boom)
	_, err := f.GetBalance(context.Background())
	require.ErrorIs(t, err, boom)
	f.FailBalance(nil)

	f.FailWithdraw(boom)
	_, err = f.Withdraw(context.Background(), big.NewInt(1))
	require.ErrorIs(t, err, boom)

	f.FailConfirmation(boom)
	tx, err := f.Deposit(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	require.ErrorIs(t, tx.Wait(context.Background()), boom)
}

func TestFakeATMHoldConfirmations(t *testing.T) {
	f := NewFakeATM(10)
	release := f.HoldConfirmations()

	tx, err := f.Deposit(context.Background(), big.NewInt(5))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- tx.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("confirmation finished while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release()
	require.NoError(t, <-done)

	bal, _ := f.GetBalance(context.Background())
	require.Equal(t, int64(15), bal.Int64())
}

func TestFakeATMHeldConfirmationHonorsContext(t *testing.T) {
	f := NewFakeATM(10)
	defer f.HoldConfirmations()()

	tx, err := f.Deposit(context.Background(), big.NewInt(5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tx.Wait(ctx), context.DeadlineExceeded)
}
