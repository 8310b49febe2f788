package dapp

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atmdapp/internal/atm"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func dashboardState(t *testing.T, balance int64) State {
	t.Helper()
	s := Reduce(State{}, WalletDetected{Present: true})
	s = Reduce(s, Connected{Account: alice, Contract: atm.NewFakeATM(balance)})
	require.Equal(t, RegionDashboard, s.Region())
	return s
}

func TestNoWalletNeverRendersDashboard(t *testing.T) {
	events := []Event{
		WalletDetected{Present: false},
		WalletDetected{Present: true},
		Connected{Account: alice, Contract: atm.NewFakeATM(1)},
		BalanceRequested{},
		BalanceFetched{Seq: 1, Value: big.NewInt(1)},
		TxStarted{Kind: KindDeposit, Amount: big.NewInt(50)},
		TxSucceeded{Kind: KindDeposit, Amount: big.NewInt(50), NotificationID: "n1"},
	}

	s := State{}
	for _, ev := range events {
		s = Reduce(s, ev)
		require.Equal(t, RegionInstallWallet, s.Region(), "after %T", ev)
		require.False(t, s.HasAccount())
	}
}

func TestConnectedSetsAccountAndContractTogether(t *testing.T) {
	s := Reduce(State{}, WalletDetected{Present: true})
	require.Equal(t, RegionConnect, s.Region())

	s = Reduce(s, Connected{Account: alice})
	require.False(t, s.HasAccount(), "a missing handle must not half-connect")

	s = Reduce(s, Connected{Contract: atm.NewFakeATM(0)})
	require.Nil(t, s.Contract, "a handle without an account must not be kept")

	s = Reduce(s, Connected{Account: alice, Contract: atm.NewFakeATM(0)})
	require.Equal(t, alice, s.Account)
	require.NotNil(t, s.Contract)
	require.True(t, s.NeedsBalance())
}

func TestConnectFailedKeepsUserOnConnect(t *testing.T) {
	s := Reduce(State{}, WalletDetected{Present: true})
	s = Reduce(s, ConnectFailed{Err: errors.New("user rejected")})
	require.Equal(t, RegionConnect, s.Region())
	require.Equal(t, "Wallet authorization failed", s.ConnectError)

	s = Reduce(s, Connected{Account: alice, Contract: atm.NewFakeATM(0)})
	require.Empty(t, s.ConnectError)
}

func TestBalanceReadLifecycle(t *testing.T) {
	s := dashboardState(t, 0)

	s = Reduce(s, BalanceRequested{})
	require.Equal(t, BalanceLoading, s.Balance.Status)
	first := s.Balance.Seq

	s = Reduce(s, BalanceRequested{})
	second := s.Balance.Seq
	require.Greater(t, second, first)

	s = Reduce(s, BalanceFetched{Seq: first, Value: big.NewInt(1)})
	require.Equal(t, BalanceLoading, s.Balance.Status, "stale response must be dropped")

	s = Reduce(s, BalanceFetched{Seq: second, Value: big.NewInt(7)})
	require.Equal(t, BalanceLoaded, s.Balance.Status)
	require.Equal(t, int64(7), s.Balance.Value.Int64())
	require.False(t, s.NeedsBalance())
}

func TestBalanceFailureWaitsForRetry(t *testing.T) {
	s := dashboardState(t, 0)
	s = Reduce(s, BalanceRequested{})
	s = Reduce(s, BalanceFetchFailed{Seq: s.Balance.Seq, Err: errors.New("rpc down")})

	require.Equal(t, BalanceFailed, s.Balance.Status)
	require.Equal(t, "Balance unavailable", s.Balance.Err)
	require.False(t, s.NeedsBalance(), "failed reads are retried explicitly")

	s = Reduce(s, BalanceRequested{})
	require.Equal(t, BalanceLoading, s.Balance.Status)
	require.Empty(t, s.Balance.Err)
}

func TestBalanceRequestIgnoredWithoutContract(t *testing.T) {
	s := Reduce(State{}, WalletDetected{Present: true})
	s = Reduce(s, BalanceRequested{})
	require.Equal(t, BalanceUnknown, s.Balance.Status)
	require.Zero(t, s.Balance.Seq)
}

func TestTxSucceededMarksBalanceStale(t *testing.T) {
	s := dashboardState(t, 0)
	s = Reduce(s, BalanceRequested{})
	s = Reduce(s, BalanceFetched{Seq: s.Balance.Seq, Value: big.NewInt(100)})

	s = Reduce(s, TxStarted{Kind: KindDeposit, Amount: big.NewInt(50)})
	require.Equal(t, 1, s.Pending)

	s = Reduce(s, TxSucceeded{Kind: KindDeposit, Amount: big.NewInt(50), NotificationID: "n1"})
	require.Zero(t, s.Pending)
	require.True(t, s.NeedsBalance())
	require.Equal(t, int64(100), s.Balance.Value.Int64(), "last value stays visible until refreshed")

	n := s.Notification
	require.True(t, n.Visible)
	require.True(t, n.Success)
	require.Equal(t, "Deposit successful (Deposit 50 ETH)", n.Text("ETH"))
}

func TestTxFailedKeepsBalance(t *testing.T) {
	s := dashboardState(t, 0)
	s = Reduce(s, BalanceRequested{})
	s = Reduce(s, BalanceFetched{Seq: s.Balance.Seq, Value: big.NewInt(100)})
	before := s.Balance

	s = Reduce(s, TxStarted{Kind: KindWithdrawal, Amount: big.NewInt(30)})
	s = Reduce(s, TxFailed{Kind: KindWithdrawal, Amount: big.NewInt(30), Err: errors.New("reverted"), NotificationID: "n1"})

	require.Equal(t, before, s.Balance)
	require.False(t, s.Notification.Success)
	require.Equal(t, "Withdrawal failed (Withdrawal 30 ETH)", s.Notification.Text("ETH"))
}

func TestNotificationExpiryChecksID(t *testing.T) {
	s := dashboardState(t, 0)
	s = Reduce(s, TxFailed{Kind: KindDeposit, Amount: big.NewInt(50), NotificationID: "first"})
	s = Reduce(s, TxSucceeded{Kind: KindDeposit, Amount: big.NewInt(50), NotificationID: "second"})

	s = Reduce(s, NotificationExpired{ID: "first"})
	assert.True(t, s.Notification.Visible, "stale timer must not clear the newer notification")
	assert.Equal(t, "second", s.Notification.ID)

	s = Reduce(s, NotificationExpired{ID: "second"})
	assert.False(t, s.Notification.Visible)
	assert.Empty(t, s.Notification.Text("ETH"))
}

func TestReduceDoesNotAliasAmounts(t *testing.T) {
	amount := big.NewInt(50)
	s := dashboardState(t, 0)
	s = Reduce(s, TxSucceeded{Kind: KindDeposit, Amount: amount, NotificationID: "n"})
	amount.SetInt64(1)
	require.Equal(t, int64(50), s.Notification.Amount.Int64())
}

func TestNilEventIsNoop(t *testing.T) {
	s := dashboardState(t, 0)
	require.Equal(t, s, Reduce(s, nil))
}

func TestFormatUnits(t *testing.T) {
	require.Equal(t, "150", FormatUnits(big.NewInt(150), 0))
	require.Equal(t, "1.5", FormatUnits(big.NewInt(1500), 3))
	require.Equal(t, "", FormatUnits(nil, 0))
}
