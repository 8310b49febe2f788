package atm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"atmdapp/internal/contracts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress(contracts.DefaultATMAddress)

// memChain is an in-memory node hosting a single ATM contract.
type memChain struct {
	mu          sync.Mutex
	abi         abi.ABI
	balance     *big.Int
	nonce       uint64
	receipts    map[common.Hash]*types.Receipt
	revertMined bool
}

func newMemChain(t *testing.T, initial int64) *memChain {
	t.Helper()
	parsed, err := parsedATMABI()
	require.NoError(t, err)
	return &memChain{
		abi:      parsed,
		balance:  big.NewInt(initial),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

type revertErr struct{ data string }

func (e revertErr) Error() string          { return "execution reverted" }
func (e revertErr) ErrorData() interface{} { return e.data }

func (m *memChain) insufficient(amount *big.Int) error {
	e := m.abi.Errors[contracts.ErrInsufficientBalance]
	packed, _ := e.Inputs.Pack(m.balance, amount)
	return revertErr{data: hexutil.Encode(append(append([]byte{}, e.ID[:4]...), packed...))}
}

func (m *memChain) decode(data []byte) (string, *big.Int, error) {
	method, err := m.abi.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}
	if len(args) == 0 {
		return method.Name, nil, nil
	}
	return method.Name, args[0].(*big.Int), nil
}

func (m *memChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (m *memChain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, _, err := m.decode(call.Data)
	if err != nil {
		return nil, err
	}
	return m.abi.Methods[name].Outputs.Pack(m.balance)
}

func (m *memChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (m *memChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (m *memChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonce, nil
}

func (m *memChain) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (m *memChain) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (m *memChain) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, amount, err := m.decode(call.Data)
	if err != nil {
		return 0, err
	}
	if name == contracts.MethodWithdraw && m.balance.Cmp(amount) < 0 {
		return 0, m.insufficient(amount)
	}
	return 50_000, nil
}

func (m *memChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, amount, err := m.decode(tx.Data())
	if err != nil {
		return err
	}
	m.nonce++
	status := types.ReceiptStatusSuccessful
	if m.revertMined {
		status = types.ReceiptStatusFailed
	} else if name == contracts.MethodDeposit {
		m.balance.Add(m.balance, amount)
	} else {
		m.balance.Sub(m.balance, amount)
	}
	m.receipts[tx.Hash()] = &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: big.NewInt(int64(m.nonce))}
	return nil
}

func (m *memChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func newSigner(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(31337))
	require.NoError(t, err)
	return opts
}

func TestBindRequiresAddressAndBackend(t *testing.T) {
	_, err := Bind(testContract, nil, nil)
	require.Error(t, err)

	_, err = Bind(common.Address{}, newMemChain(t, 0), nil)
	require.Error(t, err)
}

func TestEthATMDepositWaitAndRead(t *testing.T) {
	chain := newMemChain(t, 100)
	handle, err := Bind(testContract, chain, newSigner(t))
	require.NoError(t, err)
	ctx := context.Background()

	bal, err := handle.GetBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100), bal.Int64())

	tx, err := handle.Deposit(ctx, big.NewInt(50))
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, tx.Hash())
	require.NoError(t, tx.Wait(ctx))

	bal, err = handle.GetBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(150), bal.Int64())

	tx, err = handle.Withdraw(ctx, big.NewInt(30))
	require.NoError(t, err)
	require.NoError(t, tx.Wait(ctx))

	bal, err = handle.GetBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(120), bal.Int64())
}

func TestEthATMWithdrawRejected(t *testing.T) {
	chain := newMemChain(t, 10)
	handle, err := Bind(testContract, chain, newSigner(t))
	require.NoError(t, err)

	_, err = handle.Withdraw(context.Background(), big.NewInt(30))
	require.Error(t, err)
	require.Contains(t, err.Error(), "withdraw tx")

	bal, err := handle.GetBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Int64())
}

func TestEthATMRevertedReceipt(t *testing.T) {
	chain := newMemChain(t, 10)
	chain.revertMined = true
	handle, err := Bind(testContract, chain, newSigner(t))
	require.NoError(t, err)

	tx, err := handle.Deposit(context.Background(), big.NewInt(5))
	require.NoError(t, err)
	require.ErrorIs(t, tx.Wait(context.Background()), ErrReverted)
}

func TestEthATMReadOnly(t *testing.T) {
	handle, err := Bind(testContract, newMemChain(t, 1), nil)
	require.NoError(t, err)

	_, err = handle.Deposit(context.Background(), big.NewInt(1))
	require.ErrorIs(t, err, ErrNoSigner)

	_, err = handle.GetBalance(context.Background())
	require.NoError(t, err)
}

func TestDecodeRevertCustomError(t *testing.T) {
	chain := newMemChain(t, 10)
	handle, err := Bind(testContract, chain, nil)
	require.NoError(t, err)

	decoded := handle.decodeRevert(chain.insufficient(big.NewInt(30)))

	var re *RevertError
	require.True(t, errors.As(decoded, &re))
	require.Equal(t, contracts.ErrInsufficientBalance, re.Name)
	require.Len(t, re.Args, 2)
	require.Equal(t, int64(10), re.Args[0].(*big.Int).Int64())
	require.Equal(t, int64(30), re.Args[1].(*big.Int).Int64())
}

func TestDecodeRevertPassesThroughPlainErrors(t *testing.T) {
	handle, err := Bind(testContract, newMemChain(t, 0), nil)
	require.NoError(t, err)

	plain := errors.New("connection refused")
	require.Equal(t, plain, handle.decodeRevert(plain))
	require.Equal(t, error(revertErr{data: "0x01"}), handle.decodeRevert(revertErr{data: "0x01"}))
}
