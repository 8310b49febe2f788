package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(params []json.RawMessage) (interface{}, *rpcError)

// newRPCServer serves single (non-batch) JSON-RPC calls from a method table.
func newRPCServer(t *testing.T, methods map[string]rpcHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		h, ok := methods[req.Method]
		if !ok {
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		} else if result, rerr := h(req.Params); rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectNoWallet(t *testing.T) {
	for _, kind := range []string{"", "none", " NONE "} {
		p, err := Detect(context.Background(), Config{Kind: kind}, nil)
		require.ErrorIs(t, err, ErrNoWallet)
		require.Nil(t, p)
	}
}

func TestDetectUnreachableRPCIsNoWallet(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := Detect(context.Background(), Config{Kind: "rpc", RPCURL: srv.URL}, nil)
	require.ErrorIs(t, err, ErrNoWallet)
}

func TestRPCProviderAccounts(t *testing.T) {
	authorized := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	srv := newRPCServer(t, map[string]rpcHandler{
		"eth_chainId": func([]json.RawMessage) (interface{}, *rpcError) { return "0x7a69", nil },
		"eth_accounts": func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{}, nil
		},
		"eth_requestAccounts": func([]json.RawMessage) (interface{}, *rpcError) {
			return []string{authorized.Hex()}, nil
		},
	})

	p, err := Detect(context.Background(), Config{Kind: "rpc", RPCURL: srv.URL, ChainID: 31337}, nil)
	require.NoError(t, err)
	require.Equal(t, "rpc", p.Name())

	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	require.Empty(t, accounts)

	accounts, err = p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{authorized}, accounts)
}

func TestRPCProviderRejectedRequest(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"eth_chainId": func([]json.RawMessage) (interface{}, *rpcError) { return "0x1", nil },
		"eth_requestAccounts": func([]json.RawMessage) (interface{}, *rpcError) {
			return nil, &rpcError{Code: 4001, Message: "User rejected the request."}
		},
	})

	p, err := Detect(context.Background(), Config{Kind: "rpc", RPCURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.RequestAccounts(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestDetectRPCWrongChain(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"eth_chainId": func([]json.RawMessage) (interface{}, *rpcError) { return "0x1", nil },
	})

	_, err := Detect(context.Background(), Config{Kind: "rpc", RPCURL: srv.URL, ChainID: 31337}, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoWallet))
}

func TestRPCProviderSignsThroughEndpoint(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	chainID := big.NewInt(31337)
	signer := types.LatestSignerForChainID(chainID)

	srv := newRPCServer(t, map[string]rpcHandler{
		"eth_chainId": func([]json.RawMessage) (interface{}, *rpcError) { return "0x7a69", nil },
		"eth_signTransaction": func(params []json.RawMessage) (interface{}, *rpcError) {
			var args sendTxArgs
			if err := json.Unmarshal(params[0], &args); err != nil {
				return nil, &rpcError{Code: -32602, Message: err.Error()}
			}
			tx := types.NewTx(&types.LegacyTx{
				Nonce:    uint64(args.Nonce),
				To:       args.To,
				Gas:      uint64(args.Gas),
				GasPrice: args.GasPrice.ToInt(),
				Value:    args.Value.ToInt(),
				Data:     args.Data,
			})
			signed, err := types.SignTx(tx, signer, key)
			if err != nil {
				return nil, &rpcError{Code: -32000, Message: err.Error()}
			}
			raw, _ := signed.MarshalBinary()
			return map[string]string{"raw": "0x" + common.Bytes2Hex(raw)}, nil
		},
	})

	p, err := Detect(context.Background(), Config{Kind: "rpc", RPCURL: srv.URL}, nil)
	require.NoError(t, err)

	opts, err := p.Transactor(from)
	require.NoError(t, err)

	to := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	unsigned := types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
	signed, err := opts.Signer(from, unsigned)
	require.NoError(t, err)

	sender, err := types.Sender(signer, signed)
	require.NoError(t, err)
	require.Equal(t, from, sender)
	require.Equal(t, uint64(3), signed.Nonce())

	_, err = opts.Signer(common.HexToAddress("0x01"), unsigned)
	require.Error(t, err)
}

func TestKeyProvider(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	p, err := Detect(context.Background(), Config{Kind: "key", PrivateKeyHex: hexKey, ChainID: 31337}, nil)
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(key.PublicKey)
	accounts, err := p.Accounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{addr}, accounts)

	opts, err := p.Transactor(addr)
	require.NoError(t, err)
	require.Equal(t, addr, opts.From)

	_, err = p.Transactor(common.HexToAddress("0x02"))
	require.ErrorIs(t, err, ErrUnknownAccount)
}

type staticChain struct{ id *big.Int }

func (s staticChain) ChainID(context.Context) (*big.Int, error) { return s.id, nil }

func TestKeyProviderResolvesChainID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))

	p, err := Detect(context.Background(), Config{Kind: "key", PrivateKeyHex: hexKey}, staticChain{id: big.NewInt(5)})
	require.NoError(t, err)
	require.Equal(t, int64(5), p.(*KeyProvider).chainID.Int64())

	_, err = Detect(context.Background(), Config{Kind: "key", PrivateKeyHex: hexKey}, nil)
	require.Error(t, err)
}

func TestFirst(t *testing.T) {
	_, err := First(nil)
	require.ErrorIs(t, err, ErrNoAccounts)

	a := common.HexToAddress("0x0a")
	got, err := First([]common.Address{a, common.HexToAddress("0x0b")})
	require.NoError(t, err)
	require.Equal(t, a, got)
}

func TestFakeProvider(t *testing.T) {
	a := common.HexToAddress("0x0a")
	f := &FakeProvider{Grant: []common.Address{a}}

	accounts, _ := f.Accounts(context.Background())
	require.Empty(t, accounts)

	granted, err := f.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{a}, granted)
	require.Equal(t, 1, f.Requests())

	accounts, _ = f.Accounts(context.Background())
	require.Equal(t, []common.Address{a}, accounts)
}
