package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"ratemint/core"
	"ratemint/core/genesis"
	"ratemint/core/types"
	"ratemint/crypto"
	"ratemint/indexer"
	"ratemint/native/access"
	"ratemint/native/swap"
	"ratemint/storage"
)

const testChainID uint64 = 7331

var (
	testEngine = common.HexToAddress("0x00000000000000000000000000000000000e0000")
	testInput  = common.HexToAddress("0x0000000000000000000000000000456e65726779")
	testOutput = common.HexToAddress("0x4b85757bcf693f742003f2d5529cdc1672392f16")
	testVault  = common.HexToAddress("0x3665eD160eDD2bC236fBDA83274eacA08769B0b9")
	testFaucet = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
}

type rpcFixture struct {
	node   *core.Node
	index  *indexer.Store
	server *Server
	http   *httptest.Server
	admin  *crypto.PrivateKey
	user   *crypto.PrivateKey
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func newRPCFixture(t *testing.T, cfg ServerConfig, withIndex bool) *rpcFixture {
	t.Helper()
	admin, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	user, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	var index *indexer.Store
	nodeCfg := core.NodeConfig{ChainID: testChainID, EngineAddress: testEngine}
	if withIndex {
		db, err := indexer.Open(filepath.Join(t.TempDir(), "events.db"))
		require.NoError(t, err)
		index, err = indexer.New(db, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = index.Close() })
		nodeCfg.Sink = index
	}
	node, err := core.NewNode(storage.NewMemDB(), nodeCfg)
	require.NoError(t, err)

	chainID := testChainID
	spec := &genesis.GenesisSpec{
		ChainID:     &chainID,
		GenesisTime: "2024-01-01T00:00:00Z",
		Tokens: []genesis.TokenSpec{
			{Address: testInput.Hex(), Symbol: "VTHO", Name: "VeThor Token", Decimals: 18, MintAuthority: testFaucet.Hex()},
			{Address: testOutput.Hex(), Symbol: "SL4Y", Name: "SLAY Token", Decimals: 18, MintAuthority: genesis.EngineAlias},
		},
		TokenAlloc: map[string]map[string]string{
			testInput.Hex(): {user.Address().Hex(): ether(5000).Dec()},
		},
		Exchange: &genesis.ExchangeSpec{
			Admin:       admin.Address().Hex(),
			InputToken:  testInput.Hex(),
			OutputToken: testOutput.Hex(),
			Vault:       testVault.Hex(),
			Rates:       []genesis.RateSpec{{InputAmount: ether(5000).Dec(), OutputAmount: ether(50).Dec()}},
		},
	}
	applied, err := node.ApplyGenesis(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, applied)

	server, err := NewServer(node, index, cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &rpcFixture{node: node, index: index, server: server, http: ts, admin: admin, user: user}
}

func (f *rpcFixture) post(t *testing.T, body string, header http.Header) (int, rpcReply) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var reply rpcReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	return resp.StatusCode, reply
}

func (f *rpcFixture) call(t *testing.T, method string, params ...interface{}) (int, rpcReply) {
	t.Helper()
	return f.callWithHeader(t, nil, method, params...)
}

func (f *rpcFixture) callWithHeader(t *testing.T, header http.Header, method string, params ...interface{}) (int, rpcReply) {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	return f.post(t, string(body), header)
}

func (f *rpcFixture) signed(t *testing.T, key *crypto.PrivateKey, txType types.TxType, payload interface{}) *types.Transaction {
	t.Helper()
	nonce, err := f.node.Nonce(key.Address())
	require.NoError(t, err)
	tx, err := types.NewTransaction(testChainID, txType, nonce, payload)
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key.PrivateKey))
	return tx
}

func decodeResult(t *testing.T, reply rpcReply, out interface{}) {
	t.Helper()
	if reply.Error != nil {
		t.Fatalf("unexpected rpc error %d: %s", reply.Error.Code, reply.Error.Message)
	}
	require.NoError(t, json.Unmarshal(reply.Result, out))
}

func TestNewServerRequiresNode(t *testing.T) {
	if _, err := NewServer(nil, nil, ServerConfig{}, nil); err == nil {
		t.Fatalf("expected error for nil node")
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)

	resp, err := f.http.Client().Get(f.http.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-123")
	resp2, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, "req-123", resp2.Header.Get(requestIDHeader))
}

func TestReadMethods(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)

	_, reply := f.call(t, "chain_id")
	var chainID uint64
	decodeResult(t, reply, &chainID)
	require.Equal(t, testChainID, chainID)

	_, reply = f.call(t, "exchange_getRate", ether(5000).Dec())
	var rate RateResult
	decodeResult(t, reply, &rate)
	require.Equal(t, ether(50).Dec(), rate.OutputAmount)

	_, reply = f.call(t, "exchange_getRate", "1")
	decodeResult(t, reply, &rate)
	require.Equal(t, "0", rate.OutputAmount)

	_, reply = f.call(t, "exchange_getRates")
	var rates []RateResult
	decodeResult(t, reply, &rates)
	require.Len(t, rates, 1)

	_, reply = f.call(t, "exchange_getConfig")
	var cfg ConfigResult
	decodeResult(t, reply, &cfg)
	require.True(t, cfg.Initialized)
	require.Equal(t, testInput.Hex(), cfg.InputToken)
	require.Equal(t, testOutput.Hex(), cfg.OutputToken)
	require.Equal(t, testVault.Hex(), cfg.Vault)
	require.Equal(t, f.admin.Address().Hex(), cfg.Admin)
	require.Equal(t, int64(1704067200), cfg.InitializedAt)

	_, reply = f.call(t, "exchange_hasRole", "ADMIN", f.admin.Address().Hex())
	var has bool
	decodeResult(t, reply, &has)
	require.True(t, has)

	_, reply = f.call(t, "exchange_getRoleMembers", "admin_role")
	var members []string
	decodeResult(t, reply, &members)
	require.Equal(t, []string{f.admin.Address().Hex()}, members)

	_, reply = f.call(t, "token_balanceOf", testInput.Hex(), f.user.Address().Hex())
	var bal string
	decodeResult(t, reply, &bal)
	require.Equal(t, ether(5000).Dec(), bal)

	_, reply = f.call(t, "token_info", testOutput.Hex())
	var info TokenInfoResult
	decodeResult(t, reply, &info)
	require.Equal(t, "SL4Y", info.Symbol)
	require.Equal(t, testEngine.Hex(), info.MintAuthority)
	require.Equal(t, "0", info.TotalSupply)

	_, reply = f.call(t, "account_getNonce", f.user.Address().Hex())
	var nonce uint64
	decodeResult(t, reply, &nonce)
	require.Zero(t, nonce)

	_, reply = f.call(t, "exchange_getImplementation")
	var impl ImplementationResult
	decodeResult(t, reply, &impl)
	require.Zero(t, impl.Version)
}

func TestSendTransactionSwapAndIndex(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, true)
	user := f.user.Address()

	approve := f.signed(t, f.user, types.TxTypeTokenApprove, types.TokenApprovePayload{
		Token: testInput.Hex(), Spender: testEngine.Hex(), Amount: ether(5000).Dec(),
	})
	status, reply := f.call(t, "exchange_sendTransaction", approve)
	require.Equal(t, http.StatusOK, status)
	var receipt types.Receipt
	decodeResult(t, reply, &receipt)
	require.True(t, receipt.Succeeded())

	tx := f.signed(t, f.user, types.TxTypeSwap, types.SwapPayload{InputAmount: ether(5000).Dec()})
	_, reply = f.call(t, "exchange_sendTransaction", tx)
	decodeResult(t, reply, &receipt)
	require.True(t, receipt.Succeeded())
	require.Equal(t, user, receipt.From)

	_, reply = f.call(t, "token_balanceOf", testOutput.Hex(), user.Hex())
	var bal string
	decodeResult(t, reply, &bal)
	require.Equal(t, ether(50).Dec(), bal)

	_, reply = f.call(t, "events_list", EventsListParams{Type: swap.TypeSwapped})
	var entries []indexer.Entry
	decodeResult(t, reply, &entries)
	require.Len(t, entries, 1)

	_, reply = f.call(t, "events_list")
	decodeResult(t, reply, &entries)
	require.Greater(t, len(entries), 1)
}

func TestSendTransactionUnauthorizedCall(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)
	user := f.user.Address()

	tx := f.signed(t, f.user, types.TxTypeSetVault, types.AddressPayload{Address: common.HexToAddress("0xc3").Hex()})
	status, reply := f.call(t, "exchange_sendTransaction", tx)
	require.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, reply.Error)
	require.Equal(t, codeUnauthorized, reply.Error.Code)
	expected := "AccessControl: account " + strings.ToLower(user.Hex()) + " is missing role " + access.RoleAdmin.ID().Hex()
	require.Equal(t, expected, reply.Error.Message)

	var receipt types.Receipt
	require.NoError(t, json.Unmarshal(reply.Error.Data, &receipt))
	require.False(t, receipt.Succeeded())
	require.Equal(t, expected, receipt.Error)

	nonce, err := f.node.Nonce(user)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)

	cfg, err := f.node.Config()
	require.NoError(t, err)
	require.Equal(t, testVault, cfg.Vault)
}

func TestSendTransactionRejections(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)

	unsigned, err := types.NewTransaction(testChainID, types.TxTypeSwap, 0, types.SwapPayload{InputAmount: "1"})
	require.NoError(t, err)
	_, reply := f.call(t, "exchange_sendTransaction", unsigned)
	require.NotNil(t, reply.Error)
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	stale := f.signed(t, f.user, types.TxTypeSwap, types.SwapPayload{InputAmount: "1"})
	stale.Nonce = 9
	require.NoError(t, stale.Sign(f.user.PrivateKey))
	status, reply := f.call(t, "exchange_sendTransaction", stale)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeServerError, reply.Error.Code)

	_, reply = f.call(t, "exchange_sendTransaction", "not-a-tx")
	require.Equal(t, codeInvalidParams, reply.Error.Code)
}

func TestSendTransactionRequiresBearerToken(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{AuthToken: "secret"}, false)
	tx := f.signed(t, f.user, types.TxTypeSwap, types.SwapPayload{InputAmount: "1"})

	status, reply := f.call(t, "exchange_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, reply.Error.Code)

	status, reply = f.callWithHeader(t, http.Header{"Authorization": {"Bearer wrong"}}, "exchange_sendTransaction", tx)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid RPC credentials", reply.Error.Message)

	_, reply = f.callWithHeader(t, http.Header{"Authorization": {"Bearer secret"}}, "exchange_sendTransaction", tx)
	require.NotNil(t, reply.Error)
	require.Equal(t, codeServerError, reply.Error.Code)
	require.Contains(t, reply.Error.Message, swap.ErrRateNotDefined.Error())

	// reads stay open
	_, reply = f.call(t, "chain_id")
	require.Nil(t, reply.Error)
}

func TestProtocolErrors(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)

	status, reply := f.post(t, "{", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeParseError, reply.Error.Code)

	status, reply = f.post(t, " ", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidRequest, reply.Error.Code)

	_, reply = f.post(t, `{"jsonrpc":"1.0","id":1,"method":"chain_id"}`, nil)
	require.Equal(t, codeInvalidRequest, reply.Error.Code)

	status, reply = f.call(t, "exchange_unknown")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, reply.Error.Code)

	_, reply = f.call(t, "token_balanceOf", "not-an-address", f.user.Address().Hex())
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	_, reply = f.call(t, "exchange_getRate", "-5")
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	_, reply = f.call(t, "exchange_hasRole", "OWNER", f.user.Address().Hex())
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	_, reply = f.call(t, "token_info", common.HexToAddress("0x99").Hex())
	require.Equal(t, codeInvalidParams, reply.Error.Code)

	_, reply = f.call(t, "events_list")
	require.Equal(t, codeServerError, reply.Error.Code)
}

func TestRequestBodyLimit(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{MaxBodyBytes: 32}, false)
	body := `{"jsonrpc":"2.0","id":1,"method":"chain_id","params":[]}`
	status, reply := f.post(t, body, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, status)
	require.Equal(t, codeInvalidRequest, reply.Error.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1}, false)

	_, reply := f.call(t, "chain_id")
	require.Nil(t, reply.Error)

	status, reply := f.call(t, "chain_id")
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, reply.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)
	_, reply := f.call(t, "chain_id")
	require.Nil(t, reply.Error)

	resp, err := f.http.Client().Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, bytes.Contains(body, []byte("ratemint_rpc_requests_total")))
}

func TestServeAndShutdown(t *testing.T) {
	f := newRPCFixture(t, ServerConfig{}, false)
	require.NoError(t, f.server.Shutdown(context.Background()))
	require.Error(t, f.server.Serve(nil))
}

func TestDispatchTracesEachMethod(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	f := newRPCFixture(t, ServerConfig{}, false)
	status, reply := f.call(t, "exchange_getConfig")
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, reply.Error)
	status, _ = f.call(t, "exchange_getRate", "not-a-number")
	require.Equal(t, http.StatusBadRequest, status)
	status, _ = f.call(t, "exchange_unknown")
	require.Equal(t, http.StatusNotFound, status)

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, span := range recorder.Ended() {
		if strings.HasPrefix(span.Name(), "rpc.") {
			spans[span.Name()] = span
		}
	}
	require.Len(t, spans, 2, "unknown methods are rejected before a span starts")

	ok := spans["rpc.exchange_getConfig"]
	require.NotNil(t, ok)
	require.Equal(t, codes.Unset, ok.Status().Code)
	require.Contains(t, ok.Attributes(), attribute.String("rpc.method", "exchange_getConfig"))

	failed := spans["rpc.exchange_getRate"]
	require.NotNil(t, failed)
	require.Equal(t, codes.Error, failed.Status().Code)
	require.Contains(t, failed.Attributes(), attribute.Int("rpc.jsonrpc.error_code", codeInvalidParams))
}
