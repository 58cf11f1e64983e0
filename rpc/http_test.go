package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"excelsior/core"
	"excelsior/core/events"
	"excelsior/crypto"
	"excelsior/services/history"
	"excelsior/storage"
)

var testSecret = []byte("rpc-test-secret")

func testAddr(last byte) crypto.Address {
	var a crypto.Address
	a[0] = 0x7C
	a[crypto.AddressLength-1] = last
	return a
}

var (
	adminAddr = testAddr(0xAD)
	aliceAddr = testAddr(0xA1)
)

type rpcHarness struct {
	server  *httptest.Server
	history *history.Store
}

func newRPCHarness(t *testing.T, cfg Config) *rpcHarness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })

	store, err := history.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	node, err := core.NewNode(db, core.WithEventSink(store))
	require.NoError(t, err)

	if cfg.JWTSecret == nil {
		cfg.JWTSecret = testSecret
	}
	srv := httptest.NewServer(NewServer(node, store, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return &rpcHarness{server: srv, history: store}
}

func tokenFor(t *testing.T, addr crypto.Address) string {
	t.Helper()
	token, err := IssueToken(testSecret, addr, "", time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

type callOption func(*http.Request)

func withToken(token string) callOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withRequestID(id string) callOption {
	return func(r *http.Request) { r.Header.Set(requestIDHeader, id) }
}

func (h *rpcHarness) call(t *testing.T, method string, params interface{}, opts ...callOption) (int, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": jsonRPCVersion, "id": 1, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq, err := http.NewRequest(http.MethodPost, h.server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(httpReq)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *rpcHarness) mustCall(t *testing.T, method string, params interface{}, opts ...callOption) map[string]interface{} {
	t.Helper()
	status, resp := h.call(t, method, params, opts...)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "%s result is %T", method, resp.Result)
	return result
}

func (h *rpcHarness) bootstrap(t *testing.T) {
	t.Helper()
	adminToken := withToken(tokenFor(t, adminAddr))
	h.mustCall(t, "token_createMint", map[string]interface{}{"symbol": "XLS", "decimals": 6}, adminToken)
	h.mustCall(t, "token_createMint", map[string]interface{}{"symbol": "LXR", "decimals": 6}, adminToken)
	ledger := h.mustCall(t, "ledger_initialize", map[string]interface{}{"feeBps": 100}, adminToken)
	require.Equal(t, adminAddr.String(), ledger["admin"])
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newRPCHarness(t, Config{})

	resp, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMutationsRequireBearerToken(t *testing.T) {
	h := newRPCHarness(t, Config{})

	status, resp := h.call(t, "stake_open", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	forged, err := IssueToken([]byte("another-secret"), aliceAddr, "", time.Hour, time.Now())
	require.NoError(t, err)
	status, resp = h.call(t, "stake_open", nil, withToken(forged))
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	expired, err := IssueToken(testSecret, aliceAddr, "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	status, _ = h.call(t, "stake_open", nil, withToken(expired))
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestStakeAndIncomeOverRPC(t *testing.T) {
	h := newRPCHarness(t, Config{})
	h.bootstrap(t)
	adminToken := withToken(tokenFor(t, adminAddr))
	aliceToken := withToken(tokenFor(t, aliceAddr))

	h.mustCall(t, "token_mintTo", map[string]interface{}{"to": aliceAddr.String(), "symbol": "XLS", "amount": "1000"}, adminToken)
	h.mustCall(t, "stake_open", nil, aliceToken)
	settlement := h.mustCall(t, "stake_deposit", map[string]interface{}{"amount": "1000"}, aliceToken)
	require.Equal(t, "1000", settlement["staked"])
	require.Equal(t, "1000", settlement["totalStaked"])

	h.mustCall(t, "token_mintTo", map[string]interface{}{"to": adminAddr.String(), "symbol": "LXR", "amount": "1000"}, adminToken)
	income := h.mustCall(t, "income_distribute", map[string]interface{}{"amount": "1000"}, adminToken)
	require.Equal(t, "600", income["reserve"])
	require.Equal(t, "400", income["reward"])
	require.Equal(t, events.IncomeRoutingAccrued, income["routing"])

	pos := h.mustCall(t, "stake_position", map[string]interface{}{"owner": aliceAddr.String()})
	require.Equal(t, "400", pos["pending"])

	harvest := h.mustCall(t, "stake_harvest", nil, aliceToken)
	require.Equal(t, "400", harvest["paid"])

	balance := h.mustCall(t, "token_balance", map[string]interface{}{"owner": aliceAddr.String(), "symbol": "LXR"})
	require.Equal(t, "400", balance["balance"])

	withdraw := h.mustCall(t, "stake_withdraw", map[string]interface{}{"amount": "1000"}, aliceToken)
	require.Equal(t, "0", withdraw["staked"])
	require.Equal(t, "0", withdraw["paid"])
}

func TestLedgerErrorsMapToCodes(t *testing.T) {
	h := newRPCHarness(t, Config{})

	status, resp := h.call(t, "ledger_get", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotInitialized, resp.Error.Code)

	h.bootstrap(t)
	_, resp = h.call(t, "ledger_initialize", map[string]interface{}{"feeBps": 100}, withToken(tokenFor(t, adminAddr)))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeConflict, resp.Error.Code)

	_, resp = h.call(t, "ledger_setFee", map[string]interface{}{"feeBps": 50}, withToken(tokenFor(t, aliceAddr)))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	_, resp = h.call(t, "stake_withdraw", map[string]interface{}{"amount": "5"}, withToken(tokenFor(t, aliceAddr)))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	_, resp = h.call(t, "distributor_claim", map[string]interface{}{
		"round":     7,
		"index":     0,
		"recipient": aliceAddr.String(),
		"amount":    "10",
		"proof":     []string{},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	fee := h.mustCall(t, "ledger_setFee", map[string]interface{}{"feeBps": 50}, withToken(tokenFor(t, adminAddr)))
	require.EqualValues(t, 50, fee["feeBps"])
}

func TestMalformedRequests(t *testing.T) {
	h := newRPCHarness(t, Config{MaxBodyBytes: 512})

	status, resp := h.call(t, "ledger_nope", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	status, resp = h.call(t, "stake_deposit", map[string]interface{}{"amount": "-3"}, withToken(tokenFor(t, aliceAddr)))
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = h.call(t, "token_balance", map[string]interface{}{"owner": "not-an-address", "symbol": "XLS"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp = h.call(t, "token_balance", map[string]interface{}{"owner": aliceAddr.String(), "symbol": "XLS", "extra": true})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	res, err := http.Post(h.server.URL+"/rpc", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = http.Post(h.server.URL+"/rpc", "application/json", bytes.NewReader(bytes.Repeat([]byte(" "), 1024)))
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
}

func TestRateLimitPerCaller(t *testing.T) {
	h := newRPCHarness(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1})
	aliceToken := withToken(tokenFor(t, aliceAddr))

	_, resp := h.call(t, "stake_open", nil, aliceToken)
	require.NotNil(t, resp.Error)
	require.NotEqual(t, codeRateLimited, resp.Error.Code)

	status, resp := h.call(t, "stake_open", nil, aliceToken)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	_, resp = h.call(t, "stake_open", nil, withToken(tokenFor(t, adminAddr)))
	require.NotNil(t, resp.Error)
	require.NotEqual(t, codeRateLimited, resp.Error.Code)
}

func TestHistoryEventsFollowRequestID(t *testing.T) {
	h := newRPCHarness(t, Config{})
	h.bootstrap(t)

	h.mustCall(t, "token_mintTo",
		map[string]interface{}{"to": aliceAddr.String(), "symbol": "XLS", "amount": "25"},
		withToken(tokenFor(t, adminAddr)), withRequestID("mint-alice-1"))

	status, resp := h.call(t, "history_events", map[string]interface{}{"batch": "mint-alice-1"})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var records []EventView
	require.NoError(t, json.Unmarshal(raw, &records))
	require.NotEmpty(t, records)
	types := make([]string, 0, len(records))
	for _, rec := range records {
		require.Equal(t, "mint-alice-1", rec.Batch)
		types = append(types, rec.Type)
	}
	require.Contains(t, types, events.TypeTokenSupply)
}

func withForwardedFor(addr string) callOption {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", addr) }
}

func TestForwardedForIgnoredWithoutTrustedProxy(t *testing.T) {
	h := newRPCHarness(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1})

	status, _ := h.call(t, "ledger_get", nil, withForwardedFor("198.51.100.1"))
	require.NotEqual(t, http.StatusTooManyRequests, status)
	status, resp := h.call(t, "ledger_get", nil, withForwardedFor("198.51.100.2"))
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestForwardedForHonouredFromTrustedProxy(t *testing.T) {
	h := newRPCHarness(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1, TrustedProxies: []string{"127.0.0.1", "::1"}})

	status, _ := h.call(t, "ledger_get", nil, withForwardedFor("198.51.100.1"))
	require.NotEqual(t, http.StatusTooManyRequests, status)
	status, _ = h.call(t, "ledger_get", nil, withForwardedFor("198.51.100.2"))
	require.NotEqual(t, http.StatusTooManyRequests, status)
	status, _ = h.call(t, "ledger_get", nil, withForwardedFor("198.51.100.1"))
	require.Equal(t, http.StatusTooManyRequests, status)
}

func TestClientSourceReadsForwardedChainFromTheRight(t *testing.T) {
	s := NewServer(nil, nil, Config{TrustedProxies: []string{"10.0.0.1", "10.0.0.2"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7:443 , 10.0.0.2")
	require.Equal(t, "198.51.100.7", s.clientSource(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "10.0.0.1", s.clientSource(req))

	req.RemoteAddr = "192.0.2.10:7000"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	require.Equal(t, "192.0.2.10", s.clientSource(req))
}

func TestCallerLimiterEvictsVisitors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newCallerLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.max = 4

	for i := 0; i < 100; i++ {
		require.True(t, l.allow(fmt.Sprintf("198.51.100.%d", i)))
	}
	require.LessOrEqual(t, len(l.visitors), 4)
	require.Contains(t, l.visitors, "198.51.100.99")

	require.False(t, l.allow("198.51.100.99"))
	now = now.Add(visitorTTL + time.Second)
	require.True(t, l.allow("203.0.113.1"))
	require.Len(t, l.visitors, 1)
}

func TestTreasuryFundingAndTransferFeeOverRPC(t *testing.T) {
	h := newRPCHarness(t, Config{})
	h.bootstrap(t)
	adminToken := withToken(tokenFor(t, adminAddr))
	aliceToken := withToken(tokenFor(t, aliceAddr))

	h.mustCall(t, "token_mintTo", map[string]interface{}{"to": adminAddr.String(), "symbol": "XLS", "amount": "10"}, adminToken)
	status, resp := h.call(t, "treasury_fundVault", map[string]interface{}{"vault": "stake", "amount": "10"}, adminToken)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
	_, resp = h.call(t, "treasury_fundVault", map[string]interface{}{"vault": "supply", "amount": "10"}, aliceToken)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
	funded := h.mustCall(t, "treasury_fundVault", map[string]interface{}{"vault": "Supply", "amount": "10"}, adminToken)
	require.Equal(t, "10", funded["balance"])

	h.mustCall(t, "token_mintTo", map[string]interface{}{"to": aliceAddr.String(), "symbol": "LXR", "amount": "3000000"}, adminToken)
	quote := h.mustCall(t, "swap_buy", map[string]interface{}{"amount": "2"}, aliceToken)
	require.Equal(t, "2000000", quote["cost"])

	receipt := h.mustCall(t, "token_transfer", map[string]interface{}{"to": adminAddr.String(), "symbol": "LXR", "amount": "1000"}, aliceToken)
	require.Equal(t, "10", receipt["fee"])
	require.Equal(t, "990", receipt["received"])
	harvest := h.mustCall(t, "fees_harvest", nil, adminToken)
	require.Equal(t, "10", harvest["total"])
}
