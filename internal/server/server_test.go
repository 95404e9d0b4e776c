package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/crypto"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/server/handler"
	"github.com/alanyoungcy/tiqet/internal/server/middleware"
	"github.com/alanyoungcy/tiqet/internal/service"
)

const (
	ownerKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	chainID  = 31337
)

var holder = common.HexToAddress("0x00000000000000000000000000000000000000a2")

type countingLimiter struct {
	mu    sync.Mutex
	seen  map[string]int
	limit int
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key]++
	return l.seen[key] <= l.limit, nil
}

type listAudit struct{}

func (listAudit) Log(context.Context, string, map[string]any) error { return nil }

func (listAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return []domain.AuditEntry{{ID: 1, Event: "log.AdminAdded"}}, nil
}

type fixture struct {
	signer *crypto.Signer
	host   *chain.Host
	srv    *Server
	nonce  uint64
}

func newFixture(t *testing.T, limiter *countingLimiter) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	signer, err := crypto.NewSigner(ownerKey, chainID)
	require.NoError(t, err)

	st, err := chain.NewState(chain.Genesis{
		Owner:        signer.Address(),
		Time:         time.Unix(1_700_000_000, 0).UTC(),
		ProposalFee:  uint256.NewInt(0),
		ThresholdBps: 500,
		Collections:  []chain.GenesisCollection{{Name: "Founders", Holders: []common.Address{holder}}},
	})
	require.NoError(t, err)
	host := chain.NewHost(st, chain.NewMemoryJournal(), signer, chain.HostConfig{}, logger)

	queries := service.NewQueryService(host, nil, nil, nil, logger)
	txs := service.NewTxService(host, crypto.NewVerifier(chainID), service.TxConfig{MaxClockSkew: time.Minute}, logger)

	cfg := Config{Port: 0, APIKey: "op-key", RateLimit: 1000, RateWindow: time.Minute}
	var lim middleware.Limiter
	if limiter != nil {
		lim = limiter
	}
	srv := NewServer(cfg, Handlers{
		Health:   handler.NewHealthHandler(host, nil, logger),
		Tx:       handler.NewTxHandler(txs, logger),
		Events:   handler.NewEventHandler(queries, logger),
		Accounts: handler.NewAccountHandler(queries, logger),
		Audit:    handler.NewAuditHandler(listAudit{}, logger),
	}, nil, lim, logger)
	return &fixture{signer: signer, host: host, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) envelope(t *testing.T, action, payload string) []byte {
	t.Helper()
	f.nonce++
	env := crypto.Envelope{
		Action:    action,
		Payload:   json.RawMessage(payload),
		Nonce:     f.nonce,
		Timestamp: time.Now().Unix(),
	}
	sig, err := f.signer.SignEnvelope(env)
	require.NoError(t, err)
	env.Signature = sig
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSubmitTx(t *testing.T) {
	f := newFixture(t, nil)

	body := f.envelope(t, chain.ActAddProposer, fmt.Sprintf(`{"account":%q}`, holder.Hex()))
	rec := f.do(t, http.MethodPost, "/api/tx", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r := decode[domain.Receipt](t, rec)
	assert.True(t, r.Success)
	assert.NotEmpty(t, r.Signature)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	signer, err := crypto.NewVerifier(chainID).ReceiptSigner(r)
	require.NoError(t, err)
	assert.Equal(t, f.signer.Address(), signer)

	rec = f.do(t, http.MethodPost, "/api/tx", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/receipts/"+r.TxID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, r.Seq, decode[domain.Receipt](t, rec).Seq)

	rec = f.do(t, http.MethodGet, "/api/accounts/"+holder.Hex()+"/role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "proposer", decode[map[string]any](t, rec)["role"])
}

func TestSubmitTxFailures(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/tx", []byte(`{"action":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tx", []byte(`{"action":"x","nonce":1,"extra":1}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tx", f.envelope(t, chain.ActReject, `{"event_id":7,"reason":"no"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	failure := decode[map[string]any](t, rec)
	assert.Contains(t, failure["error"], "not found")
	require.NotNil(t, failure["receipt"], "reverted calls carry their receipt")

	rec = f.do(t, http.MethodPost, "/api/tx", f.envelope(t, "market.explode", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/tx",
		f.envelope(t, chain.ActPropose, `{"metadata":"derby"}`)).Code)

	tests := []struct {
		path string
		want int
	}{
		{"/api/health", http.StatusOK},
		{"/api/events", http.StatusOK},
		{"/api/events?state=pending", http.StatusOK},
		{"/api/events?state=bogus", http.StatusBadRequest},
		{"/api/events/1", http.StatusOK},
		{"/api/events/abc", http.StatusBadRequest},
		{"/api/events/99", http.StatusNotFound},
		{"/api/events/1/quote", http.StatusUnprocessableEntity},
		{"/api/events/1/wagers/" + holder.Hex() + "/0", http.StatusNotFound},
		{"/api/events/1/wagers/nope/0", http.StatusBadRequest},
		{"/api/accounts/" + holder.Hex() + "/wagers", http.StatusOK},
		{"/api/roles", http.StatusOK},
		{"/api/treasury", http.StatusOK},
		{"/api/deployment", http.StatusOK},
		{"/api/receipts/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := f.do(t, http.MethodGet, "/api/events?state=pending", nil)
	list := decode[map[string]any](t, rec)
	assert.Len(t, list["events"], 1)
}

func TestAdminAuditRequiresKey(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/admin/audit", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/admin/audit", nil, "X-API-Key", "wrong").Code)

	rec := f.do(t, http.MethodGet, "/api/admin/audit", nil, "Authorization", "Bearer op-key")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "log.AdminAdded")
}

func TestRateLimitAndCORS(t *testing.T) {
	f := newFixture(t, &countingLimiter{seen: map[string]int{}, limit: 2})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roles", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/roles", nil).Code)
	rec := f.do(t, http.MethodGet, "/api/roles", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = f.do(t, http.MethodGet, "/api/roles", nil, "X-Forwarded-For", "10.0.0.9, 10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client ip")

	rec = f.do(t, http.MethodOptions, "/api/tx", nil, "Origin", "https://app.example", "X-Forwarded-For", "10.0.0.7")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
