package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/engine"
	"solana-trading-bot/internal/evaluator"
	"solana-trading-bot/internal/jupiter"
	"solana-trading-bot/internal/ledger"
	"solana-trading-bot/internal/rpcpool"
	"solana-trading-bot/internal/scanner"
	"solana-trading-bot/internal/storage"
	"solana-trading-bot/internal/storage/memory"
	"solana-trading-bot/internal/tracker"
)

type fakeProber struct {
	statuses []domain.EndpointStatus
}

func (p *fakeProber) Probe(ctx context.Context, endpoints []string) []domain.EndpointStatus {
	return p.statuses
}

type fakeSwapper struct {
	quotes int
}

func (f *fakeSwapper) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error) {
	f.quotes++
	return &jupiter.Quote{InAmount: fmt.Sprint(amount), OutAmount: "1000000000", Raw: json.RawMessage(`{}`)}, nil
}

func (f *fakeSwapper) BuildSwap(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error) {
	return "QUFBQQ==", nil
}

type fakeLedger struct {
	balance uint64
	submits int
}

func (f *fakeLedger) SubmitTransaction(ctx context.Context, tx []byte) (string, error) {
	f.submits++
	return fmt.Sprintf("Sig%d", f.submits), nil
}

func (f *fakeLedger) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	return f.balance, nil
}

type fakeDiscovery struct {
	recent []domain.Token
}

func (f *fakeDiscovery) GetRecentTokens(ctx context.Context, chainID string, maxAge time.Duration) ([]domain.Token, error) {
	return f.recent, nil
}

func (f *fakeDiscovery) GetTokenDetails(ctx context.Context, chainID, tokenAddress string) (*domain.Token, error) {
	for _, t := range f.recent {
		if t.Address == tokenAddress {
			enriched := t
			enriched.PriceUSD = 0.5
			return &enriched, nil
		}
	}
	return nil, nil
}

type fixture struct {
	server    *Server
	tokens    *memory.TokenStore
	analyses  *memory.AnalysisStore
	txs       *memory.TransactionStore
	prices    *memory.PriceHistoryStore
	ledger    *fakeLedger
	discovery *fakeDiscovery
	prober    *fakeProber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	tokens := memory.NewTokenStore()
	analyses := memory.NewAnalysisStore()
	txs := memory.NewTransactionStore()
	prices := memory.NewPriceHistoryStore()

	prober := &fakeProber{statuses: []domain.EndpointStatus{
		{Endpoint: "https://rpc-a.example", Healthy: true, Latency: 30 * time.Millisecond},
		{Endpoint: "https://rpc-b.example", Healthy: true, Latency: 80 * time.Millisecond},
	}}
	selector, err := rpcpool.NewSelector([]string{"https://rpc-a.example", "https://rpc-b.example"}, prober, time.Minute)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}

	swapper := &fakeSwapper{}
	led := &fakeLedger{balance: 10_000 * 1_000_000}
	discovery := &fakeDiscovery{}

	eng := engine.New(engine.Options{
		Tokens:             tokens,
		Analyses:           analyses,
		Transactions:       txs,
		Evaluator:          evaluator.New(),
		Swapper:            swapper,
		Ledger:             led,
		MaxDailyInvestment: 2000,
		FundingMint:        jupiter.USDCMint,
		WalletPubkey:       "wallet",
		Logger:             logger,
	})
	trk := tracker.New(tracker.Options{
		Tokens:       tokens,
		Transactions: txs,
		Swapper:      swapper,
		Ledger:       led,
		FundingMint:  jupiter.USDCMint,
		WalletPubkey: "wallet",
		Logger:       logger,
	})
	scn := scanner.New(scanner.Options{
		Tokens:    tokens,
		Prices:    prices,
		Discovery: discovery,
		Chain:     "solana",
		Logger:    logger,
	})

	srv := New(Options{
		Selector: selector,
		Ledger:   led,
		Engine:   eng,
		Tracker:  trk,
		Scanner:  scn,
		Tokens:   tokens,
		Prices:   prices,
		Logger:   logger,
	})
	return &fixture{
		server:    srv,
		tokens:    tokens,
		analyses:  analyses,
		txs:       txs,
		prices:    prices,
		ledger:    led,
		discovery: discovery,
		prober:    prober,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", rec.Body.String())
	}
}

func TestSelectReturnsFastestEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/rpc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var sel SelectionResponse
	decode(t, rec, &sel)
	if sel.Endpoint != "https://rpc-a.example" {
		t.Fatalf("endpoint = %q, want rpc-a", sel.Endpoint)
	}
	if !sel.Healthy {
		t.Fatal("selection should be healthy")
	}
	if sel.LatencyMs == nil || *sel.LatencyMs != 30 {
		t.Fatalf("latency_ms = %v, want 30", sel.LatencyMs)
	}
}

func TestSelectUnhealthyFallbackHasNullLatency(t *testing.T) {
	f := newFixture(t)
	f.prober.statuses = []domain.EndpointStatus{
		{Endpoint: "https://rpc-a.example", Healthy: false},
		{Endpoint: "https://rpc-b.example", Healthy: false},
	}

	rec := f.do(t, http.MethodGet, "/rpc", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["latency_ms"]) != "null" {
		t.Errorf("latency_ms = %s, want null for unhealthy fallback", raw["latency_ms"])
	}
	if string(raw["healthy"]) != "false" {
		t.Errorf("healthy = %s, want false", raw["healthy"])
	}
}

func TestSelectRefreshQueryBypassesCache(t *testing.T) {
	f := newFixture(t)

	// Warm the cache, then refresh; both must succeed and agree on the
	// winner since the probe results are static.
	first := f.do(t, http.MethodGet, "/rpc", "")
	if first.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", first.Code, first.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/rpc?refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var sel SelectionResponse
	decode(t, rec, &sel)
	if sel.Endpoint != "https://rpc-a.example" {
		t.Fatalf("endpoint = %q, want rpc-a", sel.Endpoint)
	}
}

func TestRPCStatusPreservesOrder(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/rpc/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var statuses []EndpointStatusResponse
	decode(t, rec, &statuses)
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0].Endpoint != "https://rpc-a.example" || statuses[1].Endpoint != "https://rpc-b.example" {
		t.Fatalf("order not preserved: %+v", statuses)
	}
}

func TestSubmitTx(t *testing.T) {
	f := newFixture(t)
	payload := base58.Encode([]byte("signed transaction bytes"))
	body, _ := json.Marshal(SubmitTxRequest{Transaction: payload})

	rec := f.do(t, http.MethodPost, "/tx", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["signature"] != "Sig1" {
		t.Fatalf("signature = %q, want Sig1", resp["signature"])
	}
}

func TestSubmitTxRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/tx", "not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid JSON: code = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/tx", `{"transaction":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty tx: code = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/tx", `{"transaction":"0OIl"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad base58: code = %d, want 400", rec.Code)
	}
	if f.ledger.submits != 0 {
		t.Fatalf("ledger got %d submits, want 0", f.ledger.submits)
	}
}

func TestListTokensFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, status := range []domain.TokenStatus{domain.TokenStatusNew, domain.TokenStatusBought} {
		tok := &domain.Token{
			Address:   fmt.Sprintf("Tok%d", i),
			Name:      "Test",
			Symbol:    "TST",
			Network:   "solana",
			CreatedAt: time.Unix(int64(1000+i), 0).UTC(),
			Status:    status,
		}
		if _, err := f.tokens.Upsert(ctx, tok); err != nil {
			t.Fatalf("seed token: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/tokens?status=bought", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var tokens []domain.Token
	decode(t, rec, &tokens)
	if len(tokens) != 1 || tokens[0].Address != "Tok1" {
		t.Fatalf("got %+v, want only Tok1", tokens)
	}

	if rec := f.do(t, http.MethodGet, "/tokens?status=teleported", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: code = %d, want 400", rec.Code)
	}
}

func TestGetToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.tokens.Upsert(ctx, &domain.Token{Address: "TokA", Status: domain.TokenStatusNew, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/tokens/TokA", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var tok domain.Token
	decode(t, rec, &tok)
	if tok.Address != "TokA" {
		t.Fatalf("address = %q, want TokA", tok.Address)
	}

	if rec := f.do(t, http.MethodGet, "/tokens/Nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing token: code = %d, want 404", rec.Code)
	}
}

func TestTokenPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		point := &storage.PricePoint{
			TokenAddress: "TokA",
			ObservedAt:   base.Add(time.Duration(i) * time.Hour),
			PriceUSD:     0.1 * float64(i+1),
		}
		if err := f.prices.Insert(ctx, point); err != nil {
			t.Fatalf("seed price: %v", err)
		}
	}

	rec := f.do(t, http.MethodGet, "/tokens/TokA/prices?since="+base.Add(30*time.Minute).Format(time.RFC3339), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var points []map[string]interface{}
	decode(t, rec, &points)
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}

	if rec := f.do(t, http.MethodGet, "/tokens/TokA/prices?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since: code = %d, want 400", rec.Code)
	}
}

func TestTokenPricesDisabled(t *testing.T) {
	f := newFixture(t)
	f.server.prices = nil
	if rec := f.do(t, http.MethodGet, "/tokens/TokA/prices", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
}

func TestScan(t *testing.T) {
	f := newFixture(t)
	f.discovery.recent = []domain.Token{
		{Address: "TokA", Name: "Alpha", Symbol: "ALF", Network: "solana", Status: domain.TokenStatusNew},
	}

	rec := f.do(t, http.MethodPost, "/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		NewTokens int            `json:"new_tokens"`
		Tokens    []domain.Token `json:"tokens"`
	}
	decode(t, rec, &resp)
	if resp.NewTokens != 1 {
		t.Fatalf("new_tokens = %d, want 1", resp.NewTokens)
	}

	stored, err := f.tokens.Get(context.Background(), "TokA")
	if err != nil {
		t.Fatalf("token not stored: %v", err)
	}
	if stored.PriceUSD != 0.5 {
		t.Fatalf("stored price = %v, want enriched 0.5", stored.PriceUSD)
	}
}

func TestTradingCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strong := &domain.Token{
		Address:             "TokA",
		Name:                "Alpha",
		Symbol:              "ALF",
		Network:             "solana",
		CreatedAt:           time.Now().UTC(),
		HasProfile:          true,
		BoosterActive:       true,
		Liquidity:           25_000,
		Volume24h:           30_000,
		PriceUSD:            0.5,
		LiquidityPoolsCount: 3,
		Status:              domain.TokenStatusNew,
		Metadata:            map[string]interface{}{"price_change": map[string]interface{}{"h24": 12.0}},
	}
	if _, err := f.tokens.Upsert(ctx, strong); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	rec := f.do(t, http.MethodPost, "/trading/cycle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	var result engine.CycleResult
	decode(t, rec, &result)
	if result.Analyzed != 1 || result.Bought != 1 {
		t.Fatalf("result = %+v, want 1 analyzed and 1 bought", result)
	}

	stored, err := f.tokens.Get(ctx, "TokA")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if stored.Status != domain.TokenStatusBought {
		t.Fatalf("status = %q, want bought", stored.Status)
	}
}

func TestCheckPositionsEmpty(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/positions/check", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("body = %q, want []", body)
	}
}

var _ ledger.Client = (*fakeLedger)(nil)
