// Package api exposes the trading service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mr-tron/base58"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/engine"
	"solana-trading-bot/internal/ledger"
	"solana-trading-bot/internal/observability"
	"solana-trading-bot/internal/rpcpool"
	"solana-trading-bot/internal/scanner"
	"solana-trading-bot/internal/storage"
	"solana-trading-bot/internal/tracker"
)

// Server wires the service components into HTTP handlers.
type Server struct {
	selector *rpcpool.Selector
	ledger   ledger.Client
	engine   *engine.Engine
	tracker  *tracker.Tracker
	scanner  *scanner.Scanner
	tokens   storage.TokenStore
	prices   storage.PriceHistoryStore // nil disables /prices

	logger  *log.Logger
	metrics *observability.Metrics
}

// Options configures Server.
type Options struct {
	Selector *rpcpool.Selector
	Ledger   ledger.Client
	Engine   *engine.Engine
	Tracker  *tracker.Tracker
	Scanner  *scanner.Scanner
	Tokens   storage.TokenStore
	Prices   storage.PriceHistoryStore

	Logger  *log.Logger
	Metrics *observability.Metrics
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		selector: opts.Selector,
		ledger:   opts.Ledger,
		engine:   opts.Engine,
		tracker:  opts.Tracker,
		scanner:  opts.Scanner,
		tokens:   opts.Tokens,
		prices:   opts.Prices,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /rpc", s.instrument("/rpc", s.handleSelect))
	mux.HandleFunc("GET /rpc/status", s.instrument("/rpc/status", s.handleRPCStatus))
	mux.HandleFunc("POST /rpc/refresh", s.instrument("/rpc/refresh", s.handleRefresh))

	mux.HandleFunc("POST /tx", s.instrument("/tx", s.handleSubmitTx))

	mux.HandleFunc("GET /tokens", s.instrument("/tokens", s.handleListTokens))
	mux.HandleFunc("GET /tokens/{address}", s.instrument("/tokens/{address}", s.handleGetToken))
	mux.HandleFunc("GET /tokens/{address}/prices", s.instrument("/tokens/{address}/prices", s.handleTokenPrices))

	mux.HandleFunc("POST /scan", s.instrument("/scan", s.handleScan))
	mux.HandleFunc("POST /trading/analyze", s.instrument("/trading/analyze", s.handleAnalyze))
	mux.HandleFunc("POST /trading/execute", s.instrument("/trading/execute", s.handleExecute))
	mux.HandleFunc("POST /trading/cycle", s.instrument("/trading/cycle", s.handleCycle))
	mux.HandleFunc("POST /positions/check", s.instrument("/positions/check", s.handleCheckPositions))

	return mux
}

// instrument wraps a handler with request counting per route.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// handleSelect returns the current best RPC endpoint. ?refresh=true
// discards the cached selection first.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		s.handleRefresh(w, r)
		return
	}
	sel, err := s.selector.Select(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, selectionResponse(sel))
}

// handleRefresh discards the cached selection and probes again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selector.Refresh(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, selectionResponse(sel))
}

// SelectionResponse is the JSON shape of an endpoint selection. An
// unhealthy fallback selection has no meaningful latency, so the field
// is null.
type SelectionResponse struct {
	Endpoint  string   `json:"endpoint"`
	LatencyMs *float64 `json:"latency_ms"`
	Healthy   bool     `json:"healthy"`
	CheckedAt string   `json:"checked_at"`
}

func selectionResponse(sel domain.Selection) SelectionResponse {
	resp := SelectionResponse{
		Endpoint:  sel.Endpoint,
		Healthy:   sel.Healthy,
		CheckedAt: sel.CheckedAt.UTC().Format(time.RFC3339),
	}
	if sel.Healthy {
		ms := float64(sel.Latency) / float64(time.Millisecond)
		resp.LatencyMs = &ms
	}
	return resp
}

// EndpointStatusResponse is the JSON shape of one probed endpoint.
type EndpointStatusResponse struct {
	Endpoint  string  `json:"endpoint"`
	Healthy   bool    `json:"healthy"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
}

// handleRPCStatus probes every configured endpoint.
func (s *Server) handleRPCStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.selector.Snapshot(r.Context())
	out := make([]EndpointStatusResponse, len(statuses))
	for i, st := range statuses {
		out[i] = EndpointStatusResponse{
			Endpoint:  st.Endpoint,
			Healthy:   st.Healthy,
			LatencyMs: float64(st.Latency) / float64(time.Millisecond),
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// SubmitTxRequest carries a signed transaction in base58.
type SubmitTxRequest struct {
	Transaction string `json:"transaction"`
}

// handleSubmitTx submits a signed transaction to the ledger.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var req SubmitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Transaction == "" {
		s.writeError(w, http.StatusBadRequest, "transaction is required")
		return
	}

	raw, err := base58.Decode(req.Transaction)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "transaction is not valid base58")
		return
	}

	signature, err := s.ledger.SubmitTransaction(r.Context(), raw)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"signature": signature})
}

// handleListTokens lists tokens, optionally filtered by status.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	var status *domain.TokenStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := domain.TokenStatus(v)
		if !st.Valid() {
			s.writeError(w, http.StatusBadRequest, "unknown status "+v)
			return
		}
		status = &st
	}

	limit := intQuery(r, "limit", 100)
	offset := intQuery(r, "offset", 0)

	tokens, err := s.tokens.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tokens == nil {
		tokens = []*domain.Token{}
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

// handleGetToken returns one token by address.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	token, err := s.tokens.Get(r.Context(), address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "token not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, token)
}

// handleTokenPrices returns the stored price history of a token.
func (s *Server) handleTokenPrices(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		s.writeError(w, http.StatusServiceUnavailable, "price history is not enabled")
		return
	}

	since := time.Time{}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	points, err := s.prices.ListByToken(r.Context(), r.PathValue("address"), since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if points == nil {
		points = []*storage.PricePoint{}
	}
	s.writeJSON(w, http.StatusOK, points)
}

// handleScan triggers one discovery pass.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.scanner.ScanOnce(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"new_tokens": len(tokens),
		"tokens":     tokens,
	})
}

// handleAnalyze evaluates all tokens in status new.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	analyses, err := s.engine.AnalyzePending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if analyses == nil {
		analyses = []domain.TokenAnalysis{}
	}
	s.writeJSON(w, http.StatusOK, analyses)
}

// handleExecute runs buy orders for analyzed tokens.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.engine.ExecuteBuyOrders(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, transactions)
}

// handleCycle runs a full trading cycle.
func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	result := s.engine.RunTradingCycle(r.Context())
	s.writeJSON(w, http.StatusOK, result)
}

// handleCheckPositions runs one position check pass.
func (s *Server) handleCheckPositions(w http.ResponseWriter, r *http.Request) {
	sells := s.tracker.CheckPositionsOnce(r.Context())
	if sells == nil {
		sells = []domain.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, sells)
}

func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
