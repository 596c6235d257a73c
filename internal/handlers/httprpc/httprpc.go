// Package httprpc exposes the historical-query surface (and a liveness
// ping) as a JSON-RPC 2.0 façade over HTTP POST. It never touches
// SubscriptionTable or ContractInterestSet — that mutation path belongs
// entirely to the WebSocket handler.
package httprpc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/blockwatch-gateway/gateway/internal/chainadapter"
	"github.com/blockwatch-gateway/gateway/internal/normalizedtx"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
)

// ErrMethodNotFound's JSON-RPC error code.
const codeMethodNotFound = -32601

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HistoryQuerier answers getTransactionsByAddress/getTokenTransfers over
// whichever chain adapter the handler is bound to.
type HistoryQuerier interface {
	TxsByAddress(ctx context.Context, address string, fromBlock, toBlock uint64, pageSize int, tokenAddress string) ([]normalizedtx.Tx, error)
}

// StatusSource reports the poller's last processed height for the status
// RPC method.
type StatusSource interface {
	LastProcessedHeight() (uint64, bool)
}

// TokenTransferQuerier answers the TON-only getTokenTransfers method. Only
// the TON adapter implements this lookup; networks without one simply never
// get the option wired in New, and the method falls through to -32601.
type TokenTransferQuerier interface {
	JettonTransfers(ctx context.Context, address, jettonMaster string) ([]normalizedtx.Tx, error)
}

// Handler implements net/http.Handler for POST /jsonrpc and POST /ping.
type Handler struct {
	adapter        chainadapter.Adapter
	history        HistoryQuerier
	status         StatusSource
	tokenTransfers TokenTransferQuerier
}

// Option configures optional Handler capabilities.
type Option func(*Handler)

// WithTokenTransferQuerier registers the getTokenTransfers method, routed
// to q. Only networks backed by an adapter that exposes jetton-style
// token-transfer lookups (currently TON) should pass this.
func WithTokenTransferQuerier(q TokenTransferQuerier) Option {
	return func(h *Handler) { h.tokenTransfers = q }
}

// New builds a Handler bound to one chain's adapter and history/status
// sources.
func New(adapter chainadapter.Adapter, history HistoryQuerier, status StatusSource, opts ...Option) *Handler {
	h := &Handler{adapter: adapter, history: history, status: status}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		h.handlePing(w, r)
	case "/jsonrpc":
		h.handleJSONRPC(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, response{JSONRPC: "2.0", Result: []string{"pong"}})
}

func (h *Handler) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, response{JSONRPC: "2.0", Error: &rpcError{Code: codeMethodNotFound, Message: "bad request format"}})
		return
	}

	switch req.Method {
	case "ping":
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Result: []string{"pong"}})
	case "status":
		h.handleStatus(w, req)
	case "getTransactionsByAddress":
		h.handleGetTransactionsByAddress(r.Context(), w, req)
	case "getTokenTransfers":
		h.handleGetTokenTransfers(r.Context(), w, req)
	default:
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code:    codeMethodNotFound,
			Message: "Method not found",
		}})
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, req request) {
	height, ok := h.status.LastProcessedHeight()
	if !ok {
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Message: "failed to get status"}})
		return
	}
	writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{"height": height}})
}

type txsByAddressParams struct {
	Address      string `json:"address"`
	FromBlock    uint64 `json:"fromBlock"`
	ToBlock      uint64 `json:"toBlock"`
	PageSize     int    `json:"pageSize"`
	TokenAddress string `json:"token_address"`
}

func (h *Handler) handleGetTransactionsByAddress(ctx context.Context, w http.ResponseWriter, req request) {
	var params [1]txsByAddressParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params[0].Address == "" {
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Message: "missing address"}})
		return
	}

	p := params[0]
	txs, err := h.history.TxsByAddress(ctx, p.Address, p.FromBlock, p.ToBlock, p.PageSize, p.TokenAddress)
	if err != nil {
		logger.Error(ctx, "getTransactionsByAddress failed", "address", p.Address, "error", err)
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Message: "failed to get status"}})
		return
	}

	writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Result: txs})
}

type tokenTransfersParams struct {
	Address      string `json:"address"`
	JettonMaster string `json:"jettonMaster"`
}

// handleGetTokenTransfers answers the TON-only getTokenTransfers method. On
// any network whose adapter doesn't expose a TokenTransferQuerier, the
// method is simply never registered by New, so this path is unreachable
// there; it's the default case in handleJSONRPC that handles that.
func (h *Handler) handleGetTokenTransfers(ctx context.Context, w http.ResponseWriter, req request) {
	if h.tokenTransfers == nil {
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{
			Code:    codeMethodNotFound,
			Message: "Method not found",
		}})
		return
	}

	var params [1]tokenTransfersParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params[0].Address == "" || params[0].JettonMaster == "" {
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Message: "missing address or jettonMaster"}})
		return
	}

	p := params[0]
	txs, err := h.tokenTransfers.JettonTransfers(ctx, p.Address, p.JettonMaster)
	if err != nil {
		logger.Error(ctx, "getTokenTransfers failed", "address", p.Address, "jettonMaster", p.JettonMaster, "error", err)
		writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Message: "failed to get token transfers"}})
		return
	}

	writeJSON(w, response{JSONRPC: "2.0", ID: req.ID, Result: txs})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
