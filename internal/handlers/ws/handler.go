// Package ws implements the WebSocket transport for live subscriptions. One
// goroutine per connection reads frames and mutates the connection's
// registry entry; delivery runs on the matcher's dispatch path via the
// sendFn closure registered at subscribe time.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/blockwatch-gateway/gateway/internal/connlifecycle"
	"github.com/blockwatch-gateway/gateway/internal/pkg/logger"
	"github.com/blockwatch-gateway/gateway/internal/subscription"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// frame is the single wire shape both directions use.
type frame struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     any             `json:"id"`
	Error  any             `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   any             `json:"data,omitempty"`
}

// Handler upgrades HTTP connections to WebSocket and wires each one into
// the connlifecycle.Registry for a single network.
type Handler struct {
	network  string
	registry *connlifecycle.Registry
}

// New builds a Handler that accepts subscribeAccount requests against
// network.
func New(network string, registry *connlifecycle.Registry) *Handler {
	return &Handler{network: network, registry: registry}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	cid := connlifecycle.NewConnID()
	c := &wsConn{conn: conn}

	defer func() {
		h.registry.Close(cid)
		conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if !isMalformedFrame(err) {
				return
			}
			c.sendError("bad request format")
			continue
		}

		if f.Method != "subscribeAccount" {
			c.sendError("bad request format")
			continue
		}

		if err := h.handleSubscribe(r.Context(), cid, c, f); err != nil {
			c.sendError(err.Error())
		}
	}
}

// isMalformedFrame reports whether err came from decoding a frame's bytes as
// JSON rather than from the underlying connection itself. ReadJSON wraps
// conn.NextReader, whose errors (close frames, broken pipes, etc.) always
// mean the connection is gone and the loop must stop; a frame that simply
// isn't valid JSON leaves the connection open and should just be rejected.
func isMalformedFrame(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (h *Handler) handleSubscribe(ctx context.Context, cid subscription.ConnID, c *wsConn, f frame) error {
	var params [2]json.RawMessage
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return errBadParams
	}

	var addr string
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return errBadParams
	}

	var tokens []string
	if len(params[1]) > 0 {
		if err := json.Unmarshal(params[1], &tokens); err != nil {
			return errBadParams
		}
	}

	return h.registry.Subscribe(ctx, h.network, cid, c.send, c.onError, addr, tokens)
}

var errBadParams = errBadParamsErr{}

type errBadParamsErr struct{}

func (errBadParamsErr) Error() string { return "bad request format" }

// wsConn adapts a *websocket.Conn to subscription.SendFunc/ErrorFunc with a
// write mutex, since gorilla/websocket forbids concurrent writers on the
// same connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(frame{Error: false, Event: "subscribeAccount", Data: payload})
}

func (c *wsConn) onError(err error) {
	c.sendError(err.Error())
}

func (c *wsConn) sendError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteJSON(frame{Error: msg})
}
