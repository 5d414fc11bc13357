package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ConfirmerConfig configures signature confirmation behavior.
type ConfirmerConfig struct {
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// ConfirmTimeout bounds the wait for a confirmation notification.
	ConfirmTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultConfirmerConfig returns default confirmation configuration.
func DefaultConfirmerConfig() ConfirmerConfig {
	return ConfirmerConfig{
		HandshakeTimeout: 10 * time.Second,
		ConfirmTimeout:   60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Confirmer waits for transaction signatures to reach confirmed
// commitment via signatureSubscribe. Each confirmation dials a fresh
// connection; the node cancels the subscription after it fires.
type Confirmer struct {
	endpoint  string
	config    ConfirmerConfig
	requestID atomic.Uint64
}

// NewConfirmer creates a Confirmer for the given WebSocket endpoint.
func NewConfirmer(endpoint string, config *ConfirmerConfig) *Confirmer {
	cfg := DefaultConfirmerConfig()
	if config != nil {
		cfg = *config
	}
	return &Confirmer{endpoint: endpoint, config: cfg}
}

// Confirm blocks until the signature is confirmed, fails on-chain, or
// the timeout elapses. A nil return means the transaction landed
// without an error.
func (c *Confirmer) Confirm(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	// Unblock the read loop when the context expires.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("confirmation timeout for %s: %w", signature, ctx.Err())
			}
			return fmt.Errorf("read message: %w", err)
		}

		var notif wsSignatureNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "signatureNotification" {
			// Subscription confirmation or unrelated frame.
			continue
		}

		if txErr := notif.Params.Result.Value.Err; txErr != nil {
			return fmt.Errorf("transaction %s failed: %v", signature, txErr)
		}
		return nil
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSignatureNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}
