package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// SignatureNotification is the payload delivered when a watched signature
// reaches the requested commitment.
type SignatureNotification struct {
	Signature string
	Slot      uint64
	// Err is the on-chain error payload, nil on success.
	Err interface{}
}

// SignatureWatcher waits for signature finality over the WebSocket RPC
// (signatureSubscribe). It is the push-based counterpart to the polling
// Confirmer, used by the verification CLI to settle timed-out submissions.
type SignatureWatcher struct {
	endpoint         string
	handshakeTimeout time.Duration
}

// NewSignatureWatcher creates a watcher for the given WebSocket endpoint.
func NewSignatureWatcher(endpoint string) *SignatureWatcher {
	return &SignatureWatcher{
		endpoint:         endpoint,
		handshakeTimeout: 10 * time.Second,
	}
}

// wsMessage covers both the subscription confirmation and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
}

// Wait subscribes to the signature and blocks until the cluster reports
// finality or ctx expires. The subscription is single-shot: the node
// removes it after delivering the notification.
func (w *SignatureWatcher) Wait(ctx context.Context, signature string) (*SignatureNotification, error) {
	dialer := websocket.Dialer{HandshakeTimeout: w.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]interface{}{"commitment": CommitmentConfirmed},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("signatureSubscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("read notification: %w", err)
		}

		if msg.Error != nil {
			return nil, msg.Error
		}

		if msg.Method == "signatureNotification" && msg.Params != nil {
			return &SignatureNotification{
				Signature: signature,
				Slot:      msg.Params.Result.Context.Slot,
				Err:       msg.Params.Result.Value.Err,
			}, nil
		}
		// Anything else is the subscription confirmation; keep reading.
	}
}
