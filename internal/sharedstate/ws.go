package sharedstate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opsbookhq/opsbook/internal/logging"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Frame types exchanged with the shared-state server.
const (
	frameFetch     = "fetch"
	frameSubscribe = "subscribe"
	framePush      = "push"
	frameState     = "state"
	frameAck       = "ack"
)

type wsFrame struct {
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	ChangeRef int64           `json:"change_ref,omitempty"`
	Doc       json.RawMessage `json:"doc,omitempty"`
}

// WSAdapter implements Adapter over a websocket endpoint. Fetch and Push use
// short-lived request/response connections; Subscribe holds one long-lived
// connection and reconnects with a fixed delay until torn down.
type WSAdapter struct {
	url            string
	key            string
	token          string
	log            logging.Logger
	dialTimeout    time.Duration
	reconnectDelay time.Duration
}

func NewWSAdapter(url, key, token string, log logging.Logger) *WSAdapter {
	return &WSAdapter{
		url:            url,
		key:            key,
		token:          token,
		log:            log.With("shared_state_key", key),
		dialTimeout:    10 * time.Second,
		reconnectDelay: 5 * time.Second,
	}
}

func (a *WSAdapter) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if a.token != "" {
		header.Set("Authorization", "Bearer "+a.token)
	}
	conn, _, err := websocket.Dial(ctx, a.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("failed to dial shared state channel: %w", err)
	}
	return conn, nil
}

func (a *WSAdapter) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.dialTimeout)
	defer cancel()

	conn, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, wsFrame{Type: frameFetch, Key: a.key}); err != nil {
		return nil, fmt.Errorf("failed to send fetch: %w", err)
	}
	var resp wsFrame
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		return nil, fmt.Errorf("failed to read fetch response: %w", err)
	}
	if resp.Type != frameState {
		return nil, fmt.Errorf("unexpected frame %q in fetch response", resp.Type)
	}
	return resp.Doc, nil
}

func (a *WSAdapter) Push(ctx context.Context, m Mutation) error {
	conn, err := a.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	frame := wsFrame{Type: framePush, Key: a.key, ChangeRef: m.ChangeRef, Doc: m.Document}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	var resp wsFrame
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		return fmt.Errorf("failed to read push ack: %w", err)
	}
	if resp.Type != frameAck {
		return fmt.Errorf("unexpected frame %q in push response", resp.Type)
	}
	return nil
}

func (a *WSAdapter) Subscribe(onChange func(doc []byte)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	go a.subscribeLoop(ctx, onChange)
	return cancel, nil
}

func (a *WSAdapter) subscribeLoop(ctx context.Context, onChange func(doc []byte)) {
	for {
		if err := a.subscribeOnce(ctx, onChange); err != nil && ctx.Err() == nil {
			a.log.Warn(ctx, "shared state subscription dropped, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.reconnectDelay):
		}
	}
}

func (a *WSAdapter) subscribeOnce(ctx context.Context, onChange func(doc []byte)) error {
	dialCtx, cancel := context.WithTimeout(ctx, a.dialTimeout)
	conn, err := a.dial(dialCtx)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, conn, wsFrame{Type: frameSubscribe, Key: a.key}); err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}
	for {
		var frame wsFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		if frame.Type == frameState {
			onChange(frame.Doc)
		}
	}
}
