package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/latchko/go-uprising/internal/messaging"
	"github.com/latchko/go-uprising/internal/world"
)

const (
	// SubjectPerform is the request subject for actions.
	SubjectPerform = "actions.perform"

	// SubjectQuery is the request subject for read views.
	SubjectQuery = "actions.query"

	// subscribeRetryInterval spaces subscription attempts while the
	// messaging server is still starting.
	subscribeRetryInterval = 100 * time.Millisecond
)

// QueryRequest is the wire form of a read query.
type QueryRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// Listener serves action and query requests over the embedded NATS
// server's request/reply surface.
type Listener struct {
	server     *messaging.NatsServer
	dispatcher *Dispatcher
}

// NewListener wires a dispatcher to the messaging server.
func NewListener(server *messaging.NatsServer, dispatcher *Dispatcher) *Listener {
	return &Listener{server: server, dispatcher: dispatcher}
}

// Start subscribes the request subjects and blocks until the context
// ends. The messaging server starts as a sibling worker, so the first
// subscription attempts may race its startup; they are retried until
// the server is accepting connections.
func (l *Listener) Start(ctx context.Context) error {
	unsubPerform, err := l.subscribe(ctx, SubjectPerform, func(data []byte) []byte {
		return l.handlePerform(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", SubjectPerform, err)
	}
	defer unsubPerform()

	unsubQuery, err := l.subscribe(ctx, SubjectQuery, l.handleQuery)
	if err != nil {
		return fmt.Errorf("subscribing %s: %w", SubjectQuery, err)
	}
	defer unsubQuery()

	slog.InfoContext(ctx, "action listener ready", "perform", SubjectPerform, "query", SubjectQuery)

	<-ctx.Done()
	return nil
}

func (l *Listener) subscribe(ctx context.Context, subject string, handler func([]byte) []byte) (func(), error) {
	ticker := time.NewTicker(subscribeRetryInterval)
	defer ticker.Stop()

	for {
		unsub, err := l.server.SubscribeReply(subject, handler)
		if err == nil {
			return unsub, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Listener) handlePerform(ctx context.Context, data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return encode(fail(fmt.Errorf("decoding request: %w", world.ErrInvalidState)))
	}
	return encode(l.dispatcher.Perform(ctx, &req))
}

func (l *Listener) handleQuery(data []byte) []byte {
	var req QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encode(fail(fmt.Errorf("decoding query: %w", world.ErrInvalidState)))
	}
	result, err := l.dispatcher.Query(req.Kind, req.ID)
	if err != nil {
		return encode(fail(err))
	}
	return encode(&Response{OK: true, Result: result})
}

func encode(resp *Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("encoding response", "error", err)
		return []byte(`{"ok":false,"error":{"code":"internal","message":"encoding response"}}`)
	}
	return data
}
