package bus

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MessageType enumerates the broadcast message kinds shared by every
// dashboard context.
type MessageType string

const (
	MessageTrigger          MessageType = "TRIGGER"
	MessageSubmission       MessageType = "SUBMISSION"
	MessageClearSubmissions MessageType = "CLEAR_SUBMISSIONS"
	MessageReviewStatus     MessageType = "REVIEW_STATUS"
)

// Envelope is the wire form of a broadcast message. Data stays raw until a
// reducer decodes it; date fields inside are RFC 3339 strings.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope wraps v into an Envelope of the given type.
func NewEnvelope(t MessageType, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Data: data}, nil
}

// Handler consumes a received envelope. Handlers must be idempotent: a
// transport may deliver the publisher's own message back to it.
type Handler func(Envelope)

// Transport moves encoded envelopes between execution contexts. The local
// transport covers contexts in the same process, the redis transport covers
// other devices; both are subscribed simultaneously and feed the same
// handlers.
type Transport interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, sink func([]byte)) error
	Close() error
}

type Bus struct {
	mu         sync.RWMutex
	handlers   []Handler
	transports []Transport
}

func New(transports ...Transport) *Bus {
	return &Bus{transports: transports}
}

// Subscribe registers a handler for every message received over any
// transport.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish fans the envelope out to all transports. A failed transport is
// logged and does not block the others; the remaining channel is the
// intentional fallback.
func (b *Bus) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	messagesPublished.WithLabelValues(string(env.Type)).Inc()

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range b.transports {
		t := t
		g.Go(func() error {
			if err := t.Publish(ctx, payload); err != nil {
				zap.L().Warn("[Bus] publish failed on transport", zap.String("type", string(env.Type)), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Start subscribes every transport and begins dispatching to handlers.
func (b *Bus) Start(ctx context.Context) error {
	for _, t := range b.transports {
		if err := t.Subscribe(ctx, b.dispatch); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down all transports.
func (b *Bus) Close() error {
	var last error
	for _, t := range b.transports {
		if err := t.Close(); err != nil {
			last = err
		}
	}
	return last
}

func (b *Bus) dispatch(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		zap.L().Warn("[Bus] dropping malformed message", zap.Error(err))
		return
	}

	messagesReceived.WithLabelValues(string(env.Type)).Inc()

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}
