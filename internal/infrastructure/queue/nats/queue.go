// Package nats carries search.completed audit events between the API and the worker.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
)

const workerQueueGroup = "search-audit-workers"

type EventBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string, options Options) (*EventBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("hybrid-legal-search"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishSearchCompleted(ctx context.Context, event domain.SearchEvent) error {
	payload, err := EncodeEvent(event)
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeSearchCompleted blocks until ctx is done, then drains the subscription.
func (b *EventBus) SubscribeSearchCompleted(ctx context.Context, handler func(context.Context, domain.SearchEvent) error) error {
	// Messages delivered while draining are still handled after ctx is done.
	handlerCtx := context.WithoutCancel(ctx)
	sub, err := b.conn.QueueSubscribe(b.subject, workerQueueGroup, func(msg *nats.Msg) {
		HandleMessage(handlerCtx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// HandleMessage decodes one message and runs handler. Malformed payloads and
// handler errors are logged and dropped.
func HandleMessage(ctx context.Context, data []byte, handler func(context.Context, domain.SearchEvent) error) {
	event, err := DecodeEvent(data)
	if err != nil {
		slog.Error("search_event_decode_failed", "error", err, "payload_bytes", len(data))
		return
	}
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, event); err != nil {
		slog.Error("search_event_handler_failed", "event_id", event.ID, "error", err)
	}
}

func EncodeEvent(event domain.SearchEvent) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode search event: %w", err)
	}
	return raw, nil
}

func DecodeEvent(data []byte) (domain.SearchEvent, error) {
	var event domain.SearchEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.SearchEvent{}, fmt.Errorf("decode search event: %w", err)
	}
	if event.ID == "" {
		return domain.SearchEvent{}, fmt.Errorf("decode search event: %w", errors.New("missing id"))
	}
	return event, nil
}
