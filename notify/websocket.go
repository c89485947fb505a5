package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// WebSocket reads buzzer updates framed as {"event":...,"data":...} JSON
// objects, redialing with exponential backoff whenever the connection drops.
type WebSocket struct {
	URL             string
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Dialer          *websocket.Dialer
}

func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		URL:         url,
		MaxInterval: time.Second * 5,
		Dialer:      websocket.DefaultDialer,
	}
}

func (w *WebSocket) Run(ctx context.Context, fn Handler) error {
	return redial(ctx, w.InitialInterval, w.MaxInterval, func(bo backoff.BackOff) error {
		return w.listen(ctx, fn, bo)
	})
}

// redial runs listen until ctx is done, backing off between failed attempts.
// listen resets bo once it is connected.
func redial(ctx context.Context, initial, maxInterval time.Duration, listen func(bo backoff.BackOff) error) error {
	bo := backoff.NewExponentialBackOff()
	if initial > 0 {
		bo.InitialInterval = initial
	}
	if maxInterval > 0 {
		bo.MaxInterval = maxInterval
	}
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := listen(bo)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(bo, ctx), func(err error, d time.Duration) {
		log.Error("push channel failed", "err", err, "retry_in", d)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (w *WebSocket) listen(ctx context.Context, fn Handler, bo backoff.BackOff) error {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", w.URL, err)
	}
	defer conn.Close()
	bo.Reset()
	log.Info("connected to push channel", "url", w.URL)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("could not read from push channel: %w", err)
		}
		on, ok, err := DecodeFrame(b)
		if err != nil {
			log.Warn("ignoring push event", "err", err)
			continue
		}
		if !ok {
			log.Debug("ignoring unknown event", "frame", string(b))
			continue
		}
		fn(on)
	}
}
