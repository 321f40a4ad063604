// Package notify pushes committed audit events to a subscriber endpoint. The
// event chain doubles as the outbox: the notifier tails it by sequence number,
// so deliveries are ordered, at-least-once, and survive a restart by replaying
// from wherever the cursor is reset to.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"grantlane/pkg/domain"
	"grantlane/pkg/webhooks"
)

const pageSize = 100

// EventSource is the slice of the coordinator the notifier reads from.
type EventSource interface {
	Events(ctx context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error)
}

type Config struct {
	URL      string
	Secret   string
	Interval time.Duration
	StartSeq int64
	Client   *http.Client
}

type Notifier struct {
	source   EventSource
	client   *http.Client
	url      string
	secret   string
	interval time.Duration
	log      *slog.Logger
	nextSeq  int64
}

func New(source EventSource, cfg Config, log *slog.Logger) *Notifier {
	n := &Notifier{
		source:   source,
		client:   cfg.Client,
		url:      cfg.URL,
		secret:   cfg.Secret,
		interval: cfg.Interval,
		log:      log,
		nextSeq:  cfg.StartSeq,
	}
	if n.client == nil {
		n.client = &http.Client{Timeout: 10 * time.Second}
	}
	if n.interval <= 0 {
		n.interval = 5 * time.Second
	}
	if n.nextSeq < 1 {
		n.nextSeq = 1
	}
	return n
}

// Run tails the chain until ctx is cancelled. Delivery failures are retried
// on the next tick; they never stop the loop.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.RunOnce(ctx); err != nil {
				n.log.Warn("webhook pass incomplete", "next_seq", n.nextSeq, "error", err)
			}
		}
	}
}

// RunOnce delivers every undelivered event and returns the count. On a
// delivery failure it stops at the failing event, leaving the cursor there so
// the next pass retries it; events after it are held back to keep order.
func (n *Notifier) RunOnce(ctx context.Context) (int, error) {
	delivered := 0
	for {
		events, err := n.source.Events(ctx, n.nextSeq, pageSize)
		if err != nil {
			return delivered, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			return delivered, nil
		}
		for _, ev := range events {
			if err := n.deliver(ctx, ev); err != nil {
				return delivered, fmt.Errorf("deliver seq %d: %w", ev.Seq, err)
			}
			n.nextSeq = ev.Seq + 1
			delivered++
		}
		if len(events) < pageSize {
			return delivered, nil
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev domain.LedgerEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header = webhooks.Headers(n.secret, ev.EventHash, string(ev.Type), body)
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("subscriber returned %d", resp.StatusCode)
	}
	return nil
}
