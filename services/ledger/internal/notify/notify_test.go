package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"grantlane/pkg/domain"
	"grantlane/pkg/webhooks"
)

type sliceSource struct {
	events []domain.LedgerEvent
}

func (s *sliceSource) Events(_ context.Context, fromSeq int64, limit int) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, ev := range s.events {
		if ev.Seq >= fromSeq {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func testEvents(n int) []domain.LedgerEvent {
	evs := make([]domain.LedgerEvent, 0, n)
	for i := 1; i <= n; i++ {
		evs = append(evs, domain.LedgerEvent{
			Seq:        int64(i),
			Type:       domain.EventClaimIssued,
			RecordID:   "clm_1",
			Actor:      "prn_authority",
			EventHash:  "sha256:" + string(rune('a'+i)),
			OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return evs
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceDeliversSignedEventsInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []domain.LedgerEvent
		bads []string
	)
	sub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		res, err := webhooks.Verify(r.Header, body, "s3cret")
		mu.Lock()
		defer mu.Unlock()
		if err != nil || !res.Valid {
			bads = append(bads, string(body))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var ev domain.LedgerEvent
		_ = json.Unmarshal(body, &ev)
		got = append(got, ev)
		w.WriteHeader(http.StatusOK)
	}))
	defer sub.Close()

	n := New(&sliceSource{events: testEvents(3)}, Config{URL: sub.URL, Secret: "s3cret"}, quietLog())
	delivered, err := n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if delivered != 3 {
		t.Fatalf("delivered = %d, want 3", delivered)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bads) != 0 {
		t.Fatalf("subscriber rejected deliveries: %v", bads)
	}
	for i, ev := range got {
		if ev.Seq != int64(i+1) {
			t.Fatalf("delivery %d has seq %d, out of order", i, ev.Seq)
		}
	}
}

func TestFailedDeliveryHoldsTheCursor(t *testing.T) {
	var (
		mu       sync.Mutex
		rejected bool
		seqs     []int64
	)
	sub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev domain.LedgerEvent
		_ = json.Unmarshal(body, &ev)
		mu.Lock()
		defer mu.Unlock()
		if ev.Seq == 2 && !rejected {
			rejected = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		seqs = append(seqs, ev.Seq)
		w.WriteHeader(http.StatusOK)
	}))
	defer sub.Close()

	n := New(&sliceSource{events: testEvents(3)}, Config{URL: sub.URL, Secret: "s3cret"}, quietLog())

	delivered, err := n.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected first pass to report the failed delivery")
	}
	if delivered != 1 {
		t.Fatalf("first pass delivered = %d, want 1", delivered)
	}

	delivered, err = n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("second pass delivered = %d, want 2", delivered)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []int64{1, 2, 3}
	if len(seqs) != len(want) {
		t.Fatalf("accepted seqs = %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("accepted seqs = %v, want %v", seqs, want)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer sub.Close()

	n := New(&sliceSource{}, Config{URL: sub.URL, Secret: "s3cret", Interval: time.Millisecond}, quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
