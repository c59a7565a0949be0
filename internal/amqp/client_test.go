package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"oyken/internal/core"
)

// recordingAcker captures how a delivery was settled.
type recordingAcker struct {
	acks, nacks, rejects int
	requeue              bool
}

func (a *recordingAcker) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *recordingAcker) Reject(_ uint64, requeue bool) error {
	a.rejects++
	a.requeue = requeue
	return nil
}

func quietClient() *Client {
	return &Client{
		exchangeName: "oyken",
		queueName:    "oyken.recompute",
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func delivery(t *testing.T, acker *recordingAcker, body []byte) amqp091.Delivery {
	t.Helper()
	return amqp091.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body}
}

func recomputeBody(t *testing.T, p core.Period, reason string) []byte {
	t.Helper()
	body, err := NewRecomputeMessage(p, reason).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	return body
}

func TestClient_Handle(t *testing.T) {
	march := core.Period{Year: 2025, Month: 3}

	t.Run("closed month is acked", func(t *testing.T) {
		acker := &recordingAcker{}
		var got core.Period
		quietClient().handle(context.Background(), delivery(t, acker, recomputeBody(t, march, "sales")),
			func(_ context.Context, msg *RecomputeMessage) error {
				got = msg.Period()
				return nil
			})

		if got != march {
			t.Errorf("handler got period %v, want %v", got, march)
		}
		if acker.acks != 1 || acker.nacks != 0 {
			t.Errorf("acks=%d nacks=%d, want one ack", acker.acks, acker.nacks)
		}
	})

	t.Run("failed close is requeued", func(t *testing.T) {
		acker := &recordingAcker{}
		quietClient().handle(context.Background(), delivery(t, acker, recomputeBody(t, march, "purchase")),
			func(context.Context, *RecomputeMessage) error {
				return errors.New("database is locked")
			})

		if acker.acks != 0 || acker.nacks != 1 {
			t.Fatalf("acks=%d nacks=%d, want one nack", acker.acks, acker.nacks)
		}
		if !acker.requeue {
			t.Error("failed close should be requeued")
		}
	})

	t.Run("whole year reaches the handler", func(t *testing.T) {
		acker := &recordingAcker{}
		var got core.Period
		quietClient().handle(context.Background(), delivery(t, acker, recomputeBody(t, core.Period{Year: 2025}, "position")),
			func(_ context.Context, msg *RecomputeMessage) error {
				got = msg.Period()
				return nil
			})

		if got != (core.Period{Year: 2025}) {
			t.Errorf("handler got period %v, want whole 2025", got)
		}
		if acker.acks != 1 {
			t.Errorf("acks=%d, want 1", acker.acks)
		}
	})

	for name, body := range map[string]string{
		"malformed body":     `{"year":`,
		"month out of range": `{"year": 2025, "month": 13, "reason": "sales"}`,
	} {
		t.Run(name+" is dropped", func(t *testing.T) {
			acker := &recordingAcker{}
			called := false
			quietClient().handle(context.Background(), delivery(t, acker, []byte(body)),
				func(context.Context, *RecomputeMessage) error {
					called = true
					return nil
				})

			if called {
				t.Error("handler should not run for an unreadable message")
			}
			if acker.nacks != 1 || acker.requeue {
				t.Errorf("nacks=%d requeue=%v, want one nack without requeue", acker.nacks, acker.requeue)
			}
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, expected := range want {
		if got := exponentialBackoff(attempt); got != expected {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, expected)
		}
	}
	for _, attempt := range []int{5, 6, 40} {
		if got := exponentialBackoff(attempt); got != maxBackoff {
			t.Errorf("exponentialBackoff(%d) = %v, want cap %v", attempt, got, maxBackoff)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"broker closed", amqp091.ErrClosed, true},
		{"wrapped broker closed", fmt.Errorf("publish recompute 2025-03: %w", amqp091.ErrClosed), true},
		{"dial refused", errors.New("dial tcp 127.0.0.1:5672: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"handler failure", errors.New("close 2025-03: database is locked"), false},
		{"bad message", errors.New("recompute message: invalid month 13"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := quietClient()

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures-1; i++ {
		client.recordFailure()
	}
	if client.isCircuitOpen() {
		t.Fatalf("circuit opened after %d failures, threshold is %d", maxFailures-1, maxFailures)
	}
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open at the failure threshold")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should let a trial through after the open timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", atomic.LoadInt32(&client.state))
	}

	// A failed trial opens the circuit again at once.
	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("failure while half-open should reopen the circuit")
	}

	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("success should close the circuit and clear the failure count")
	}
}

func TestClient_PublishRecompute_CircuitBreaker(t *testing.T) {
	client := quietClient()
	p := core.Period{Year: 2025, Month: 3}

	t.Run("publish fails when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishRecompute(context.Background(), p, "sales")
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Fatalf("PublishRecompute error = %v, want open circuit", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishRecompute(ctx, p, "sales"); !errors.Is(err, context.Canceled) {
			t.Errorf("PublishRecompute error = %v, want context.Canceled", err)
		}
	})
}

func TestNewRecomputeMessage(t *testing.T) {
	msg := NewRecomputeMessage(core.Period{Year: 2025, Month: 3}, "purchase")

	if msg.Period() != (core.Period{Year: 2025, Month: 3}) {
		t.Errorf("NewRecomputeMessage() period = %v, want 2025-03", msg.Period())
	}
	if msg.Reason != "purchase" {
		t.Errorf("NewRecomputeMessage() Reason = %q", msg.Reason)
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewRecomputeMessage() Timestamp should be recent")
	}
}

func TestRecomputeMessage_JSON(t *testing.T) {
	msg := &RecomputeMessage{
		Year:      2025,
		Month:     0,
		Reason:    "position",
		Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := RecomputeMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("RecomputeMessageFromJSON() error = %v", err)
	}
	if parsed.Period() != (core.Period{Year: 2025}) {
		t.Errorf("Parsed period = %v, want whole 2025", parsed.Period())
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestRecomputeMessage_Invalid(t *testing.T) {
	for _, body := range []string{
		`{"year": "2025", "month": 1}`,
		`{"year": 2025, "month": 13}`,
		`{"year": 1900, "month": 1}`,
	} {
		if _, err := RecomputeMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("RecomputeMessageFromJSON(%s) should fail", body)
		}
	}
}
