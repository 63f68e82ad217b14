package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jos-todo/todosync/internal/model"
)

// recorder captures every payload handed to send.
type recorder struct {
	mu    sync.Mutex
	sent  []string
	block chan struct{}
}

func (r *recorder) send(ctx context.Context, doc model.Document) error {
	r.mu.Lock()
	r.sent = append(r.sent, titleOf(doc))
	block := r.block
	r.block = nil
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *recorder) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func titleOf(doc model.Document) string {
	if len(doc.Tasks) == 0 {
		return ""
	}
	return doc.Tasks[0].Title
}

func doc(title string) model.Document {
	return model.Document{Tasks: []model.Task{{ID: "1", Title: title}}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestSchedule_BurstSendsOnce(t *testing.T) {
	rec := &recorder{}
	c := New(30*time.Millisecond, rec.send, nil)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Schedule(doc(fmt.Sprintf("v%d", i)))
	}

	waitFor(t, func() bool { return len(rec.payloads()) == 1 && !c.InFlight() })
	time.Sleep(60 * time.Millisecond)

	got := rec.payloads()
	if len(got) != 1 {
		t.Fatalf("sent %d payloads, want 1: %v", len(got), got)
	}
	if got[0] != "v9" {
		t.Errorf("sent %q, want final payload v9", got[0])
	}
}

func TestSchedule_QueuesLatestWhileInFlight(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	release := rec.block
	c := New(time.Millisecond, rec.send, nil)
	defer c.Close()

	c.Schedule(doc("A"))
	waitFor(t, c.InFlight)

	c.Schedule(doc("B"))
	time.Sleep(20 * time.Millisecond)
	c.Schedule(doc("C"))
	time.Sleep(20 * time.Millisecond)

	if got := rec.payloads(); len(got) != 1 {
		t.Fatalf("second send started while first in flight: %v", got)
	}

	close(release)
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got := rec.payloads()
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("sent %v, want [A C]", got)
	}
}

func TestFlush_SendsImmediately(t *testing.T) {
	rec := &recorder{}
	c := New(time.Hour, rec.send, nil)
	defer c.Close()

	c.Schedule(doc("now"))
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := rec.payloads(); len(got) != 1 || got[0] != "now" {
		t.Errorf("sent %v, want [now]", got)
	}
}

func TestFlush_Idle(t *testing.T) {
	c := New(0, (&recorder{}).send, nil)
	defer c.Close()

	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush on idle coalescer failed: %v", err)
	}
}

func TestCancel_DropsScheduled(t *testing.T) {
	rec := &recorder{}
	c := New(20*time.Millisecond, rec.send, nil)
	defer c.Close()

	c.Schedule(doc("dropped"))
	c.Cancel()
	time.Sleep(60 * time.Millisecond)

	if got := rec.payloads(); len(got) != 0 {
		t.Errorf("cancelled payload was sent: %v", got)
	}
}

func TestOnResult_ReportsEverySend(t *testing.T) {
	sendErr := errors.New("boom")
	var mu sync.Mutex
	var results []error

	send := func(ctx context.Context, doc model.Document) error {
		if titleOf(doc) == "bad" {
			return sendErr
		}
		return nil
	}
	c := New(time.Millisecond, send, func(err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	})
	defer c.Close()

	c.Schedule(doc("bad"))
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	c.Schedule(doc("good"))
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !errors.Is(results[0], sendErr) || results[1] != nil {
		t.Errorf("results = %v, want [boom <nil>]", results)
	}
}

func TestClose_AbortsInFlight(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	c := New(time.Millisecond, rec.send, nil)

	c.Schedule(doc("stuck"))
	waitFor(t, c.InFlight)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	c.Schedule(doc("after"))
	time.Sleep(10 * time.Millisecond)
	if got := rec.payloads(); len(got) != 1 {
		t.Errorf("Schedule after Close sent: %v", got)
	}
}
