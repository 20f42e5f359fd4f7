package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("cv.tex")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishRespectsTopics(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	mine := b.Subscribe("a.tex")
	defer b.Unsubscribe(mine)
	other := b.Subscribe("b.tex")
	defer b.Unsubscribe(other)
	all := b.Subscribe(AllTopics)
	defer b.Unsubscribe(all)

	b.PublishProfileEvent("updated", "a.tex")

	for name, ch := range map[string]chan []byte{"topic": mine, "all": all} {
		select {
		case msg := <-ch:
			s := string(msg)
			if !strings.Contains(s, "event: profile.updated") {
				t.Errorf("%s: missing event type in %q", name, s)
			}
			if !strings.Contains(s, `"profile":"a.tex"`) {
				t.Errorf("%s: missing data in %q", name, s)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timeout waiting for message", name)
		}
	}

	select {
	case msg := <-other:
		t.Errorf("other topic received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishProfileEvent_UnknownKind(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("a.tex")
	defer b.Unsubscribe(ch)

	b.PublishProfileEvent("renamed", "a.tex")
	select {
	case msg := <-ch:
		t.Errorf("unexpected message %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSelection_Throttle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe(AllTopics)
	defer b.Unsubscribe(ch)

	b.PublishSelection("a.tex")
	b.PublishSelection("a.tex")
	b.PublishSelection("b.tex")

	time.Sleep(50 * time.Millisecond)
	counts := map[string]int{}
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			switch {
			case strings.Contains(s, `"a.tex"`):
				counts["a"]++
			case strings.Contains(s, `"b.tex"`):
				counts["b"]++
			}
		default:
			break loop
		}
	}

	if counts["a"] != 1 {
		t.Errorf("a.tex selection events = %d, want 1 (throttled)", counts["a"])
	}
	if counts["b"] != 1 {
		t.Errorf("b.tex selection events = %d, want 1", counts["b"])
	}
}

func TestPublishSelection_TrailingEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("cv.tex")
	defer b.Unsubscribe(ch)

	b.PublishSelection("cv.tex")
	time.Sleep(20 * time.Millisecond)
	b.PublishSelection("cv.tex")
	b.PublishSelection("cv.tex")

	got := 0
	timeout := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), SelectionUpdated) {
				got++
			}
		case <-timeout:
			break loop
		}
	}

	if got != 2 {
		t.Errorf("selection events = %d, want 2 (leading and trailing)", got)
	}
}

func TestServeTopic_Once(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/profile/cv.tex/change", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeTopic(w, req, "cv.tex", true)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	b.PublishProfileEvent("updated", "cv.tex")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after first event")
	}
	if !strings.Contains(w.Body.String(), "event: profile.updated") {
		t.Errorf("handler output missing event: %q", w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishProfileEvent("deleted", "x.tex")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: profile.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("a.tex")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Topic: "a.tex", Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("a.tex")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishProfileEvent("updated", "a.tex")
	b.PublishSelection("a.tex")
}
