package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b, err := New(WithPort(0))
	if err != nil {
		t.Fatalf("creating bus: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx) }()

	select {
	case <-b.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bus never became ready")
	}

	received := make(chan []byte, 1)
	unsubscribe, err := b.Subscribe("town.test.events", func(data []byte) {
		received <- data
	})
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer unsubscribe()

	if err := b.Publish("town.test.events", []byte("hello")); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	select {
	case data := <-received:
		testutil.AssertEqual(t, "payload", string(data), "hello")
	case <-time.After(5 * time.Second):
		t.Fatal("never received published message")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("bus never shut down")
	}
}

func TestBus_PublishBeforeStart(t *testing.T) {
	b, err := New(WithPort(0))
	if err != nil {
		t.Fatalf("creating bus: %v", err)
	}

	if err := b.Publish("town.test.events", []byte("x")); err == nil {
		t.Fatal("expected publishing before Start to fail")
	}
}
