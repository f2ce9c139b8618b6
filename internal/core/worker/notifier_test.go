package worker

import (
	"context"
	"testing"
	"time"
)

func TestRunStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A canceled context wins the select before the first tick, so the nil
	// pool is never touched.
	done := make(chan struct{})
	go func() {
		run(ctx, nil, "http://localhost/webhook", "secret", time.Minute)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier loop did not stop after cancellation")
	}
}
