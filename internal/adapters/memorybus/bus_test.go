package memorybus

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish("task.downloaded", []byte(`{"live_id":1}`))

	select {
	case evt := <-ch:
		if evt.Topic != "task.downloaded" {
			t.Fatalf("topic = %q", evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe()
	cancel()

	b.Publish("task.downloaded", nil)
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	defer b.Close()

	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More than the subscriber buffer.
		for i := 0; i < 200; i++ {
			b.Publish("task.skipped", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe()
	b.Close()

	b.Publish("task.downloaded", nil)
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after bus close")
	}
}
