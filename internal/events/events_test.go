package events

import "testing"

func TestBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Emit(Event{DownloadID: "id-1", Kind: Progress, Bytes: 1024})

	select {
	case e := <-ch:
		if e.DownloadID != "id-1" || e.Bytes != 1024 {
			t.Errorf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestBroadcasterDropsWhenSubscriberBufferFull(t *testing.T) {
	b := NewBroadcaster()
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Emit(Event{DownloadID: "id-1", Kind: Progress, Bytes: int64(i)})
	}
	// must not deadlock or panic; the buffer simply saturates
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	if _, open := <-ch; open {
		t.Error("expected channel to be closed after unsubscribe")
	}
}
