package ws

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// overlapWriter flags any two writes that run at the same time.
type overlapWriter struct {
	inFlight int32
	overlap  int32
	writes   int32
}

func (w *overlapWriter) write() error {
	if !atomic.CompareAndSwapInt32(&w.inFlight, 0, 1) {
		atomic.StoreInt32(&w.overlap, 1)
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&w.writes, 1)
	atomic.StoreInt32(&w.inFlight, 0)
	return nil
}

func (w *overlapWriter) WriteJSON(v interface{}) error { return w.write() }

func (w *overlapWriter) WriteMessage(messageType int, data []byte) error { return w.write() }

func (w *overlapWriter) Close() error { return nil }

func TestSafeConnSerializesWrites(t *testing.T) {
	w := &overlapWriter{}
	sc := &SafeConn{w: w}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sc.WriteJSON(Envelope{Type: "pong", Timestamp: time.Now()})
		}()
		go func() {
			defer wg.Done()
			sc.WriteMessage(1, []byte(`{"type":"location_update"}`))
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&w.overlap) != 0 {
		t.Fatal("concurrent writes reached the underlying connection")
	}
	if got := atomic.LoadInt32(&w.writes); got != 16 {
		t.Fatalf("writes = %d, want 16", got)
	}
}

func TestHubAndSessionShareOneWriter(t *testing.T) {
	w := &overlapWriter{}
	sc := &SafeConn{w: w}
	h := NewHub()
	h.Register(1, 5, sc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.SendToUser(1, env("location_update"))
		}()
		go func() {
			defer wg.Done()
			sc.WriteJSON(env("pong"))
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&w.overlap) != 0 {
		t.Fatal("hub fan-out and session reply overlapped on one connection")
	}
}
