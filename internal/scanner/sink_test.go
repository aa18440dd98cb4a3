package scanner

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sadopc/godudb/internal/model"
)

type recordingSender struct {
	mu      sync.Mutex
	batches [][]model.Entry
	err     error
}

func (r *recordingSender) Send(batch []model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingSender) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func TestStreamSink_Batches(t *testing.T) {
	sender := &recordingSender{}
	sink := NewStreamSink(sender, 0)
	for i := 0; i < 2500; i++ {
		if err := sink.Add(model.Entry{Path: fmt.Sprint(i)}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if got := sender.sizes(); len(got) != 2 || got[0] != DefaultBatchSize || got[1] != DefaultBatchSize {
		t.Fatalf("batches before flush = %v", got)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := sender.sizes(); len(got) != 3 || got[2] != 500 {
		t.Fatalf("batches after flush = %v", got)
	}
	// An empty flush forwards nothing.
	if err := sink.Flush(); err != nil || len(sender.sizes()) != 3 {
		t.Fatalf("empty flush sent a batch")
	}
}

func TestStreamSink_PropagatesSendError(t *testing.T) {
	boom := errors.New("mailbox gone")
	sink := NewStreamSink(&recordingSender{err: boom}, 2)
	if err := sink.Add(model.Entry{}); err != nil {
		t.Fatalf("first Add should only buffer, got %v", err)
	}
	if err := sink.Add(model.Entry{}); !errors.Is(err, boom) {
		t.Fatalf("Add error = %v, want %v", err, boom)
	}
}

// gatedSender blocks every Send until the test releases it.
type gatedSender struct {
	gate chan struct{}
	sent chan int
}

func (g *gatedSender) Send(batch []model.Entry) error {
	<-g.gate
	g.sent <- len(batch)
	return nil
}

func TestStreamSink_SendHappensOutsideLock(t *testing.T) {
	g := &gatedSender{gate: make(chan struct{}), sent: make(chan int, 4)}
	sink := NewStreamSink(g, 2)

	if err := sink.Add(model.Entry{Path: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	blocked := make(chan error, 1)
	go func() { blocked <- sink.Add(model.Entry{Path: "b"}) }()

	// While the draining goroutine is parked in Send, other producers can
	// still take the lock and append.
	appended := make(chan error, 1)
	go func() { appended <- sink.Add(model.Entry{Path: "c"}) }()
	select {
	case err := <-appended:
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("appending producer waited on a blocked downstream")
	}

	select {
	case <-blocked:
		t.Fatal("Add returned while downstream was blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(g.gate)
	if err := <-blocked; err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if a, b := <-g.sent, <-g.sent; a != 2 || b != 1 {
		t.Errorf("batch sizes = %d, %d", a, b)
	}
}

// stallingSender sleeps inside every third Send before recording the batch.
type stallingSender struct {
	calls atomic.Int64
	stall time.Duration

	mu      sync.Mutex
	arrived []model.Entry
}

func (s *stallingSender) Send(batch []model.Entry) error {
	if s.calls.Add(1)%3 == 0 {
		time.Sleep(s.stall)
	}
	s.mu.Lock()
	s.arrived = append(s.arrived, batch...)
	s.mu.Unlock()
	return nil
}

func (s *stallingSender) entries() []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Entry, len(s.arrived))
	copy(out, s.arrived)
	return out
}

// firstCallGate parks the first Send before it records anything.
type firstCallGate struct {
	entered chan struct{}
	gate    chan struct{}
	calls   atomic.Int64

	mu      sync.Mutex
	arrived []string
}

func (g *firstCallGate) Send(batch []model.Entry) error {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range batch {
		g.arrived = append(g.arrived, e.Path)
	}
	return nil
}

func TestStreamSink_DeliversInFillOrder(t *testing.T) {
	g := &firstCallGate{entered: make(chan struct{}), gate: make(chan struct{})}
	sink := NewStreamSink(g, 2)

	// "child" is buffered, then another producer fills the batch and stalls
	// in Send. The batch holding "parent" is filled afterwards and must not
	// overtake it.
	if err := sink.Add(model.Entry{Path: "child"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	first := make(chan error, 1)
	go func() { first <- sink.Add(model.Entry{Path: "x"}) }()
	<-g.entered

	second := make(chan error, 1)
	go func() {
		if err := sink.Add(model.Entry{Path: "y"}); err != nil {
			second <- err
			return
		}
		second <- sink.Add(model.Entry{Path: "parent"})
	}()

	time.Sleep(50 * time.Millisecond)
	close(g.gate)
	for _, ch := range []chan error{first, second} {
		if err := <-ch; err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	want := []string{"child", "x", "y", "parent"}
	g.mu.Lock()
	defer g.mu.Unlock()
	if fmt.Sprint(g.arrived) != fmt.Sprint(want) {
		t.Errorf("arrival order = %v, want %v", g.arrived, want)
	}
}

func TestCollectSink_KeepsOrder(t *testing.T) {
	sink := NewCollectSink()
	for i := 0; i < 3; i++ {
		_ = sink.Add(model.Entry{Path: fmt.Sprint(i)})
	}
	got := sink.Entries()
	if len(got) != 3 || got[0].Path != "0" || got[2].Path != "2" {
		t.Errorf("Entries() = %+v", got)
	}
	got[0].Path = "changed"
	if sink.Entries()[0].Path != "0" {
		t.Error("Entries() did not return a copy")
	}
}
