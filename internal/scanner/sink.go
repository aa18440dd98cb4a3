package scanner

import (
	"sync"
	"time"

	"github.com/sadopc/godudb/internal/model"
)

// Sink receives every entry the walker emits. Add may be called from many
// goroutines at once.
type Sink interface {
	Add(e model.Entry) error
	// Flush forwards anything still buffered. Called once after the walk.
	Flush() error
}

// BatchSender is the downstream of a streaming sink. Send may block to apply
// backpressure and must take ownership of batch.
type BatchSender interface {
	Send(batch []model.Entry) error
}

// CollectSink keeps every entry in memory, in emission order.
type CollectSink struct {
	mu      sync.Mutex
	entries []model.Entry
}

// NewCollectSink returns an empty in-memory sink.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

func (s *CollectSink) Add(e model.Entry) error {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return nil
}

func (s *CollectSink) Flush() error { return nil }

// Entries returns a copy of the collected entries.
func (s *CollectSink) Entries() []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// StreamSink buffers entries and forwards them in batches. Batches reach the
// sender in the order they were filled, so an entry is never delivered after
// an entry added later (a parent never lands ahead of its children). The
// buffer lock is released before the possibly blocking send; producers that
// only append keep going while the downstream is slow.
type StreamSink struct {
	mu     sync.Mutex
	buf    []model.Entry
	size   int
	sender BatchSender

	// sendMu is taken while mu is still held, which fixes the send order to
	// the drain order.
	sendMu sync.Mutex
}

// NewStreamSink returns a sink forwarding batches of batchSize entries.
func NewStreamSink(sender BatchSender, batchSize int) *StreamSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &StreamSink{
		buf:    make([]model.Entry, 0, batchSize),
		size:   batchSize,
		sender: sender,
	}
}

func (s *StreamSink) Add(e model.Entry) error {
	s.mu.Lock()
	s.buf = append(s.buf, e)
	if len(s.buf) < s.size {
		s.mu.Unlock()
		return nil
	}
	return s.drainLocked()
}

func (s *StreamSink) Flush() error {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return nil
	}
	return s.drainLocked()
}

// drainLocked swaps out the buffer and sends it. It is called with mu held
// and releases it.
func (s *StreamSink) drainLocked() error {
	batch := s.buf
	s.buf = make([]model.Entry, 0, s.size)
	s.sendMu.Lock()
	s.mu.Unlock()
	defer s.sendMu.Unlock()

	start := time.Now()
	err := s.sender.Send(batch)
	sendWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}
