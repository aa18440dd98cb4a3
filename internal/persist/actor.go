// Package persist owns the single writer that moves walker batches into the
// entry store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sadopc/godudb/internal/model"
)

// DefaultCapacity is the number of batches the mailbox holds before senders
// block.
const DefaultCapacity = 100

// ErrChannelClosed is returned by Send once the actor has stopped receiving.
var ErrChannelClosed = errors.New("persistence mailbox closed")

// StorageError reports a batch the store rejected. The actor stops after
// the first one.
type StorageError struct {
	ScanID  int64
	Entries int
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("persist %d entries for scan %d: %v", e.Entries, e.ScanID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// EntryWriter stores one batch atomically.
type EntryWriter interface {
	InsertEntries(ctx context.Context, scanID int64, entries []model.Entry) error
}

// MessageKind tags mailbox messages.
type MessageKind int

const (
	InsertBatch MessageKind = iota
	Shutdown
)

// Message is one mailbox item.
type Message struct {
	Kind    MessageKind
	Entries []model.Entry
}

// Actor drains its mailbox on one goroutine, so the store only ever sees a
// single writer per scan. Messages are processed in arrival order.
type Actor struct {
	writer EntryWriter
	scanID int64
	log    *slog.Logger
	inbox  chan Message
	done   chan struct{}
	err    error // written before done is closed
}

// New creates an actor for scanID with a mailbox of capacity batches.
func New(writer EntryWriter, scanID int64, capacity int, logger *slog.Logger) *Actor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		writer: writer,
		scanID: scanID,
		log:    logger.With("scan_id", scanID),
		inbox:  make(chan Message, capacity),
		done:   make(chan struct{}),
	}
}

// Start runs the actor on its own goroutine.
func (a *Actor) Start(ctx context.Context) {
	go func() { _ = a.Run(ctx) }()
}

// Run processes messages until Shutdown, a storage failure, or ctx ends.
// It must be called at most once.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)

	var batches, written int
	for {
		select {
		case msg := <-a.inbox:
			mailboxDepth.Set(float64(len(a.inbox)))
			switch msg.Kind {
			case Shutdown:
				a.log.Debug("persistence actor drained", "batches", batches, "entries", written)
				return nil
			case InsertBatch:
				if len(msg.Entries) == 0 {
					continue
				}
				if err := a.insert(ctx, msg.Entries); err != nil {
					a.err = &StorageError{ScanID: a.scanID, Entries: len(msg.Entries), Err: err}
					a.log.Error("batch insert failed", "err", err)
					return a.err
				}
				batches++
				written += len(msg.Entries)
			}
		case <-ctx.Done():
			a.err = ctx.Err()
			return a.err
		}
	}
}

func (a *Actor) insert(ctx context.Context, entries []model.Entry) error {
	start := time.Now()
	err := a.writer.InsertEntries(ctx, a.scanID, entries)
	insertSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		batchesWritten.WithLabelValues("error").Inc()
		return err
	}
	batchesWritten.WithLabelValues("ok").Inc()
	entriesWritten.Add(float64(len(entries)))
	return nil
}

// Send enqueues a batch, blocking while the mailbox is full. It returns
// ErrChannelClosed if the actor has already stopped.
func (a *Actor) Send(batch []model.Entry) error {
	select {
	case <-a.done:
		return ErrChannelClosed
	default:
	}
	select {
	case a.inbox <- Message{Kind: InsertBatch, Entries: batch}:
		mailboxDepth.Set(float64(len(a.inbox)))
		return nil
	case <-a.done:
		return ErrChannelClosed
	}
}

// Shutdown asks the actor to stop once every batch sent before it has been
// written. It does not wait; use Wait.
func (a *Actor) Shutdown() {
	select {
	case a.inbox <- Message{Kind: Shutdown}:
	case <-a.done:
	}
}

// Done is closed when the actor has stopped.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the actor stops and returns its terminal error.
func (a *Actor) Wait() error {
	<-a.done
	return a.err
}
