// Package lifecycle creates, runs, pauses, resumes and recovers scans.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/godudb/internal/model"
	"github.com/sadopc/godudb/internal/persist"
	"github.com/sadopc/godudb/internal/scanner"
	"github.com/sadopc/godudb/internal/store"
)

var (
	// ErrNotPaused is returned when resuming a scan that is not paused.
	ErrNotPaused = errors.New("scan is not paused")
	// ErrScanActive is returned when an operation targets a scan this
	// controller is still running.
	ErrScanActive = errors.New("scan is active")
)

var _ scanner.BatchSender = (*persist.Actor)(nil)

// DefaultLeaseTTL is how long a runner's lease outlives its last renewal.
const DefaultLeaseTTL = 30 * time.Second

// Store is everything the controller needs from durable storage.
type Store interface {
	persist.EntryWriter
	CreateScan(ctx context.Context, rootPath, runner string) (int64, error)
	GetScan(ctx context.Context, id int64) (model.Scan, error)
	ListScans(ctx context.Context) ([]model.Scan, error)
	CompleteScan(ctx context.Context, id int64, stats model.Stats) error
	PauseScan(ctx context.Context, id int64, stats model.Stats) error
	ResumeScan(ctx context.Context, id int64, runner string) error
	FailScan(ctx context.Context, id int64) error
	DeleteScan(ctx context.Context, id int64) error
	EntryStats(ctx context.Context, id int64) (model.Stats, error)
	ScannedPaths(ctx context.Context, id int64) (map[string]int64, error)
	RenewLease(ctx context.Context, runner string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, runner string) error
	LiveRunners(ctx context.Context) (map[string]bool, error)
}

// Options configures a Controller.
type Options struct {
	// BatchSize is the number of entries per persisted batch.
	BatchSize int
	// MailboxCapacity is the number of batches buffered before the walker blocks.
	MailboxCapacity int
	// ProgressBuffer is the capacity of each handle's progress channel.
	ProgressBuffer int
	Walker         scanner.Options
	// Open resolves scan roots. Defaults to OpenLocal.
	Open OpenFunc
	// LeaseTTL bounds how long scans of a crashed process stay protected
	// from recovery. The lease is renewed every LeaseTTL/3 while any scan
	// runs.
	LeaseTTL time.Duration
	Logger   *slog.Logger
}

// Result is the final state of one scan run.
type Result struct {
	ScanID int64
	Status model.Status
	Stats  model.Stats
	// Errors counts unreadable nodes met by this run.
	Errors int64
}

// Controller runs scans against a Store. One controller may run several
// scans at once, each with its own actor and walker.
type Controller struct {
	store  Store
	opts   Options
	runner string
	log    *slog.Logger

	mu     sync.Mutex
	active map[int64]*Handle
	// starting counts StartScan calls that hold the lease but have not
	// registered their handle yet.
	starting int
	beat     *heartbeat
}

// New creates a controller. Each controller stamps the scans it runs with a
// fresh runner id.
func New(st Store, opts Options) *Controller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = scanner.DefaultBatchSize
	}
	if opts.MailboxCapacity <= 0 {
		opts.MailboxCapacity = persist.DefaultCapacity
	}
	if opts.Open == nil {
		opts.Open = OpenLocal
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	runner := uuid.NewString()
	return &Controller{
		store:  st,
		opts:   opts,
		runner: runner,
		log:    opts.Logger.With("runner", runner),
		active: make(map[int64]*Handle),
	}
}

// Runner returns the id stamped on scans this controller runs.
func (c *Controller) Runner() string { return c.runner }

// StartScan creates a scan record for root and starts walking it.
func (c *Controller) StartScan(ctx context.Context, root string) (*Handle, error) {
	c.mu.Lock()
	c.starting++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.starting--
		c.dropLeaseIfIdleLocked()
		c.mu.Unlock()
	}()

	src, err := c.opts.Open(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("open scan root: %w", err)
	}
	if err := c.holdLease(ctx); err != nil {
		src.close(c.log)
		return nil, err
	}
	id, err := c.store.CreateScan(ctx, src.Location, c.runner)
	if err != nil {
		src.close(c.log)
		return nil, fmt.Errorf("create scan: %w", err)
	}

	h := c.newHandle(id, src.Location, false)
	c.mu.Lock()
	c.active[id] = h
	c.mu.Unlock()

	c.log.Info("scan started", "scan_id", id, "root", src.Location)
	c.launch(ctx, h, src, nil, model.Stats{})
	return h, nil
}

// ResumeScan continues a paused scan under the same id. Everything already
// persisted is skipped; the final counters cover the whole tree.
func (c *Controller) ResumeScan(ctx context.Context, id int64) (*Handle, error) {
	c.mu.Lock()
	if _, ok := c.active[id]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("resume scan %d: %w", id, ErrScanActive)
	}
	// Reserve the id so a concurrent resume of the same scan fails fast.
	c.active[id] = nil
	c.mu.Unlock()

	h, err := c.resume(ctx, id)
	if err != nil {
		c.release(id)
		return nil, err
	}
	return h, nil
}

func (c *Controller) resume(ctx context.Context, id int64) (*Handle, error) {
	scan, err := c.store.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scan.Status.Resumable() {
		return nil, fmt.Errorf("resume scan %d (%s): %w", id, scan.Status, ErrNotPaused)
	}

	src, err := c.opts.Open(ctx, scan.RootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if ferr := c.store.FailScan(ctx, id); ferr != nil {
				c.log.Warn("could not mark scan failed", "scan_id", id, "err", ferr)
			}
		}
		return nil, fmt.Errorf("open scan root: %w", err)
	}

	skip, err := c.store.ScannedPaths(ctx, id)
	if err != nil {
		src.close(c.log)
		return nil, err
	}
	baseline, err := c.store.EntryStats(ctx, id)
	if err != nil {
		src.close(c.log)
		return nil, err
	}
	// The lease must be live before the record names this runner.
	if err := c.holdLease(ctx); err != nil {
		src.close(c.log)
		return nil, err
	}
	if err := c.store.ResumeScan(ctx, id, c.runner); err != nil {
		src.close(c.log)
		return nil, err
	}

	h := c.newHandle(id, scan.RootPath, true)
	h.Skipped = len(skip)
	c.mu.Lock()
	c.active[id] = h
	c.mu.Unlock()

	c.log.Info("scan resumed", "scan_id", id, "root", scan.RootPath, "persisted", len(skip))
	c.launch(ctx, h, src, skip, baseline)
	return h, nil
}

// launch wires actor, sink and walker for one run and finalizes the record
// when both have stopped. The run is detached from ctx cancellation: pausing
// goes through the handle's token so the record always ends up consistent.
func (c *Controller) launch(ctx context.Context, h *Handle, src Source, skip map[string]int64, baseline model.Stats) {
	runCtx := context.WithoutCancel(ctx)
	log := c.log.With("scan_id", h.ScanID)

	actor := persist.New(c.store, h.ScanID, c.opts.MailboxCapacity, log)
	actor.Start(runCtx)
	sink := scanner.NewStreamSink(actor, c.opts.BatchSize)
	walker := scanner.NewWalker(src.FS, c.opts.Walker, log)

	go func() {
		defer close(h.done)
		defer c.release(h.ScanID)
		defer src.close(log)

		summary, walkErr := walker.Walk(src.Root, skip, h.token, h.reporter, sink)
		h.reporter.Close()
		actor.Shutdown()
		actorErr := actor.Wait()

		h.result, h.err = c.finalize(runCtx, log, h.ScanID, baseline, summary, walkErr, actorErr)
	}()
}

func (c *Controller) finalize(ctx context.Context, log *slog.Logger, id int64, baseline model.Stats,
	summary scanner.Summary, walkErr, actorErr error) (Result, error) {
	res := Result{ScanID: id, Status: model.StatusRunning, Stats: baseline.Add(summary.Stats), Errors: summary.Errors}

	// A failed actor usually surfaces in the walker as ErrChannelClosed;
	// report the root cause first.
	if err := errors.Join(actorErr, walkErr); err != nil {
		log.Error("scan aborted, record left running for recovery", "err", err)
		return res, err
	}

	if !summary.Complete {
		persisted, err := c.store.EntryStats(ctx, id)
		if err != nil {
			return res, err
		}
		if err := c.store.PauseScan(ctx, id, persisted); err != nil {
			return res, err
		}
		res.Status, res.Stats = model.StatusPaused, persisted
		log.Info("scan paused", "files", persisted.TotalFiles, "dirs", persisted.TotalDirs, "size", persisted.TotalSize)
		return res, nil
	}

	if err := c.store.CompleteScan(ctx, id, res.Stats); err != nil {
		return res, err
	}
	res.Status = model.StatusCompleted
	log.Info("scan completed", "files", res.Stats.TotalFiles, "dirs", res.Stats.TotalDirs,
		"size", res.Stats.TotalSize, "errors", summary.Errors)
	return res, nil
}

// Recover pauses every running scan that no live controller owns, with
// counters recomputed from its persisted entries. Scans of another runner
// whose lease has not expired are left alone. It returns how many scans
// were recovered.
func (c *Controller) Recover(ctx context.Context) (int, error) {
	scans, err := c.store.ListScans(ctx)
	if err != nil {
		return 0, err
	}
	live, err := c.store.LiveRunners(ctx)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, scan := range scans {
		if !scan.Orphaned() || c.isActive(scan.ID) {
			continue
		}
		if scan.Runner != c.runner && live[scan.Runner] {
			c.log.Debug("scan owned by a live runner, not recovering", "scan_id", scan.ID, "owner", scan.Runner)
			continue
		}
		stats, err := c.store.EntryStats(ctx, scan.ID)
		if err != nil {
			return recovered, err
		}
		if err := c.store.PauseScan(ctx, scan.ID, stats); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				// Finished or paused by its owner in the meantime.
				continue
			}
			return recovered, err
		}
		c.log.Info("recovered interrupted scan", "scan_id", scan.ID, "root", scan.RootPath,
			"previous_runner", scan.Runner, "files", stats.TotalFiles, "dirs", stats.TotalDirs)
		recovered++
	}
	return recovered, nil
}

// ListScans recovers orphaned scans, then lists every scan newest first.
func (c *Controller) ListScans(ctx context.Context) ([]model.Scan, error) {
	if _, err := c.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recover scans: %w", err)
	}
	return c.store.ListScans(ctx)
}

// GetScan loads one scan record.
func (c *Controller) GetScan(ctx context.Context, id int64) (model.Scan, error) {
	return c.store.GetScan(ctx, id)
}

// DeleteScan removes a scan and its entries. Active scans are refused.
func (c *Controller) DeleteScan(ctx context.Context, id int64) error {
	if c.isActive(id) {
		return fmt.Errorf("delete scan %d: %w", id, ErrScanActive)
	}
	return c.store.DeleteScan(ctx, id)
}

// Cancel requests that the scan behind h pause.
func (c *Controller) Cancel(h *Handle) {
	h.Cancel()
}

// Active returns the ids of scans currently running in this controller.
func (c *Controller) Active() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.active))
	for id, h := range c.active {
		if h != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Controller) isActive(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[id]
	return ok
}

func (c *Controller) release(id int64) {
	c.mu.Lock()
	delete(c.active, id)
	c.dropLeaseIfIdleLocked()
	c.mu.Unlock()
}

func (c *Controller) newHandle(id int64, root string, resumed bool) *Handle {
	return &Handle{
		ScanID:   id,
		Root:     root,
		Resumed:  resumed,
		token:    scanner.NewToken(),
		reporter: scanner.NewReporter(c.opts.ProgressBuffer),
		done:     make(chan struct{}),
	}
}
