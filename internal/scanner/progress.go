package scanner

import (
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// progressEvery and progressInterval throttle snapshot emission.
	progressEvery    = 100
	progressInterval = 100 * time.Millisecond
	// DefaultProgressBuffer is the reporter channel capacity.
	DefaultProgressBuffer = 16
)

// DirProgress describes one directory whose children are being processed.
type DirProgress struct {
	Path  string
	Done  int
	Total int
}

// Fraction returns the completed share of the directory's children.
func (d DirProgress) Fraction() float64 {
	if d.Total == 0 {
		return 1
	}
	return float64(d.Done) / float64(d.Total)
}

// Progress reports scanning progress. Snapshots are coarse: the counters are
// read without a global lock and may be slightly behind each other.
type Progress struct {
	// EntriesScanned is the number of entries emitted so far.
	EntriesScanned int64
	// FilesScanned is the total files visited so far.
	FilesScanned int64
	// DirsScanned is the total directories visited so far.
	DirsScanned int64
	// BytesFound is the total file bytes found so far.
	BytesFound int64
	// Errors is the count of unreadable nodes.
	Errors int64
	// ActiveDirs lists in-flight directories, sorted by path.
	ActiveDirs []DirProgress
	// ActiveWorkers approximates the fan-out goroutines currently running.
	ActiveWorkers int
	// CurrentPath is the most recently emitted path.
	CurrentPath string
	// Done indicates scanning is complete.
	Done bool
	// StartTime is when the scan began.
	StartTime time.Time
	// Duration is elapsed time.
	Duration time.Duration
}

// ItemsPerSecond returns the scan rate.
func (p Progress) ItemsPerSecond() float64 {
	if p.Duration.Seconds() == 0 {
		return 0
	}
	return float64(p.FilesScanned+p.DirsScanned) / p.Duration.Seconds()
}

// Reporter is a lossy one-way progress channel. Snapshots that do not fit
// in the buffer are dropped; the consumer reads the latest one it can get.
// A nil *Reporter discards everything.
type Reporter struct {
	ch        chan Progress
	sometimes rate.Sometimes
	closeOnce sync.Once
}

// NewReporter creates a reporter with the given channel capacity.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = DefaultProgressBuffer
	}
	return &Reporter{
		ch:        make(chan Progress, buffer),
		sometimes: rate.Sometimes{First: 1, Every: progressEvery, Interval: progressInterval},
	}
}

// C returns the receive side of the channel.
func (r *Reporter) C() <-chan Progress {
	if r == nil {
		return nil
	}
	return r.ch
}

// maybe publishes the snapshot built by snap when the throttle allows it.
func (r *Reporter) maybe(snap func() Progress) {
	if r == nil {
		return
	}
	r.sometimes.Do(func() { r.Publish(snap()) })
}

// Publish offers p without blocking.
func (r *Reporter) Publish(p Progress) {
	if r == nil {
		return
	}
	select {
	case r.ch <- p:
	default:
		// Drop if channel full
	}
}

// Close closes the channel. Only the producer side may call it, once every
// publisher has returned.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() { close(r.ch) })
}

// dirTracker records which directories are mid-way through their children.
type dirTracker struct {
	mu   sync.Mutex
	dirs map[string]*DirProgress
}

func newDirTracker() *dirTracker {
	return &dirTracker{dirs: make(map[string]*DirProgress)}
}

func (t *dirTracker) enter(path string, total int) {
	t.mu.Lock()
	t.dirs[path] = &DirProgress{Path: path, Total: total}
	t.mu.Unlock()
}

func (t *dirTracker) advance(path string) {
	t.mu.Lock()
	if d, ok := t.dirs[path]; ok {
		d.Done++
	}
	t.mu.Unlock()
}

func (t *dirTracker) leave(path string) {
	t.mu.Lock()
	delete(t.dirs, path)
	t.mu.Unlock()
}

func (t *dirTracker) snapshot() []DirProgress {
	t.mu.Lock()
	out := make([]DirProgress, 0, len(t.dirs))
	for _, d := range t.dirs {
		out = append(out, *d)
	}
	t.mu.Unlock()
	slices.SortFunc(out, func(a, b DirProgress) int { return strings.Compare(a.Path, b.Path) })
	return out
}
