package scanner

import (
	"context"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sadopc/godudb/internal/model"
)

// Summary is the outcome of one walk.
type Summary struct {
	// Stats counts the nodes visited by this walk. Nodes skipped through the
	// skip-set are not included.
	model.Stats
	// Errors counts nodes whose metadata or listing could not be read.
	Errors int64
	// Complete is false when cancellation stopped the walk before the root
	// entry was emitted.
	Complete bool
}

// Walker traverses a directory tree depth-first, emitting one entry per node
// in postorder (children before their parent) so a directory's size can be
// the sum of its children.
type Walker struct {
	fsys FS
	opts Options
	log  *slog.Logger
}

// NewWalker creates a walker over fsys.
func NewWalker(fsys FS, opts Options, logger *slog.Logger) *Walker {
	if fsys == nil {
		fsys = OSFS{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{fsys: fsys, opts: opts, log: logger}
}

// Walk scans root, sending every entry to sink and progress snapshots to
// reporter (which may be nil).
//
// Paths present in skip are neither visited nor emitted; their recorded size
// still counts towards their parent's size. Once token is cancelled no new
// child is started, and any directory whose children were not all processed
// is left unemitted so a later walk with the persisted skip-set re-enters it.
//
// Unreadable nodes never abort the walk. The returned error is non-nil only
// when the sink fails.
func (w *Walker) Walk(root string, skip map[string]int64, token *Token, reporter *Reporter, sink Sink) (Summary, error) {
	if token == nil {
		token = NewToken()
	}
	ws := &walkState{
		fsys:       w.fsys,
		opts:       w.opts,
		log:        w.log,
		root:       root,
		rootPrefix: strings.TrimSuffix(w.fsys.Join(root, "_"), "_"),
		skip:       skip,
		token:      token,
		reporter:   reporter,
		sink:       sink,
		sem:        semaphore.NewWeighted(int64(w.opts.concurrency())),
		threshold:  w.opts.threshold(),
		exclude:    make(map[string]bool, len(w.opts.Exclude)),
		tracker:    newDirTracker(),
		start:      time.Now(),
	}
	for _, name := range w.opts.Exclude {
		ws.exclude[name] = true
	}
	if real, err := w.fsys.RealPath(root); err == nil {
		ws.visited.Store(real, true)
	}

	var (
		complete bool
		err      error
	)
	if size, ok := skip[root]; ok {
		// Root already persisted by an earlier pass; nothing left to do.
		w.log.Debug("root already persisted", "path", root, "size", size)
		complete = true
	} else {
		_, complete, err = ws.walk(root, "", 0, nil)
	}
	if err == nil {
		err = sink.Flush()
	}

	summary := Summary{
		Stats: model.Stats{
			TotalSize:  ws.bytes.Load(),
			TotalFiles: ws.files.Load(),
			TotalDirs:  ws.dirs.Load(),
		},
		Errors:   ws.errs.Load(),
		Complete: complete && err == nil,
	}
	final := ws.snapshot()
	final.Done = true
	reporter.Publish(final)
	return summary, err
}

type walkState struct {
	fsys       FS
	opts       Options
	log        *slog.Logger
	root       string
	rootPrefix string
	skip       map[string]int64
	token      *Token
	reporter   *Reporter
	sink       Sink
	sem        *semaphore.Weighted
	threshold  int
	exclude    map[string]bool
	tracker    *dirTracker
	visited    sync.Map
	start      time.Time

	files, dirs, bytes, errs, entries atomic.Int64
	workers                           atomic.Int64
	current                           atomic.Value // string
}

// walk visits path and everything below it. It returns the node's size,
// whether the node was emitted, and a sink error if one occurred.
func (ws *walkState) walk(path, parent string, depth int, hint fs.DirEntry) (int64, bool, error) {
	info, err := ws.stat(path, hint)
	if err != nil {
		ws.softError("stat", path, err)
		isDir := hint != nil && hint.IsDir()
		if isDir {
			ws.dirs.Add(1)
		} else {
			ws.files.Add(1)
		}
		return 0, true, ws.emit(ws.entry(path, parent, depth, 0, isDir, time.Time{}))
	}

	if !info.IsDir() {
		size := info.Size()
		ws.files.Add(1)
		ws.bytes.Add(size)
		return size, true, ws.emit(ws.entry(path, parent, depth, size, false, info.ModTime()))
	}

	ws.dirs.Add(1)
	if depth > 0 && ws.opts.FollowSymlinks && !ws.firstVisit(path) {
		// Already visited via another path: keep the node, skip recursion so
		// size is not double-counted.
		return 0, true, ws.emit(ws.entry(path, parent, depth, 0, true, info.ModTime()))
	}

	listing, err := ws.fsys.ReadDir(path)
	if err != nil {
		ws.softError("readdir", path, err)
		return 0, true, ws.emit(ws.entry(path, parent, depth, 0, true, info.ModTime()))
	}

	var size int64
	children := make([]fs.DirEntry, 0, len(listing))
	for _, child := range listing {
		name := child.Name()
		// Skip hidden files if not showing them
		if !ws.opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if ws.exclude[name] {
			continue
		}
		if persisted, ok := ws.skip[ws.fsys.Join(path, name)]; ok {
			size += persisted
			continue
		}
		children = append(children, child)
	}

	ws.tracker.enter(path, len(children))
	var childSize int64
	var complete bool
	if len(children) > ws.threshold {
		childSize, complete, err = ws.walkParallel(path, depth, children)
	} else {
		childSize, complete, err = ws.walkSequential(path, depth, children)
	}
	ws.tracker.leave(path)
	if err != nil {
		return 0, false, err
	}
	if !complete {
		return 0, false, nil
	}

	size += childSize
	return size, true, ws.emit(ws.entry(path, parent, depth, size, true, info.ModTime()))
}

func (ws *walkState) walkSequential(path string, depth int, children []fs.DirEntry) (int64, bool, error) {
	var size int64
	complete := true
	for _, child := range children {
		if ws.token.Cancelled() {
			return size, false, nil
		}
		s, ok, err := ws.walk(ws.fsys.Join(path, child.Name()), path, depth+1, child)
		if err != nil {
			return 0, false, err
		}
		size += s
		if !ok {
			complete = false
		}
		ws.tracker.advance(path)
	}
	return size, complete, nil
}

// walkParallel processes children as a bounded fork-join. Children only run
// on a new goroutine while the global semaphore has room; otherwise they run
// inline, so nested fan-outs can never deadlock waiting on each other.
func (ws *walkState) walkParallel(path string, depth int, children []fs.DirEntry) (int64, bool, error) {
	g, gctx := errgroup.WithContext(context.Background())
	sizes := make([]int64, len(children))
	var incomplete atomic.Bool

	for i, child := range children {
		if ws.token.Cancelled() {
			incomplete.Store(true)
			break
		}
		if gctx.Err() != nil {
			break
		}
		childPath := ws.fsys.Join(path, child.Name())
		run := func() error {
			s, ok, err := ws.walk(childPath, path, depth+1, child)
			if err != nil {
				return err
			}
			sizes[i] = s
			if !ok {
				incomplete.Store(true)
			}
			ws.tracker.advance(path)
			return nil
		}

		if ws.sem.TryAcquire(1) {
			g.Go(func() error {
				defer ws.sem.Release(1)
				ws.workers.Add(1)
				activeWorkers.Inc()
				defer func() {
					ws.workers.Add(-1)
					activeWorkers.Dec()
				}()
				return run()
			})
			continue
		}
		if err := run(); err != nil {
			_ = g.Wait()
			return 0, false, err
		}
	}

	if err := g.Wait(); err != nil {
		return 0, false, err
	}
	var size int64
	for _, s := range sizes {
		size += s
	}
	return size, !incomplete.Load(), nil
}

// stat prefers the listing's own metadata, which costs nothing extra on most
// local filesystems and saves a round trip on remote ones.
func (ws *walkState) stat(path string, hint fs.DirEntry) (fs.FileInfo, error) {
	if ws.opts.FollowSymlinks {
		return ws.fsys.Stat(path)
	}
	if hint != nil {
		return hint.Info()
	}
	return ws.fsys.Lstat(path)
}

// firstVisit reports whether the real directory behind path has not been
// descended yet. Symlink targets inside the scan root are always reported
// as visited: the canonical in-tree directory is scanned by normal traversal.
func (ws *walkState) firstVisit(path string) bool {
	real, err := ws.fsys.RealPath(path)
	if err != nil {
		return true
	}
	if real != path && (real == ws.root || strings.HasPrefix(real, ws.rootPrefix)) {
		return false
	}
	_, loaded := ws.visited.LoadOrStore(real, true)
	return !loaded
}

func (ws *walkState) entry(path, parent string, depth int, size int64, isDir bool, mtime time.Time) model.Entry {
	name := path
	if depth > 0 {
		name = ws.fsys.Base(path)
	}
	return model.Entry{
		Path:       path,
		Name:       name,
		ParentPath: parent,
		Size:       size,
		IsDir:      isDir,
		ModTime:    mtime,
		Depth:      depth,
	}
}

func (ws *walkState) emit(e model.Entry) error {
	if err := ws.sink.Add(e); err != nil {
		return err
	}
	ws.entries.Add(1)
	ws.current.Store(e.Path)
	if e.IsDir {
		entriesEmitted.WithLabelValues("dir").Inc()
	} else {
		entriesEmitted.WithLabelValues("file").Inc()
	}
	ws.reporter.maybe(ws.snapshot)
	return nil
}

func (ws *walkState) softError(op, path string, err error) {
	ws.errs.Add(1)
	softErrors.Inc()
	ws.log.Debug("unreadable node", "op", op, "path", path, "err", err)
}

func (ws *walkState) snapshot() Progress {
	current, _ := ws.current.Load().(string)
	return Progress{
		EntriesScanned: ws.entries.Load(),
		FilesScanned:   ws.files.Load(),
		DirsScanned:    ws.dirs.Load(),
		BytesFound:     ws.bytes.Load(),
		Errors:         ws.errs.Load(),
		ActiveDirs:     ws.tracker.snapshot(),
		ActiveWorkers:  int(ws.workers.Load()),
		CurrentPath:    current,
		StartTime:      ws.start,
		Duration:       time.Since(ws.start),
	}
}
