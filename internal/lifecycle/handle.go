package lifecycle

import (
	"github.com/sadopc/godudb/internal/scanner"
)

// Handle is the caller's view of one running scan.
type Handle struct {
	ScanID  int64
	Root    string
	Resumed bool
	// Skipped is the number of already persisted entries a resumed run skips.
	Skipped int

	token    *scanner.Token
	reporter *scanner.Reporter
	done     chan struct{}
	result   Result // set before done is closed
	err      error
}

// Token returns the scan's cancellation token.
func (h *Handle) Token() *scanner.Token { return h.token }

// Cancel asks the scan to pause. The record becomes paused once the walker
// has unwound and every accepted batch is written.
func (h *Handle) Cancel() { h.token.Cancel() }

// Progress returns the lossy snapshot channel. It is closed when the walk
// ends, before the record is finalized.
func (h *Handle) Progress() <-chan scanner.Progress { return h.reporter.C() }

// Done is closed once the scan record has been finalized.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the scan has finished and returns its outcome.
func (h *Handle) Wait() (Result, error) {
	<-h.done
	return h.result, h.err
}
