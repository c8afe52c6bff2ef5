package downloader

import (
	"io"
	"sync/atomic"
	"time"
)

// idleTimeoutReader cancels the request when no Read completes within timeout.
// Each successful Read pushes the deadline out again, so slow but steady
// transfers are never cut off.
type idleTimeoutReader struct {
	r        io.Reader
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleTimeoutReader(r io.Reader, timeout time.Duration, cancel func()) *idleTimeoutReader {
	ir := &idleTimeoutReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.timedOut.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

// Stop releases the timer.
func (ir *idleTimeoutReader) Stop() { ir.timer.Stop() }

// TimedOut reports whether the idle deadline fired.
func (ir *idleTimeoutReader) TimedOut() bool { return ir.timedOut.Load() }
