package bleproxy

import (
	"fmt"
	"runtime/debug"

	"github.com/op/go-logging"
)

// RecoverToLog runs f, logging and swallowing any panic instead of
// letting it take down the daemon. Every long-running goroutine in
// this proxy (the worker pool, the reassembly GC sweep, the device
// connection watcher) runs under this guard rather than only the
// request-handling path, since a peripheral exposed to untrusted BLE
// input has no business dying on a single malformed write. tracker may
// be nil; when non-nil, a recovered panic also increments its
// panic counter, exposed via Tracker.Registry() rather than the status
// JSON, so a crashed-and-restarted goroutine still shows up somewhere
// instead of silently vanishing.
func RecoverToLog(f func(), log *logging.Logger, tracker *Tracker) {
	defer func() {
		if x := recover(); x != nil {
			if log != nil {
				log.Error(fmt.Sprintf("run time panic: %v", x))
				log.Error(string(debug.Stack()))
			}
			if tracker != nil {
				tracker.RecordPanic()
			}
		}
	}()
	f()
}
