// Package reporting wraps sentry-go's top-level panic/error capture for
// cmd/nomosd.
package reporting

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Init initializes the Sentry SDK with the given DSN and release version.
// An empty dsn disables Sentry entirely (no-op). Returns a cleanup function
// that should be deferred.
func Init(dsn, version string) func() {
	if dsn == "" {
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "nomosd@" + version,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return func() {}
	}

	return func() {
		sentry.Flush(flushTimeout)
	}
}

// CaptureError reports an error to Sentry if initialized. Safe to call
// even when Sentry was never configured.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// RecoverAndPanic recovers from a panic, reports it to Sentry, then
// re-panics. Defer this at a goroutine's top level — deferred before any
// cleanup that should still run first (LIFO order).
func RecoverAndPanic() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(flushTimeout)
		panic(r)
	}
}
