package main

import (
	"fmt"
	"os"

	"github.com/nomos-run/nomos/cmd/nomosd/cmd"
	"github.com/nomos-run/nomos/internal/config"
	"github.com/nomos-run/nomos/internal/reporting"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Defer order matters: RecoverAndPanic runs last, after cleanup has
	// flushed any in-flight Sentry events.
	defer reporting.RecoverAndPanic()

	cfg, err := config.Load()
	dsn := ""
	if err == nil {
		dsn = cfg.SentryDSN
	}
	cleanup := reporting.Init(dsn, cmd.Version)
	defer cleanup()

	if err := cmd.Execute(); err != nil {
		reporting.CaptureError(err)
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}
