package loom

import (
	"sync"

	"github.com/rs/zerolog"
)

// logger is the package-level structured-logging sink. It defaults to a
// no-op logger so that importing loom never obligates the host program
// to configure logging; call SetLogger to wire a real one.
var logger struct {
	sync.RWMutex
	l zerolog.Logger
}

func init() {
	logger.l = zerolog.Nop()
}

// SetLogger installs the zerolog.Logger used for loom's internal
// diagnostics: coroutine spawn and termination, coroutine body errors
// and panics, and reactor wait errors. It is safe to call concurrently
// with a running Scheduler. Passing the zero value disables logging.
func SetLogger(l zerolog.Logger) {
	logger.Lock()
	defer logger.Unlock()
	logger.l = l
}

func log() *zerolog.Logger {
	logger.RLock()
	defer logger.RUnlock()
	l := logger.l
	return &l
}
