package loom

import (
	"context"

	"github.com/rs/zerolog"
)

// SchedulerOption configures a Scheduler at construction time, in the
// same functional-options style as eventloop.LoopOption.
type SchedulerOption interface {
	applyScheduler(*schedulerConfig)
}

type schedulerConfig struct {
	logger *zerolog.Logger
}

type schedulerOptionFunc func(*schedulerConfig)

func (f schedulerOptionFunc) applyScheduler(c *schedulerConfig) { f(c) }

// WithSchedulerLogger overrides the structured-logging sink for a
// single Scheduler instance's coroutine spawn and termination lines,
// instead of the package-wide default installed by SetLogger. Body
// errors, body panics and reactor wait errors are still logged to the
// package-wide logger.
func WithSchedulerLogger(l zerolog.Logger) SchedulerOption {
	return schedulerOptionFunc(func(c *schedulerConfig) { c.logger = &l })
}

// CoroutineOption configures an individual coroutine at spawn time.
type CoroutineOption interface {
	applyCoroutine(*coroutineConfig)
}

type coroutineConfig struct {
	name      string
	stackHint int
	killCtx   context.Context
}

type coroutineOptionFunc func(*coroutineConfig)

func (f coroutineOptionFunc) applyCoroutine(c *coroutineConfig) { f(c) }

// WithName attaches a human-readable label to a coroutine, surfaced in
// the structured log line recorded when it is spawned.
func WithName(name string) CoroutineOption {
	return coroutineOptionFunc(func(c *coroutineConfig) { c.name = name })
}

// WithStackHint records an advisory stack-size hint in bytes. loom's
// coroutines run on real goroutines, whose stacks the Go runtime grows
// and shrinks automatically, so the hint has no functional effect; it
// exists so code ported from a stackful-coroutine runtime with a
// fixed-size mmap'd stack compiles unchanged and documents intent.
func WithStackHint(bytes int) CoroutineOption {
	return coroutineOptionFunc(func(c *coroutineConfig) { c.stackHint = bytes })
}

// WithContext arranges for the coroutine to be cancelled as soon as ctx
// is done, generalized
// to a scheduler's many coroutines. The watcher goroutine it starts
// exits as soon as either ctx is done or the coroutine finishes on its
// own, whichever comes first.
func WithContext(ctx context.Context) CoroutineOption {
	return coroutineOptionFunc(func(c *coroutineConfig) { c.killCtx = ctx })
}
