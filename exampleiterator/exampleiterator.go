// Package exampleiterator is an example type-safe wrapper of loom.NewIterator.
package exampleiterator

import (
	"github.com/tcard/loom"
)

// Foo is the type that a FooIterator yields.
type Foo string

// NewFooIterator wraps loom.NewIterator with a type-safe interface.
func NewFooIterator(f func(co *loom.Coroutine, yield func(Foo) error) error) (*FooIterator, error) {
	it, err := loom.NewIterator(f)
	if err != nil {
		return nil, err
	}
	return &FooIterator{it: it}, nil
}

// A FooIterator holds what's needed to iterate Foos.
type FooIterator struct {
	it *loom.Iterator[Foo]
}

// Next blocks until the next Foo is set on Yielded, or until the
// iterator coroutine returns with a (maybe nil) error, available from
// Returned.
func (fi *FooIterator) Next() bool { return fi.it.Next() }

// Yielded is the Foo value set by the most recent successful Next.
func (fi *FooIterator) Yielded() Foo { return fi.it.Yielded() }

// Returned is the iterator coroutine's result, valid once Next returns false.
func (fi *FooIterator) Returned() error { return fi.it.Returned() }

// Stop cancels the iterator coroutine and drains it to completion.
func (fi *FooIterator) Stop() { fi.it.Stop() }
