package exampleiterator

import (
	"errors"
	"fmt"

	"github.com/tcard/loom"
)

func Example() {
	iter, err := NewFooIterator(func(co *loom.Coroutine, yield func(Foo) error) error {
		for _, foo := range []Foo{"foo", "bar", "baz"} {
			if err := yield(foo); err != nil {
				return err
			}
		}
		return errors.New("done")
	})
	if err != nil {
		panic(err)
	}

	for iter.Next() {
		fmt.Println("yielded:", iter.Yielded())
	}
	fmt.Println("returned:", iter.Returned())

	// Output:
	// yielded: foo
	// yielded: bar
	// yielded: baz
	// returned: done
}
