// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iterator

// ForSlice returns an iterator over a slice.
func ForSlice[V any](s []V) Interface[int, V] {
	return &sliceIterator[V]{
		s: s,
	}
}

// sliceIterator implements iterator.Interface.
type sliceIterator[V any] struct {
	s []V
	n int
}

// Next implements iterator.Interface.
func (iter *sliceIterator[V]) Next() (int, V, error) {
	var zero V
	if iter.n >= len(iter.s) {
		return 0, zero, ErrIteratorDone
	}

	n := iter.n
	iter.n++

	return n, iter.s[n], nil
}

// Close implements iterator.Interface.
func (iter *sliceIterator[V]) Close() {
	iter.n = len(iter.s)
}

// NextFunc is a part of Interface for the next method.
type NextFunc[K, V any] func() (K, V, error)

// ForFunc returns an iterator for the given function.
//
// Once the function returns an error (including ErrIteratorDone), Next always returns ErrIteratorDone.
// cleanup is called once, on Close or when the function returns an error; it may be nil.
func ForFunc[K, V any](next NextFunc[K, V], cleanup func()) Interface[K, V] {
	return &funcIterator[K, V]{
		next:    next,
		cleanup: cleanup,
	}
}

// funcIterator implements iterator.Interface.
type funcIterator[K, V any] struct {
	next    NextFunc[K, V]
	cleanup func()
	done    bool
}

// Next implements iterator.Interface.
func (iter *funcIterator[K, V]) Next() (K, V, error) {
	var k K
	var v V

	if iter.done {
		return k, v, ErrIteratorDone
	}

	k, v, err := iter.next()
	if err != nil {
		iter.Close()
	}

	return k, v, err
}

// Close implements iterator.Interface.
func (iter *funcIterator[K, V]) Close() {
	if iter.done {
		return
	}

	iter.done = true

	if iter.cleanup != nil {
		iter.cleanup()
	}
}

// check interfaces
var (
	_ Interface[int, any]    = (*sliceIterator[any])(nil)
	_ Interface[string, any] = (*funcIterator[string, any])(nil)
)
