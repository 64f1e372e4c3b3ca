//go:build !debug

package channel

// New returns a buffered channel of the given size. Debug builds swap in an
// unbuffered channel so ordering bugs surface immediately.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
