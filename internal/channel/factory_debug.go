//go:build debug

package channel

// New returns an unbuffered channel, ignoring size. Every send rendezvous
// with a receive, which makes races between producers reproducible.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
