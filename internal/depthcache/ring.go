package depthcache

// entry is one buffered value plus its use count.
type entry[T any] struct {
	value T
	uses  int
}

// ring is a fixed-capacity sliding window; pushing into a full ring
// overwrites the oldest entry.
type ring[T any] struct {
	buf  []entry[T]
	head int // next write slot
	n    int
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{buf: make([]entry[T], capacity)}
}

func (r *ring[T]) push(v T) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.head] = entry[T]{value: v}
	r.head = (r.head + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// at returns the entry rev steps back from the newest; rev 0 is newest.
func (r *ring[T]) at(rev int) (*entry[T], bool) {
	if rev < 0 || rev >= r.n {
		return nil, false
	}
	i := (r.head - 1 - rev + 2*len(r.buf)) % len(r.buf)
	return &r.buf[i], true
}

func (r *ring[T]) len() int { return r.n }
