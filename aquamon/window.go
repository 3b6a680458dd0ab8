package aquamon

// Window is a fixed-capacity ring of the most recent concentration samples in
// chronological order. It is not safe for concurrent use.
type Window struct {
	buf  []ConcentrationSample
	head int // index of the oldest sample
	n    int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic("aquamon: window capacity must be positive")
	}
	return &Window{buf: make([]ConcentrationSample, capacity)}
}

// Push appends s, evicting the oldest sample once the window is at capacity.
func (w *Window) Push(s ConcentrationSample) {
	if w.n < len(w.buf) {
		w.buf[(w.head+w.n)%len(w.buf)] = s
		w.n++
		return
	}
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
}

func (w *Window) Len() int { return w.n }

func (w *Window) Cap() int { return len(w.buf) }

func (w *Window) IsFull() bool { return w.n == len(w.buf) }

// At returns the i-th sample, 0 being the oldest.
func (w *Window) At(i int) ConcentrationSample {
	if i < 0 || i >= w.n {
		panic("aquamon: window index out of range")
	}
	return w.buf[(w.head+i)%len(w.buf)]
}

// Latest returns the newest sample, if any.
func (w *Window) Latest() (ConcentrationSample, bool) {
	if w.n == 0 {
		return ConcentrationSample{}, false
	}
	return w.At(w.n - 1), true
}

// Sequence copies the samples oldest-first into dst, reusing its capacity. It
// returns false and dst untouched unless the window is full.
func (w *Window) Sequence(dst []ConcentrationSample) ([]ConcentrationSample, bool) {
	if !w.IsFull() {
		return dst, false
	}
	dst = dst[:0]
	dst = append(dst, w.buf[w.head:]...)
	dst = append(dst, w.buf[:w.head]...)
	return dst, true
}
