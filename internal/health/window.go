package health

import "sync"

// ErrorWindow is a rolling boolean sequence of the last W health results,
// used only to compute error_rate. FIFO eviction once full. Safe for
// concurrent use, though in practice only the metric producer's single tick
// goroutine ever touches it.
type ErrorWindow struct {
	mu       sync.Mutex
	size     int
	entries  []bool
	errCount int
}

// NewErrorWindow creates a window holding at most size entries. A
// non-positive size falls back to a default of 20.
func NewErrorWindow(size int) *ErrorWindow {
	if size <= 0 {
		size = 20
	}
	return &ErrorWindow{size: size, entries: make([]bool, 0, size)}
}

// Push records whether the latest health probe counted as an error, evicting
// the oldest entry once the window is full, and returns the updated error
// rate as a percentage in [0, 100].
func (w *ErrorWindow) Push(isError bool) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) >= w.size {
		if w.entries[0] {
			w.errCount--
		}
		w.entries = w.entries[1:]
	}
	w.entries = append(w.entries, isError)
	if isError {
		w.errCount++
	}

	if len(w.entries) == 0 {
		return 0
	}
	return 100 * float64(w.errCount) / float64(len(w.entries))
}
