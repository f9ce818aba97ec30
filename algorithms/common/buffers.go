package common

import (
	"fmt"
)

// Ring is a fixed-capacity FIFO of float64 values. Once full, every Push
// evicts and returns the oldest value. It never reallocates.
type Ring struct {
	buffer   []float64
	size     int
	writePos int
	count    int
}

// NewRing creates a ring holding at most size values
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Push appends v as the newest value. When the ring was already full the
// oldest value is overwritten and returned with evicted == true.
func (r *Ring) Push(v float64) (oldest float64, evicted bool) {
	if r.count == r.size {
		oldest = r.buffer[r.writePos]
		evicted = true
	} else {
		r.count++
	}
	r.buffer[r.writePos] = v
	r.writePos = (r.writePos + 1) % r.size
	return oldest, evicted
}

// Oldest returns the value that the next Push on a full ring would evict
func (r *Ring) Oldest() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	readPos := (r.writePos - r.count + r.size) % r.size
	return r.buffer[readPos], true
}

// Values copies the stored values, oldest first, into dst and returns it
func (r *Ring) Values(dst []float64) []float64 {
	dst = dst[:0]
	readPos := (r.writePos - r.count + r.size) % r.size
	for i := range r.count {
		dst = append(dst, r.buffer[(readPos+i)%r.size])
	}
	return dst
}

// Len returns number of values stored
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the ring capacity
func (r *Ring) Cap() int {
	return r.size
}

// IsFull returns true if the ring is full
func (r *Ring) IsFull() bool {
	return r.count == r.size
}

// Clear empties the ring
func (r *Ring) Clear() {
	r.writePos = 0
	r.count = 0
}

// FrameAccumulator collects samples into non-overlapping analysis frames,
// weighting each sample by the window coefficient for its position as it
// is stored.
type FrameAccumulator struct {
	frame    []float64
	window   []float64
	writePos int
}

// NewFrameAccumulator creates an accumulator whose frame length equals
// len(window)
func NewFrameAccumulator(window []float64) (*FrameAccumulator, error) {
	if len(window) == 0 {
		return nil, fmt.Errorf("frame accumulator needs a non-empty window")
	}
	return &FrameAccumulator{
		frame:  make([]float64, len(window)),
		window: window,
	}, nil
}

// Push stores one sample. When the frame fills, Push returns it with
// full == true and rewinds the write cursor; the returned slice is only
// valid until the next call.
func (fa *FrameAccumulator) Push(sample float64) (frame []float64, full bool) {
	pos := fa.writePos
	fa.frame[pos] = sample * fa.window[pos]
	fa.writePos = pos + 1
	if fa.writePos == len(fa.frame) {
		fa.writePos = 0
		return fa.frame, true
	}
	return nil, false
}

// Pending returns how many samples the current frame holds
func (fa *FrameAccumulator) Pending() int {
	return fa.writePos
}

// Size returns the frame length
func (fa *FrameAccumulator) Size() int {
	return len(fa.frame)
}

// Reset discards the partially filled frame
func (fa *FrameAccumulator) Reset() {
	fa.writePos = 0
	clear(fa.frame)
}
