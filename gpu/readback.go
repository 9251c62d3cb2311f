package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/wgmatmul/internal/oneshot"
	"github.com/openfluke/wgmatmul/matrix"
)

// MapState is the lifecycle of one staging-buffer map.
type MapState int

const (
	Unmapped MapState = iota
	MapRequested
	Mapped
	MapFailed
)

func (s MapState) String() string {
	switch s {
	case Unmapped:
		return "unmapped"
	case MapRequested:
		return "map-requested"
	case Mapped:
		return "mapped"
	case MapFailed:
		return "map-failed"
	}
	return fmt.Sprintf("MapState(%d)", int(s))
}

// Mapper is a host-readable buffer that can be mapped asynchronously. done
// is invoked at most once, from whichever goroutine drives the device.
type Mapper interface {
	MapRead(size uint64, done func(error)) error
	MappedRange(size uint64) []byte
	Unmap()
}

// Waiter blocks until the device has finished all submitted work and run any
// pending map callbacks.
type Waiter interface {
	Wait()
}

// Readback moves a staging buffer through Unmapped -> MapRequested ->
// Mapped | MapFailed. Only one map may be in flight per Readback.
type Readback struct {
	buf  Mapper
	dev  Waiter
	size uint64

	mu    sync.Mutex
	state MapState
	err   error
	tx    *oneshot.Sender[error]
	rx    *oneshot.Receiver[error]
}

// NewReadback tracks the map state of buf, whose mapped range is size bytes.
func NewReadback(buf Mapper, dev Waiter, size uint64) *Readback {
	return &Readback{buf: buf, dev: dev, size: size}
}

func (r *Readback) State() MapState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err is the failure recorded when the state is MapFailed.
func (r *Readback) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Request asks for a read map of the full range. It registers the completion
// callback and returns without blocking.
func (r *Readback) Request() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == MapRequested || r.state == Mapped {
		return fmt.Errorf("%w (%s)", ErrMapInFlight, r.state)
	}

	tx, rx := oneshot.New[error]()
	if err := r.buf.MapRead(r.size, func(status error) { _ = tx.Send(status) }); err != nil {
		r.state, r.err = MapFailed, fmt.Errorf("%w: %v", ErrMapFailed, err)
		return r.err
	}
	r.tx, r.rx = tx, rx
	r.state, r.err = MapRequested, nil
	return nil
}

// Wait blocks the calling goroutine until the device is idle, then resolves
// the map. A callback that still has not fired once the device is idle is
// treated as dropped and yields ErrChannelDropped.
func (r *Readback) Wait(ctx context.Context) error {
	r.mu.Lock()
	if r.state != MapRequested {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: wait in state %s", ErrNotMapped, state)
	}
	tx, rx := r.tx, r.rx
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		tx.Drop()
	} else {
		start := time.Now()
		r.dev.Wait()
		if Debug {
			Log("poll time: %v", time.Since(start))
		}
		tx.Drop()
	}

	// The sender is gone, so the slot is resolved and this cannot block. A
	// status delivered before ctx was cancelled still counts.
	status, err := rx.Receive(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case errors.Is(err, oneshot.ErrDropped):
		r.state, r.err = MapFailed, ErrChannelDropped
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.err = fmt.Errorf("%w: %v", ErrChannelDropped, ctxErr)
		}
	case err != nil:
		r.state, r.err = MapFailed, fmt.Errorf("%w: %v", ErrChannelDropped, err)
	case status != nil:
		r.state, r.err = MapFailed, fmt.Errorf("%w: %v", ErrMapFailed, status)
	default:
		r.state, r.err = Mapped, nil
	}
	return r.err
}

// Product copies the mapped bytes out as a row-major shape.Rows x
// shape.Columns result. It fails unless the state is Mapped.
func (r *Readback) Product(shape matrix.Shape) (matrix.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Mapped {
		return matrix.Product{}, fmt.Errorf("%w: state %s", ErrNotMapped, r.state)
	}
	if shape.BufferLength() > r.size {
		return matrix.Product{}, fmt.Errorf("%w: %s needs %d bytes, mapped %d", ErrMapFailed, shape, shape.BufferLength(), r.size)
	}

	data := r.buf.MappedRange(r.size)
	if uint64(len(data)) < shape.BufferLength() {
		return matrix.Product{}, fmt.Errorf("%w: mapped range has %d bytes", ErrMapFailed, len(data))
	}
	out := make([]float32, shape.Len())
	copy(out, wgpu.FromBytes[float32](data))
	return matrix.Product{Shape: shape, Data: out}, nil
}

// Unmap releases the host view so the staging buffer can be reused or
// destroyed. It is a no-op unless the state is Mapped.
func (r *Readback) Unmap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Mapped {
		return
	}
	r.buf.Unmap()
	r.state = Unmapped
}

// stagingMapper adapts a MAP_READ buffer to Mapper.
type stagingMapper struct {
	buf *wgpu.Buffer
}

func (s stagingMapper) MapRead(size uint64, done func(error)) error {
	return s.buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done(fmt.Errorf("map status: %v", status))
			return
		}
		done(nil)
	})
}

func (s stagingMapper) MappedRange(size uint64) []byte {
	return s.buf.GetMappedRange(0, uint(size))
}

func (s stagingMapper) Unmap() {
	s.buf.Unmap()
}
