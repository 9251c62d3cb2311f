package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/wgmatmul/matrix"
)

// NewStagingBuffer creates a host-readable buffer used only as a copy target.
func NewStagingBuffer(dev matrix.Allocator, label string, size uint64) (*wgpu.Buffer, error) {
	buf, err := dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create staging buffer: %v", ErrDevice, err)
	}
	return buf, nil
}

// freeBuffer destroys and releases one buffer.
var freeBuffer = func(b *wgpu.Buffer) {
	b.Destroy()
	b.Release()
}

// BufferSet holds the buffers of one multiplication. Nothing in it is shared
// with another dispatch.
type BufferSet struct {
	A, B    *wgpu.Buffer // read-only storage, uploaded
	C       *wgpu.Buffer // read-write storage, uninitialised
	Staging *wgpu.Buffer // MAP_READ | COPY_DST, same length as C
}

// AllocateMatMul creates A, B, C and the staging buffer, in that order. If
// any step fails the buffers created so far are destroyed.
func AllocateMatMul(dev matrix.Allocator, a, b matrix.Matrix, p Plan, label string) (*BufferSet, error) {
	if Debug {
		Log("Allocating buffers for %s (A %d B, B %d B, C %d B)", label, p.BytesA, p.BytesB, p.BytesC)
	}
	set := &BufferSet{}
	var err error

	if set.A, err = a.AsBuffer(dev, label+"_A"); err != nil {
		set.Destroy()
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	if set.B, err = b.AsBuffer(dev, label+"_B"); err != nil {
		set.Destroy()
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	if set.C, err = a.ResultBufferForMultiply(dev, b, label+"_C"); err != nil {
		set.Destroy()
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	if set.Staging, err = NewStagingBuffer(dev, label+"_Staging", p.BytesC); err != nil {
		set.Destroy()
		return nil, err
	}
	return set, nil
}

// Destroy frees every buffer in the set. The staging buffer must not be
// mapped.
func (s *BufferSet) Destroy() {
	for _, b := range []**wgpu.Buffer{&s.A, &s.B, &s.C, &s.Staging} {
		if *b != nil {
			freeBuffer(*b)
			*b = nil
		}
	}
}
