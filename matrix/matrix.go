// Package matrix provides a borrowed, row-major view over float32 data and the
// device buffer descriptors needed to move it onto a WebGPU device.
package matrix

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// bytesPerEntry is the encoded size of one f32 entry.
const bytesPerEntry = 4

// Allocator is the part of *wgpu.Device used to create buffers.
type Allocator interface {
	CreateBuffer(descriptor *wgpu.BufferDescriptor) (*wgpu.Buffer, error)
	CreateBufferInit(descriptor *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error)
}

// Matrix is a read-only view over row-major entries. Element (r, c) lives at
// Entries()[r*Columns()+c]. The view never copies its backing slice, so the
// caller must keep the slice alive and unmodified while a multiplication that
// references it is in flight.
type Matrix struct {
	rows    int
	columns int
	entries []float32
}

// New wraps entries as a rows x columns matrix. It fails with a
// *DimensionError when rows*columns does not equal len(entries).
func New(rows, columns int, entries []float32) (Matrix, error) {
	if rows < 0 || columns < 0 || rows*columns != len(entries) {
		return Matrix{}, &DimensionError{
			Op:    "new",
			Left:  Shape{Rows: rows, Columns: columns},
			Right: Shape{Rows: len(entries), Columns: 1},
		}
	}
	return Matrix{rows: rows, columns: columns, entries: entries}, nil
}

// MustNew is New for literals known to be well formed.
func MustNew(rows, columns int, entries []float32) Matrix {
	m, err := New(rows, columns, entries)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Matrix) Rows() int            { return m.rows }
func (m Matrix) Columns() int         { return m.columns }
func (m Matrix) Entries() []float32   { return m.entries }
func (m Matrix) Shape() Shape         { return Shape{Rows: m.rows, Columns: m.columns} }
func (m Matrix) At(r, c int) float32  { return m.entries[r*m.columns+c] }
func (m Matrix) String() string       { return fmt.Sprintf("Matrix(%s)", m.Shape()) }
func (m Matrix) BufferLength() uint64 { return uint64(len(m.entries)) * bytesPerEntry }

// InputBufferDescriptor describes the read-only storage buffer holding m.
func (m Matrix) InputBufferDescriptor(label string) *wgpu.BufferInitDescriptor {
	return &wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: wgpu.ToBytes(m.entries),
		Usage:    wgpu.BufferUsageStorage,
	}
}

// AsBuffer uploads the entries into a new storage buffer. The host to device
// copy happens here, not at dispatch time.
func (m Matrix) AsBuffer(device Allocator, label string) (*wgpu.Buffer, error) {
	buf, err := device.CreateBufferInit(m.InputBufferDescriptor(label))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", m.Shape(), err)
	}
	return buf, nil
}

// ProductShape returns the shape of m*other, or a *DimensionError when the
// inner dimensions disagree.
func (m Matrix) ProductShape(other Matrix) (Shape, error) {
	if m.columns != other.rows {
		return Shape{}, &DimensionError{Op: "multiply", Left: m.Shape(), Right: other.Shape()}
	}
	return Shape{Rows: m.rows, Columns: other.columns}, nil
}

// ResultBufferDescriptor describes the uninitialised output buffer for
// m*other. The buffer is written by the kernel and copied out afterwards.
func (m Matrix) ResultBufferDescriptor(other Matrix, label string) (*wgpu.BufferDescriptor, error) {
	shape, err := m.ProductShape(other)
	if err != nil {
		return nil, err
	}
	return &wgpu.BufferDescriptor{
		Label: label,
		Size:  shape.BufferLength(),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	}, nil
}

// ResultBufferForMultiply allocates the output buffer for m*other. Nothing is
// allocated when the inner dimensions do not match.
func (m Matrix) ResultBufferForMultiply(device Allocator, other Matrix, label string) (*wgpu.Buffer, error) {
	desc, err := m.ResultBufferDescriptor(other, label)
	if err != nil {
		return nil, err
	}
	buf, err := device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("result buffer %d bytes: %w", desc.Size, err)
	}
	return buf, nil
}

// Add checks that both operands share a shape. Element-wise addition has no
// device kernel, so a matching pair still yields ErrNotImplemented.
func (m Matrix) Add(other Matrix) (Product, error) {
	if m.rows != other.rows || m.columns != other.columns {
		return Product{}, &DimensionError{Op: "add", Left: m.Shape(), Right: other.Shape()}
	}
	return Product{}, fmt.Errorf("add %s + %s: %w", m.Shape(), other.Shape(), ErrNotImplemented)
}
