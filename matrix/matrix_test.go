package matrix_test

import (
	"errors"
	"testing"

	"github.com/openfluke/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/wgmatmul/matrix"
)

// countingAllocator records buffer requests without touching a device.
type countingAllocator struct {
	created []*wgpu.BufferDescriptor
	inits   []*wgpu.BufferInitDescriptor
	err     error
}

func (a *countingAllocator) CreateBuffer(d *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	a.created = append(a.created, d)
	return nil, a.err
}

func (a *countingAllocator) CreateBufferInit(d *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	a.inits = append(a.inits, d)
	return nil, a.err
}

func TestNewMatchingShapes(t *testing.T) {
	cases := []struct {
		rows, cols int
	}{
		{1, 1}, {1, 2}, {2, 1}, {3, 4}, {16, 16}, {0, 0}, {0, 5},
	}
	for _, tc := range cases {
		entries := make([]float32, tc.rows*tc.cols)
		m, err := matrix.New(tc.rows, tc.cols, entries)
		require.NoError(t, err, "%dx%d", tc.rows, tc.cols)
		assert.Equal(t, tc.rows, m.Rows())
		assert.Equal(t, tc.cols, m.Columns())
		assert.Equal(t, uint64(len(entries)*4), m.BufferLength())
	}
}

func TestNewInstantiate(t *testing.T) {
	m, err := matrix.New(1, 2, []float32{1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), m.BufferLength())
	assert.Equal(t, float32(2.0), m.At(0, 1))
}

func TestNewMismatch(t *testing.T) {
	cases := []struct {
		rows, cols, n int
	}{
		{1, 2, 3}, {2, 2, 3}, {3, 1, 0}, {0, 1, 1}, {-1, -2, 2},
	}
	for _, tc := range cases {
		_, err := matrix.New(tc.rows, tc.cols, make([]float32, tc.n))
		require.Error(t, err)
		assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

		var de *matrix.DimensionError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "new", de.Op)
	}
}

func TestNewDoesNotCopy(t *testing.T) {
	entries := []float32{1, 2, 3, 4}
	m := matrix.MustNew(2, 2, entries)
	entries[3] = 42
	assert.Equal(t, float32(42), m.At(1, 1))
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { matrix.MustNew(2, 2, []float32{1}) })
}

func TestAsBufferUploadsEagerly(t *testing.T) {
	alloc := &countingAllocator{}
	m := matrix.MustNew(1, 2, []float32{1, 2})

	_, err := m.AsBuffer(alloc, "A")
	require.NoError(t, err)
	require.Len(t, alloc.inits, 1)
	assert.Empty(t, alloc.created)

	d := alloc.inits[0]
	assert.Equal(t, "A", d.Label)
	assert.Equal(t, wgpu.BufferUsageStorage, d.Usage)
	assert.Len(t, d.Contents, 8)
}

func TestAsBufferWrapsDeviceError(t *testing.T) {
	boom := errors.New("out of memory")
	alloc := &countingAllocator{err: boom}
	_, err := matrix.MustNew(1, 1, []float32{1}).AsBuffer(alloc, "A")
	assert.ErrorIs(t, err, boom)
}

func TestResultBufferForMultiplySize(t *testing.T) {
	cases := []struct {
		m, k, n int
	}{
		{1, 2, 2}, {3, 1, 5}, {1000, 100, 10000}, {7, 7, 1},
	}
	for _, tc := range cases {
		alloc := &countingAllocator{}
		a := matrix.MustNew(tc.m, tc.k, make([]float32, tc.m*tc.k))
		b := matrix.MustNew(tc.k, tc.n, make([]float32, tc.k*tc.n))

		_, err := a.ResultBufferForMultiply(alloc, b, "C")
		require.NoError(t, err)
		require.Len(t, alloc.created, 1)

		d := alloc.created[0]
		assert.Equal(t, uint64(tc.m*tc.n*4), d.Size)
		assert.Equal(t, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, d.Usage)
		assert.False(t, d.MappedAtCreation)
	}
}

func TestResultBufferForMultiplyMismatchAllocatesNothing(t *testing.T) {
	alloc := &countingAllocator{}
	a := matrix.MustNew(2, 3, make([]float32, 6))
	b := matrix.MustNew(2, 3, make([]float32, 6))

	buf, err := a.ResultBufferForMultiply(alloc, b, "C")
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
	assert.Nil(t, buf)
	assert.Empty(t, alloc.created)
	assert.Empty(t, alloc.inits)
	assert.Contains(t, err.Error(), "2x3 multiply 2x3")
}

func TestAddChecksShapeOnly(t *testing.T) {
	a := matrix.MustNew(2, 2, make([]float32, 4))
	b := matrix.MustNew(2, 1, make([]float32, 2))

	_, err := a.Add(b)
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	_, err = a.Add(a)
	assert.ErrorIs(t, err, matrix.ErrNotImplemented)
	assert.NotErrorIs(t, err, matrix.ErrDimensionMismatch)
}

func TestProductAt(t *testing.T) {
	p := matrix.Product{Shape: matrix.Shape{Rows: 2, Columns: 3}, Data: []float32{0, 1, 2, 3, 4, 5}}
	assert.Equal(t, float32(5), p.At(1, 2))
	assert.Equal(t, float32(3), p.View().At(1, 0))
	assert.Equal(t, "2x3", p.Shape.String())
	assert.Equal(t, uint64(24), p.BufferLength())
}
