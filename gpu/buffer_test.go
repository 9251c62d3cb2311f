package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/openfluke/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/wgmatmul/detector"
	"github.com/openfluke/wgmatmul/matrix"
)

// failingAllocator hands out placeholder buffers until failAt calls have been
// made, then fails every request.
type failingAllocator struct {
	failAt  int
	calls   int
	handed  []*wgpu.Buffer
	staging *wgpu.BufferDescriptor
}

func (a *failingAllocator) next() (*wgpu.Buffer, error) {
	a.calls++
	if a.calls >= a.failAt {
		return nil, errors.New("out of device memory")
	}
	b := new(wgpu.Buffer)
	a.handed = append(a.handed, b)
	return b, nil
}

func (a *failingAllocator) CreateBuffer(d *wgpu.BufferDescriptor) (*wgpu.Buffer, error) {
	if d.Usage&wgpu.BufferUsageMapRead != 0 {
		a.staging = d
	}
	return a.next()
}

func (a *failingAllocator) CreateBufferInit(*wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	return a.next()
}

// recordFrees swaps freeBuffer for one that only records its argument.
func recordFrees(t *testing.T) *[]*wgpu.Buffer {
	t.Helper()
	var freed []*wgpu.Buffer
	orig := freeBuffer
	freeBuffer = func(b *wgpu.Buffer) { freed = append(freed, b) }
	t.Cleanup(func() { freeBuffer = orig })
	return &freed
}

func TestAllocateMatMulRollsBack(t *testing.T) {
	a, b := ones(2, 3), ones(3, 4)
	plan, err := PlanMultiply(a, b, Tile{X: 4, Y: 4}, detector.DefaultLimits)
	require.NoError(t, err)

	// A, B, C and the staging buffer are requested in that order.
	for failAt := 1; failAt <= 4; failAt++ {
		freed := recordFrees(t)
		dev := &failingAllocator{failAt: failAt}

		set, err := AllocateMatMul(dev, a, b, plan, "MatMul")
		require.Error(t, err, "failAt=%d", failAt)
		assert.ErrorIs(t, err, ErrDevice, "failAt=%d", failAt)
		assert.Nil(t, set)
		assert.Len(t, dev.handed, failAt-1)
		assert.ElementsMatch(t, dev.handed, *freed, "failAt=%d: every created buffer is freed", failAt)
	}
}

func TestAllocateMatMulComplete(t *testing.T) {
	freed := recordFrees(t)
	a, b := ones(2, 3), ones(3, 4)
	plan, err := PlanMultiply(a, b, Tile{X: 4, Y: 4}, detector.DefaultLimits)
	require.NoError(t, err)

	dev := &failingAllocator{failAt: 5}
	set, err := AllocateMatMul(dev, a, b, plan, "MatMul")
	require.NoError(t, err)
	assert.Empty(t, *freed)
	require.NotNil(t, dev.staging)
	assert.Equal(t, plan.BytesC, dev.staging.Size)

	set.Destroy()
	assert.ElementsMatch(t, dev.handed, *freed)
	assert.Nil(t, set.Staging)

	set.Destroy()
	assert.Len(t, *freed, 4, "a second Destroy frees nothing")
}

func TestMultiplyCancelledBeforeAllocation(t *testing.T) {
	// No device: a cancelled call must return before touching it.
	m := NewMultiplier(&Context{Tile: Tile{X: 4, Y: 4}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Multiply(ctx, ones(2, 3), ones(3, 4))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Pipelines())

	_, err = m.Multiply(ctx, ones(2, 3), ones(2, 3))
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch, "shape errors still come first")
}
