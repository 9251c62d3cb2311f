package gpu

import (
	"context"
	"fmt"

	"github.com/openfluke/wgmatmul/matrix"
)

type pipelineKey struct {
	m, k, n int
	tile    Tile
}

// Multiplier runs C = A x B on a Context. It caches one pipeline per
// (shape, tile) since the default kernel bakes the shape into its source.
// A Multiplier is not safe for concurrent use.
type Multiplier struct {
	ctx *Context

	// Kernel generates the program for a plan. Defaults to MatMulKernel.
	Kernel KernelFunc

	pipelines map[pipelineKey]*Pipeline
	seq       int
}

func NewMultiplier(c *Context) *Multiplier {
	return &Multiplier{
		ctx:       c,
		Kernel:    MatMulKernel,
		pipelines: make(map[pipelineKey]*Pipeline),
	}
}

// Plan validates a x b against the context's tile and limits.
func (m *Multiplier) Plan(a, b matrix.Matrix) (Plan, error) {
	return PlanMultiply(a, b, m.ctx.Tile, m.ctx.Limits)
}

// Multiply uploads a and b, dispatches the kernel and reads C back. Shape
// errors and a done ctx are reported before any device resource is created. The call blocks
// once, while the device drains the submitted work.
func (m *Multiplier) Multiply(ctx context.Context, a, b matrix.Matrix) (matrix.Product, error) {
	plan, err := m.Plan(a, b)
	if err != nil {
		return matrix.Product{}, err
	}
	if err := ctx.Err(); err != nil {
		return matrix.Product{}, fmt.Errorf("multiply %s x %s: %w", a.Shape(), b.Shape(), err)
	}

	p, err := m.pipeline(plan)
	if err != nil {
		return matrix.Product{}, err
	}

	m.seq++
	label := fmt.Sprintf("MatMul%d", m.seq)

	set, err := AllocateMatMul(m.ctx.Device, a, b, plan, label)
	if err != nil {
		return matrix.Product{}, err
	}
	defer set.Destroy()

	bg, err := p.BindGroup(m.ctx, set, label)
	if err != nil {
		return matrix.Product{}, err
	}
	defer bg.Release()

	if err := Dispatch(m.ctx, p, bg, set, plan, label); err != nil {
		return matrix.Product{}, err
	}

	rb := NewReadback(stagingMapper{buf: set.Staging}, m.ctx, plan.BytesC)
	if err := rb.Request(); err != nil {
		return matrix.Product{}, err
	}
	if err := rb.Wait(ctx); err != nil {
		return matrix.Product{}, err
	}
	defer rb.Unmap()

	return rb.Product(plan.Output())
}

func (m *Multiplier) pipeline(plan Plan) (*Pipeline, error) {
	key := pipelineKey{m: plan.M, k: plan.K, n: plan.N, tile: plan.Tile}
	if p, ok := m.pipelines[key]; ok {
		return p, nil
	}
	p, err := BuildPipeline(m.ctx, m.Kernel(plan), fmt.Sprintf("MatMul_%dx%dx%d", plan.M, plan.K, plan.N))
	if err != nil {
		return nil, err
	}
	m.pipelines[key] = p
	return p, nil
}

// Pipelines reports how many pipelines are cached.
func (m *Multiplier) Pipelines() int { return len(m.pipelines) }

// Release frees cached pipelines. The Context is left to the caller.
func (m *Multiplier) Release() {
	for k, p := range m.pipelines {
		p.Release()
		delete(m.pipelines, k)
	}
}

// Multiply is a one-off multiplication on c.
func Multiply(ctx context.Context, c *Context, a, b matrix.Matrix) (matrix.Product, error) {
	m := NewMultiplier(c)
	defer m.Release()
	return m.Multiply(ctx, a, b)
}
