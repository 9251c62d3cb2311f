package gpu

import (
	"fmt"
	"math"

	"github.com/openfluke/wgmatmul/detector"
	"github.com/openfluke/wgmatmul/matrix"
)

// Tile is the kernel's declared local workgroup size. X runs along output
// columns and Y along output rows.
type Tile struct {
	X, Y uint32
}

func (t Tile) String() string { return fmt.Sprintf("%dx%d", t.X, t.Y) }

func resolveTile(cfg Config, limits detector.Limits) (Tile, error) {
	t := Tile{X: cfg.TileX, Y: cfg.TileY}
	if t.X == 0 || t.Y == 0 {
		rec := detector.Recommend(limits)
		return Tile{X: rec.TileX, Y: rec.TileY}, nil
	}
	if t.X > limits.MaxComputeWorkgroupSizeX || t.Y > limits.MaxComputeWorkgroupSizeY ||
		t.X*t.Y > limits.MaxComputeInvocationsPerWorkgroup {
		return Tile{}, fmt.Errorf("%w: tile %s exceeds device workgroup limits (%dx%d, %d invocations)",
			ErrInvalidConfig, t, limits.MaxComputeWorkgroupSizeX, limits.MaxComputeWorkgroupSizeY,
			limits.MaxComputeInvocationsPerWorkgroup)
	}
	return t, nil
}

// Plan is everything about one multiplication that can be decided without a
// device: shapes, byte sizes and the workgroup grid.
type Plan struct {
	M, K, N int
	Tile    Tile

	BytesA, BytesB, BytesC uint64

	WorkgroupsX, WorkgroupsY uint32
}

// Output is the shape of the result.
func (p Plan) Output() matrix.Shape { return matrix.Shape{Rows: p.M, Columns: p.N} }

// Workgroups returns ceil(n / local), the number of workgroups needed to
// cover n elements with local invocations each. Counts that do not fit in a
// uint32 saturate at math.MaxUint32.
func Workgroups(n int, local uint32) uint32 {
	g := (uint64(n) + uint64(local) - 1) / uint64(local)
	if g > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(g)
}

// grid sizes the dispatch for an m x n output. Every output element must be
// covered, so a grid that a uint32 cannot hold is rejected.
func grid(m, n int, tile Tile) (x, y uint32, err error) {
	if uint64(n) > math.MaxUint32-uint64(tile.X) || uint64(m) > math.MaxUint32-uint64(tile.Y) {
		return 0, 0, fmt.Errorf("%w: %dx%d output overflows a 32-bit grid", ErrDispatchTooLarge, m, n)
	}
	return Workgroups(n, tile.X), Workgroups(m, tile.Y), nil
}

// PlanMultiply validates a*b against the tile and device limits. It touches
// no device resources. Zero-valued limits are not enforced.
func PlanMultiply(a, b matrix.Matrix, tile Tile, limits detector.Limits) (Plan, error) {
	out, err := a.ProductShape(b)
	if err != nil {
		return Plan{}, err
	}
	if a.Rows() == 0 || a.Columns() == 0 || b.Columns() == 0 {
		return Plan{}, fmt.Errorf("%w: %s x %s", ErrEmptyMatrix, a.Shape(), b.Shape())
	}
	if tile.X == 0 || tile.Y == 0 {
		return Plan{}, fmt.Errorf("%w: tile %s", ErrInvalidConfig, tile)
	}

	p := Plan{
		M: a.Rows(), K: a.Columns(), N: b.Columns(),
		Tile:   tile,
		BytesA: a.BufferLength(),
		BytesB: b.BufferLength(),
		BytesC: out.BufferLength(),
	}
	for _, sz := range []uint64{p.BytesA, p.BytesB, p.BytesC} {
		if limits.MaxStorageBufferBindingSize > 0 && sz > limits.MaxStorageBufferBindingSize {
			return Plan{}, fmt.Errorf("%w: %d bytes > max storage binding %d", ErrBufferTooLarge, sz, limits.MaxStorageBufferBindingSize)
		}
		if limits.MaxBufferSize > 0 && sz > limits.MaxBufferSize {
			return Plan{}, fmt.Errorf("%w: %d bytes > max buffer %d", ErrBufferTooLarge, sz, limits.MaxBufferSize)
		}
	}

	if p.WorkgroupsX, p.WorkgroupsY, err = grid(p.M, p.N, tile); err != nil {
		return Plan{}, err
	}
	if limit := limits.MaxComputeWorkgroupsPerDimension; limit > 0 && (p.WorkgroupsX > limit || p.WorkgroupsY > limit) {
		return Plan{}, fmt.Errorf("%w: grid %dx%d > %d per dimension", ErrDispatchTooLarge, p.WorkgroupsX, p.WorkgroupsY, limit)
	}
	return p, nil
}
