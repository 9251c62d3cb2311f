package gpu

import "fmt"

// EntryPoint is the compute entry point every matmul kernel exposes.
const EntryPoint = "main"

// Kernel is a compute program honouring the matmul binding contract:
// binding 0 = A (read-only storage), binding 1 = B (read-only storage),
// binding 2 = C (read-write storage), row-major f32, with a local size of
// Tile declared in the source.
type Kernel struct {
	Source     string
	EntryPoint string
	Tile       Tile
}

// KernelFunc produces the kernel for a planned multiplication.
type KernelFunc func(p Plan) Kernel

// MatMulKernel is the default kernel: one invocation per output element,
// shape constants baked in, out-of-range invocations return early.
func MatMulKernel(p Plan) Kernel {
	return Kernel{
		Source:     MatMulShader(p),
		EntryPoint: EntryPoint,
		Tile:       p.Tile,
	}
}

// MatMulShader generates WGSL for C = A x B with A MxK and B KxN.
func MatMulShader(p Plan) string {
	return fmt.Sprintf(`
@group(0) @binding(0) var<storage, read>       a : array<f32>;
@group(0) @binding(1) var<storage, read>       b : array<f32>;
@group(0) @binding(2) var<storage, read_write> c : array<f32>;

const M: u32 = %du;
const K: u32 = %du;
const N: u32 = %du;

@compute @workgroup_size(%d, %d, 1)
fn %s(@builtin(global_invocation_id) gid: vec3<u32>) {
    let col = gid.x;
    let row = gid.y;
    if (row >= M || col >= N) {
        return;
    }

    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < K; i++) {
        sum += a[row * K + i] * b[i * N + col];
    }
    c[row * N + col] = sum;
}
`, p.M, p.K, p.N, p.Tile.X, p.Tile.Y, EntryPoint)
}
