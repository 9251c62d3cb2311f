package detector

// Limits is the subset of device limits that bound a matmul dispatch.
type Limits struct {
	MaxComputeInvocationsPerWorkgroup uint32 `json:"max_compute_invocations_per_workgroup"`
	MaxComputeWorkgroupSizeX          uint32 `json:"max_compute_workgroup_size_x"`
	MaxComputeWorkgroupSizeY          uint32 `json:"max_compute_workgroup_size_y"`
	MaxComputeWorkgroupSizeZ          uint32 `json:"max_compute_workgroup_size_z"`
	MaxComputeWorkgroupsPerDimension  uint32 `json:"max_compute_workgroups_per_dimension"`
	MaxComputeWorkgroupStorageSize    uint32 `json:"max_compute_workgroup_storage_size"`
	MaxStorageBufferBindingSize       uint64 `json:"max_storage_buffer_binding_size"`
	MaxBufferSize                     uint64 `json:"max_buffer_size"`
}

// DefaultLimits are the WebGPU baseline limits every adapter guarantees.
var DefaultLimits = Limits{
	MaxComputeInvocationsPerWorkgroup: 256,
	MaxComputeWorkgroupSizeX:          256,
	MaxComputeWorkgroupSizeY:          256,
	MaxComputeWorkgroupSizeZ:          64,
	MaxComputeWorkgroupsPerDimension:  65535,
	MaxComputeWorkgroupStorageSize:    16384,
	MaxStorageBufferBindingSize:       128 << 20,
	MaxBufferSize:                     256 << 20,
}

type Recommendations struct {
	// Conservative 1D workgroup that should run everywhere.
	WorkgroupX uint32 `json:"workgroup_x"`
	WorkgroupY uint32 `json:"workgroup_y"`
	WorkgroupZ uint32 `json:"workgroup_z"`

	// 2D local size for output tiles of a matmul kernel.
	TileX uint32 `json:"tile_x"`
	TileY uint32 `json:"tile_y"`
}

// Recommend derives workgroup and tile sizes that fit within l.
func Recommend(l Limits) Recommendations {
	wgX, wgY, wgZ := chooseWorkgroup(l)
	tx, ty := chooseTile(l)
	return Recommendations{
		WorkgroupX: wgX, WorkgroupY: wgY, WorkgroupZ: wgZ,
		TileX: tx, TileY: ty,
	}
}

func chooseWorkgroup(l Limits) (uint32, uint32, uint32) {
	maxX := l.MaxComputeWorkgroupSizeX
	maxTot := l.MaxComputeInvocationsPerWorkgroup

	candidates := []uint32{256, 128, 64, 32, 16, 8, 4, 1}
	for _, c := range candidates {
		if c <= maxX && c <= maxTot {
			return c, 1, 1
		}
	}
	// absolute portability fallback
	return 1, 1, 1
}

// chooseTile picks the largest square power-of-two tile up to 16x16.
func chooseTile(l Limits) (uint32, uint32) {
	for _, c := range []uint32{16, 8, 4, 2} {
		if c <= l.MaxComputeWorkgroupSizeX && c <= l.MaxComputeWorkgroupSizeY && c*c <= l.MaxComputeInvocationsPerWorkgroup {
			return c, c
		}
	}
	return 1, 1
}
