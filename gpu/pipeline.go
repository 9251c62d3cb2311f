package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// Binding indices of the matmul contract.
const (
	BindingA uint32 = 0
	BindingB uint32 = 1
	BindingC uint32 = 2
)

// MatMulLayoutEntries is the bind-group layout for the matmul contract:
// compute-only visibility, no dynamic offsets, no minimum binding size.
func MatMulLayoutEntries() []wgpu.BindGroupLayoutEntry {
	entry := func(binding uint32, t wgpu.BufferBindingType) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type:             t,
				HasDynamicOffset: false,
				MinBindingSize:   0,
			},
		}
	}
	return []wgpu.BindGroupLayoutEntry{
		entry(BindingA, wgpu.BufferBindingTypeReadOnlyStorage),
		entry(BindingB, wgpu.BufferBindingTypeReadOnlyStorage),
		entry(BindingC, wgpu.BufferBindingTypeStorage),
	}
}

// Pipeline is a compiled matmul kernel with its explicit layouts. It is
// immutable and may be reused for every dispatch whose plan produced the same
// kernel.
type Pipeline struct {
	Kernel Kernel

	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipeline        *wgpu.ComputePipeline
}

// BuildPipeline compiles k and builds, in order, the bind-group layout, the
// pipeline layout and the compute pipeline.
func BuildPipeline(c *Context, k Kernel, label string) (*Pipeline, error) {
	if Debug {
		Log("Compiling matmul pipeline %s (tile %s)", label, k.Tile)
	}
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + "_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: k.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: shader compile: %v", ErrDevice, err)
	}
	defer module.Release()

	p := &Pipeline{Kernel: k}

	// The layout is fixed by the three-binding contract, never inferred from
	// the shader.
	p.bindGroupLayout, err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label + "_BGL",
		Entries: MatMulLayoutEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bgl: %v", ErrDevice, err)
	}

	p.pipelineLayout, err = c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + "_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bindGroupLayout},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: create pipeline layout: %v", ErrDevice, err)
	}

	entry := k.EntryPoint
	if entry == "" {
		entry = EntryPoint
	}
	p.pipeline, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label + "_Pipe",
		Layout: p.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("%w: pipeline create: %v", ErrDevice, err)
	}
	return p, nil
}

// BindGroup binds exactly the A, B and C buffers of set at 0, 1 and 2.
func (p *Pipeline) BindGroup(c *Context, set *BufferSet, label string) (*wgpu.BindGroup, error) {
	bg, err := c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + "_Bind",
		Layout: p.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: BindingA, Buffer: set.A, Size: set.A.GetSize()},
			{Binding: BindingB, Buffer: set.B, Size: set.B.GetSize()},
			{Binding: BindingC, Buffer: set.C, Size: set.C.GetSize()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create bind group: %v", ErrDevice, err)
	}
	return bg, nil
}

func (p *Pipeline) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}
