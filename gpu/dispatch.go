package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"
)

// Dispatch records one command sequence (set pipeline, set bind group 0,
// dispatch the planned grid, copy C into staging) and submits it as a single
// unit. Completion is observed only through the staging buffer's map.
func Dispatch(c *Context, p *Pipeline, bg *wgpu.BindGroup, set *BufferSet, plan Plan, label string) error {
	if Debug {
		Log("Dispatching %s w/ %dx%d workgroups (tile %s)", label, plan.WorkgroupsX, plan.WorkgroupsY, plan.Tile)
	}
	enc, err := c.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: label + "_Enc",
	})
	if err != nil {
		return fmt.Errorf("%w: create encoder: %v", ErrDevice, err)
	}
	defer enc.Release()

	pass := enc.BeginComputePass(&wgpu.ComputePassDescriptor{
		Label: label + "_Pass",
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(plan.WorkgroupsX, plan.WorkgroupsY, 1)
	pass.End()
	pass.Release()

	enc.CopyBufferToBuffer(set.C, 0, set.Staging, 0, plan.BytesC)

	cmd, err := enc.Finish(nil)
	if err != nil {
		return fmt.Errorf("%w: finish command: %v", ErrDevice, err)
	}
	defer cmd.Release()

	c.Queue.Submit(cmd)
	return nil
}
