package gpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/openfluke/wgmatmul/detector"
)

// Context owns the WebGPU instance, adapter, device and queue. Create one with
// NewContext, pass it to every component and Release it when done.
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	// Report describes the selected adapter.
	Report *detector.Report
	// Limits are the limits the device was created with.
	Limits detector.Limits
	// Tile is the kernel local size used for dispatch.
	Tile Tile
}

// NewContext acquires a device according to cfg. Failures are not retried and
// wrap ErrDeviceAcquisition.
func NewContext(cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Debug {
		Debug = true
	}

	c := &Context{}
	c.Instance = wgpu.CreateInstance(nil)
	if c.Instance == nil {
		return nil, fmt.Errorf("%w: failed to create WebGPU instance", ErrDeviceAcquisition)
	}

	if err := c.requestAdapter(cfg); err != nil {
		c.Release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceAcquisition, err)
	}

	c.Report = detector.Probe(c.Adapter)
	if Debug {
		Log("Using GPU Adapter: %s (Vendor: %s, Backend: %s)", c.Report.Name, c.Report.VendorID, c.Report.Backend)
	}

	if err := c.requestDevice(cfg); err != nil {
		c.Release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceAcquisition, err)
	}

	tile, err := resolveTile(cfg, c.Limits)
	if err != nil {
		c.Release()
		return nil, err
	}
	c.Tile = tile
	return c, nil
}

// DescribeAdapter reports the adapter cfg would select, without creating a
// device.
func DescribeAdapter(cfg Config) (*detector.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Context{Instance: wgpu.CreateInstance(nil)}
	if c.Instance == nil {
		return nil, fmt.Errorf("%w: failed to create WebGPU instance", ErrDeviceAcquisition)
	}
	defer c.Release()

	if err := c.requestAdapter(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceAcquisition, err)
	}
	return detector.Probe(c.Adapter), nil
}

func (c *Context) requestAdapter(cfg Config) error {
	if cfg.Backend == BackendExplicit {
		opts := &wgpu.RequestAdapterOptions{BackendType: backendTypes[cfg.BackendType]}
		if pp, ok := powerPreferences[cfg.PowerPreference]; ok {
			opts.PowerPreference = pp
		}
		a, err := c.Instance.RequestAdapter(opts)
		if err != nil {
			return fmt.Errorf("%s adapter: %w", cfg.BackendType, err)
		}
		if a == nil {
			return fmt.Errorf("no %s adapter", cfg.BackendType)
		}
		c.Adapter = a
		return nil
	}

	// First adapter wins.
	tryInit := func(opts *wgpu.RequestAdapterOptions) error {
		if c.Adapter != nil {
			return nil
		}
		a, err := c.Instance.RequestAdapter(opts)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("adapter request returned nil")
		}
		c.Adapter = a
		return nil
	}

	var chain []*wgpu.RequestAdapterOptions
	if pp, ok := powerPreferences[cfg.PowerPreference]; ok {
		chain = append(chain, &wgpu.RequestAdapterOptions{PowerPreference: pp})
	} else {
		chain = append(chain,
			&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceHighPerformance},
			&wgpu.RequestAdapterOptions{PowerPreference: wgpu.PowerPreferenceLowPower},
		)
	}
	chain = append(chain, nil)

	var lastErr error
	for _, opts := range chain {
		if lastErr = tryInit(opts); lastErr == nil {
			return nil
		}
		if Debug {
			Log("adapter request failed: %v. Falling back...", lastErr)
		}
	}
	return fmt.Errorf("all adapter attempts failed: %v", lastErr)
}

func (c *Context) requestDevice(cfg Config) error {
	desc := &wgpu.DeviceDescriptor{Label: "wgmatmul"}
	c.Limits = detector.DefaultLimits

	if cfg.DeviceLimits == LimitsOverride {
		supported := c.Adapter.GetLimits()
		lim := supported.Limits
		if v := cfg.Limits.MaxStorageBufferBindingSize; v != 0 {
			lim.MaxStorageBufferBindingSize = v
		}
		if v := cfg.Limits.MaxBufferSize; v != 0 {
			lim.MaxBufferSize = v
		}
		if v := cfg.Limits.MaxComputeWorkgroupsPerDimension; v != 0 {
			lim.MaxComputeWorkgroupsPerDimension = v
		}
		desc.RequiredLimits = &wgpu.RequiredLimits{Limits: lim}
		c.Limits = detector.FromSupported(wgpu.SupportedLimits{Limits: lim})
	}

	dev, err := c.Adapter.RequestDevice(desc)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	if dev == nil {
		return fmt.Errorf("request device returned nil")
	}
	c.Device = dev

	c.Queue = c.Device.GetQueue()
	if c.Queue == nil {
		return fmt.Errorf("WebGPU queue not initialized")
	}
	return nil
}

// Wait blocks until all submitted work has completed and pending map
// callbacks have run.
func (c *Context) Wait() {
	c.Device.Poll(true, nil)
}

// Release frees the device, adapter and instance. It is safe on a partially
// initialised context.
func (c *Context) Release() {
	if c.Queue != nil {
		c.Queue.Release()
		c.Queue = nil
	}
	if c.Device != nil {
		c.Device.Release()
		c.Device = nil
	}
	if c.Adapter != nil {
		c.Adapter.Release()
		c.Adapter = nil
	}
	if c.Instance != nil {
		c.Instance.Release()
		c.Instance = nil
	}
}
