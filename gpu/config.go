package gpu

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/openfluke/webgpu/wgpu"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	BackendAuto     = "auto"
	BackendExplicit = "explicit"

	LimitsDefault  = "default"
	LimitsOverride = "override"
)

var backendTypes = map[string]wgpu.BackendType{
	"vulkan": wgpu.BackendTypeVulkan,
	"metal":  wgpu.BackendTypeMetal,
	"d3d12":  wgpu.BackendTypeD3D12,
	"opengl": wgpu.BackendTypeOpenGL,
}

var powerPreferences = map[string]wgpu.PowerPreference{
	"high-performance": wgpu.PowerPreferenceHighPerformance,
	"low-power":        wgpu.PowerPreferenceLowPower,
}

// Config selects the adapter, the device limits and the dispatch tile.
type Config struct {
	// Backend is "auto" (platform default with fallbacks) or "explicit".
	Backend string `yaml:"backend"`
	// BackendType names the API used when Backend is "explicit".
	BackendType string `yaml:"backend_type,omitempty"`
	// PowerPreference is "high-performance", "low-power" or empty.
	PowerPreference string `yaml:"power_preference,omitempty"`

	// DeviceLimits is "default" or "override".
	DeviceLimits string         `yaml:"device_limits"`
	Limits       LimitOverrides `yaml:"limits,omitempty"`

	// TileX and TileY are the kernel's local size. Zero picks the
	// detector's recommendation for the adapter.
	TileX uint32 `yaml:"tile_x,omitempty"`
	TileY uint32 `yaml:"tile_y,omitempty"`

	Debug bool `yaml:"debug,omitempty"`
}

// LimitOverrides replace the adapter's supported limits when DeviceLimits is
// "override". Zero fields keep the adapter value.
type LimitOverrides struct {
	MaxStorageBufferBindingSize      uint64 `yaml:"max_storage_buffer_binding_size,omitempty"`
	MaxBufferSize                    uint64 `yaml:"max_buffer_size,omitempty"`
	MaxComputeWorkgroupsPerDimension uint32 `yaml:"max_compute_workgroups_per_dimension,omitempty"`
}

func DefaultConfig() Config {
	return Config{Backend: BackendAuto, DeviceLimits: LimitsDefault}
}

// LoadConfig reads a YAML file over DefaultConfig and applies environment
// overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from WGMATMUL_* variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("WGMATMUL_BACKEND"); v != "" {
		// a bare API name implies an explicit request
		if _, ok := backendTypes[strings.ToLower(v)]; ok {
			c.Backend = BackendExplicit
			c.BackendType = strings.ToLower(v)
		} else {
			c.Backend = strings.ToLower(v)
		}
	}
	for key, dst := range map[string]*uint32{"WGMATMUL_TILE_X": &c.TileX, "WGMATMUL_TILE_Y": &c.TileY} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
		}
		*dst = uint32(n)
	}
	if v := os.Getenv("WGMATMUL_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: WGMATMUL_DEBUG=%q", ErrInvalidConfig, v)
		}
		c.Debug = b
	}
	return nil
}

func (c Config) Validate() error {
	if !lo.Contains([]string{BackendAuto, BackendExplicit}, c.Backend) {
		return fmt.Errorf("%w: backend %q (want auto or explicit)", ErrInvalidConfig, c.Backend)
	}
	if c.Backend == BackendExplicit {
		if _, ok := backendTypes[c.BackendType]; !ok {
			return fmt.Errorf("%w: backend_type %q (want one of %s)", ErrInvalidConfig, c.BackendType, knownNames(backendTypes))
		}
	}
	if c.PowerPreference != "" {
		if _, ok := powerPreferences[c.PowerPreference]; !ok {
			return fmt.Errorf("%w: power_preference %q (want one of %s)", ErrInvalidConfig, c.PowerPreference, knownNames(powerPreferences))
		}
	}
	if !lo.Contains([]string{LimitsDefault, LimitsOverride}, c.DeviceLimits) {
		return fmt.Errorf("%w: device_limits %q (want default or override)", ErrInvalidConfig, c.DeviceLimits)
	}
	if (c.TileX == 0) != (c.TileY == 0) {
		return fmt.Errorf("%w: tile_x and tile_y must both be set or both be zero", ErrInvalidConfig)
	}
	return nil
}

func knownNames[V any](m map[string]V) string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return strings.Join(keys, ", ")
}
