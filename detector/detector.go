// Package detector summarises the capabilities of a WebGPU adapter so the
// dispatcher can size its workgroups and validate buffer sizes.
package detector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openfluke/webgpu/wgpu"
)

/* ---------- public API ---------- */

// Report is a portable summary of the selected adapter.
type Report struct {
	WhenISO     string          `json:"when_iso"`
	Runtime     string          `json:"runtime"` // "native" or "wasm" (best-effort)
	Backend     string          `json:"backend"`
	AdapterType string          `json:"adapter_type"`
	VendorID    string          `json:"vendor_id_hex"`
	DeviceID    string          `json:"device_id_hex"`
	Name        string          `json:"name"`
	Driver      string          `json:"driver"`
	Recommended Recommendations `json:"recommended"`
	Limits      Limits          `json:"limits"`
	Features    []string        `json:"features"`
	Host        Host            `json:"host"`
}

// JSON renders the report indented.
func (r *Report) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Probe builds a report from an adapter the caller already holds.
func Probe(adapter *wgpu.Adapter) *Report {
	info := adapter.GetInfo()
	limits := FromSupported(adapter.GetLimits())

	var feats []string
	for _, f := range adapter.EnumerateFeatures() {
		feats = append(feats, featureName(f))
	}

	return &Report{
		WhenISO:     time.Now().UTC().Format(time.RFC3339),
		Runtime:     detectRuntime(),
		Backend:     backendName(info.BackendType),
		AdapterType: adapterTypeName(info.AdapterType),
		VendorID:    fmt.Sprintf("0x%04x", info.VendorId),
		DeviceID:    fmt.Sprintf("0x%04x", info.DeviceId),
		Name:        strings.TrimSpace(info.Name),
		Driver:      strings.TrimSpace(info.DriverDescription),
		Limits:      limits,
		Features:    feats,
		Recommended: Recommend(limits),
		Host:        probeHost(),
	}
}

// FromSupported copies the limits the dispatcher cares about.
func FromSupported(l wgpu.SupportedLimits) Limits {
	return Limits{
		MaxComputeInvocationsPerWorkgroup: l.Limits.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupSizeX:          l.Limits.MaxComputeWorkgroupSizeX,
		MaxComputeWorkgroupSizeY:          l.Limits.MaxComputeWorkgroupSizeY,
		MaxComputeWorkgroupSizeZ:          l.Limits.MaxComputeWorkgroupSizeZ,
		MaxComputeWorkgroupsPerDimension:  l.Limits.MaxComputeWorkgroupsPerDimension,
		MaxComputeWorkgroupStorageSize:    l.Limits.MaxComputeWorkgroupStorageSize,
		MaxStorageBufferBindingSize:       l.Limits.MaxStorageBufferBindingSize,
		MaxBufferSize:                     l.Limits.MaxBufferSize,
	}
}

/* ---------- helpers ---------- */

func featureName(f wgpu.FeatureName) string     { return f.String() }
func backendName(b wgpu.BackendType) string     { return b.String() }
func adapterTypeName(t wgpu.AdapterType) string { return t.String() }
