package detector

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Host describes the machine driving the device.
type Host struct {
	OS       string   `json:"os"`
	Arch     string   `json:"arch"`
	NumCPU   int      `json:"num_cpu"`
	Features []string `json:"cpu_features,omitempty"`
}

func probeHost() Host {
	h := Host{OS: runtime.GOOS, Arch: runtime.GOARCH, NumCPU: runtime.NumCPU()}
	add := func(ok bool, name string) {
		if ok {
			h.Features = append(h.Features, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "asimd")
		add(cpu.ARM64.HasFPHP, "fphp")
		add(cpu.ARM64.HasSVE, "sve")
	}
	return h
}

func detectRuntime() string {
	// Simple heuristic; use build tags later if you like.
	if runtime.GOOS == "js" {
		return "wasm"
	}
	return "native"
}
