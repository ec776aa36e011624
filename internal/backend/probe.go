package backend

import (
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/elastic/go-sysinfo"
	"github.com/jaypipes/ghw"
)

// gpuVendors lists vendors whose discrete or integrated GPUs the runtime can
// drive. Software renderers (e.g. llvmpipe) are not reported by ghw as cards.
var gpuVendors = []string{"nvidia", "amd", "advanced micro devices", "intel", "apple"}

// DetectGPU probes the host PCI/graphics inventory for a usable GPU.
// DOCLINGD_DISABLE_GPU=1 short-circuits the probe.
func DetectGPU() (bool, error) {
	if os.Getenv("DOCLINGD_DISABLE_GPU") == "1" {
		return false, nil
	}
	gpus, err := ghw.GPU()
	if err != nil {
		return false, err
	}
	for _, card := range gpus.GraphicsCards {
		if card == nil || card.DeviceInfo == nil || card.DeviceInfo.Vendor == nil {
			continue
		}
		vendor := strings.ToLower(card.DeviceInfo.Vendor.Name)
		for _, v := range gpuVendors {
			if strings.Contains(vendor, v) {
				return true, nil
			}
		}
	}
	return false, nil
}

// HostSummary describes the machine for startup logs and `doclingd probe`.
type HostSummary struct {
	OS           string   `json:"os"`
	Architecture string   `json:"architecture"`
	Hostname     string   `json:"hostname"`
	TotalRAM     string   `json:"total_ram,omitempty"`
	GPUs         []string `json:"gpus,omitempty"`
}

// Summarize collects a best-effort host summary; missing pieces stay empty.
func Summarize() HostSummary {
	var s HostSummary
	if h, err := sysinfo.Host(); err == nil {
		info := h.Info()
		s.Architecture = info.Architecture
		s.Hostname = info.Hostname
		if info.OS != nil {
			s.OS = strings.TrimSpace(info.OS.Name + " " + info.OS.Version)
		}
		if mem, err := h.Memory(); err == nil {
			s.TotalRAM = units.BytesSize(float64(mem.Total))
		}
	}
	if gpus, err := ghw.GPU(); err == nil {
		for _, card := range gpus.GraphicsCards {
			if card == nil || card.DeviceInfo == nil {
				continue
			}
			name := ""
			if card.DeviceInfo.Vendor != nil {
				name = card.DeviceInfo.Vendor.Name
			}
			if card.DeviceInfo.Product != nil {
				name = strings.TrimSpace(name + " " + card.DeviceInfo.Product.Name)
			}
			if name != "" {
				s.GPUs = append(s.GPUs, name)
			}
		}
	}
	return s
}
