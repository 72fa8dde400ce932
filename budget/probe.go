package budget

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/astrovis/starstream/util/log"
)

/*
Budget ceilings come from a capability probe when one is available: a
configured fraction of probed memory, falling back to fixed defaults
otherwise. GPU memory is probed by the render device (the GL device reads
the driver's memory-info extension); CPU memory comes from the OS.
*/

////////////////////////////////////////////////////////////////////////////////

// Default ceilings used when a capability probe is unavailable.
const (
	DefaultCPUCeiling = 4 << 30 // 4 GiB
	DefaultGPUCeiling = 2 << 30 // 2 GiB

	// Fractions of probed memory granted to the streaming engine, leaving
	// headroom for the rest of the application.
	DefaultCPUFraction = 0.50
	DefaultGPUFraction = 0.45
)

// GPUProbe reports total device memory in bytes. The second return value is
// false when the device cannot tell.
type GPUProbe func() (uint64, bool)

// Ceilings computes the per-tier ceilings from the probes. gpuProbe may be
// nil.
func Ceilings(ctx context.Context, gpuProbe GPUProbe) map[Name]uint64 {
	ceilings := map[Name]uint64{
		CPU: DefaultCPUCeiling,
		GPU: DefaultGPUCeiling,
	}
	if available, ok := probeAvailableRAM(); ok {
		ceilings[CPU] = uint64(float64(available) * DefaultCPUFraction)
	}
	if gpuProbe != nil {
		if total, ok := gpuProbe(); ok {
			ceilings[GPU] = uint64(float64(total) * DefaultGPUFraction)
		}
	}
	log.Debugw(ctx, "memory ceilings resolved",
		"cpu", ceilings[CPU],
		"gpu", ceilings[GPU],
	)
	return ceilings
}

// probeAvailableRAM reads MemAvailable from /proc/meminfo. Returns false on
// platforms without it; callers fall back to defaults.
func probeAvailableRAM() (uint64, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb << 10, true
	}
	return 0, false
}
