package engine

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo summarizes local compute resources for in-process inference.
type HostInfo struct {
	TotalMemory     uint64
	AvailableMemory uint64
	LogicalCPUs     int
}

// ProbeHost reads host memory and CPU counts.
func ProbeHost(ctx context.Context) (HostInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostInfo{}, fmt.Errorf("read memory: %w", err)
	}
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return HostInfo{}, fmt.Errorf("read cpu count: %w", err)
	}
	return HostInfo{TotalMemory: vm.Total, AvailableMemory: vm.Available, LogicalCPUs: n}, nil
}

func (h HostInfo) String() string {
	return fmt.Sprintf("%d cpus, %d MiB available of %d MiB", h.LogicalCPUs, h.AvailableMemory>>20, h.TotalMemory>>20)
}
