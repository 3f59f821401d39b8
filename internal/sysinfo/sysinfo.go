// Package sysinfo describes the machine the pipeline runs on. The result is
// bound to the "system" template variable for tiers that ask for it.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/aristath/scaffold/internal/template"
)

// Info is a snapshot of host facts.
type Info struct {
	OS              string
	Platform        string
	PlatformVersion string
	Kernel          string
	Arch            string
	CPUs            int
	MemoryTotal     uint64
	GoVersion       string
}

// Value renders info as a map value. Keys are stable; empty facts are left out.
func (i Info) Value() template.Value {
	m := map[string]string{
		"os":         i.OS,
		"arch":       i.Arch,
		"cpus":       fmt.Sprintf("%d", i.CPUs),
		"go_version": i.GoVersion,
	}
	if i.Platform != "" {
		platform := i.Platform
		if i.PlatformVersion != "" {
			platform += " " + i.PlatformVersion
		}
		m["platform"] = platform
	}
	if i.Kernel != "" {
		m["kernel"] = i.Kernel
	}
	if i.MemoryTotal > 0 {
		m["memory"] = formatBytes(i.MemoryTotal)
	}
	return template.Map(m)
}

// Collect gathers host facts. Lookups that fail leave their fields empty;
// only a context error is returned.
func Collect(ctx context.Context) (Info, error) {
	info := Info{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		CPUs:      runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.Kernel = h.KernelVersion
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryTotal = vm.Total
	}

	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Provider returns the "system" value for a run.
type Provider func(ctx context.Context) (template.Value, error)

// Host returns a Provider that collects host facts once and reuses them.
func Host() Provider {
	var (
		once sync.Once
		val  template.Value
		err  error
	)
	return func(ctx context.Context) (template.Value, error) {
		once.Do(func() {
			var info Info
			info, err = Collect(ctx)
			val = info.Value()
		})
		return val, err
	}
}

// Static returns a Provider that always yields v.
func Static(v template.Value) Provider {
	return func(context.Context) (template.Value, error) { return v, nil }
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
