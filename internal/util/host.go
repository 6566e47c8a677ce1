package util

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostInfo describes the machine the workbench runs on. It is attached to
// the API info endpoint and to telemetry status messages.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Architecture  string `json:"architecture"`
	CPUModel      string `json:"cpu_model"`
	CPUThreads    int    `json:"cpu_threads"`
	TotalMemoryMB uint64 `json:"total_memory_mb"`
	GoVersion     string `json:"go_version"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

// GetHostInfo gathers host information. Fields gopsutil cannot fill on
// this platform are left empty.
func GetHostInfo() HostInfo {
	info := HostInfo{
		Architecture: runtime.GOARCH,
		CPUThreads:   runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		info.UptimeSeconds = hostInfo.Uptime
	} else if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemoryMB = memInfo.Total / (1024 * 1024)
	}

	return info
}

// ProcessStats is the workbench's own resource usage.
type ProcessStats struct {
	RSSMB      uint64  `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
}

// GetProcessStats reports resource usage of the current process.
func GetProcessStats() (ProcessStats, error) {
	stats := ProcessStats{Goroutines: runtime.NumGoroutine()}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats, fmt.Errorf("failed to inspect own process: %w", err)
	}
	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RSSMB = memInfo.RSS / (1024 * 1024)
	}
	if pct, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	}
	return stats, nil
}

// DiskUsage is the usage of the filesystem holding a path.
type DiskUsage struct {
	TotalMB     uint64  `json:"total_mb"`
	FreeMB      uint64  `json:"free_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// GetDiskUsage returns usage for the filesystem containing path.
func GetDiskUsage(path string) (*DiskUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	return &DiskUsage{
		TotalMB:     usage.Total / (1024 * 1024),
		FreeMB:      usage.Free / (1024 * 1024),
		UsedPercent: usage.UsedPercent,
	}, nil
}

// FileExists checks if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// Version is the application version. Release builds override it with
// -ldflags "-X github.com/eolink-project/eolink/internal/util.Version=...".
var Version = "dev"
