// Package stats defines the telemetry snapshot and the consolidation of a
// batch of raw snapshots into one averaged snapshot.
package stats

import (
	"time"

	"codeberg.org/mutker/hoststat/internal/optional"
)

// BytesPerMB converts byte counts to the megabyte figures stored in snapshots.
const BytesPerMB = 1_000_000

// Snapshot is one point-in-time set of system stats. Every leaf is
// independently optional; a failed read of one metric leaves the rest intact.
// Snapshots are treated as immutable values once built.
type Snapshot struct {
	General        GeneralStats                 `json:"general"`
	CPU            CPUStats                     `json:"cpu"`
	Memory         optional.Value[MemoryStats]  `json:"memory"`
	Filesystems    optional.Value[[]MountStats] `json:"filesystems"`
	Network        NetworkStats                 `json:"network"`
	GPU            optional.Value[GPUStats]     `json:"gpu"`
	CollectionTime time.Time                    `json:"collectionTime"`
}

// GeneralStats holds host-wide figures.
type GeneralStats struct {
	// Seconds since boot.
	UptimeSeconds optional.Value[uint64] `json:"uptimeSeconds"`
	// Boot time in seconds since the UNIX epoch.
	BootTimestamp optional.Value[int64]        `json:"bootTimestamp"`
	LoadAverages  optional.Value[LoadAverages] `json:"loadAverages"`
}

// LoadAverages are the 1, 5 and 15 minute run queue averages.
type LoadAverages struct {
	OneMinute      float64 `json:"oneMinute"`
	FiveMinutes    float64 `json:"fiveMinutes"`
	FifteenMinutes float64 `json:"fifteenMinutes"`
}

// CPUStats holds load and temperature readings.
type CPUStats struct {
	PerLogicalCPULoadPercent optional.Value[[]float64] `json:"perLogicalCpuLoadPercent"`
	AggregateLoadPercent     optional.Value[float64]   `json:"aggregateLoadPercent"`
	TempCelsius              optional.Value[float64]   `json:"tempCelsius"`
}

// MemoryStats is read as a unit; it is absent if the platform read fails.
type MemoryStats struct {
	UsedMB  uint64 `json:"usedMb"`
	TotalMB uint64 `json:"totalMb"`
}

// MountStats describes one mounted filesystem with non-zero capacity.
type MountStats struct {
	FSType      string `json:"fsType"`
	MountedFrom string `json:"mountedFrom"`
	MountedOn   string `json:"mountedOn"`
	UsedMB      uint64 `json:"usedMb"`
	TotalMB     uint64 `json:"totalMb"`
}

// NetworkStats holds per-interface counters and socket usage.
type NetworkStats struct {
	Interfaces optional.Value[[]InterfaceStats] `json:"interfaces"`
	Sockets    optional.Value[SocketStats]      `json:"sockets"`
}

// InterfaceStats holds cumulative counters for one network interface.
type InterfaceStats struct {
	Name            string   `json:"name"`
	Addresses       []string `json:"addresses"`
	SentBytes       uint64   `json:"sentBytes"`
	ReceivedBytes   uint64   `json:"receivedBytes"`
	SentPackets     uint64   `json:"sentPackets"`
	ReceivedPackets uint64   `json:"receivedPackets"`
	SendErrors      uint64   `json:"sendErrors"`
	ReceiveErrors   uint64   `json:"receiveErrors"`
}

// SocketStats holds socket usage counts.
type SocketStats struct {
	TCPInUse    uint64 `json:"tcpInUse"`
	TCPOrphaned uint64 `json:"tcpOrphaned"`
	UDPInUse    uint64 `json:"udpInUse"`
	TCP6InUse   uint64 `json:"tcp6InUse"`
	UDP6InUse   uint64 `json:"udp6InUse"`
}

// GPUStats holds readings for the first NVIDIA device.
type GPUStats struct {
	Name                     string                  `json:"name"`
	TempCelsius              optional.Value[float64] `json:"tempCelsius"`
	UtilizationPercent       optional.Value[float64] `json:"utilizationPercent"`
	MemoryUtilizationPercent optional.Value[float64] `json:"memoryUtilizationPercent"`
	PowerWatts               optional.Value[float64] `json:"powerWatts"`
	FanSpeedPercent          optional.Value[float64] `json:"fanSpeedPercent"`
}

// Sampler produces raw snapshots. Sample blocks for roughly cpuSampleDuration
// while CPU load deltas are measured. It never fails as a whole: metrics that
// cannot be read are left absent.
type Sampler interface {
	Sample(cpuSampleDuration time.Duration) Snapshot
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func(cpuSampleDuration time.Duration) Snapshot

func (f SamplerFunc) Sample(cpuSampleDuration time.Duration) Snapshot {
	return f(cpuSampleDuration)
}
