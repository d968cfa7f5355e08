package stats_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func withAggregate(load float64, offset int) stats.Snapshot {
	return stats.Snapshot{
		CPU:            stats.CPUStats{AggregateLoadPercent: optional.Of(load)},
		CollectionTime: baseTime.Add(time.Duration(offset) * time.Second),
	}
}

func TestConsolidateEmptyBatch(t *testing.T) {
	_, err := stats.Consolidate(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, stats.ErrEmptyBatch))
}

func TestConsolidateAveragesAggregateLoad(t *testing.T) {
	out, err := stats.Consolidate([]stats.Snapshot{
		withAggregate(10, 0),
		withAggregate(20, 1),
		withAggregate(30, 2),
	})
	require.NoError(t, err)

	load, ok := out.CPU.AggregateLoadPercent.Get()
	require.True(t, ok)
	assert.InDelta(t, 20.0, load, 1e-9)
	assert.Equal(t, baseTime.Add(2*time.Second), out.CollectionTime)
}

func TestConsolidateSkipsAbsentValues(t *testing.T) {
	batch := []stats.Snapshot{
		withAggregate(10, 0),
		{CollectionTime: baseTime.Add(time.Second)},
		withAggregate(30, 2),
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	load, ok := out.CPU.AggregateLoadPercent.Get()
	require.True(t, ok)
	assert.InDelta(t, 20.0, load, 1e-9, "absent reading must not count as zero")
	assert.False(t, out.CPU.TempCelsius.IsPresent())
}

func TestConsolidateRoundsSockets(t *testing.T) {
	var batch []stats.Snapshot
	for i, tcp := range []uint64{4, 5, 6} {
		batch = append(batch, stats.Snapshot{
			Network: stats.NetworkStats{
				Sockets: optional.Of(stats.SocketStats{TCPInUse: tcp, UDPInUse: uint64(i)}),
			},
		})
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	sockets, ok := out.Network.Sockets.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(5), sockets.TCPInUse)
	assert.Equal(t, uint64(1), sockets.UDPInUse)
}

func TestConsolidateSingleMemoryReading(t *testing.T) {
	batch := []stats.Snapshot{
		{Memory: optional.Of(stats.MemoryStats{UsedMB: 100, TotalMB: 1000})},
		{},
		{},
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	mem, ok := out.Memory.Get()
	require.True(t, ok)
	assert.Equal(t, stats.MemoryStats{UsedMB: 100, TotalMB: 1000}, mem)
}

func TestConsolidatePerCPUVaryingLength(t *testing.T) {
	batch := []stats.Snapshot{
		{CPU: stats.CPUStats{PerLogicalCPULoadPercent: optional.Of([]float64{10, 20})}},
		{CPU: stats.CPUStats{PerLogicalCPULoadPercent: optional.Of([]float64{30, 40, 50})}},
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	perCPU, ok := out.CPU.PerLogicalCPULoadPercent.Get()
	require.True(t, ok)
	assert.Equal(t, []float64{20, 30, 25}, perCPU)
}

func TestConsolidateLoadAverages(t *testing.T) {
	batch := []stats.Snapshot{
		{General: stats.GeneralStats{LoadAverages: optional.Of(stats.LoadAverages{OneMinute: 1, FiveMinutes: 2, FifteenMinutes: 3})}},
		{General: stats.GeneralStats{LoadAverages: optional.Of(stats.LoadAverages{OneMinute: 3, FiveMinutes: 4, FifteenMinutes: 5})}},
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	la, ok := out.General.LoadAverages.Get()
	require.True(t, ok)
	assert.Equal(t, stats.LoadAverages{OneMinute: 2, FiveMinutes: 3, FifteenMinutes: 4}, la)
}

func TestConsolidateStructuralFieldsTakeLast(t *testing.T) {
	first := stats.Snapshot{
		General: stats.GeneralStats{
			UptimeSeconds: optional.Of(uint64(100)),
			BootTimestamp: optional.Of(int64(5)),
		},
		Filesystems: optional.Of([]stats.MountStats{{MountedOn: "/old", TotalMB: 1}}),
		Network: stats.NetworkStats{
			Interfaces: optional.Of([]stats.InterfaceStats{{Name: "eth0"}}),
		},
	}
	last := stats.Snapshot{
		General: stats.GeneralStats{
			UptimeSeconds: optional.Of(uint64(103)),
		},
		Filesystems: optional.Of([]stats.MountStats{{MountedOn: "/new", TotalMB: 2}}),
	}

	out, err := stats.Consolidate([]stats.Snapshot{first, last})
	require.NoError(t, err)

	assert.Equal(t, optional.Of(uint64(103)), out.General.UptimeSeconds)
	assert.False(t, out.General.BootTimestamp.IsPresent(), "last value wins even when absent")
	assert.Equal(t, last.Filesystems, out.Filesystems)
	assert.False(t, out.Network.Interfaces.IsPresent())
}

func TestConsolidateGPU(t *testing.T) {
	batch := []stats.Snapshot{
		{GPU: optional.Of(stats.GPUStats{Name: "A", TempCelsius: optional.Of(60.0), PowerWatts: optional.Of(100.0)})},
		{GPU: optional.Of(stats.GPUStats{Name: "B", TempCelsius: optional.Of(70.0)})},
		{},
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	gpu, ok := out.GPU.Get()
	require.True(t, ok)
	assert.Equal(t, "B", gpu.Name)
	assert.Equal(t, optional.Of(65.0), gpu.TempCelsius)
	assert.Equal(t, optional.Of(100.0), gpu.PowerWatts)
	assert.False(t, gpu.FanSpeedPercent.IsPresent())
}

func TestConsolidateDoesNotAliasInput(t *testing.T) {
	perCPU := []float64{10, 20}
	batch := []stats.Snapshot{
		{CPU: stats.CPUStats{PerLogicalCPULoadPercent: optional.Of(perCPU)}},
	}

	out, err := stats.Consolidate(batch)
	require.NoError(t, err)

	got, _ := out.CPU.PerLogicalCPULoadPercent.Get()
	got[0] = 99
	assert.Equal(t, 10.0, perCPU[0])
}
