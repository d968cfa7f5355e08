package dashboard

import (
	"testing"
	"time"

	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(sec int64, cpu float64, cores []float64) stats.Snapshot {
	return stats.Snapshot{
		General: stats.GeneralStats{
			UptimeSeconds: optional.Of(uint64(3600)),
			BootTimestamp: optional.Of(int64(1_700_000_000)),
			LoadAverages:  optional.Of(stats.LoadAverages{OneMinute: 0.5, FiveMinutes: 0.25, FifteenMinutes: 0.125}),
		},
		CPU: stats.CPUStats{
			PerLogicalCPULoadPercent: optional.Of(cores),
			AggregateLoadPercent:     optional.Of(cpu),
			TempCelsius:              optional.Of(50.0),
		},
		Memory: optional.Of(stats.MemoryStats{UsedMB: 250, TotalMB: 1000}),
		Filesystems: optional.Of([]stats.MountStats{
			{FSType: "ext4", MountedFrom: "/dev/sda1", MountedOn: "/", UsedMB: 10, TotalMB: 40},
		}),
		Network: stats.NetworkStats{
			Interfaces: optional.Of([]stats.InterfaceStats{
				{Name: "eth0", Addresses: []string{"10.0.0.2"}, SentBytes: 2 * stats.BytesPerMB, ReceivedBytes: 3 * stats.BytesPerMB, SendErrors: 1},
				{Name: "lo", SentBytes: stats.BytesPerMB, ReceivedBytes: stats.BytesPerMB, ReceiveErrors: 2},
			}),
			Sockets: optional.Of(stats.SocketStats{TCPInUse: 4, TCP6InUse: 1, UDPInUse: 2}),
		},
		CollectionTime: time.Unix(sec, 0),
	}
}

func chartByID(t *testing.T, d Dashboard, id string) Chart {
	t.Helper()
	for _, c := range d.Charts {
		if c.ID == id {
			return c
		}
	}
	require.Failf(t, "chart not found", "id %q", id)
	return Chart{}
}

func TestBuildEmpty(t *testing.T) {
	d := Build(nil, true)

	assert.True(t, d.DarkMode)
	assert.Empty(t, d.Charts)
	require.Len(t, d.Sections, 1)
	assert.Equal(t, "No stats yet", d.Sections[0].Name)
	assert.Equal(t, "N/A", d.LastUpdateTime)
}

func TestBuildCharts(t *testing.T) {
	items := []stats.Snapshot{
		sample(100, 10, []float64{5, 15}),
		sample(103, 30, []float64{25, 35}),
	}

	d := Build(items, false)

	ids := make([]string, 0, len(d.Charts))
	for _, c := range d.Charts {
		ids = append(ids, c.ID)
		assert.Len(t, c.XValues, 2, c.ID)
	}
	assert.Equal(t, []string{
		"cpu-usage-chart",
		"cpu-temp-chart",
		"ram-chart",
		"load-average-chart",
		"network-usage-chart",
		"network-errors-chart",
		"sockets-chart",
	}, ids)

	cpu := chartByID(t, d, "cpu-usage-chart")
	require.Len(t, cpu.Datasets, 3)
	assert.Equal(t, []float64{10, 30}, cpu.Datasets[0].Values)
	assert.Equal(t, "CPU 1", cpu.Datasets[2].Name)
	assert.Equal(t, []float64{15, 35}, cpu.Datasets[2].Values)
	assert.Equal(t, cpuPerCoreLineColorLight, cpu.Datasets[1].LineColor)
	assert.Equal(t, []string{"30.00%"}, cpu.Notes)

	mem := chartByID(t, d, "ram-chart")
	assert.Equal(t, 1000.0, mem.MaxY)
	assert.Equal(t, []string{"250 / 1000 MB", "25.00%"}, mem.Notes)

	usage := chartByID(t, d, "network-usage-chart")
	assert.Equal(t, []float64{3, 3}, usage.Datasets[0].Values)
	assert.Equal(t, []float64{4, 4}, usage.Datasets[1].Values)

	errs := chartByID(t, d, "network-errors-chart")
	assert.Equal(t, []string{"1 send, 2 receive"}, errs.Notes)

	sockets := chartByID(t, d, "sockets-chart")
	assert.Equal(t, []float64{5, 5}, sockets.Datasets[0].Values)
	assert.Equal(t, []float64{2, 2}, sockets.Datasets[1].Values)

	assert.Equal(t, "1970-01-01T00:01:43.000Z", d.LastUpdateTime)
}

func TestBuildDarkModeCoreColor(t *testing.T) {
	d := Build([]stats.Snapshot{sample(1, 1, []float64{1})}, true)

	cpu := chartByID(t, d, "cpu-usage-chart")
	assert.Equal(t, cpuPerCoreLineColorDark, cpu.Datasets[1].LineColor)
}

func TestBuildAbsentFieldsReadAsZero(t *testing.T) {
	sparse := stats.Snapshot{CollectionTime: time.Unix(200, 0)}
	items := []stats.Snapshot{sample(100, 40, []float64{40, 40, 40}), sparse}

	d := Build(items, false)

	cpu := chartByID(t, d, "cpu-usage-chart")
	assert.Equal(t, []float64{40, 0}, cpu.Datasets[0].Values)
	require.Len(t, cpu.Datasets, 4, "core count is the widest sample")
	assert.Equal(t, []float64{40, 0}, cpu.Datasets[3].Values)

	mem := chartByID(t, d, "ram-chart")
	assert.Equal(t, []float64{250, 0}, mem.Datasets[0].Values)
	assert.Equal(t, []string{"-- / -- MB", "--%"}, mem.Notes)

	assert.Empty(t, d.Sections, "latest snapshot has nothing to summarize")
}

func TestBuildSections(t *testing.T) {
	d := Build([]stats.Snapshot{sample(100, 10, []float64{10})}, false)

	require.Len(t, d.Sections, 3)
	assert.Equal(t, "General", d.Sections[0].Name)
	assert.Equal(t, "Uptime: 3600 seconds", d.Sections[0].Stats[0])

	fs := d.Sections[1]
	assert.Equal(t, "Filesystems", fs.Name)
	require.Len(t, fs.Subsections, 1)
	assert.Equal(t, "/", fs.Subsections[0].Name)
	assert.Equal(t, "10 / 40 MB used (25.00%)", fs.Subsections[0].Stats[0])

	network := d.Sections[2]
	assert.Equal(t, "Network", network.Name)
	require.Len(t, network.Subsections, 2)
	assert.Equal(t, "Addresses: 10.0.0.2", network.Subsections[0].Stats[0])
}

func TestBuildGPUChartOnlyWithReadings(t *testing.T) {
	plain := Build([]stats.Snapshot{sample(1, 1, nil)}, false)
	for _, c := range plain.Charts {
		assert.NotEqual(t, "gpu-chart", c.ID)
	}

	withGPU := sample(2, 1, nil)
	withGPU.GPU = optional.Of(stats.GPUStats{
		Name:               "RTX",
		TempCelsius:        optional.Of(60.0),
		UtilizationPercent: optional.Of(75.0),
	})

	d := Build([]stats.Snapshot{sample(1, 1, nil), withGPU}, false)
	gpu := chartByID(t, d, "gpu-chart")
	assert.Equal(t, []float64{0, 75}, gpu.Datasets[0].Values)
	assert.Equal(t, []float64{0, 60}, gpu.Datasets[1].Values)
	assert.Equal(t, []string{"RTX", "75%, 60°C"}, gpu.Notes)
}
