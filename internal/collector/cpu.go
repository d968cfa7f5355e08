package collector

import (
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

// cpuWindow holds the CPU counters read at the start of a measurement.
type cpuWindow struct {
	perCPU    []cpu.TimesStat
	perCPUErr error
	total     []cpu.TimesStat
	totalErr  error
}

func (s *System) startCPUWindow() cpuWindow {
	var w cpuWindow
	w.perCPU, w.perCPUErr = cpu.Times(true)
	w.total, w.totalErr = cpu.Times(false)
	if w.perCPUErr != nil {
		s.ok("per-cpu load", w.perCPUErr)
	}
	if w.totalErr != nil {
		s.ok("aggregate cpu load", w.totalErr)
	}
	return w
}

// Sensor keys that report the package or die temperature, in preference order.
var cpuSensorPrefixes = []string{
	"coretemp_package_id_0",
	"k10temp_tctl",
	"k10temp_tdie",
	"zenpower_tdie",
	"cpu_thermal",
	"cpu-thermal",
	"soc_thermal",
	"acpitz",
}

func cpuTemperature(temps []host.TemperatureStat) (float64, bool) {
	for _, prefix := range cpuSensorPrefixes {
		for _, t := range temps {
			if strings.HasPrefix(strings.ToLower(t.SensorKey), prefix) && t.Temperature > 0 {
				return t.Temperature, true
			}
		}
	}
	return 0, false
}

func perCPULoad(before, after []cpu.TimesStat) ([]float64, bool) {
	if len(before) == 0 || len(before) != len(after) {
		return nil, false
	}

	out := make([]float64, len(after))
	for i := range after {
		out[i] = busyPercent(before[i], after[i])
	}

	return out, true
}

// busyPercent is the non-idle share of the time elapsed between two readings.
func busyPercent(before, after cpu.TimesStat) float64 {
	total := totalTime(after) - totalTime(before)
	if total <= 0 {
		return 0
	}

	idle := (after.Idle + after.Iowait) - (before.Idle + before.Iowait)
	busy := (total - idle) / total * 100

	switch {
	case busy < 0:
		return 0
	case busy > 100:
		return 100
	default:
		return busy
	}
}

func totalTime(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
}
