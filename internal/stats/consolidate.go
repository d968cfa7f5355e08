package stats

import (
	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/optional"
)

// Consolidate reduces an ordered batch of snapshots into one.
//
// Numeric fields are averaged over the snapshots in which they are present;
// absent readings are skipped rather than counted as zero. Socket counts are
// averaged and rounded. Structural fields (uptime, boot time, filesystems,
// network interfaces) take the value of the last snapshot, as does the
// collection time. An empty batch is a caller error.
func Consolidate(batch []Snapshot) (Snapshot, error) {
	if len(batch) == 0 {
		return Snapshot{}, errors.New().New(ErrEmptyBatch)
	}

	var c consolidator
	for i := range batch {
		c.add(&batch[i])
	}

	return c.result(&batch[len(batch)-1]), nil
}

type consolidator struct {
	load1, load5, load15 meanAcc

	perCPU    vectorMeanAcc
	aggregate meanAcc
	cpuTemp   meanAcc

	memUsed, memTotal meanAcc

	tcp, tcpOrphaned, udp, tcp6, udp6 meanAcc

	gpuName                          optional.Value[string]
	gpuSeen                          bool
	gpuTemp, gpuUtil, gpuMem, gpuPow meanAcc
	gpuFan                           meanAcc
}

func (c *consolidator) add(s *Snapshot) {
	if la, ok := s.General.LoadAverages.Get(); ok {
		c.load1.add(la.OneMinute)
		c.load5.add(la.FiveMinutes)
		c.load15.add(la.FifteenMinutes)
	}

	if perCPU, ok := s.CPU.PerLogicalCPULoadPercent.Get(); ok {
		c.perCPU.add(perCPU)
	}
	addIfPresent(&c.aggregate, s.CPU.AggregateLoadPercent)
	addIfPresent(&c.cpuTemp, s.CPU.TempCelsius)

	if mem, ok := s.Memory.Get(); ok {
		c.memUsed.add(float64(mem.UsedMB))
		c.memTotal.add(float64(mem.TotalMB))
	}

	if sockets, ok := s.Network.Sockets.Get(); ok {
		c.tcp.add(float64(sockets.TCPInUse))
		c.tcpOrphaned.add(float64(sockets.TCPOrphaned))
		c.udp.add(float64(sockets.UDPInUse))
		c.tcp6.add(float64(sockets.TCP6InUse))
		c.udp6.add(float64(sockets.UDP6InUse))
	}

	if gpu, ok := s.GPU.Get(); ok {
		c.gpuSeen = true
		c.gpuName = optional.Of(gpu.Name)
		addIfPresent(&c.gpuTemp, gpu.TempCelsius)
		addIfPresent(&c.gpuUtil, gpu.UtilizationPercent)
		addIfPresent(&c.gpuMem, gpu.MemoryUtilizationPercent)
		addIfPresent(&c.gpuPow, gpu.PowerWatts)
		addIfPresent(&c.gpuFan, gpu.FanSpeedPercent)
	}
}

func (c *consolidator) result(last *Snapshot) Snapshot {
	out := Snapshot{
		General: GeneralStats{
			UptimeSeconds: last.General.UptimeSeconds,
			BootTimestamp: last.General.BootTimestamp,
		},
		CPU: CPUStats{
			AggregateLoadPercent: meanOf(&c.aggregate),
			TempCelsius:          meanOf(&c.cpuTemp),
		},
		Filesystems: last.Filesystems,
		Network: NetworkStats{
			Interfaces: last.Network.Interfaces,
		},
		CollectionTime: last.CollectionTime,
	}

	if c.load1.present() {
		out.General.LoadAverages = optional.Of(LoadAverages{
			OneMinute:      c.load1.mean,
			FiveMinutes:    c.load5.mean,
			FifteenMinutes: c.load15.mean,
		})
	}

	if c.perCPU.present() {
		perCPU := make([]float64, len(c.perCPU.mean))
		copy(perCPU, c.perCPU.mean)
		out.CPU.PerLogicalCPULoadPercent = optional.Of(perCPU)
	}

	if c.memUsed.present() {
		out.Memory = optional.Of(MemoryStats{
			UsedMB:  roundToUint(c.memUsed.mean),
			TotalMB: roundToUint(c.memTotal.mean),
		})
	}

	if c.tcp.present() {
		out.Network.Sockets = optional.Of(SocketStats{
			TCPInUse:    roundToUint(c.tcp.mean),
			TCPOrphaned: roundToUint(c.tcpOrphaned.mean),
			UDPInUse:    roundToUint(c.udp.mean),
			TCP6InUse:   roundToUint(c.tcp6.mean),
			UDP6InUse:   roundToUint(c.udp6.mean),
		})
	}

	if c.gpuSeen {
		out.GPU = optional.Of(GPUStats{
			Name:                     c.gpuName.OrElse(""),
			TempCelsius:              meanOf(&c.gpuTemp),
			UtilizationPercent:       meanOf(&c.gpuUtil),
			MemoryUtilizationPercent: meanOf(&c.gpuMem),
			PowerWatts:               meanOf(&c.gpuPow),
			FanSpeedPercent:          meanOf(&c.gpuFan),
		})
	}

	return out
}

func addIfPresent(acc *meanAcc, v optional.Value[float64]) {
	if value, ok := v.Get(); ok {
		acc.add(value)
	}
}

func meanOf(acc *meanAcc) optional.Value[float64] {
	if !acc.present() {
		return optional.None[float64]()
	}
	return optional.Of(acc.mean)
}
