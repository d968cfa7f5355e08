// Package collector gathers host snapshots from the operating system.
package collector

import (
	"net/netip"
	"sort"
	"strings"
	"time"

	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// GPUReader provides optional GPU readings.
type GPUReader interface {
	Read() stats.GPUStats
	Shutdown() error
}

// Options configures a System collector.
type Options struct {
	// GPU is read on every sample when set.
	GPU GPUReader
	// ProcRoot is where sockstat files are read from. Defaults to /proc.
	ProcRoot string
}

// System samples the local host. Every field is optional: a failed reading
// is logged and left absent.
type System struct {
	gpu      GPUReader
	procRoot string
	log      logger.Logger
}

var _ stats.Sampler = (*System)(nil)

// New returns a collector for the local host.
func New(opts Options) *System {
	procRoot := opts.ProcRoot
	if procRoot == "" {
		procRoot = "/proc"
	}

	return &System{
		gpu:      opts.GPU,
		procRoot: procRoot,
		log:      logger.With("collector"),
	}
}

// Sample measures CPU load across cpuSampleDuration and reads everything
// else once the measurement window has elapsed.
func (s *System) Sample(cpuSampleDuration time.Duration) stats.Snapshot {
	window := s.startCPUWindow()
	if cpuSampleDuration > 0 {
		time.Sleep(cpuSampleDuration)
	}

	snapshot := stats.Snapshot{
		General:     s.general(),
		CPU:         s.cpu(window),
		Memory:      s.memory(),
		Filesystems: s.filesystems(),
		Network:     s.network(),
	}

	if s.gpu != nil {
		snapshot.GPU = optional.Of(s.gpu.Read())
	}

	snapshot.CollectionTime = time.Now()

	return snapshot
}

// Close releases the GPU reader, if any.
func (s *System) Close() error {
	if s.gpu == nil {
		return nil
	}
	return s.gpu.Shutdown()
}

func (s *System) general() stats.GeneralStats {
	var out stats.GeneralStats

	if uptime, err := host.Uptime(); s.ok("uptime", err) {
		out.UptimeSeconds = optional.Of(uptime)
	}

	if boot, err := host.BootTime(); s.ok("boot time", err) {
		out.BootTimestamp = optional.Of(int64(boot))
	}

	if avg, err := load.Avg(); s.ok("load average", err) {
		out.LoadAverages = optional.Of(stats.LoadAverages{
			OneMinute:      avg.Load1,
			FiveMinutes:    avg.Load5,
			FifteenMinutes: avg.Load15,
		})
	}

	return out
}

func (s *System) cpu(window cpuWindow) stats.CPUStats {
	var out stats.CPUStats

	if window.perCPUErr == nil {
		after, err := cpu.Times(true)
		if loads, ok := perCPULoad(window.perCPU, after); s.ok("per-cpu load", err) && ok {
			out.PerLogicalCPULoadPercent = optional.Of(loads)
		}
	}

	if window.totalErr == nil {
		after, err := cpu.Times(false)
		if s.ok("aggregate cpu load", err) && len(after) > 0 && len(window.total) > 0 {
			out.AggregateLoadPercent = optional.Of(busyPercent(window.total[0], after[0]))
		}
	}

	temps, err := host.SensorsTemperatures()
	if len(temps) == 0 {
		s.ok("cpu temperature", err)
	} else if temp, ok := cpuTemperature(temps); ok {
		out.TempCelsius = optional.Of(temp)
	}

	return out
}

func (s *System) memory() optional.Value[stats.MemoryStats] {
	vm, err := mem.VirtualMemory()
	if !s.ok("memory", err) {
		return optional.None[stats.MemoryStats]()
	}

	return optional.Of(stats.MemoryStats{
		UsedMB:  saturatingSub(vm.Total, vm.Free) / stats.BytesPerMB,
		TotalMB: vm.Total / stats.BytesPerMB,
	})
}

func (s *System) filesystems() optional.Value[[]stats.MountStats] {
	partitions, err := disk.Partitions(false)
	if !s.ok("filesystems", err) {
		return optional.None[[]stats.MountStats]()
	}

	return optional.Of(mountStats(partitions, func(path string) (*disk.UsageStat, error) {
		usage, err := disk.Usage(path)
		if err != nil {
			s.log.Debug().Str("mount", path).Msgf("Failed to read filesystem usage: %v", err)
		}
		return usage, err
	}))
}

func (s *System) network() stats.NetworkStats {
	var out stats.NetworkStats

	ifaces, ifErr := net.Interfaces()
	counters, ctrErr := net.IOCounters(true)
	if s.ok("network interfaces", ifErr) && s.ok("network counters", ctrErr) {
		out.Interfaces = optional.Of(interfaceStats(ifaces, counters))
	}

	if sockets, err := readSockstat(s.procRoot); s.ok("sockets", err) {
		out.Sockets = optional.Of(sockets)
	}

	return out
}

// ok logs err and reports whether the reading succeeded. Readings the
// platform does not provide are logged at debug level.
func (s *System) ok(field string, err error) bool {
	if err == nil {
		return true
	}

	event := s.log.Warn()
	if isNotImplemented(err) {
		event = s.log.Debug()
	}
	event.Str("field", field).Msgf("Failed to read host stats: %v", err)

	return false
}

func isNotImplemented(err error) bool {
	return strings.Contains(err.Error(), "not implemented")
}

func mountStats(partitions []disk.PartitionStat, usage func(string) (*disk.UsageStat, error)) []stats.MountStats {
	out := make([]stats.MountStats, 0, len(partitions))

	for _, p := range partitions {
		u, err := usage(p.Mountpoint)
		if err != nil || u == nil || u.Total == 0 {
			continue
		}

		out = append(out, stats.MountStats{
			FSType:      p.Fstype,
			MountedFrom: p.Device,
			MountedOn:   p.Mountpoint,
			UsedMB:      saturatingSub(u.Total, u.Free) / stats.BytesPerMB,
			TotalMB:     u.Total / stats.BytesPerMB,
		})
	}

	return out
}

func interfaceStats(ifaces net.InterfaceStatList, counters []net.IOCountersStat) []stats.InterfaceStats {
	byName := make(map[string]net.IOCountersStat, len(counters))
	for _, c := range counters {
		byName[c.Name] = c
	}

	out := make([]stats.InterfaceStats, 0, len(ifaces))
	for _, iface := range ifaces {
		c, ok := byName[iface.Name]
		if !ok {
			continue
		}

		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, stripPrefix(a.Addr))
		}

		out = append(out, stats.InterfaceStats{
			Name:            iface.Name,
			Addresses:       addrs,
			SentBytes:       c.BytesSent,
			ReceivedBytes:   c.BytesRecv,
			SentPackets:     c.PacketsSent,
			ReceivedPackets: c.PacketsRecv,
			SendErrors:      c.Errout,
			ReceiveErrors:   c.Errin,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// stripPrefix turns "192.168.1.2/24" into "192.168.1.2".
func stripPrefix(addr string) string {
	if prefix, err := netip.ParsePrefix(addr); err == nil {
		return prefix.Addr().String()
	}
	return addr
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
