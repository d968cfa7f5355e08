// Package gpu reads telemetry from the first NVIDIA device through NVML.
// Every reading is optional; the package never changes device state.
package gpu

import (
	"sync"

	"codeberg.org/mutker/hoststat/internal/errors"
	"codeberg.org/mutker/hoststat/internal/logger"
	"codeberg.org/mutker/hoststat/internal/optional"
	"codeberg.org/mutker/hoststat/internal/stats"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// device is the subset of nvml.Device the reader uses.
type device interface {
	GetName() (string, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetFanSpeed() (uint32, nvml.Return)
}

// Reader samples one GPU.
type Reader struct {
	device device
	name   string
	log    logger.Logger
	mu     sync.Mutex
	closed bool
}

// New initializes NVML and opens device 0. It fails when no driver or device
// is present, which callers treat as "no GPU stats".
func New() (*Reader, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}
	if count == 0 {
		nvml.Shutdown()
		return nil, errFactory.New(ErrDeviceNotFound)
	}

	dev, ret := nvml.DeviceGetHandleByIndex(0)
	if !IsNVMLSuccess(ret) {
		nvml.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	r := newReader(dev)
	r.log.Info().Str("name", r.name).Int("devices", count).Msg("Detected GPU")

	return r, nil
}

func newReader(dev device) *Reader {
	r := &Reader{
		device: dev,
		log:    logger.With("gpu"),
	}

	if name, ret := dev.GetName(); IsNVMLSuccess(ret) {
		r.name = name
	} else {
		r.log.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return r
}

// Read returns the current readings. Metrics the device does not support
// are left absent.
func (r *Reader) Read() stats.GPUStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := stats.GPUStats{Name: r.name}
	if r.closed {
		return out
	}

	if temp, ret := r.device.GetTemperature(nvml.TEMPERATURE_GPU); r.ok("temperature", ret) {
		out.TempCelsius = optional.Of(float64(temp))
	}

	if util, ret := r.device.GetUtilizationRates(); r.ok("utilization", ret) {
		out.UtilizationPercent = optional.Of(float64(util.Gpu))
		out.MemoryUtilizationPercent = optional.Of(float64(util.Memory))
	}

	if power, ret := r.device.GetPowerUsage(); r.ok("power usage", ret) {
		out.PowerWatts = optional.Of(float64(power) / milliWattsToWatts)
	}

	if fan, ret := r.device.GetFanSpeed(); r.ok("fan speed", ret) {
		out.FanSpeedPercent = optional.Of(float64(fan))
	}

	return out
}

func (r *Reader) ok(metric string, ret nvml.Return) bool {
	if IsNVMLSuccess(ret) {
		return true
	}

	event := r.log.Warn()
	if isNotSupported(ret) {
		event = r.log.Debug()
	}
	event.Str("metric", metric).Msgf("Failed to read GPU metric: %v", nvml.ErrorString(ret))

	return false
}

// Shutdown releases NVML. Read returns only the device name afterwards.
func (r *Reader) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	return nil
}
