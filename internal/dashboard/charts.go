package dashboard

import (
	"fmt"

	"codeberg.org/mutker/hoststat/internal/stats"
)

const (
	cpuPerCoreLineColorLight = "#00000044"
	cpuPerCoreLineColorDark  = "#ffffff44"
	cpuAggregateLineColor    = "#ffcc00"
	cpuAggregateFillColor    = "#ffcc0099"

	temperatureLineColor = "#990000"
	temperatureFillColor = "#99000099"

	memoryLineColor = "#0055ff"
	memoryFillColor = "#0055ff99"

	sentLineColor     = "#44eeaa"
	sentFillColor     = "#44eeaa99"
	receivedLineColor = "#44ee77"
	receivedFillColor = "#44ee7799"

	sendErrorsLineColor    = "#ff8800"
	sendErrorsFillColor    = "#ff880099"
	receiveErrorsLineColor = "#ff6600"
	receiveErrorsFillColor = "#ff660099"

	tcpLineColor = "#44eedd"
	tcpFillColor = "#44eedd99"
	udpLineColor = "#44bbdd"
	udpFillColor = "#44bbdd99"

	load1LineColor  = "#ff00ff"
	load1FillColor  = "#ff00ff99"
	load5LineColor  = "#bb00ff"
	load5FillColor  = "#bb00ff99"
	load15LineColor = "#7700ff"
	load15FillColor = "#7700ff99"

	gpuTempLineColor = "#cc3300"
	gpuUtilLineColor = "#76b900"
	gpuUtilFillColor = "#76b90099"

	maxCPUTemp = 85
)

func filled(name, line, fill string, values []float64) Dataset {
	return Dataset{Name: name, LineColor: line, FillColor: fill, Values: values, Fill: true}
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func cpuCharts(items []stats.Snapshot, xValues []string, darkMode bool) []Chart {
	aggregate := make([]float64, len(items))
	temps := make([]float64, len(items))
	cores := 0

	for i, s := range items {
		aggregate[i] = s.CPU.AggregateLoadPercent.OrElse(0)
		temps[i] = s.CPU.TempCelsius.OrElse(0)
		cores = max(cores, len(s.CPU.PerLogicalCPULoadPercent.OrElse(nil)))
	}

	datasets := []Dataset{filled("Aggregate", cpuAggregateLineColor, cpuAggregateFillColor, aggregate)}

	coreColor := cpuPerCoreLineColorLight
	if darkMode {
		coreColor = cpuPerCoreLineColorDark
	}

	// One series per core; samples missing that core read as 0.
	for core := 0; core < cores; core++ {
		values := make([]float64, len(items))
		for i, s := range items {
			loads := s.CPU.PerLogicalCPULoadPercent.OrElse(nil)
			if core < len(loads) {
				values[i] = loads[core]
			}
		}
		datasets = append(datasets, Dataset{
			Name:      fmt.Sprintf("CPU %d", core),
			LineColor: coreColor,
			Values:    values,
		})
	}

	return []Chart{
		{
			ID:       "cpu-usage-chart",
			Title:    "CPU Usage",
			Datasets: datasets,
			XLabel:   xLabel,
			YLabel:   "Usage (%)",
			XValues:  xValues,
			MaxY:     100,
			Notes:    []string{fmt.Sprintf("%.2f%%", last(aggregate))},
		},
		{
			ID:       "cpu-temp-chart",
			Title:    "Temperature",
			Datasets: []Dataset{filled("Celsius", temperatureLineColor, temperatureFillColor, temps)},
			XLabel:   xLabel,
			YLabel:   "Temperature (C)",
			XValues:  xValues,
			MaxY:     maxCPUTemp,
			Notes:    []string{fmt.Sprintf("%.2f°C", last(temps))},
		},
	}
}

func memoryChart(items []stats.Snapshot, xValues []string) Chart {
	used := make([]float64, len(items))
	var totalMB uint64

	for i, s := range items {
		if m, ok := s.Memory.Get(); ok {
			used[i] = float64(m.UsedMB)
			totalMB = max(totalMB, m.TotalMB)
		}
	}

	notes := []string{"-- / -- MB", "--%"}
	if m, ok := items[len(items)-1].Memory.Get(); ok {
		notes = []string{
			fmt.Sprintf("%d / %d MB", m.UsedMB, m.TotalMB),
			percentText(m.UsedMB, m.TotalMB),
		}
	}

	return Chart{
		ID:       "ram-chart",
		Title:    "Memory Usage",
		Datasets: []Dataset{filled("MB Used", memoryLineColor, memoryFillColor, used)},
		XLabel:   xLabel,
		YLabel:   "Usage (MB)",
		XValues:  xValues,
		MaxY:     float64(totalMB),
		Notes:    notes,
	}
}

func loadAverageChart(items []stats.Snapshot, xValues []string) Chart {
	one := make([]float64, len(items))
	five := make([]float64, len(items))
	fifteen := make([]float64, len(items))

	for i, s := range items {
		if l, ok := s.General.LoadAverages.Get(); ok {
			one[i] = l.OneMinute
			five[i] = l.FiveMinutes
			fifteen[i] = l.FifteenMinutes
		}
	}

	return Chart{
		ID:    "load-average-chart",
		Title: "Load Averages",
		Datasets: []Dataset{
			filled("1 minute", load1LineColor, load1FillColor, one),
			filled("5 minutes", load5LineColor, load5FillColor, five),
			filled("15 minutes", load15LineColor, load15FillColor, fifteen),
		},
		XLabel:  xLabel,
		YLabel:  "Load average",
		XValues: xValues,
		Notes:   []string{fmt.Sprintf("1: %.2f, 5: %.2f, 15: %.2f", last(one), last(five), last(fifteen))},
	}
}

func networkCharts(items []stats.Snapshot, xValues []string) []Chart {
	n := len(items)
	sent, received := make([]float64, n), make([]float64, n)
	sendErrs, receiveErrs := make([]float64, n), make([]float64, n)
	tcp, udp := make([]float64, n), make([]float64, n)

	for i, s := range items {
		for _, iface := range s.Network.Interfaces.OrElse(nil) {
			sent[i] += toMB(iface.SentBytes)
			received[i] += toMB(iface.ReceivedBytes)
			sendErrs[i] += float64(iface.SendErrors)
			receiveErrs[i] += float64(iface.ReceiveErrors)
		}
		if sockets, ok := s.Network.Sockets.Get(); ok {
			tcp[i] = float64(sockets.TCPInUse + sockets.TCP6InUse)
			udp[i] = float64(sockets.UDPInUse + sockets.UDP6InUse)
		}
	}

	return []Chart{
		{
			ID:    "network-usage-chart",
			Title: "Cumulative Network Usage",
			Datasets: []Dataset{
				filled("Sent", sentLineColor, sentFillColor, sent),
				filled("Received", receivedLineColor, receivedFillColor, received),
			},
			XLabel:  xLabel,
			YLabel:  "Total (MB)",
			XValues: xValues,
			Notes:   []string{fmt.Sprintf("%.2f MB sent, %.2f MB received", last(sent), last(received))},
		},
		{
			ID:    "network-errors-chart",
			Title: "Cumulative Network Errors",
			Datasets: []Dataset{
				filled("Send", sendErrorsLineColor, sendErrorsFillColor, sendErrs),
				filled("Receive", receiveErrorsLineColor, receiveErrorsFillColor, receiveErrs),
			},
			XLabel:  xLabel,
			YLabel:  "Total errors",
			XValues: xValues,
			Notes:   []string{fmt.Sprintf("%.0f send, %.0f receive", last(sendErrs), last(receiveErrs))},
		},
		{
			ID:    "sockets-chart",
			Title: "Socket Usage",
			Datasets: []Dataset{
				filled("TCP", tcpLineColor, tcpFillColor, tcp),
				filled("UDP", udpLineColor, udpFillColor, udp),
			},
			XLabel:  xLabel,
			YLabel:  "Sockets",
			XValues: xValues,
			Notes:   []string{fmt.Sprintf("%.0f TCP, %.0f UDP", last(tcp), last(udp))},
		},
	}
}

// gpuChart is only drawn when at least one item carries GPU readings.
func gpuChart(items []stats.Snapshot, xValues []string) (Chart, bool) {
	if !anyGPU(items) {
		return Chart{}, false
	}

	temps := make([]float64, len(items))
	util := make([]float64, len(items))
	name := ""

	for i, s := range items {
		g, ok := s.GPU.Get()
		if !ok {
			continue
		}
		name = g.Name
		temps[i] = g.TempCelsius.OrElse(0)
		util[i] = g.UtilizationPercent.OrElse(0)
	}

	return Chart{
		ID:    "gpu-chart",
		Title: "GPU",
		Datasets: []Dataset{
			filled("Utilization (%)", gpuUtilLineColor, gpuUtilFillColor, util),
			{Name: "Temperature (C)", LineColor: gpuTempLineColor, Values: temps},
		},
		XLabel:  xLabel,
		YLabel:  "Percent / Celsius",
		XValues: xValues,
		MaxY:    100,
		Notes:   []string{name, fmt.Sprintf("%.0f%%, %.0f°C", last(util), last(temps))},
	}, true
}

func anyGPU(items []stats.Snapshot) bool {
	for _, s := range items {
		if s.GPU.IsPresent() {
			return true
		}
	}
	return false
}
