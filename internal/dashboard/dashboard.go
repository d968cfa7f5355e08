// Package dashboard turns a chronological run of snapshots into chart
// datasets and summary sections for display.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"codeberg.org/mutker/hoststat/internal/stats"
)

const (
	title          = "Dashboard"
	noStatsSection = "No stats yet"
	notAvailable   = "N/A"
	xLabel         = "Time"
	timeLabel      = "03:04:05 PM"
)

type Dashboard struct {
	Title          string    `json:"title"`
	DarkMode       bool      `json:"darkMode"`
	Charts         []Chart   `json:"charts"`
	Sections       []Section `json:"sections"`
	LastUpdateTime string    `json:"lastUpdateTime"`
}

type Chart struct {
	// ID is unique within a dashboard.
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Datasets []Dataset `json:"datasets"`
	XLabel   string    `json:"xLabel"`
	YLabel   string    `json:"yLabel"`
	XValues  []string  `json:"xValues"`
	MinY     float64   `json:"minY"`
	// MaxY of 0 lets the renderer scale the axis.
	MaxY  float64  `json:"maxY"`
	Notes []string `json:"notes"`
}

type Dataset struct {
	Name      string    `json:"name"`
	LineColor string    `json:"lineColor"`
	FillColor string    `json:"fillColor,omitempty"`
	Values    []float64 `json:"values"`
	Fill      bool      `json:"fill"`
}

type Section struct {
	Name        string       `json:"name"`
	Stats       []string     `json:"stats"`
	Subsections []Subsection `json:"subsections"`
}

type Subsection struct {
	Name  string   `json:"name"`
	Stats []string `json:"stats"`
}

// Build renders items, oldest first. The most recent item supplies the
// summary sections.
func Build(items []stats.Snapshot, darkMode bool) Dashboard {
	d := Dashboard{
		Title:    title,
		DarkMode: darkMode,
		Charts:   []Chart{},
	}

	if len(items) == 0 {
		d.Sections = []Section{{Name: noStatsSection, Stats: []string{}, Subsections: []Subsection{}}}
		d.LastUpdateTime = notAvailable
		return d
	}

	latest := items[len(items)-1]

	d.Sections = []Section{}
	if s, ok := generalSection(latest.General); ok {
		d.Sections = append(d.Sections, s)
	}
	if mounts, ok := latest.Filesystems.Get(); ok {
		d.Sections = append(d.Sections, filesystemsSection(mounts))
	}
	if s, ok := networkSection(latest.Network); ok {
		d.Sections = append(d.Sections, s)
	}

	xValues := timeLabels(items)
	d.Charts = append(d.Charts, cpuCharts(items, xValues, darkMode)...)
	d.Charts = append(d.Charts, memoryChart(items, xValues))
	d.Charts = append(d.Charts, loadAverageChart(items, xValues))
	d.Charts = append(d.Charts, networkCharts(items, xValues)...)
	if c, ok := gpuChart(items, xValues); ok {
		d.Charts = append(d.Charts, c)
	}

	d.LastUpdateTime = latest.CollectionTime.UTC().Format("2006-01-02T15:04:05.000Z07:00")

	return d
}

func timeLabels(items []stats.Snapshot) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.CollectionTime.Local().Format(timeLabel)
	}
	return out
}

func generalSection(g stats.GeneralStats) (Section, bool) {
	lines := []string{}

	if uptime, ok := g.UptimeSeconds.Get(); ok {
		lines = append(lines, fmt.Sprintf("Uptime: %d seconds", uptime))
	}
	if boot, ok := g.BootTimestamp.Get(); ok {
		lines = append(lines, "Boot time: "+time.Unix(boot, 0).Local().Format(time.RFC3339))
	}

	if len(lines) == 0 {
		return Section{}, false
	}

	return Section{Name: "General", Stats: lines, Subsections: []Subsection{}}, true
}

func filesystemsSection(mounts []stats.MountStats) Section {
	subsections := make([]Subsection, 0, len(mounts))
	for _, m := range mounts {
		subsections = append(subsections, Subsection{
			Name: m.MountedOn,
			Stats: []string{
				fmt.Sprintf("%d / %d MB used (%s)", m.UsedMB, m.TotalMB, percentText(m.UsedMB, m.TotalMB)),
				fmt.Sprintf("Type: %s", m.FSType),
				fmt.Sprintf("Mounted from: %s", m.MountedFrom),
			},
		})
	}

	return Section{Name: "Filesystems", Stats: []string{}, Subsections: subsections}
}

func networkSection(n stats.NetworkStats) (Section, bool) {
	ifaces, ok := n.Interfaces.Get()
	if !ok {
		return Section{}, false
	}

	subsections := make([]Subsection, 0, len(ifaces))
	for _, iface := range ifaces {
		lines := []string{}
		if len(iface.Addresses) > 0 {
			lines = append(lines, "Addresses: "+strings.Join(iface.Addresses, ", "))
		}
		lines = append(lines,
			fmt.Sprintf("%.2f MB sent, %.2f MB received", toMB(iface.SentBytes), toMB(iface.ReceivedBytes)),
			fmt.Sprintf("%d send errors, %d receive errors", iface.SendErrors, iface.ReceiveErrors),
		)
		subsections = append(subsections, Subsection{Name: iface.Name, Stats: lines})
	}

	return Section{Name: "Network", Stats: []string{}, Subsections: subsections}, true
}

func percentText(used, total uint64) string {
	if total == 0 {
		return "--%"
	}
	return fmt.Sprintf("%.2f%%", float64(used)/float64(total)*100)
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / stats.BytesPerMB
}
