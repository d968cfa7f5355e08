package collector

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/hoststat/internal/stats"
)

// readSockstat reads socket usage from <procRoot>/net/sockstat and, when
// IPv6 is enabled, <procRoot>/net/sockstat6.
func readSockstat(procRoot string) (stats.SocketStats, error) {
	var out stats.SocketStats

	f, err := os.Open(filepath.Join(procRoot, "net", "sockstat"))
	if err != nil {
		return out, err
	}
	defer f.Close()

	if err := parseSockstat(f, &out); err != nil {
		return out, err
	}

	f6, err := os.Open(filepath.Join(procRoot, "net", "sockstat6"))
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, err
	}
	defer f6.Close()

	return out, parseSockstat(f6, &out)
}

// parseSockstat fills out from lines like "TCP: inuse 5 orphan 0 tw 2".
func parseSockstat(r io.Reader, out *stats.SocketStats) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		proto, rest, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}

		values := sockstatFields(rest)
		switch proto {
		case "TCP":
			out.TCPInUse = values["inuse"]
			out.TCPOrphaned = values["orphan"]
		case "UDP":
			out.UDPInUse = values["inuse"]
		case "TCP6":
			out.TCP6InUse = values["inuse"]
		case "UDP6":
			out.UDP6InUse = values["inuse"]
		}
	}

	return scanner.Err()
}

func sockstatFields(s string) map[string]uint64 {
	fields := strings.Fields(s)
	values := make(map[string]uint64, len(fields)/2)

	for i := 0; i+1 < len(fields); i += 2 {
		if v, err := strconv.ParseUint(fields[i+1], 10, 64); err == nil {
			values[fields[i]] = v
		}
	}

	return values
}
