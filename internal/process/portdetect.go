package process

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kdlbs/procd/internal/logger"
)

// PortDetectorConfig tunes the port detector's polling loop.
type PortDetectorConfig struct {
	WarmUp       time.Duration
	PollInterval time.Duration
	MaxPolls     int
	StablePolls  int // consecutive non-empty, unchanged polls before stopping early
}

func (c PortDetectorConfig) withDefaults() PortDetectorConfig {
	if c.WarmUp <= 0 {
		c.WarmUp = 3 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 30
	}
	if c.StablePolls <= 0 {
		c.StablePolls = 3
	}
	return c
}

// RunPortDetector sleeps for warm-up, then polls the process tree for
// listening TCP ports every interval, updating rec's port set whenever
// it changes, until rec stops running, the set is stable for
// StablePolls consecutive polls, or MaxPolls is reached. Detection is
// best effort; probe failures are swallowed.
func RunPortDetector(ctx context.Context, rec *Record, cfg PortDetectorConfig, log *logger.Logger) {
	cfg = cfg.withDefaults()

	select {
	case <-ctx.Done():
		return
	case <-time.After(cfg.WarmUp):
	}

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	stableCount := 0
	var lastPorts map[int]struct{}

	for poll := 0; poll < cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if rec.Status() != StatusRunning {
			return
		}

		pid := rec.PID()
		if pid == 0 {
			continue
		}

		ports := detectListeningPorts(pid)
		if !portSetEqual(ports, lastPorts) {
			rec.SetPorts(ports)
			lastPorts = ports
			stableCount = 0
			log.Debug("ports changed", zap.String("key", rec.Key.String()), zap.Int("count", len(ports)))
		} else if len(ports) > 0 {
			stableCount++
			if stableCount >= cfg.StablePolls {
				return
			}
		}
	}
}

// detectListeningPorts enumerates rec's process tree and unions the
// listening TCP ports of every pid in it, using pgrep for the tree and
// lsof for socket state.
func detectListeningPorts(pid int) map[int]struct{} {
	pids := processTree(pid)
	ports := make(map[int]struct{})
	for _, p := range pids {
		for _, port := range lsofListeningPorts(p) {
			ports[port] = struct{}{}
		}
	}
	return ports
}

func processTree(pid int) []int {
	pids := []int{pid}
	seen := map[int]bool{pid: true}

	var walk func(int)
	walk = func(p int) {
		out, err := exec.Command("pgrep", "-P", strconv.Itoa(p)).Output()
		if err != nil {
			return
		}
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			child, err := strconv.Atoi(line)
			if err != nil || seen[child] {
				continue
			}
			seen[child] = true
			pids = append(pids, child)
			walk(child)
		}
	}
	walk(pid)
	return pids
}

func lsofListeningPorts(pid int) []int {
	out, err := exec.Command("lsof", "-Pan", "-p", strconv.Itoa(pid), "-iTCP", "-sTCP:LISTEN").Output()
	if err != nil {
		return nil
	}

	var ports []int
	lines := strings.Split(string(out), "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		name := fields[8]
		if port, ok := extractPort(name); ok {
			ports = append(ports, port)
		}
	}
	return ports
}

// extractPort parses the NAME column of lsof output: "*:3000",
// "127.0.0.1:8080", or "[::]:3000".
func extractPort(name string) (int, bool) {
	var portStr string
	if idx := strings.LastIndex(name, "]:"); idx >= 0 {
		portStr = name[idx+2:]
	} else if idx := strings.LastIndex(name, ":"); idx >= 0 {
		portStr = name[idx+1:]
	} else {
		return 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, false
	}
	return port, true
}

func portSetEqual(a, b map[int]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for p := range a {
		if _, ok := b[p]; !ok {
			return false
		}
	}
	return true
}
