// Package system reports process-level runtime statistics for supervision.
package system

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time snapshot of the gateway process.
type Stats struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`
	GoVersion     string  `json:"goVersion"`
	RSSBytes      uint64  `json:"rssBytes,omitempty"`
	CPUPercent    float64 `json:"cpuPercent,omitempty"`
	PID           int     `json:"pid"`
}

// Service samples the current process. Sub-field failures degrade to zero
// values; a snapshot never fails outright.
type Service struct {
	started time.Time
	proc    *process.Process
}

// NewService creates the stats service.
func NewService() *Service {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &Service{started: time.Now(), proc: proc}
}

// Snapshot returns current process statistics.
func (s *Service) Snapshot() Stats {
	stats := Stats{
		UptimeSeconds: time.Since(s.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		PID:           os.Getpid(),
	}

	if s.proc != nil {
		if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
			stats.RSSBytes = mem.RSS
		}
		if cpu, err := s.proc.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}
