package metrics

import (
	"os"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	CheckOK      = "ok"
	CheckWarning = "warning"
	CheckError   = "error"

	usageWarnPercent = 90.0
)

type Check struct {
	Status      string  `json:"status"`
	UsedPercent float64 `json:"used_percent,omitempty"`
	AvailableMB float64 `json:"available_mb,omitempty"`
	FreeGB      float64 `json:"free_gb,omitempty"`
	Exists      *bool   `json:"exists,omitempty"`
	Writable    *bool   `json:"writable,omitempty"`
	Detail      string  `json:"detail,omitempty"`
}

type Health struct {
	Timestamp time.Time        `json:"timestamp"`
	Status    string           `json:"status"`
	Checks    map[string]Check `json:"checks"`
}

// usage is what the platform probes report.
type usage struct {
	usedPercent float64
	free        uint64 // bytes
}

// CheckSystemHealth reports memory, disk and log directory checks. Any error
// check makes the host unhealthy; any warning makes it degraded.
func CheckSystemHealth(logsDir string) Health {
	h := Health{Timestamp: time.Now(), Status: StatusHealthy, Checks: map[string]Check{}}

	if mem, err := memoryUsage(); err != nil {
		h.Checks["memory"] = Check{Status: CheckWarning, Detail: err.Error()}
	} else {
		h.Checks["memory"] = Check{
			Status:      levelFor(mem.usedPercent),
			UsedPercent: mem.usedPercent,
			AvailableMB: float64(mem.free) / (1 << 20),
		}
	}

	if disk, err := diskUsage("/"); err != nil {
		h.Checks["disk"] = Check{Status: CheckWarning, Detail: err.Error()}
	} else {
		h.Checks["disk"] = Check{
			Status:      levelFor(disk.usedPercent),
			UsedPercent: disk.usedPercent,
			FreeGB:      float64(disk.free) / (1 << 30),
		}
	}

	h.Checks["logs_directory"] = logsDirCheck(logsDir)

	for _, c := range h.Checks {
		switch c.Status {
		case CheckError:
			h.Status = StatusUnhealthy
		case CheckWarning:
			if h.Status == StatusHealthy {
				h.Status = StatusDegraded
			}
		}
	}
	return h
}

func levelFor(usedPercent float64) string {
	if usedPercent < usageWarnPercent {
		return CheckOK
	}
	return CheckWarning
}

func logsDirCheck(dir string) Check {
	info, err := os.Stat(dir)
	exists := err == nil && info.IsDir()
	writable := exists && isWritable(dir)
	c := Check{Status: CheckError, Exists: &exists, Writable: &writable}
	if exists && writable {
		c.Status = CheckOK
	}
	return c
}
