package monitoring

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/process"
)

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddInferenceCheck adds a check that the inference server answers.
func (h *HealthChecker) AddInferenceCheck(p Pinger, timeout time.Duration) {
	h.AddCheck("inference", func(ctx context.Context) (bool, error) {
		if err := p.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddSessionCapacityCheck reports unhealthy once the session limit is reached.
func (h *HealthChecker) AddSessionCapacityCheck(active func() int, max int) {
	h.AddCheck("sessions", func(ctx context.Context) (bool, error) {
		return max <= 0 || active() < max, nil
	}, 0)
}

// ProcessStats is a snapshot of this process's resource usage.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
	OpenFiles  int     `json:"open_files,omitempty"`
}

// CollectProcessStats reads the current process's usage.
func CollectProcessStats(ctx context.Context) (*ProcessStats, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	stats := &ProcessStats{PID: proc.Pid}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mem.RSS
	}
	if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
		stats.Threads = threads
	}
	if files, err := proc.OpenFilesWithContext(ctx); err == nil {
		stats.OpenFiles = len(files)
	}
	return stats, nil
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	status := h.CheckAll(ctx)
	if stats, err := CollectProcessStats(ctx); err == nil {
		status.Process = stats
	}
	return status
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	status := h.CheckAll(ctx)
	return status.Status == "healthy"
}
