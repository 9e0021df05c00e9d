// Package sampler builds one metric snapshot per cycle from procfs (through
// gopsutil) and the host's package manager.
package sampler

import (
	"context"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/agent_monitor/internal/model"
)

const (
	// CPUWindow is how long CPU usage is measured for. It dominates the
	// duration of a cycle.
	CPUWindow = time.Second

	RootPath = "/"
)

// hostStats is the set of OS reads a snapshot needs.
type hostStats interface {
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	CPUCount(ctx context.Context) (int, error)
	Memory(ctx context.Context) (total, used uint64, err error)
	Disk(ctx context.Context, path string) (total, free uint64, err error)
	BootTime(ctx context.Context) (uint64, error)
	Hostname() (string, error)
	Interfaces(ctx context.Context) ([]psnet.InterfaceStat, error)
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// Collector produces snapshots. A Collector is used by a single goroutine.
type Collector struct {
	logger  logrus.FieldLogger
	updates UpdateStatusProvider
	stats   hostStats
	now     func() time.Time
}

func NewCollector(logger logrus.FieldLogger, updates UpdateStatusProvider) *Collector {
	if updates == nil {
		updates = unsupportedProvider{}
	}
	return &Collector{
		logger:  logger,
		updates: updates,
		stats:   gopsutilStats{},
		now:     time.Now,
	}
}

// Collect reads every metric. CPU, memory and disk are required: if any of
// them fails Collect returns a *CollectionError. Every other field degrades to
// a default (see model.Snapshot) and is logged.
func (c *Collector) Collect(ctx context.Context) (model.Snapshot, error) {
	hostname, err := c.stats.Hostname()
	if err != nil || hostname == "" {
		c.logger.WithError(err).Warn("reading hostname")
		hostname = "unknown"
	}

	snap := model.Snapshot{
		Hostname:  hostname,
		IPAddress: c.resolveIP(ctx, hostname),
	}

	snap.CPUPercent, err = c.stats.CPUPercent(ctx, CPUWindow)
	if err != nil {
		return model.Snapshot{}, &CollectionError{Metric: "cpu", Err: err}
	}

	count, err := c.stats.CPUCount(ctx)
	if err != nil || count <= 0 {
		c.logger.WithError(err).Warn("counting logical cpus")
		count = runtime.NumCPU()
	}
	snap.CPUCount = uint(count)

	snap.MemTotal, snap.MemUsed, err = c.stats.Memory(ctx)
	if err != nil {
		return model.Snapshot{}, &CollectionError{Metric: "memory", Err: err}
	}

	snap.DiskTotal, snap.DiskFree, err = c.stats.Disk(ctx, RootPath)
	if err != nil {
		return model.Snapshot{}, &CollectionError{Metric: "disk", Err: err}
	}

	boot, err := c.stats.BootTime(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("reading boot time")
	} else if now := uint64(c.now().Unix()); now > boot {
		snap.UptimeSeconds = now - boot
	}

	updates := c.probeUpdates(ctx)
	snap = snap.WithUpdates(updates)

	c.logger.Infof("update status - total: %d, security: %d, reboot required: %s",
		updates.Total, updates.Security, yesNo(updates.RebootRequired))
	c.logger.Debugf("collected metrics: %+v", snap)
	return snap, nil
}

// probeUpdates never fails: a probe error is logged and the zero status used.
func (c *Collector) probeUpdates(ctx context.Context) model.UpdateStatus {
	status, err := c.updates.Probe(ctx)
	if err != nil {
		c.logger.WithError(&ProbeError{Backend: c.updates.Name(), Err: err}).Error("update status unavailable")
		return model.UpdateStatus{}
	}
	return status
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// gopsutilStats reads the host through gopsutil.
type gopsutilStats struct{}

func (gopsutilStats) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errEmptyCPUTimes
	}
	return pct[0], nil
}

func (gopsutilStats) CPUCount(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

func (gopsutilStats) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Used, nil
}

func (gopsutilStats) Disk(ctx context.Context, path string) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, 0, err
	}
	return usage.Total, usage.Free, nil
}

func (gopsutilStats) BootTime(ctx context.Context) (uint64, error) {
	return host.BootTimeWithContext(ctx)
}

func (gopsutilStats) Hostname() (string, error) {
	return os.Hostname()
}

func (gopsutilStats) Interfaces(ctx context.Context) ([]psnet.InterfaceStat, error) {
	return psnet.InterfacesWithContext(ctx)
}

func (gopsutilStats) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip4", host)
}
