package sampler

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/agent_monitor/internal/model"
)

type fakeStats struct {
	cpu      float64
	cpuErr   error
	count    int
	countErr error
	memErr   error
	diskErr  error
	boot     uint64
	bootErr  error
	hostname string
	ifaces   []psnet.InterfaceStat
	ifaceErr error
	lookup   []net.IP
	diskPath string
}

func (f *fakeStats) CPUPercent(context.Context, time.Duration) (float64, error) {
	return f.cpu, f.cpuErr
}

func (f *fakeStats) CPUCount(context.Context) (int, error) { return f.count, f.countErr }

func (f *fakeStats) Memory(context.Context) (uint64, uint64, error) {
	return 16_000_000_000, 4_000_000_000, f.memErr
}

func (f *fakeStats) Disk(_ context.Context, path string) (uint64, uint64, error) {
	f.diskPath = path
	return 500_000_000_000, 120_000_000_000, f.diskErr
}

func (f *fakeStats) BootTime(context.Context) (uint64, error) { return f.boot, f.bootErr }

func (f *fakeStats) Hostname() (string, error) { return f.hostname, nil }

func (f *fakeStats) Interfaces(context.Context) ([]psnet.InterfaceStat, error) {
	return f.ifaces, f.ifaceErr
}

func (f *fakeStats) LookupIP(context.Context, string) ([]net.IP, error) {
	if f.lookup == nil {
		return nil, errors.New("no such host")
	}
	return f.lookup, nil
}

type fakeProvider struct {
	status model.UpdateStatus
	err    error
}

func (p fakeProvider) Name() string { return "fake" }

func (p fakeProvider) Probe(context.Context) (model.UpdateStatus, error) { return p.status, p.err }

var now = time.Date(2026, time.October, 19, 10, 5, 0, 0, time.UTC)

func newTestCollector(stats *fakeStats, updates UpdateStatusProvider) (*Collector, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	c := NewCollector(logger, updates)
	c.stats = stats
	c.now = func() time.Time { return now }
	return c, hook
}

func healthyStats() *fakeStats {
	return &fakeStats{
		cpu:      12.5,
		count:    8,
		boot:     uint64(now.Unix()) - 3600,
		hostname: "web-01",
		ifaces: []psnet.InterfaceStat{
			{Name: "eth0", Addrs: psnet.InterfaceAddrList{{Addr: "192.168.1.20/24"}}},
		},
	}
}

func TestCollectFullSnapshot(t *testing.T) {
	stats := healthyStats()
	c, hook := newTestCollector(stats, fakeProvider{status: model.UpdateStatus{Total: 4, Security: 1, RebootRequired: true}})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.Snapshot{
		Hostname:        "web-01",
		IPAddress:       "192.168.1.20",
		CPUPercent:      12.5,
		CPUCount:        8,
		MemTotal:        16_000_000_000,
		MemUsed:         4_000_000_000,
		DiskTotal:       500_000_000_000,
		DiskFree:        120_000_000_000,
		UptimeSeconds:   3600,
		TotalUpdates:    4,
		SecurityUpdates: 1,
		RebootRequired:  true,
	}, snap)
	assert.Equal(t, "/", stats.diskPath)

	var infos []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel {
			infos = append(infos, e.Message)
		}
	}
	assert.Equal(t, []string{"update status - total: 4, security: 1, reboot required: yes"}, infos)
}

func TestProbeFailureDegradesUpdateFields(t *testing.T) {
	c, hook := newTestCollector(healthyStats(), fakeProvider{
		status: model.UpdateStatus{Total: 9, Security: 9, RebootRequired: true},
		err:    errors.New("apt is locked"),
	})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.UpdateStatus{}, snap.Updates())
	assert.Equal(t, "web-01", snap.Hostname)
	assert.Equal(t, "192.168.1.20", snap.IPAddress)
	assert.Equal(t, 12.5, snap.CPUPercent)
	assert.Equal(t, uint64(16_000_000_000), snap.MemTotal)
	assert.Equal(t, uint64(3600), snap.UptimeSeconds)

	var probeErr *ProbeError
	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level != logrus.ErrorLevel {
			continue
		}
		found = true
		err, _ := e.Data[logrus.ErrorKey].(error)
		require.ErrorAs(t, err, &probeErr)
		assert.Equal(t, "fake", probeErr.Backend)
	}
	assert.True(t, found, "probe failure is logged as an error")
}

func TestNoBackendDegrades(t *testing.T) {
	c, _ := newTestCollector(healthyStats(), nil)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.UpdateStatus{}, snap.Updates())
}

func TestCoreFailuresAbortSnapshot(t *testing.T) {
	boom := errors.New("permission denied")
	cases := map[string]func(*fakeStats){
		"cpu":    func(s *fakeStats) { s.cpuErr = boom },
		"memory": func(s *fakeStats) { s.memErr = boom },
		"disk":   func(s *fakeStats) { s.diskErr = boom },
	}
	for metric, breakIt := range cases {
		t.Run(metric, func(t *testing.T) {
			stats := healthyStats()
			breakIt(stats)
			c, _ := newTestCollector(stats, fakeProvider{})

			snap, err := c.Collect(context.Background())

			var collErr *CollectionError
			require.ErrorAs(t, err, &collErr)
			assert.Equal(t, metric, collErr.Metric)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, model.Snapshot{}, snap)
		})
	}
}

func TestSoftFailuresDegrade(t *testing.T) {
	stats := healthyStats()
	stats.hostname = ""
	stats.countErr = errors.New("no sysconf")
	stats.bootErr = errors.New("no btime")
	stats.ifaceErr = errors.New("netlink")
	stats.ifaces = nil
	c, _ := newTestCollector(stats, fakeProvider{})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "unknown", snap.Hostname)
	assert.Equal(t, "", snap.IPAddress)
	assert.Positive(t, snap.CPUCount)
	assert.Zero(t, snap.UptimeSeconds)
}

func TestIPFallsBackToHostnameResolution(t *testing.T) {
	stats := healthyStats()
	stats.ifaces = []psnet.InterfaceStat{
		{Name: "lo", Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
	}
	stats.lookup = []net.IP{net.ParseIP("127.0.1.1"), net.ParseIP("10.1.2.3")}
	c, _ := newTestCollector(stats, fakeProvider{})

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", snap.IPAddress)
}
