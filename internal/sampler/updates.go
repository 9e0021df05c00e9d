package sampler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Dicklesworthstone/agent_monitor/internal/deps"
	"github.com/Dicklesworthstone/agent_monitor/internal/model"
)

const (
	ProbeTimeout = 2 * time.Minute

	aptRebootMarker = "/var/run/reboot-required"
)

// UpdateStatusProvider reports pending updates for one package manager.
type UpdateStatusProvider interface {
	Name() string
	Probe(ctx context.Context) (model.UpdateStatus, error)
}

// RunFunc runs a command and returns its stdout and exit code. err is only set
// when the command could not run to completion.
type RunFunc func(ctx context.Context, name string, args ...string) (stdout string, exitCode int, err error)

// ExecRun is the RunFunc backed by os/exec. Stderr is discarded.
func ExecRun(ctx context.Context, name string, args ...string) (string, int, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}
	if err != nil {
		return "", -1, err
	}
	return string(out), 0, nil
}

// DetectProvider picks the backend for the first package manager found in
// PATH: apt, then dnf.
func DetectProvider(lookPath func(string) (string, error)) UpdateStatusProvider {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath("apt"); err == nil {
		return NewAptProvider()
	}
	if _, err := lookPath("dnf"); err == nil {
		return NewDnfProvider()
	}
	return unsupportedProvider{}
}

// AptProvider probes Debian and Ubuntu hosts.
type AptProvider struct {
	Run          RunFunc
	RebootMarker string
}

func NewAptProvider() *AptProvider {
	return &AptProvider{Run: ExecRun, RebootMarker: aptRebootMarker}
}

func (p *AptProvider) Name() string { return "apt" }

func (p *AptProvider) Probe(ctx context.Context) (model.UpdateStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	out, code, err := p.Run(ctx, "apt", "list", "--upgradable")
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("apt list: %w", err)
	}
	if code != 0 {
		return model.UpdateStatus{}, fmt.Errorf("apt list exited with status %d", code)
	}

	total, security := ParseAptUpgradable(out)
	_, statErr := os.Stat(p.RebootMarker)
	return model.UpdateStatus{
		Total:          total,
		Security:       security,
		RebootRequired: statErr == nil,
	}, nil
}

// Requirements lists the package that installs the reboot-required hook.
func (p *AptProvider) Requirements() []deps.Requirement {
	return []deps.Requirement{
		{Package: "update-notifier-common", Path: "/usr/share/update-notifier/notify-reboot-required"},
	}
}

func (p *AptProvider) InstallCommand(packages []string) []string {
	return append([]string{"apt-get", "install", "-y"}, packages...)
}

// ParseAptUpgradable counts the packages in `apt list --upgradable` output and
// how many of them come from a security pocket.
func ParseAptUpgradable(out string) (total, security uint) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Listing...") {
			continue
		}
		total++
		if strings.Contains(strings.ToLower(line), "security") {
			security++
		}
	}
	return total, security
}

// DnfProvider probes Fedora and RHEL family hosts. Security updates are the
// ones dnf's own --security filter lists.
type DnfProvider struct {
	Run RunFunc
}

func NewDnfProvider() *DnfProvider {
	return &DnfProvider{Run: ExecRun}
}

func (p *DnfProvider) Name() string { return "dnf" }

func (p *DnfProvider) Probe(ctx context.Context) (model.UpdateStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	var status model.UpdateStatus

	// check-update exits 100 when updates are available
	out, code, err := p.Run(ctx, "dnf", "-q", "check-update")
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("dnf check-update: %w", err)
	}
	switch code {
	case 0:
	case 100:
		status.Total = ParseDnfCheckUpdate(out)
	default:
		return model.UpdateStatus{}, fmt.Errorf("dnf check-update exited with status %d", code)
	}

	out, code, err = p.Run(ctx, "dnf", "-q", "updateinfo", "list", "--security")
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("dnf updateinfo: %w", err)
	}
	if code != 0 {
		return model.UpdateStatus{}, fmt.Errorf("dnf updateinfo exited with status %d", code)
	}
	status.Security = ParseDnfSecurity(out)
	if status.Security > status.Total {
		status.Security = status.Total
	}

	// needs-restarting -r exits 1 when a reboot is needed
	_, code, err = p.Run(ctx, "needs-restarting", "-r")
	if err != nil {
		return model.UpdateStatus{}, fmt.Errorf("needs-restarting: %w", err)
	}
	switch code {
	case 0:
	case 1:
		status.RebootRequired = true
	default:
		return model.UpdateStatus{}, fmt.Errorf("needs-restarting exited with status %d", code)
	}
	return status, nil
}

func (p *DnfProvider) Requirements() []deps.Requirement {
	return []deps.Requirement{{Package: "dnf-utils", Path: "needs-restarting"}}
}

func (p *DnfProvider) InstallCommand(packages []string) []string {
	return append([]string{"dnf", "install", "-y"}, packages...)
}

// ParseDnfCheckUpdate counts "name.arch version repo" lines, stopping at the
// obsoletes section which repeats packages already listed.
func ParseDnfCheckUpdate(out string) uint {
	var n uint
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "Obsoleting Packages") {
			break
		}
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		if len(strings.Fields(line)) >= 3 {
			n++
		}
	}
	return n
}

// ParseDnfSecurity counts distinct packages in "advisory severity nevra"
// lines. A package fixed by several advisories is listed once per advisory.
func ParseDnfSecurity(out string) uint {
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		seen[fields[len(fields)-1]] = struct{}{}
	}
	return uint(len(seen))
}

type unsupportedProvider struct{}

func (unsupportedProvider) Name() string { return "none" }

func (unsupportedProvider) Probe(context.Context) (model.UpdateStatus, error) {
	return model.UpdateStatus{}, ErrNoBackend
}
