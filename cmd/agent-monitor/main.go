package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/Dicklesworthstone/agent_monitor/internal/agent"
	"github.com/Dicklesworthstone/agent_monitor/internal/config"
	"github.com/Dicklesworthstone/agent_monitor/internal/deps"
	"github.com/Dicklesworthstone/agent_monitor/internal/logging"
	"github.com/Dicklesworthstone/agent_monitor/internal/report"
	"github.com/Dicklesworthstone/agent_monitor/internal/sampler"
	"github.com/Dicklesworthstone/agent_monitor/internal/schedule"
	"github.com/Dicklesworthstone/agent_monitor/internal/service"
	"github.com/Dicklesworthstone/agent_monitor/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.FromFlags(args, os.Stderr)
	if code, done := configOutcome(err, os.Stderr); done {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.InstallService {
		return installService(ctx, cfg)
	}

	provider := sampler.DetectProvider(nil)
	if code, done := checkDependencies(ctx, provider); done {
		return code
	}

	logger := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	defer logger.Close()

	logger.Infof("agent started - server: %s:%d", cfg.ServerURL, cfg.Port)
	logger.Infof("collection interval: %d minute(s)", cfg.Interval)
	logger.WithField("backend", provider.Name()).Debug("update status backend selected")

	collector := sampler.NewCollector(logger.Logger, provider)
	reporter := report.New(cfg.Endpoint(), cfg.Token, report.WithUserAgent("agent-monitor/"+version))

	a := agent.New(collector, reporter, schedule.New(cfg.Interval), logger.Logger)
	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("agent exited")
		return 1
	}
	return 0
}

// configOutcome maps a flag parsing result to an exit code, or reports
// done=false when cfg is usable.
func configOutcome(err error, stderr io.Writer) (code int, done bool) {
	switch {
	case err == nil:
		return 0, false
	case errors.Is(err, flag.ErrHelp):
		return 0, true
	case errors.Is(err, config.ErrNoArguments):
		return 1, true
	default:
		fmt.Fprintf(stderr, "agent-monitor: %v\n", err)
		return 1, true
	}
}

// checkDependencies reports done when the process should exit with code
// instead of starting the agent.
func checkDependencies(ctx context.Context, provider sampler.UpdateStatusProvider) (code int, done bool) {
	installer, ok := provider.(deps.Installer)
	if !ok {
		return 0, false
	}
	checker := &deps.Checker{
		Installer:   installer,
		Interactive: isatty.IsTerminal(os.Stdin.Fd()),
		UseSudo:     os.Geteuid() != 0,
		Out:         os.Stdout,
		Confirm: func(question string) (bool, error) {
			return ui.Confirm(question, os.Stdin, os.Stdout)
		},
	}

	return dependencyOutcome(checker.Ensure(ctx), os.Stderr)
}

// dependencyOutcome maps the result of a dependency check to an exit code,
// or reports done=false when the agent should start.
func dependencyOutcome(err error, stderr io.Writer) (code int, done bool) {
	var missing *deps.MissingError
	switch {
	case err == nil:
		return 0, false
	case errors.As(err, &missing):
		fmt.Fprintf(stderr, "agent-monitor: %v, update metrics will not be accurate\n", err)
		return 0, false
	case errors.Is(err, deps.ErrInstalled):
		return 0, true
	case errors.Is(err, deps.ErrDeclined):
		return 1, true
	default:
		fmt.Fprintf(stderr, "agent-monitor: %v\n", err)
		return 1, true
	}
}

func installService(ctx context.Context, cfg config.Config) int {
	bin, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent-monitor: locating executable: %v\n", err)
		return 1
	}
	if resolved, err := filepath.EvalSymlinks(bin); err == nil {
		bin = resolved
	}

	inst := &service.Installer{
		UseSudo: os.Geteuid() != 0,
		Out:     os.Stdout,
	}
	if err := inst.Install(ctx, service.NewUnit(bin, cfg.Args())); err != nil {
		fmt.Fprintf(os.Stderr, "agent-monitor: installing service: %v\n", err)
		return 1
	}

	fmt.Println(ui.Card("Service installed",
		ui.Row{Label: "unit", Value: inst.UnitPath()},
		ui.Row{Label: "server", Value: cfg.Endpoint()},
		ui.Row{Label: "interval", Value: strconv.Itoa(cfg.Interval) + " minute(s)"},
		ui.Row{Label: "log file", Value: cfg.LogFile},
	))
	return 0
}
