// Package service registers the agent as a systemd unit.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
)

const (
	DefaultName    = "agent_monitor"
	DefaultUnitDir = "/etc/systemd/system"
)

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Host monitoring agent
After=network.target

[Service]
ExecStart={{.ExecStart}}
Restart=always
User=root
Group=root
WorkingDirectory={{.WorkingDirectory}}

[Install]
WantedBy=multi-user.target
`))

// Unit is the data rendered into the unit file.
type Unit struct {
	ExecStart        string
	WorkingDirectory string
}

// NewUnit builds the unit for binPath started with args.
func NewUnit(binPath string, args []string) Unit {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binPath))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return Unit{
		ExecStart:        strings.Join(parts, " "),
		WorkingDirectory: filepath.Dir(binPath),
	}
}

func (u Unit) Render() (string, error) {
	var b bytes.Buffer
	if err := unitTemplate.Execute(&b, u); err != nil {
		return "", err
	}
	return b.String(), nil
}

// quoteArg escapes an ExecStart argument: systemd expands % specifiers and $
// variables, and splits on whitespace outside double quotes.
func quoteArg(s string) string {
	s = strings.ReplaceAll(s, "%", "%%")
	s = strings.ReplaceAll(s, "$", "$$")
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Installer writes the unit file and drives systemctl.
type Installer struct {
	Name    string
	UnitDir string
	UseSudo bool
	Out     io.Writer

	Run func(ctx context.Context, out io.Writer, name string, args ...string) error
}

// UnitPath is where Install writes the unit.
func (i *Installer) UnitPath() string {
	dir := i.UnitDir
	if dir == "" {
		dir = DefaultUnitDir
	}
	return filepath.Join(dir, i.name()+".service")
}

// Install writes the unit, then reloads, enables and starts it and shows its
// status. The unit embeds the token, so it is written owner-readable only.
func (i *Installer) Install(ctx context.Context, unit Unit) error {
	content, err := unit.Render()
	if err != nil {
		return fmt.Errorf("rendering unit: %w", err)
	}
	path := i.UnitPath()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", i.name()},
		{"start", i.name()},
	} {
		if err := i.systemctl(ctx, args...); err != nil {
			return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
		}
	}

	// status exits non-zero for units that are not running; it is informational
	_ = i.systemctl(ctx, "status", "--no-pager", i.name())
	return nil
}

func (i *Installer) systemctl(ctx context.Context, args ...string) error {
	name := "systemctl"
	if i.UseSudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	out := i.Out
	if out == nil {
		out = io.Discard
	}
	run := i.Run
	if run == nil {
		run = execRun
	}
	return run(ctx, out, name, args...)
}

func (i *Installer) name() string {
	if i.Name == "" {
		return DefaultName
	}
	return i.Name
}

func execRun(ctx context.Context, out io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
