// Package deps checks that the system packages the update probe relies on are
// installed and offers to install the missing ones.
package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

var (
	ErrDeclined  = errors.New("dependency installation declined")
	ErrInstalled = errors.New("dependencies installed, relaunch the agent")
)

// Requirement is a package that must provide Path, either a command looked up
// in PATH or an absolute file.
type Requirement struct {
	Package string
	Path    string
}

// Installer is implemented by package-manager backends that know which
// packages they need and how to install them.
type Installer interface {
	Requirements() []Requirement
	InstallCommand(packages []string) []string
}

// MissingError reports packages that are absent while no one can be asked
// whether to install them.
type MissingError struct {
	Packages []string
}

func (e *MissingError) Error() string {
	return "missing packages: " + strings.Join(e.Packages, ", ")
}

// Missing returns the requirements whose path cannot be found.
func Missing(reqs []Requirement, lookPath func(string) (string, error)) []Requirement {
	var missing []Requirement
	for _, r := range reqs {
		if _, err := lookPath(r.Path); err != nil {
			missing = append(missing, r)
		}
	}
	return missing
}

// Checker walks an Installer's requirements and installs what is missing
// after confirmation.
type Checker struct {
	Installer   Installer
	Interactive bool
	UseSudo     bool
	Out         io.Writer

	LookPath func(string) (string, error)
	Confirm  func(question string) (bool, error)
	Run      func(ctx context.Context, argv []string) error
}

// Ensure returns nil when nothing is missing. Otherwise it returns
// *MissingError when not interactive, ErrDeclined when the user refuses, or
// ErrInstalled once the packages were installed.
func (c *Checker) Ensure(ctx context.Context) error {
	if c.Installer == nil {
		return nil
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	missing := Missing(c.Installer.Requirements(), lookPath)
	if len(missing) == 0 {
		return nil
	}

	packages := make([]string, 0, len(missing))
	for _, r := range missing {
		packages = append(packages, r.Package)
	}
	if !c.Interactive || c.Confirm == nil {
		return &MissingError{Packages: packages}
	}

	out := c.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "The following packages are required but not installed: %s\n", strings.Join(packages, ", "))

	ok, err := c.Confirm("Install them now?")
	if err != nil {
		return fmt.Errorf("asking for confirmation: %w", err)
	}
	if !ok {
		fmt.Fprintln(out, "Some packages are missing, update metrics will not be accurate.")
		return ErrDeclined
	}

	argv := c.Installer.InstallCommand(packages)
	if c.UseSudo {
		argv = append([]string{"sudo"}, argv...)
	}
	run := c.Run
	if run == nil {
		run = execRun(out)
	}
	if err := run(ctx, argv); err != nil {
		return fmt.Errorf("installing %s: %w", strings.Join(packages, ", "), err)
	}
	fmt.Fprintln(out, "Installation complete. Please start the agent again.")
	return ErrInstalled
}

func execRun(out io.Writer) func(ctx context.Context, argv []string) error {
	return func(ctx context.Context, argv []string) error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = out
		cmd.Stderr = out
		return cmd.Run()
	}
}
