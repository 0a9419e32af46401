package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ErrNotInstalled is returned when a tool is not on PATH.
var ErrNotInstalled = errors.New("not found on PATH")

// Tool is an executable and the arguments that make it print its version.
type Tool struct {
	Name string
	Args []string
}

// Info describes an installed tool.
type Info struct {
	Path    string
	Version *semver.Version
}

// RunFunc executes path with args and returns its combined output.
type RunFunc func(ctx context.Context, path string, args ...string) ([]byte, error)

// Inspector locates tools and reads their versions.
type Inspector struct {
	lookPath func(string) (string, error)
	run      RunFunc
	timeout  time.Duration
}

// New returns an Inspector backed by the real PATH.
func New() *Inspector {
	return &Inspector{
		lookPath: exec.LookPath,
		run:      runCombined,
		timeout:  10 * time.Second,
	}
}

// WithLookPath replaces PATH lookup. Intended for tests.
func (i *Inspector) WithLookPath(fn func(string) (string, error)) *Inspector {
	i.lookPath = fn
	return i
}

// WithRunner replaces process execution. Intended for tests.
func (i *Inspector) WithRunner(fn RunFunc) *Inspector {
	i.run = fn
	return i
}

// Inspect finds t on PATH and reads its version. A tool that is present but
// whose version cannot be read is returned with a nil Version and an error.
func (i *Inspector) Inspect(ctx context.Context, t Tool) (Info, error) {
	path, err := i.lookPath(t.Name)
	if err != nil {
		return Info{}, fmt.Errorf("%s %w", t.Name, ErrNotInstalled)
	}
	info := Info{Path: path}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	out, err := i.run(ctx, path, t.Args...)
	if err != nil {
		return info, fmt.Errorf("running %s %v: %w", t.Name, t.Args, err)
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		return info, fmt.Errorf("reading %s version: %w", t.Name, err)
	}
	info.Version = v
	return info, nil
}

func runCombined(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).CombinedOutput()
}
