package manager

import (
	"context"
	"errors"
	"log/slog"
)

// Status is the mirror state of one manager.
type Status struct {
	Kind      Kind
	Supported bool
	Mirror    Mirror
	Err       error
}

// List reports the current mirror of every configurator. A missing mirror
// is reported as a nil Mirror with no error.
func List(cs []Configurator) []Status {
	out := make([]Status, 0, len(cs))
	for _, c := range cs {
		st := Status{Kind: c.Kind(), Supported: c.Supported()}
		if st.Supported {
			mir, err := c.Current()
			switch {
			case errors.Is(err, ErrNoMirror):
			case err != nil:
				st.Err = err
			default:
				st.Mirror = mir
			}
		}
		out = append(out, st)
	}
	return out
}

// Result is the outcome of a batch operation for one manager.
type Result struct {
	Kind    Kind
	Mirror  Mirror
	Changed bool
	Err     error
}

// Failed reports whether any result carries an error other than the
// manager being unavailable on this platform.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil && !errors.Is(r.Err, ErrUnsupportedPlatform) {
			return true
		}
	}
	return false
}

// ApplyDefaults switches every configurator to its bundled default mirror.
// A failure in one manager does not stop the others.
func ApplyDefaults(ctx context.Context, cs []Configurator) []Result {
	out := make([]Result, 0, len(cs))
	for _, c := range cs {
		mir, err := c.SetDefault(ctx)
		if err != nil {
			slog.Debug("default not applied", "manager", c.Kind(), "error", err)
		}
		out = append(out, Result{Kind: c.Kind(), Mirror: mir, Changed: err == nil, Err: err})
	}
	return out
}

// ResetAll resets every configurator. A failure in one manager does not
// stop the others.
func ResetAll(cs []Configurator) []Result {
	out := make([]Result, 0, len(cs))
	for _, c := range cs {
		changed, err := c.Reset()
		if err != nil {
			slog.Debug("reset failed", "manager", c.Kind(), "error", err)
		}
		out = append(out, Result{Kind: c.Kind(), Changed: changed, Err: err})
	}
	return out
}
