package manager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reine-ishyanami/mirrors/internal/probe"
)

var (
	// ErrParse marks an existing config file the adapter cannot understand.
	ErrParse = errors.New("unrecognized config format")
	// ErrNoMirror is returned by Current when no mirror is configured.
	ErrNoMirror = errors.New("no mirror configured")
	// ErrUnsupportedPlatform is returned for every operation of a manager
	// that is unavailable on the running operating system.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
	// ErrUnknownManager is returned for a manager name that is not supported.
	ErrUnknownManager = errors.New("unknown manager")
	// ErrInvalidMirror is returned when user supplied fields do not form a mirror.
	ErrInvalidMirror = errors.New("invalid mirror")
)

// Mirror is a mirror of any manager. Values are immutable; a probed latency
// is carried as a copy.
type Mirror interface {
	fmt.Stringer
	// Endpoint is the URL a probe connects to.
	Endpoint() string
	// Latency is the probed connect time in milliseconds, or -1.
	Latency() int64
	// Values returns the mirror's fields keyed by field name.
	Values() map[string]string
}

// entity is the constraint the generic core places on a mirror type.
type entity[M any] interface {
	comparable
	Mirror
	withLatency(ms int64) M
}

// sameMirror compares two mirrors ignoring latency.
func sameMirror[M entity[M]](a, b M) bool {
	return a.withLatency(0) == b.withLatency(0)
}

// Field describes one user supplied mirror attribute.
type Field struct {
	Name     string
	Usage    string
	Required bool
	// Key fields are enough to identify a configured mirror for removal.
	Key bool
}

// fieldValues validates fields against spec. With keysOnly set only Key
// fields must be present.
func fieldValues(spec []Field, fields map[string]string, keysOnly bool) (map[string]string, error) {
	known := make(map[string]bool, len(spec))
	out := make(map[string]string, len(spec))
	var missing []string
	for _, f := range spec {
		known[f.Name] = true
		v := strings.TrimSpace(fields[f.Name])
		need := f.Required
		if keysOnly {
			need = f.Key
		}
		if need && v == "" {
			missing = append(missing, f.Name)
		}
		out[f.Name] = v
	}
	for name, v := range fields {
		if !known[name] && v != "" {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidMirror, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidMirror, strings.Join(missing, ", "))
	}
	return out, nil
}

// checkURL rejects values that cannot be a mirror endpoint or that would
// need quoting in any of the config formats.
func checkURL(s string) error {
	if strings.ContainsAny(s, " \t\r\n\"'<>`") {
		return fmt.Errorf("%w: url %q contains characters that are not allowed", ErrInvalidMirror, s)
	}
	if !strings.Contains(s, "://") {
		return fmt.Errorf("%w: url %q has no scheme", ErrInvalidMirror, s)
	}
	if _, err := probe.Address(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMirror, err)
	}
	return nil
}
