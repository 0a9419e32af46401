package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reine-ishyanami/mirrors/internal/catalog"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"github.com/reine-ishyanami/mirrors/internal/profile"
	"github.com/spf13/afero"
)

// Configurator is the operation set every manager supports.
type Configurator interface {
	Kind() Kind
	// Supported reports whether the manager works on this platform. When it
	// does not, every other operation returns ErrUnsupportedPlatform.
	Supported() bool
	Paths() profile.Paths
	Fields() []Field

	// Current returns the configured mirror, or ErrNoMirror.
	Current() (Mirror, error)
	// Catalog returns the bundled mirrors in catalog order, probed.
	Catalog(ctx context.Context) ([]Mirror, error)
	// Default returns the bundled default mirror.
	Default() (Mirror, error)
	// Decode builds a mirror from one catalog record.
	Decode(rec json.RawMessage) (Mirror, error)

	// Set installs m, which must come from this manager, and returns it probed.
	Set(ctx context.Context, m Mirror) (Mirror, error)
	SetFields(ctx context.Context, fields map[string]string) (Mirror, error)
	SetValue(ctx context.Context, rec json.RawMessage) (Mirror, error)
	SetDefault(ctx context.Context) (Mirror, error)

	// Remove deletes the mirror identified by fields. It reports whether the
	// file changed.
	Remove(fields map[string]string) (bool, error)
	// Reset drops all mirror configuration. It reports whether the file changed.
	Reset() (bool, error)
}

// format is the file format half of a manager. Implementations are pure
// text transforms; the core handles files, probing and fallbacks.
type format[M entity[M]] interface {
	fields() []Field
	fromFields(values map[string]string) (M, error)
	decode(rec json.RawMessage) (M, error)

	// template renders a fresh config file holding m.
	template(m M) (string, error)
	// apply installs m into existing content. It returns ErrParse when
	// existing cannot be understood.
	apply(m M, existing string) (string, error)
	// current extracts the configured mirror, if any.
	current(existing string) (M, bool)
	remove(m M, existing string) (string, bool, error)
	reset(existing string) (string, bool, error)
}

// Options are the shared dependencies of every manager.
type Options struct {
	Env     profile.Env
	Fs      afero.Fs
	Prober  *probe.Prober
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

type manager[M entity[M]] struct {
	kind      Kind
	paths     profile.Paths
	supported bool
	format    format[M]

	fs      afero.Fs
	prober  *probe.Prober
	catalog *catalog.Catalog
	log     *slog.Logger
}

func newManager[M entity[M]](kind Kind, paths profile.Paths, supported bool, f format[M], opts Options) *manager[M] {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &manager[M]{
		kind:      kind,
		paths:     paths,
		supported: supported,
		format:    f,
		fs:        fsys,
		prober:    opts.Prober,
		catalog:   opts.Catalog,
		log:       log.With("manager", string(kind)),
	}
}

func (m *manager[M]) Kind() Kind           { return m.kind }
func (m *manager[M]) Supported() bool      { return m.supported }
func (m *manager[M]) Paths() profile.Paths { return m.paths }
func (m *manager[M]) Fields() []Field      { return m.format.fields() }

func (m *manager[M]) check() error {
	if !m.supported {
		return fmt.Errorf("%s is %w", m.kind, ErrUnsupportedPlatform)
	}
	return nil
}

// read returns the current profile content. found is false when no
// candidate path exists.
func (m *manager[M]) read() (content string, found bool, err error) {
	path, content, err := m.paths.Read(m.fs)
	if errors.Is(err, profile.ErrNotFound) {
		m.log.Debug("no existing profile", "paths", []string(m.paths))
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	m.log.Debug("loaded profile", "path", path)
	return content, true, nil
}

func (m *manager[M]) write(content string) error {
	if err := m.paths.Write(m.fs, content); err != nil {
		return fmt.Errorf("updating %s config: %w", m.kind, err)
	}
	return nil
}

func (m *manager[M]) Current() (Mirror, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	content, found, err := m.read()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoMirror
	}
	cur, ok := m.format.current(content)
	if !ok {
		return nil, ErrNoMirror
	}
	return cur, nil
}

func (m *manager[M]) Catalog(ctx context.Context) ([]Mirror, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if m.catalog == nil {
		return nil, fmt.Errorf("no catalog loaded for %s", m.kind)
	}
	records, err := m.catalog.Entries(string(m.kind))
	if err != nil {
		return nil, err
	}

	mirrors := make([]M, len(records))
	urls := make([]string, len(records))
	for i, rec := range records {
		mir, err := m.format.decode(rec)
		if err != nil {
			return nil, fmt.Errorf("%s catalog entry %d: %w", m.kind, i, err)
		}
		mirrors[i] = mir
		urls[i] = mir.Endpoint()
	}

	out := make([]Mirror, len(mirrors))
	latencies := m.probeAll(ctx, urls)
	for i, mir := range mirrors {
		out[i] = mir.withLatency(latencies[i])
	}
	return out, nil
}

func (m *manager[M]) probeAll(ctx context.Context, urls []string) []int64 {
	if m.prober == nil {
		out := make([]int64, len(urls))
		for i := range out {
			out[i] = probe.Unreachable
		}
		return out
	}
	return m.prober.ProbeAll(ctx, urls)
}

func (m *manager[M]) Default() (Mirror, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if m.catalog == nil {
		return nil, fmt.Errorf("no catalog loaded for %s", m.kind)
	}
	rec, err := m.catalog.Default(string(m.kind))
	if err != nil {
		return nil, err
	}
	return m.format.decode(rec)
}

func (m *manager[M]) Decode(rec json.RawMessage) (Mirror, error) {
	return m.format.decode(rec)
}

func (m *manager[M]) Set(ctx context.Context, mir Mirror) (Mirror, error) {
	typed, ok := mir.(M)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s mirror", ErrInvalidMirror, mir, m.kind)
	}
	return m.set(ctx, typed)
}

func (m *manager[M]) SetFields(ctx context.Context, fields map[string]string) (Mirror, error) {
	values, err := fieldValues(m.format.fields(), fields, false)
	if err != nil {
		return nil, err
	}
	mir, err := m.format.fromFields(values)
	if err != nil {
		return nil, err
	}
	return m.set(ctx, mir)
}

func (m *manager[M]) SetValue(ctx context.Context, rec json.RawMessage) (Mirror, error) {
	mir, err := m.format.decode(rec)
	if err != nil {
		return nil, err
	}
	return m.set(ctx, mir)
}

func (m *manager[M]) SetDefault(ctx context.Context) (Mirror, error) {
	mir, err := m.Default()
	if err != nil {
		return nil, err
	}
	return m.Set(ctx, mir)
}

func (m *manager[M]) set(ctx context.Context, mir M) (Mirror, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	if m.prober != nil {
		mir = mir.withLatency(m.prober.Probe(ctx, mir.Endpoint()))
	}

	content, err := m.build(mir)
	if err != nil {
		return nil, err
	}
	if err := m.write(content); err != nil {
		return nil, err
	}
	m.log.Info("mirror set", "mirror", mir.String(), "latency_ms", mir.Latency())
	return mir, nil
}

// build produces the new file body for mir, falling back to the template
// when there is no file or it cannot be parsed.
func (m *manager[M]) build(mir M) (string, error) {
	existing, found, err := m.read()
	if err != nil {
		return "", err
	}
	if !found {
		return m.format.template(mir)
	}

	out, err := m.format.apply(mir, existing)
	if errors.Is(err, ErrParse) {
		m.log.Warn("existing config not understood, writing a fresh one", "error", err)
		return m.format.template(mir)
	}
	return out, err
}

func (m *manager[M]) Remove(fields map[string]string) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	values, err := fieldValues(m.format.fields(), fields, true)
	if err != nil {
		return false, err
	}
	mir, err := m.format.fromFields(values)
	if err != nil {
		return false, err
	}
	return m.rewrite(func(existing string) (string, bool, error) {
		return m.format.remove(mir, existing)
	})
}

func (m *manager[M]) Reset() (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}
	return m.rewrite(m.format.reset)
}

// rewrite applies fn to the existing profile. A missing or unparsable file
// leaves nothing to change.
func (m *manager[M]) rewrite(fn func(string) (string, bool, error)) (bool, error) {
	existing, found, err := m.read()
	if err != nil || !found {
		return false, err
	}
	out, changed, err := fn(existing)
	if errors.Is(err, ErrParse) {
		m.log.Warn("existing config not understood, leaving it untouched", "error", err)
		return false, nil
	}
	if err != nil || !changed {
		return false, err
	}
	if err := m.write(out); err != nil {
		return false, err
	}
	return true, nil
}
