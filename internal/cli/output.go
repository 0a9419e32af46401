package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/reine-ishyanami/mirrors/internal/manager"
	"github.com/reine-ishyanami/mirrors/internal/probe"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatLatency renders a probe result for humans.
func formatLatency(ms int64) string {
	if ms == probe.Unreachable {
		return "unreachable"
	}
	return printer.Sprintf("%d ms", ms)
}

// mirrorView is the machine readable form of a mirror.
type mirrorView struct {
	Manager   string            `json:"manager" yaml:"manager"`
	Mirror    map[string]string `json:"mirror" yaml:"mirror"`
	LatencyMS *int64            `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func viewOf(kind manager.Kind, m manager.Mirror, withLatency bool) mirrorView {
	v := mirrorView{Manager: string(kind)}
	if m == nil {
		return v
	}
	v.Mirror = m.Values()
	if withLatency {
		ms := m.Latency()
		v.LatencyMS = &ms
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	return enc.Close()
}

// unsupported prints the platform notice and reports whether err was one.
func unsupported(w io.Writer, err error) bool {
	if !errors.Is(err, manager.ErrUnsupportedPlatform) {
		return false
	}
	fmt.Fprintln(w, err)
	return true
}
