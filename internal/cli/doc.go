// Package cli defines the Cobra command tree for the mir CLI. Each file in
// this package builds one top-level command (list, default, doctor, etc.) or
// the per-manager command group. Command implementations delegate to
// internal/manager for all config file work and only handle flag parsing,
// output formatting and user interaction.
package cli
