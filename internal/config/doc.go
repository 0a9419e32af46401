// Package config manages the tool's own settings stored at ~/.mir/config.yaml.
// It covers probe tuning (timeout, worker count) and the default log level;
// every key can also be supplied through a MIR_ prefixed environment variable.
package config
