package platform

import "runtime"

// Feature names an operating-system dependent capability.
type Feature string

const (
	// DockerDaemonConfig is /etc/docker/daemon.json editing.
	DockerDaemonConfig Feature = "docker-daemon-config"
	// AppDataPip is pip reading pip.ini from %AppData%.
	AppDataPip Feature = "appdata-pip"
)

// Current returns the operating system the binary is running on.
func Current() string {
	return runtime.GOOS
}

// Supports reports whether goos provides the feature.
func Supports(goos string, f Feature) bool {
	switch f {
	case DockerDaemonConfig:
		return goos == "linux"
	case AppDataPip:
		return goos == "windows"
	default:
		return false
	}
}
