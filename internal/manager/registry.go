package manager

import (
	"fmt"
	"path/filepath"

	"github.com/reine-ishyanami/mirrors/internal/platform"
	"github.com/reine-ishyanami/mirrors/internal/profile"
)

// Profile override variables.
const (
	CargoHomeEnv  = "CARGO_HOME"
	M2HomeEnv     = "M2_HOME"
	GradleHomeEnv = "GRADLE_USER_HOME"
)

// DockerDaemonConfig is where the docker daemon reads registry mirrors from.
const DockerDaemonConfig = "/etc/docker/daemon.json"

// ProfilePaths returns the candidate config files of kind for env.
func ProfilePaths(kind Kind, env profile.Env) (profile.Paths, error) {
	switch kind {
	case Cargo:
		return env.Candidates(CargoHomeEnv, ".cargo", "config.toml"), nil
	case Maven:
		return env.Candidates(M2HomeEnv, ".m2", "settings.xml"), nil
	case Gradle:
		return env.Candidates(GradleHomeEnv, ".gradle", "init.gradle.kts"), nil
	case Npm:
		return env.Candidates("", "", ".npmrc"), nil
	case Pip:
		if platform.Supports(env.GOOS, platform.AppDataPip) {
			return profile.Paths{filepath.Join(env.ConfigDir, "pip", "pip.ini")}, nil
		}
		return env.Candidates("", ".pip", "pip.conf"), nil
	case Docker:
		return profile.Paths{DockerDaemonConfig}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, kind)
	}
}

// New creates the Configurator for kind.
func New(kind Kind, opts Options) (Configurator, error) {
	paths, err := ProfilePaths(kind, opts.Env)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Cargo:
		return newManager[CargoMirror](kind, paths, true, cargoFormat{}, opts), nil
	case Maven:
		return newManager[MavenMirror](kind, paths, true, mavenFormat{}, opts), nil
	case Gradle:
		return newManager[GradleMirror](kind, paths, true, gradleFormat{}, opts), nil
	case Npm:
		return newManager[NpmMirror](kind, paths, true, npmFormat{}, opts), nil
	case Pip:
		return newManager[PipMirror](kind, paths, true, pipFormat{}, opts), nil
	case Docker:
		supported := platform.Supports(opts.Env.GOOS, platform.DockerDaemonConfig)
		return newManager[DockerMirror](kind, paths, supported, dockerFormat{}, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, kind)
	}
}

// NewAll creates a Configurator for every supported kind, in All order.
func NewAll(opts Options) []Configurator {
	out := make([]Configurator, 0, len(All()))
	for _, k := range All() {
		c, err := New(k, opts)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FieldsOf returns the user supplied fields of kind without building a
// Configurator.
func FieldsOf(kind Kind) ([]Field, error) {
	switch kind {
	case Cargo:
		return cargoFormat{}.fields(), nil
	case Maven:
		return mavenFormat{}.fields(), nil
	case Gradle:
		return gradleFormat{}.fields(), nil
	case Npm:
		return npmFormat{}.fields(), nil
	case Pip:
		return pipFormat{}.fields(), nil
	case Docker:
		return dockerFormat{}.fields(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, kind)
	}
}
