package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNotFound is returned by Read when none of the candidate paths exist.
var ErrNotFound = errors.New("no config file found")

// Permission constants.
const (
	DirPerm  os.FileMode = 0755
	FilePerm os.FileMode = 0644
)

// Paths is an ordered list of candidate profile locations, highest priority first.
type Paths []string

// Target returns the path every write goes to.
func (p Paths) Target() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Read returns the path and contents of the first candidate that exists.
func (p Paths) Read(fsys afero.Fs) (string, string, error) {
	for _, path := range p {
		ok, err := afero.Exists(fsys, path)
		if err != nil {
			return "", "", fmt.Errorf("checking %s: %w", path, err)
		}
		if !ok {
			continue
		}
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return "", "", fmt.Errorf("reading %s: %w", path, err)
		}
		slog.Debug("read profile", "path", path, "bytes", len(data))
		return path, string(data), nil
	}
	return "", "", ErrNotFound
}

// Write replaces the first candidate with content, creating its parent
// directory when needed. Empty content deletes the file instead.
func (p Paths) Write(fsys afero.Fs, content string) error {
	target := p.Target()
	if target == "" {
		return errors.New("empty profile path list")
	}

	if content == "" {
		err := fsys.Remove(target)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", target, err)
		}
		slog.Debug("removed profile", "path", target)
		return nil
	}

	if err := fsys.MkdirAll(filepath.Dir(target), DirPerm); err != nil {
		return fmt.Errorf("creating directory for %s: %w", target, err)
	}

	mode := FilePerm
	if info, err := fsys.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(fsys, target, []byte(content), mode); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	slog.Debug("wrote profile", "path", target, "bytes", len(content))
	return nil
}
