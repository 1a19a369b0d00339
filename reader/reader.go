// Package reader abstracts the filesystem and process environment that
// configuration is loaded from, so tests and embedded sources can
// substitute their own.
package reader

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Reader supplies file contents and environment variables to the
// loader.
type Reader interface {
	// ReadFile returns the contents of the named file.
	ReadFile(name string) ([]byte, error)

	// Exists reports whether name exists.
	Exists(name string) bool

	// IsDir reports whether name is an existing directory.
	IsDir(name string) bool

	// ListDir returns the entry names of the named directory in
	// lexical order.
	ListDir(name string) ([]string, error)

	// Glob returns the names matching pattern, as filepath.Glob does.
	Glob(pattern string) ([]string, error)

	// LookupEnv returns the value of the named environment variable.
	LookupEnv(name string) (string, bool)
}

// Writer is implemented by readers that can also write files back,
// Host among them.
type Writer interface {
	// SaveFile replaces the named file with data.
	SaveFile(name string, data []byte) error
}

// Host is a Reader over an afero filesystem. The zero value is not
// usable, construct with NewLocalHost or NewHost.
type Host struct {
	fs  afero.Fs
	env map[string]string
}

// NewLocalHost returns a Host reading the real filesystem and the
// process environment.
func NewLocalHost() *Host {
	return &Host{fs: afero.NewOsFs()}
}

// NewHost returns a Host over fs. A non-nil env replaces the process
// environment, an empty map hides it completely.
func NewHost(fs afero.Fs, env map[string]string) *Host {
	return &Host{fs: fs, env: env}
}

func (h *Host) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(h.fs, name)
}

func (h *Host) Exists(name string) bool {
	found, e := afero.Exists(h.fs, name)
	return e == nil && found
}

func (h *Host) IsDir(name string) bool {
	isDir, e := afero.IsDir(h.fs, name)
	return e == nil && isDir
}

func (h *Host) ListDir(name string) ([]string, error) {
	infos, e := afero.ReadDir(h.fs, name)
	if e != nil {
		return nil, e
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (h *Host) Glob(pattern string) ([]string, error) {
	names, e := afero.Glob(h.fs, pattern)
	if e != nil {
		return nil, e
	}
	sort.Strings(names)
	return names, nil
}

func (h *Host) LookupEnv(name string) (string, bool) {
	if h.env != nil {
		value, found := h.env[name]
		return value, found
	}
	return os.LookupEnv(name)
}

// SaveFile atomically replaces the named file with data: the contents
// are written to a temporary file in the same directory first and
// renamed over the target.
func (h *Host) SaveFile(name string, data []byte) error {
	dir := filepath.Dir(name)
	tmp, e := afero.TempFile(h.fs, dir, filepath.Base(name)+".*")
	if e != nil {
		return e
	}
	_, e = tmp.Write(data)
	if err := tmp.Close(); e == nil {
		e = err
	}
	if e != nil {
		h.fs.Remove(tmp.Name())
		return e
	}
	return h.fs.Rename(tmp.Name(), name)
}
