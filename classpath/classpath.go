// Package classpath finds raw class images by internal name in directory
// trees, jar archives and memory.
package classpath

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jload.classpath")

var ErrNotFound = errors.New("class not found")

// ErrInvalidName is returned for names that could address a file outside a
// classpath entry.
var ErrInvalidName = errors.New("invalid class name")

// Source supplies the bytes of a class image. Name is an internal name such
// as java/lang/Object.
type Source interface {
	ReadClass(name string) ([]byte, error)
}

func fileName(name string) string {
	return name + ".class"
}

// checkName rejects names with an empty, "." or ".." segment and names
// holding a backslash or NUL.
func checkName(name string) error {
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, "\\\x00") {
			return fmt.Errorf("%q: %w", name, ErrInvalidName)
		}
	}
	return nil
}

// Dir reads classes from a directory tree laid out by package.
type Dir struct {
	Root string
}

func (d Dir) ReadClass(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Root, filepath.FromSlash(fileName(name)))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s in %s: %w", name, d.Root, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (d Dir) String() string { return d.Root }

// Jar reads classes from a jar or zip archive. It keeps the archive open
// until Close.
type Jar struct {
	path  string
	r     *zip.ReadCloser
	files map[string]*zip.File
}

func OpenJar(path string) (*Jar, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open jar: %w", err)
	}
	j := &Jar{path: path, r: r, files: make(map[string]*zip.File)}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		j.files[f.Name] = f
	}
	log.Debugf("opened %s: %d classes", path, len(j.files))
	return j, nil
}

func (j *Jar) ReadClass(name string) ([]byte, error) {
	f, ok := j.files[fileName(name)]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", name, j.path, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// Classes lists the internal names of every class in the archive.
func (j *Jar) Classes() []string {
	names := make([]string, 0, len(j.files))
	for name := range j.files {
		names = append(names, strings.TrimSuffix(name, ".class"))
	}
	return names
}

func (j *Jar) Close() error { return j.r.Close() }

func (j *Jar) String() string { return j.path }

// Memory serves classes from a map. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	classes map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{classes: make(map[string][]byte)}
}

func (m *Memory) Add(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[name] = data
}

func (m *Memory) ReadClass(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.classes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, nil
}

// Path searches its entries in order and returns the first image found.
type Path []Source

// Parse builds a Path from a list of directories and jar files. Entries
// ending in .jar or .zip are opened as archives; the rest are directories.
func Parse(entries []string) (Path, error) {
	var p Path
	for _, e := range entries {
		if e == "" {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e))
		if ext == ".jar" || ext == ".zip" {
			j, err := OpenJar(e)
			if err != nil {
				p.Close()
				return nil, err
			}
			p = append(p, j)
			continue
		}
		p = append(p, Dir{Root: e})
	}
	return p, nil
}

// ParseList splits a path list on the OS list separator and parses it.
func ParseList(list string) (Path, error) {
	return Parse(filepath.SplitList(list))
}

func (p Path) ReadClass(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	for _, src := range p {
		data, err := src.ReadClass(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Close closes every archive on the path.
func (p Path) Close() error {
	var errs []error
	for _, src := range p {
		if c, ok := src.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
