// Package config handles jload.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/dhamidi/jload/classfile"
)

const FileName = "jload.toml"

// Config represents a jload.toml file.
type Config struct {
	// Classpath lists directories and jar files searched for classes.
	Classpath []string `toml:"classpath"`

	// RejectNatives makes decoding fail on native methods.
	RejectNatives bool `toml:"reject_natives"`

	Verbosity int    `toml:"verbosity"`
	LogFile   string `toml:"log_file"`

	// Workers bounds how many classes the CLI loads in parallel.
	Workers int `toml:"workers"`

	// AddressTypes are field descriptors that get address-word statics.
	AddressTypes []string `toml:"address_types"`

	// Dir is the directory containing the jload.toml file (set at load time).
	Dir string `toml:"-"`
}

// Default returns the configuration used when no jload.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if len(c.Classpath) == 0 {
		c.Classpath = []string{"."}
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if len(c.AddressTypes) == 0 {
		c.AddressTypes = append([]string(nil), classfile.DefaultAddressTypes...)
	}
}

// Load parses jload.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	for _, desc := range c.AddressTypes {
		if classfile.ParseFieldDescriptor(desc) == nil {
			return nil, fmt.Errorf("%s: address type %q is not a field descriptor", path, desc)
		}
	}

	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a jload.toml file. It returns
// nil, nil when there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ClasspathEntries returns the classpath with relative entries resolved
// against the directory holding the file.
func (c *Config) ClasspathEntries() []string {
	entries := make([]string, 0, len(c.Classpath))
	for _, e := range c.Classpath {
		if c.Dir != "" && !filepath.IsAbs(e) {
			e = filepath.Join(c.Dir, e)
		}
		entries = append(entries, e)
	}
	return entries
}
