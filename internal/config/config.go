package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration holds the six fields the primary /etc/archivestore.conf
// reader recognises, plus a secondary YAML overlay for knobs the flat
// option=value format has no room for.
type Configuration struct {
	LogDir        string `yaml:"-"`
	RotationSize  int64  `yaml:"-"`
	FreeSpace     int64  `yaml:"-"`
	LogLevel      int    `yaml:"-"`
	ExpandVal     int    `yaml:"-"`
	FlushInterval int    `yaml:"-"`

	Cache       CacheConfig       `yaml:"cache"`
	WriteBuffer WriteBufferConfig `yaml:"write_buffer"`
}

// CacheConfig configures the weighted-LRU front cache (internal/cache) that
// sits ahead of the meta iopx's memcache lookups.
type CacheConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	MaxEntries     int           `yaml:"max_entries"`
	EvictionPolicy string        `yaml:"eviction_policy"`
}

// WriteBufferConfig configures batching of small writes before they reach
// the sink driver.
type WriteBufferConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxBuffers    int           `yaml:"max_buffers"`
}

const (
	defaultRotationSize = 100 * 1 << 20 // 100 MiB
	defaultFreeSpace    = 500 * 1 << 20 // 500 MiB
	defaultLogLevel     = 0
)

// NewDefault returns the configuration cfgparams.cpp would produce with no
// config file present at all: empty log_dir, the documented numeric
// defaults, and zero expand_val/flush_interval (both legitimately absent —
// see spec §9's Open Question).
func NewDefault() *Configuration {
	return &Configuration{
		RotationSize: defaultRotationSize,
		FreeSpace:    defaultFreeSpace,
		LogLevel:     defaultLogLevel,
		Cache: CacheConfig{
			TTL:            5 * time.Minute,
			MaxEntries:     100000,
			EvictionPolicy: "weighted_lru",
		},
		WriteBuffer: WriteBufferConfig{
			FlushInterval: 30 * time.Second,
			MaxBuffers:    1000,
		},
	}
}

// LoadPrimary reads the flat option=value config file at path, mutating c
// in place. A missing file is not an error — defaults stand, matching
// cfgparams.cpp. Blank lines and lines starting with '#' are skipped.
// Unrecognised keys are ignored; zero or unparsable numeric values leave
// the existing (default) value untouched.
func (c *Configuration) LoadPrimary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "log_dir":
			c.LogDir = value
		case "rotation_size":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n != 0 {
				c.RotationSize = n
			}
		case "free_space":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n != 0 {
				c.FreeSpace = n
			}
		case "log_level":
			if n, err := strconv.Atoi(value); err == nil {
				c.LogLevel = n
			}
		case "expand_val":
			if n, err := strconv.Atoi(value); err == nil && n != 0 {
				c.ExpandVal = n
			}
		case "flush_interval":
			if n, err := strconv.Atoi(value); err == nil && n != 0 {
				c.FlushInterval = n
			}
		}
	}
	return scanner.Err()
}

// LoadSecondaryYAML optionally overlays Cache/WriteBuffer settings from a
// YAML file. A missing file is not an error.
func (c *Configuration) LoadSecondaryYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read secondary config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse secondary config: %w", err)
	}
	return nil
}

// Validate checks the loaded configuration for values the rest of the
// engine cannot sensibly operate with.
func (c *Configuration) Validate() error {
	if c.LogLevel < 0 || c.LogLevel > 5 {
		return fmt.Errorf("log_level must be in [0,5], got %d", c.LogLevel)
	}
	if c.RotationSize <= 0 {
		return fmt.Errorf("rotation_size must be positive")
	}
	if c.FreeSpace < 0 {
		return fmt.Errorf("free_space must not be negative")
	}
	return nil
}
