// CLASSIFICATION: COMMUNITY
// Filename: config.go v0.1
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

// Package config loads servedir settings from a YAML file, an optional
// dotenv file and SERVEDIR_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"servedir/internal/static"
)

const (
	envListen       = "SERVEDIR_LISTEN"
	envHealthListen = "SERVEDIR_HEALTH_LISTEN"
	envAccessLog    = "SERVEDIR_ACCESS_LOG"
	envMounts       = "SERVEDIR_MOUNTS"
	envRPS          = "SERVEDIR_RPS"
	envBurst        = "SERVEDIR_BURST"
	envCompress     = "SERVEDIR_COMPRESS"
	envWatch        = "SERVEDIR_WATCH"
)

// Logger abstracts logging for configuration warnings.
type Logger interface {
	Printf(format string, v ...any)
}

// RateLimit bounds requests per client address. A zero RPS disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is the complete server configuration.
type Config struct {
	Listen          string         `yaml:"listen"`
	HealthListen    string         `yaml:"health_listen"`
	AccessLog       string         `yaml:"access_log"`
	Mounts          []static.Mount `yaml:"mounts"`
	RateLimit       RateLimit      `yaml:"rate_limit"`
	Compress        bool           `yaml:"compress"`
	Watch           bool           `yaml:"watch"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables that are already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields with the SERVEDIR_* variables found through
// getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(envListen)); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(getenv(envHealthListen)); v != "" {
		c.HealthListen = v
	}
	if v := strings.TrimSpace(getenv(envAccessLog)); v != "" {
		c.AccessLog = v
	}
	if v := strings.TrimSpace(getenv(envMounts)); v != "" {
		mounts, err := ParseMounts(strings.Split(v, ","))
		if err != nil {
			return fmt.Errorf("%s: %w", envMounts, err)
		}
		c.Mounts = mounts
	}
	if v := strings.TrimSpace(getenv(envRPS)); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envRPS, err)
		}
		c.RateLimit.RPS = rps
	}
	if v := strings.TrimSpace(getenv(envBurst)); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envBurst, err)
		}
		c.RateLimit.Burst = burst
	}
	for name, dst := range map[string]*bool{envCompress: &c.Compress, envWatch: &c.Watch} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}
	return nil
}

// ParseMount parses "prefix=root".
func ParseMount(s string) (static.Mount, error) {
	prefix, root, ok := strings.Cut(strings.TrimSpace(s), "=")
	if !ok {
		return static.Mount{}, fmt.Errorf("invalid mount %q: want prefix=root", s)
	}
	return static.Mount{Prefix: strings.TrimSpace(prefix), Root: strings.TrimSpace(root)}, nil
}

// ParseMounts parses every non-empty entry with ParseMount.
func ParseMounts(list []string) ([]static.Mount, error) {
	var mounts []static.Mount
	for _, s := range list {
		if strings.TrimSpace(s) == "" {
			continue
		}
		m, err := ParseMount(s)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

// NormalizePrefix returns p with a leading slash and no trailing slash.
func NormalizePrefix(p string) string {
	return static.NormalizePrefix(p)
}

// Validate normalizes prefixes and rejects unusable settings.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address required"))
	}
	if len(c.Mounts) == 0 {
		errs = append(errs, errors.New("at least one mount required"))
	}
	seen := make(map[string]bool, len(c.Mounts))
	for i := range c.Mounts {
		m := &c.Mounts[i]
		if strings.TrimSpace(m.Prefix) == "" {
			errs = append(errs, fmt.Errorf("mount %d: prefix required", i))
			continue
		}
		m.Prefix = NormalizePrefix(m.Prefix)
		if strings.TrimSpace(m.Root) == "" {
			errs = append(errs, fmt.Errorf("mount %s: root required", m.Prefix))
		}
		if seen[m.Prefix] {
			errs = append(errs, fmt.Errorf("mount %s: duplicate prefix", m.Prefix))
		}
		seen[m.Prefix] = true
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = Default().ShutdownTimeout
	}
	return errors.Join(errs...)
}

// CanonicalizeRoots rewrites each mount root to its absolute, symlink free
// form. Roots that do not exist yet keep their absolute path and a warning
// is logged; requests below them answer 404 until they appear.
func (c *Config) CanonicalizeRoots(log Logger) error {
	for i := range c.Mounts {
		m := &c.Mounts[i]
		abs, err := filepath.Abs(m.Root)
		if err != nil {
			return fmt.Errorf("mount %s: %w", m.Prefix, err)
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			if log != nil {
				log.Printf("warning: mount %s: root %s not resolved: %v", m.Prefix, abs, err)
			}
			resolved = abs
		}
		m.Root = filepath.ToSlash(resolved)
	}
	return nil
}
