package backend

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Config controls how a backend compiles an expression set. Configs are
// immutable once constructed and are shared between callers and cache
// keys; Hash and Equal make them usable as fingerprint components.
type Config struct {
	optimize  bool
	targetCPU string
}

// ConfigOption mutates a Config under construction.
type ConfigOption func(*Config)

// WithOptimize sets whether the backend should optimize generated code.
func WithOptimize(v bool) ConfigOption {
	return func(c *Config) { c.optimize = v }
}

// WithTargetCPU overrides the CPU the backend generates code for. An empty
// value means the host CPU.
func WithTargetCPU(cpu string) ConfigOption {
	return func(c *Config) { c.targetCPU = cpu }
}

// NewConfig returns a Config with the given options applied over defaults.
func NewConfig(opts ...ConfigOption) *Config {
	c := &Config{optimize: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultConfig returns the default compilation configuration.
func DefaultConfig() *Config { return NewConfig() }

// Optimize reports whether generated code is optimized.
func (c *Config) Optimize() bool { return c.optimize }

// TargetCPU returns the CPU code is generated for, or "" for the host CPU.
func (c *Config) TargetCPU() string { return c.targetCPU }

// Hash returns a digest of the configuration, consistent with Equal.
func (c *Config) Hash() uint64 {
	d := xxhash.New()
	_, _ = fmt.Fprintf(d, "optimize=%t,target_cpu=%s", c.optimize, c.targetCPU)
	return d.Sum64()
}

// Equal reports whether two configurations compile identically.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
