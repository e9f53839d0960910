package redlock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pixperk/quorumlock/pkg/types"
	"gopkg.in/yaml.v3"
)

// kinds of lock store a StoreConfig can name
const (
	KindRedis  = "redis"
	KindGRPC   = "grpc"
	KindBolt   = "bolt"
	KindMemory = "memory"
)

// fencing token scopes
const (
	ScopeResource = "resource" //one counter per resource name
	ScopeGlobal   = "global"   //one counter for everything
)

type StoreConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Address string `yaml:"address"` //host:port for redis and grpc, file path for bolt
}

type RetryConfig struct {
	Tries     int           `yaml:"tries"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

type Config struct {
	Stores  []StoreConfig `yaml:"stores"`
	Counter StoreConfig   `yaml:"counter"`

	StoreTimeout time.Duration `yaml:"store_timeout"` //per store call
	DriftFactor  float64       `yaml:"drift_factor"`
	DriftMargin  time.Duration `yaml:"drift_margin"`
	DefaultTTL   time.Duration `yaml:"default_ttl"`
	Quorum       int           `yaml:"quorum"` //0 = majority

	FencingScope string `yaml:"fencing_scope"`
	KeyPrefix    string `yaml:"key_prefix"`

	Retry RetryConfig `yaml:"retry"`
}

func DefaultConfig() Config {
	return Config{
		StoreTimeout: 50 * time.Millisecond,
		DriftFactor:  0.01,
		DriftMargin:  2 * time.Millisecond,
		DefaultTTL:   10 * time.Second,
		FencingScope: ScopeResource,
		KeyPrefix:    "quorumlock:",
		Retry: RetryConfig{
			Tries:     3,
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  time.Second,
		},
	}
}

// reads a yaml file on top of DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// majority of n
func Majority(n int) int {
	return n/2 + 1
}

// quorum for n stores, honouring the override
func (c Config) QuorumFor(n int) int {
	if c.Quorum > 0 {
		return c.Quorum
	}
	return Majority(n)
}

// checks everything that does not depend on the store list
func (c Config) Validate() error {
	var errs []error

	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store_timeout must be positive, got %s", c.StoreTimeout))
	}
	if c.DefaultTTL <= 0 {
		errs = append(errs, fmt.Errorf("default_ttl must be positive, got %s: %w", c.DefaultTTL, types.ErrInvalidTTL))
	}
	if c.StoreTimeout > 0 && c.DefaultTTL > 0 && c.StoreTimeout >= c.DefaultTTL {
		errs = append(errs, fmt.Errorf("store_timeout %s must be well under default_ttl %s", c.StoreTimeout, c.DefaultTTL))
	}
	if c.DriftFactor < 0 || c.DriftFactor >= 1 {
		errs = append(errs, fmt.Errorf("drift_factor must be in [0, 1), got %v", c.DriftFactor))
	}
	if c.DriftMargin < 0 {
		errs = append(errs, fmt.Errorf("drift_margin must not be negative, got %s", c.DriftMargin))
	}
	if c.Quorum < 0 {
		errs = append(errs, fmt.Errorf("quorum %d: %w", c.Quorum, types.ErrInvalidQuorum))
	}
	if c.FencingScope != ScopeResource && c.FencingScope != ScopeGlobal {
		errs = append(errs, fmt.Errorf("fencing_scope must be %q or %q, got %q", ScopeResource, ScopeGlobal, c.FencingScope))
	}
	if c.Retry.Tries < 0 {
		errs = append(errs, fmt.Errorf("retry.tries must not be negative, got %d", c.Retry.Tries))
	}

	return errors.Join(errs...)
}

// checks the quorum against the number of stores
// anything at or below half would let two callers hold the same lease
func (c Config) validateQuorum(n int) error {
	if n == 0 {
		return types.ErrNoStores
	}
	q := c.QuorumFor(n)
	if q <= n/2 || q > n {
		return fmt.Errorf("quorum %d for %d stores: %w", q, n, types.ErrInvalidQuorum)
	}
	return nil
}
