package migration

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Policy holds the tunable constants of a migration run.
type Policy struct {
	// KeyPrefix selects candidate record keys
	KeyPrefix string `yaml:"key_prefix"`

	// EagerCount newest records are always migrated eagerly
	EagerCount int `yaml:"eager_count"`
	// EagerWindow also pulls records newer than now-EagerWindow into the eager set
	EagerWindow time.Duration `yaml:"eager_window"`

	// StorageCeiling is the assumed platform storage limit in bytes
	StorageCeiling int64 `yaml:"storage_ceiling"`
	// HighWaterMark is the fraction of StorageCeiling that triggers eviction
	HighWaterMark float64 `yaml:"high_water_mark"`
	// EvictionKeepCount is how many records survive capacity eviction
	EvictionKeepCount int `yaml:"eviction_keep_count"`

	// CheckSampleSize bounds how many records Check inspects
	CheckSampleSize int `yaml:"check_sample_size"`

	YieldEvery    int           `yaml:"yield_every"`
	YieldPause    time.Duration `yaml:"yield_pause"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		KeyPrefix:         "dream_",
		EagerCount:        50,
		EagerWindow:       30 * 24 * time.Hour,
		StorageCeiling:    5 * 1024 * 1024,
		HighWaterMark:     0.8,
		EvictionKeepCount: 30,
		CheckSampleSize:   5,
		YieldEvery:        10,
		YieldPause:        100 * time.Millisecond,
		IdleTimeout:       10 * time.Second,
		FallbackDelay:     2 * time.Second,
	}
}

// Validate checks if the policy is usable
func (p Policy) Validate() error {
	switch {
	case p.KeyPrefix == "":
		return goerr.New("key_prefix is empty")
	case p.EagerCount < 0:
		return goerr.New("eager_count must not be negative", goerr.V("eager_count", p.EagerCount))
	case p.EagerWindow < 0:
		return goerr.New("eager_window must not be negative", goerr.V("eager_window", p.EagerWindow))
	case p.StorageCeiling <= 0:
		return goerr.New("storage_ceiling must be positive", goerr.V("storage_ceiling", p.StorageCeiling))
	case p.HighWaterMark <= 0 || p.HighWaterMark > 1:
		return goerr.New("high_water_mark must be in (0, 1]", goerr.V("high_water_mark", p.HighWaterMark))
	case p.EvictionKeepCount <= 0:
		return goerr.New("eviction_keep_count must be positive", goerr.V("eviction_keep_count", p.EvictionKeepCount))
	case p.CheckSampleSize <= 0:
		return goerr.New("check_sample_size must be positive", goerr.V("check_sample_size", p.CheckSampleSize))
	case p.YieldEvery <= 0:
		return goerr.New("yield_every must be positive", goerr.V("yield_every", p.YieldEvery))
	case p.YieldPause < 0 || p.IdleTimeout < 0 || p.FallbackDelay < 0:
		return goerr.New("scheduling durations must not be negative")
	}
	return nil
}

// HighWaterBytes is the usage above which eviction runs
func (p Policy) HighWaterBytes() int64 {
	return int64(float64(p.StorageCeiling) * p.HighWaterMark)
}

// LoadPolicy reads a YAML policy file. Keys absent from the file keep their default.
func LoadPolicy(filePath string) (Policy, error) {
	policy := DefaultPolicy()
	if filePath == "" {
		return policy, nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return Policy{}, goerr.Wrap(err, "failed to read policy file", goerr.V("file", filePath))
	}

	if err := yaml.Unmarshal(content, &policy); err != nil {
		return Policy{}, goerr.Wrap(err, "failed to parse policy file", goerr.V("file", filePath))
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, goerr.Wrap(err, "invalid policy", goerr.V("file", filePath))
	}

	return policy, nil
}
