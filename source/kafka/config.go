package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// StoreBackendEtcd is the only offset-storage backend this source commits
// to. Any other backend would break the checkpoint/commit coupling.
const StoreBackendEtcd = "etcd"

type OffsetStoreCfg struct {
	Backend     string        `koanf:"backend"`
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

type Config struct {
	Brokers   []string `koanf:"brokers"`
	Topic     string   `koanf:"topic"`
	GroupID   string   `koanf:"group_id"`
	Driver    string   `koanf:"driver"`     // sarama
	StartFrom string   `koanf:"start_from"` // oldest|newest (default oldest)
	Version   string   `koanf:"version"`
	TLSEn     bool     `koanf:"tls_enabled"`
	SASLUser  string   `koanf:"sasl_user"`
	SASLPass  string   `koanf:"sasl_pass"`

	// AutoCommit must stay false: the source commits offsets itself, keyed
	// to host checkpoint completions.
	AutoCommit bool `koanf:"auto_commit"`

	// FetchBuffer caps records in flight between the broker client and the
	// ingestion loop.
	FetchBuffer int `koanf:"fetch_buffer"`

	Offsets OffsetStoreCfg `koanf:"offsets"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// LoadConfig merges YAML (if present) with env-vars
// (prefix `OFFSTREAM_KAFKA__`, delimiter `__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	// schema version check (only when YAML is present)
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	_ = k.Load(env.Provider("OFFSTREAM_KAFKA__", "__", nil), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// Validate checks the preconditions the source's commit protocol depends on.
// Violations are configuration errors, fatal at construction time.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if c.Topic == "" {
		return errors.New("kafka: no topic configured")
	}
	if c.GroupID == "" {
		return errors.New("kafka: no group_id configured")
	}
	if c.AutoCommit {
		return errors.New("kafka: auto_commit is enabled; this source commits offsets " +
			"by itself on checkpoint completion and can only be used with auto commit disabled")
	}
	if c.Offsets.Backend != StoreBackendEtcd {
		return fmt.Errorf("kafka: offset backend %q not supported; offsets have to be "+
			"stored in %q for this source to work reliably", c.Offsets.Backend, StoreBackendEtcd)
	}
	if len(c.Offsets.Endpoints) == 0 {
		return errors.New("kafka: no offset store endpoints configured")
	}
	return nil
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = "sarama"
	}
	if c.StartFrom == "" {
		c.StartFrom = "oldest"
	}
	if c.Version == "" {
		c.Version = "3.6.0"
	}
	if c.FetchBuffer == 0 {
		c.FetchBuffer = 256
	}
	if c.Offsets.Backend == "" {
		c.Offsets.Backend = StoreBackendEtcd
	}
	if c.Offsets.DialTimeout == 0 {
		c.Offsets.DialTimeout = 5 * time.Second
	}
}
