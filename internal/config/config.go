// Package config defines service configuration and its loading.
//
// Values are layered: defaults from New, then an optional YAML file named by
// ZONETRUST_CONFIG, then ZONETRUST_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds each ingestion queue partition.
	QueueSize int `koanf:"queue_size"`

	// Partitions sets the number of queue partitions, one worker each.
	Partitions int `koanf:"partitions"`

	// DedupeSize sets how many submission ids are remembered for deduplication.
	DedupeSize int `koanf:"dedupe_size"`

	// DBPath is the sqlite database file. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// SweepInterval is how often every zone is ticked. Zero disables the sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SweepConcurrency bounds how many zones a sweep ticks at once.
	SweepConcurrency int `koanf:"sweep_concurrency"`

	// WeatherCacheTTL is how long a weather reading stays usable.
	WeatherCacheTTL time.Duration `koanf:"weather_cache_ttl"`

	// MaxRecommendations caps the limit a caller may ask for.
	MaxRecommendations int `koanf:"max_recommendations"`

	// KafkaBrokers is a comma separated broker list. Empty disables Kafka.
	KafkaBrokers string `koanf:"kafka_brokers"`

	// KafkaIntelTopic is consumed for intel reports.
	KafkaIntelTopic string `koanf:"kafka_intel_topic"`

	// KafkaGroupID is the consumer group for the intel topic.
	KafkaGroupID string `koanf:"kafka_group_id"`

	// KafkaUpdatesTopic receives confidence updates. Empty disables publishing.
	KafkaUpdatesTopic string `koanf:"kafka_updates_topic"`

	// DecayRatePerDay and DecayGraceHours tune score decay.
	DecayRatePerDay float64 `koanf:"decay_rate_per_day"`
	DecayGraceHours float64 `koanf:"decay_grace_hours"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          4096,
		Partitions:         8,
		DedupeSize:         50_000,
		SweepInterval:      24 * time.Hour,
		SweepConcurrency:   16,
		WeatherCacheTTL:    15 * time.Minute,
		MaxRecommendations: 50,
		KafkaIntelTopic:    "zone-intel",
		KafkaGroupID:       "zonetrust",
		KafkaUpdatesTopic:  "zone-confidence",
		DecayRatePerDay:    2,
		DecayGraceHours:    24,
	}
}

// Brokers splits KafkaBrokers into addresses.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.Brokers()) > 0 }

// DecayGrace returns DecayGraceHours as a duration.
func (c *Config) DecayGrace() time.Duration {
	return time.Duration(c.DecayGraceHours * float64(time.Hour))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.Partitions <= 0:
		return fmt.Errorf("%w: partitions must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.SweepInterval < 0:
		return fmt.Errorf("%w: sweep_interval must not be negative", ErrInvalidConfig)
	case c.SweepConcurrency <= 0:
		return fmt.Errorf("%w: sweep_concurrency must be positive", ErrInvalidConfig)
	case c.WeatherCacheTTL <= 0:
		return fmt.Errorf("%w: weather_cache_ttl must be positive", ErrInvalidConfig)
	case c.MaxRecommendations <= 0:
		return fmt.Errorf("%w: max_recommendations must be positive", ErrInvalidConfig)
	case c.DecayRatePerDay < 0:
		return fmt.Errorf("%w: decay_rate_per_day must not be negative", ErrInvalidConfig)
	case c.DecayGraceHours < 0:
		return fmt.Errorf("%w: decay_grace_hours must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	if c.KafkaEnabled() && (c.KafkaIntelTopic == "" || c.KafkaGroupID == "") {
		return fmt.Errorf("%w: kafka_intel_topic and kafka_group_id are required with kafka_brokers", ErrInvalidConfig)
	}
	return nil
}
