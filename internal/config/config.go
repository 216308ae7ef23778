// Package config loads runtime configuration for a pod process from
// environment variables and an optional config file, the way
// adred-codev-ws_poc's go-server-3 loads its own.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dreamware/shardrt/internal/sharding"
)

// Config holds all runtime configuration for a pod process.
type Config struct {
	Pod         PodConfig         `mapstructure:"pod"`
	Sharding    ShardingConfig    `mapstructure:"sharding"`
	ShardManager ShardManagerConfig `mapstructure:"shard_manager"`
	Assignments AssignmentsConfig `mapstructure:"assignments"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// PodConfig is this pod's own network identity and listener settings.
type PodConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ConnPoolSize   int    `mapstructure:"conn_pool_size"`
}

// ShardingConfig mirrors sharding.Config's fields for file/env overrides.
type ShardingConfig struct {
	NumShards                      int           `mapstructure:"num_shards"`
	EntityMaxIdleTime              time.Duration `mapstructure:"entity_max_idle_time"`
	EntityTerminationTimeout       time.Duration `mapstructure:"entity_termination_timeout"`
	SendTimeout                    time.Duration `mapstructure:"send_timeout"`
	SendRetryInterval              time.Duration `mapstructure:"send_retry_interval"`
	UnhealthyPodReportInterval     time.Duration `mapstructure:"unhealthy_pod_report_interval"`
	RefreshAssignmentsRetryInterval time.Duration `mapstructure:"refresh_assignments_retry_interval"`
}

// ToSharding converts the file/env-facing shape into sharding.Config.
func (s ShardingConfig) ToSharding() sharding.Config {
	return sharding.Config{
		NumShards:                      s.NumShards,
		EntityMaxIdleTime:              s.EntityMaxIdleTime,
		EntityTerminationTimeout:       s.EntityTerminationTimeout,
		SendTimeout:                    s.SendTimeout,
		SendRetryInterval:              s.SendRetryInterval,
		UnhealthyPodReportInterval:     s.UnhealthyPodReportInterval,
		RefreshAssignmentsRetryInterval: s.RefreshAssignmentsRetryInterval,
	}
}

// ShardManagerConfig locates the external Shard Manager RPC endpoint.
type ShardManagerConfig struct {
	Address string `mapstructure:"address"`
}

// AssignmentsConfig locates the assignment change-stream broker.
type AssignmentsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
}

// MetricsConfig controls the Prometheus scrape and health endpoints.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables (prefixed SHARDRT_)
// and an optional "shardrt" config file on the current or "./config"
// path, falling back to the defaults below for anything unset.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("pod.host", "0.0.0.0")
	v.SetDefault("pod.port", 7700)
	v.SetDefault("pod.conn_pool_size", 64)

	v.SetDefault("sharding.num_shards", 300)
	v.SetDefault("sharding.entity_max_idle_time", 90*time.Second)
	v.SetDefault("sharding.entity_termination_timeout", 3*time.Second)
	v.SetDefault("sharding.send_timeout", 10*time.Second)
	v.SetDefault("sharding.send_retry_interval", 200*time.Millisecond)
	v.SetDefault("sharding.unhealthy_pod_report_interval", 5*time.Second)
	v.SetDefault("sharding.refresh_assignments_retry_interval", 5*time.Second)

	v.SetDefault("shard_manager.address", "localhost:7600")

	v.SetDefault("assignments.nats_url", "nats://localhost:4222")

	v.SetDefault("metrics.listen_addr", ":9100")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("shardrt")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("SHARDRT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Sharding.NumShards <= 0 {
		cfg.Sharding.NumShards = 300
	}
	return cfg, nil
}
