package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for both binaries. Values come from a
// YAML file merged with environment overrides; tunables fail soft to
// defaults, genuinely required values (the directory address) fail hard.
type Config struct {
	Controller ControllerConfig `mapstructure:"controller"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Diag       DiagConfig       `mapstructure:"diag"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Warehouse  WarehouseConfig  `mapstructure:"warehouse"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

type ControllerConfig struct {
	DoorID        string `mapstructure:"door_id"`
	Env           string `mapstructure:"env"` // "dev" | "prod"
	ReaderDevice  string `mapstructure:"reader_device"`
	DisplayDevice string `mapstructure:"display_device"` // empty = log display
	Timezone      string `mapstructure:"timezone"`
	LinkProbeAddr string `mapstructure:"link_probe_addr"`

	WatchdogTimeout time.Duration `mapstructure:"watchdog_timeout"`
}

type PolicyConfig struct {
	DebounceWindow   time.Duration `mapstructure:"debounce_window"`
	FaultSuppression time.Duration `mapstructure:"fault_suppression"`
	EntryGrace       time.Duration `mapstructure:"entry_grace"`
	ExitGrace        time.Duration `mapstructure:"exit_grace"`

	EscalationThreshold     int `mapstructure:"escalation_threshold"`
	LinkFailureThreshold    int `mapstructure:"link_failure_threshold"`
	BackendFailureThreshold int `mapstructure:"backend_failure_threshold"`

	BypassIdentities []string `mapstructure:"bypass_identities"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	OpTimeout   time.Duration `mapstructure:"op_timeout"`
}

type DiagConfig struct {
	Path               string `mapstructure:"path"`
	RetentionDays      int    `mapstructure:"retention_days"`
	PruneIntervalHours int    `mapstructure:"prune_interval_hours"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type WarehouseConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval"` // 0 = run once
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// Load reads config.yaml from the working directory or ./configs, applies
// defaults, and lets environment variables override any key
// (OSTIUM_REDIS_ADDR overrides redis.addr, and so on). A missing file is
// fine — env plus defaults is a complete configuration.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("OSTIUM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	env := strings.ToLower(cfg.Controller.Env)
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}
	cfg.Controller.Env = env

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("controller.door_id", "door-001")
	v.SetDefault("controller.env", "dev")
	v.SetDefault("controller.timezone", "Local")
	v.SetDefault("controller.watchdog_timeout", 30*time.Second)

	v.SetDefault("policy.debounce_window", 3*time.Second)
	v.SetDefault("policy.fault_suppression", 30*time.Second)
	v.SetDefault("policy.entry_grace", 10*time.Minute)
	v.SetDefault("policy.exit_grace", 15*time.Minute)
	v.SetDefault("policy.escalation_threshold", 3)
	v.SetDefault("policy.link_failure_threshold", 5)
	v.SetDefault("policy.backend_failure_threshold", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.dial_timeout", 3*time.Second)
	v.SetDefault("redis.op_timeout", 2*time.Second)

	v.SetDefault("diag.path", "./data/diag.db")
	v.SetDefault("diag.retention_days", 30)
	v.SetDefault("diag.prune_interval_hours", 6)

	v.SetDefault("http.addr", ":9091")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
