package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`
	Oracle OracleConfig `mapstructure:"oracle"`
	Wager  WagerConfig  `mapstructure:"wager"`
	Supply SupplyConfig `mapstructure:"supply"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Resolution string `mapstructure:"resolution"`
	Rotation   string `mapstructure:"rotation"`
}

type OracleConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	RatePerSec       float64       `mapstructure:"rate_per_sec"`
	RateBurst        int           `mapstructure:"rate_burst"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
}

type WagerConfig struct {
	MinStake        float64       `mapstructure:"min_stake"`
	MaxStake        float64       `mapstructure:"max_stake"`
	DefaultStake    float64       `mapstructure:"default_stake"`
	PlacementBuffer time.Duration `mapstructure:"placement_buffer"`
	StartingBalance float64       `mapstructure:"starting_balance"`
}

type SupplyConfig struct {
	DurationsMin  []int         `mapstructure:"durations_min"`
	TargetPerPair int           `mapstructure:"target_per_pair"`
	MinTotal      int           `mapstructure:"min_total"`
	MinAssets     int           `mapstructure:"min_assets"`
	EndingBuffer  time.Duration `mapstructure:"ending_buffer"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.resolution", "@every 30s")
	v.SetDefault("cron.rotation", "@every 1m")
	v.SetDefault("oracle.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("oracle.retry_delay", "1500ms")
	v.SetDefault("oracle.breaker_threshold", 3)
	v.SetDefault("oracle.breaker_cooldown", "30s")
	v.SetDefault("oracle.cache_ttl", "3s")
	v.SetDefault("oracle.rate_per_sec", 0.5)
	v.SetDefault("oracle.rate_burst", 3)
	v.SetDefault("oracle.probe_interval", "15s")
	v.SetDefault("wager.min_stake", 1)
	v.SetDefault("wager.max_stake", 10000)
	v.SetDefault("wager.default_stake", 100)
	v.SetDefault("wager.placement_buffer", "10s")
	v.SetDefault("wager.starting_balance", 1000)
	v.SetDefault("supply.durations_min", []int{1, 3, 5})
	v.SetDefault("supply.target_per_pair", 2)
	v.SetDefault("supply.min_total", 15)
	v.SetDefault("supply.min_assets", 3)
	v.SetDefault("supply.ending_buffer", "10s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
