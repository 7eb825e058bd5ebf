package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/records"
)

// Config is the root configuration for the goatfarm CLI and server.
type Config struct {
	Store    records.Config  `yaml:"store" mapstructure:"store"`
	History  HistoryConfig   `yaml:"history" mapstructure:"history"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Breeding breeding.Policy `yaml:"breeding" mapstructure:"breeding"`
	Digest   DigestConfig    `yaml:"digest" mapstructure:"digest"`
	News     NewsConfig      `yaml:"news" mapstructure:"news"`
	Export   export.Config   `yaml:"export" mapstructure:"export"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// HistoryConfig points at the Postgres database that keeps forecast runs.
type HistoryConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// DigestConfig schedules the recurring forecast digest.
type DigestConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	Schedule string   `yaml:"schedule" mapstructure:"schedule"`
	Owners   []string `yaml:"owners" mapstructure:"owners"`
	Record   bool     `yaml:"record" mapstructure:"record"`
}

type NewsConfig struct {
	Feeds             []string `yaml:"feeds" mapstructure:"feeds"`
	PerFeed           int      `yaml:"per_feed" mapstructure:"per_feed"`
	SummaryChars      int      `yaml:"summary_chars" mapstructure:"summary_chars"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultFeeds are the goat farming news sources shown on the dashboard.
var DefaultFeeds = []string{
	"https://news.google.com/rss/search?q=goat+farming&hl=en-US&gl=US&ceid=US:en",
	"https://www.thecattlesite.com/rss/goats/",
}

// Load reads configuration from an optional config.yaml in the working
// directory, GOATFARM_* environment variables and built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GOATFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("history.database_url", "GOATFARM_HISTORY_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "goatfarm.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("history.schema", "goatfarm_forecast")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("breeding.gestation_days", breeding.GestationDays)
	v.SetDefault("breeding.due_soon_days", breeding.DueSoonDays)
	v.SetDefault("breeding.horizon_days", breeding.HorizonDays)
	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.schedule", "@daily")
	v.SetDefault("digest.owners", []string{})
	v.SetDefault("digest.record", false)
	v.SetDefault("news.feeds", DefaultFeeds)
	v.SetDefault("news.per_feed", 5)
	v.SetDefault("news.summary_chars", 200)
	v.SetDefault("news.requests_per_second", 2.0)
	v.SetDefault("news.timeout_secs", 15)
	v.SetDefault("export.sink", "fs")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("export.region", "us-east-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger installs a logger named "goatfarm" as the global zap logger.
// Format "console" (or "text") gives human readable lines; anything else
// logs JSON. An empty level means info.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "console", "text":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	levelText := strings.TrimSpace(cfg.Level)
	if levelText == "" {
		levelText = "info"
	}
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return eris.Wrapf(err, "config: parse log level %q", cfg.Level)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger.Named("goatfarm"))

	return nil
}
