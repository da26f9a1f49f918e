package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Roster  RosterConfig  `yaml:"roster" mapstructure:"roster"`
	Ledger  LedgerConfig  `yaml:"ledger" mapstructure:"ledger"`
	Lock    LockConfig    `yaml:"lock" mapstructure:"lock"`
	Score   ScoreConfig   `yaml:"score" mapstructure:"score"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"required"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// RosterConfig controls how raw roster sheets are read.
type RosterConfig struct {
	HeaderScanDepth  int          `yaml:"header_scan_depth" mapstructure:"header_scan_depth" validate:"gt=0"`
	SheetIndex       int          `yaml:"sheet_index" mapstructure:"sheet_index" validate:"gte=0"`
	SheetName        string       `yaml:"sheet_name" mapstructure:"sheet_name"`
	WeekMarker       string       `yaml:"week_marker" mapstructure:"week_marker" validate:"required"`
	PlaceholderTopic string       `yaml:"placeholder_topic" mapstructure:"placeholder_topic" validate:"required"`
	Topics           []TopicEntry `yaml:"topics" mapstructure:"topics" validate:"dive"`
	TopicsFile       string       `yaml:"topics_file" mapstructure:"topics_file"`
}

// TopicEntry assigns a lecture topic to a week label. Labels are matched exactly, so
// they are listed as values rather than map keys (viper lowercases keys).
type TopicEntry struct {
	Label string `yaml:"label" mapstructure:"label" validate:"required"`
	Topic string `yaml:"topic" mapstructure:"topic"`
}

// LedgerConfig selects and configures the ledger store.
type LedgerConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=xlsx csv sqlite postgres"`
	Path        string `yaml:"path" mapstructure:"path" validate:"required_unless=Driver postgres"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required_if=Driver postgres"`
	Table       string `yaml:"table" mapstructure:"table" validate:"required"`
}

// LockConfig selects how concurrent ledger writers are serialized.
type LockConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver" validate:"oneof=local redis"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url" validate:"required_if=Driver redis"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs" validate:"gt=0"`
}

// ScoreConfig configures participation scoring.
type ScoreConfig struct {
	// WeeksTotal is the denominator of the base score. Zero means the number of
	// distinct weeks in the ledger.
	WeeksTotal int `yaml:"weeks_total" mapstructure:"weeks_total" validate:"gte=0"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port" validate:"gt=0,lte=65535"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MetricsConfig controls metrics export from CLI runs. The serve command exposes the
// same collectors on /metrics instead.
type MetricsConfig struct {
	// Textfile is where extract and update write their run metrics for the node
	// exporter textfile collector. Empty disables the export.
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Load reads configuration from file and environment.
// Precedence: env vars > config.yaml > defaults.
// Env vars use PARTICIPATION_ prefix with underscores: PARTICIPATION_LEDGER_DRIVER.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARTICIPATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("roster.header_scan_depth", 20)
	v.SetDefault("roster.sheet_index", 0)
	v.SetDefault("roster.sheet_name", "")
	v.SetDefault("roster.week_marker", "week")
	v.SetDefault("roster.placeholder_topic", "N/A")
	v.SetDefault("roster.topics_file", "")
	v.SetDefault("ledger.driver", "xlsx")
	v.SetDefault("ledger.path", "participation_ledger.xlsx")
	v.SetDefault("ledger.dir", "")
	v.SetDefault("ledger.sheet", "Ledger")
	v.SetDefault("ledger.database_url", "")
	v.SetDefault("ledger.table", "participation_ledger")
	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.ttl_secs", 30)
	v.SetDefault("score.weeks_total", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("metrics.textfile", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and reports every violation by its config key,
// e.g. "ledger.database_url is required".
func (c *Config) Validate() error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})

	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "config: validate")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return eris.Errorf("config: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}
	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return key + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fmt.Sprint(fe.Value()))
	case "gt":
		return fmt.Sprintf("%s must be > %s", key, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", key, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", key, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", key, fe.Tag())
}

// LoadTopics returns the week label to topic table: the topics file first, then the
// inline entries, which win on conflicts.
func (c RosterConfig) LoadTopics() (map[string]string, error) {
	topics := make(map[string]string)
	if c.TopicsFile != "" {
		data, err := os.ReadFile(c.TopicsFile)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read topics file %s", c.TopicsFile)
		}
		if err := yaml.Unmarshal(data, &topics); err != nil {
			return nil, eris.Wrapf(err, "config: parse topics file %s", c.TopicsFile)
		}
	}
	for _, e := range c.Topics {
		topics[e.Label] = e.Topic
	}
	return topics, nil
}

// InitLogger sets up the global zap logger based on config.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
