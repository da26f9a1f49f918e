package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 20, cfg.Roster.HeaderScanDepth)
	assert.Equal(t, 0, cfg.Roster.SheetIndex)
	assert.Equal(t, "week", cfg.Roster.WeekMarker)
	assert.Equal(t, "N/A", cfg.Roster.PlaceholderTopic)
	assert.Equal(t, "xlsx", cfg.Ledger.Driver)
	assert.Equal(t, "participation_ledger.xlsx", cfg.Ledger.Path)
	assert.Equal(t, "Ledger", cfg.Ledger.Sheet)
	assert.Equal(t, "participation_ledger", cfg.Ledger.Table)
	assert.Equal(t, "local", cfg.Lock.Driver)
	assert.Equal(t, 30, cfg.Lock.TTLSecs)
	assert.Equal(t, 0, cfg.Score.WeeksTotal)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Metrics.Textfile)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
ledger:
  driver: sqlite
  path: ledger.db
roster:
  topics:
    - label: "Week 1 (9/4)"
      topic: "Course Intro"
score:
  weeks_total: 12
server:
  port: 9090
  cors_origins:
    - https://dashboard.example.edu
metrics:
  textfile: /var/lib/node_exporter/participation.prom
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, "ledger.db", cfg.Ledger.Path)
	assert.Equal(t, 12, cfg.Score.WeeksTotal)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dashboard.example.edu"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/var/lib/node_exporter/participation.prom", cfg.Metrics.Textfile)
	require.Len(t, cfg.Roster.Topics, 1)
	assert.Equal(t, TopicEntry{Label: "Week 1 (9/4)", Topic: "Course Intro"}, cfg.Roster.Topics[0])
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Roster.HeaderScanDepth)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
ledger:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PARTICIPATION_LEDGER_DRIVER", "csv")
	t.Setenv("PARTICIPATION_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "csv", cfg.Ledger.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PARTICIPATION_SERVER_PORT", "3000")
	t.Setenv("PARTICIPATION_SCORE_WEEKS_TOTAL", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Score.WeeksTotal)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PARTICIPATION_LEDGER_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.database_url is required")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Roster: RosterConfig{
			HeaderScanDepth:  20,
			WeekMarker:       "week",
			PlaceholderTopic: "N/A",
		},
		Ledger: LedgerConfig{Driver: "xlsx", Path: "participation_ledger.xlsx", Table: "participation_ledger"},
		Lock:   LockConfig{Driver: "local", TTLSecs: 30},
		Server: ServerConfig{Port: 8080},
	}
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown ledger driver", func(c *Config) { c.Ledger.Driver = "mongo" }, `ledger.driver must be one of [xlsx csv sqlite postgres], got "mongo"`},
		{"postgres without url", func(c *Config) { c.Ledger.Driver = "postgres" }, "ledger.database_url is required"},
		{"file driver without path", func(c *Config) { c.Ledger.Path = "" }, "ledger.path is required"},
		{"redis without url", func(c *Config) { c.Lock.Driver = "redis" }, "lock.redis_url is required"},
		{"zero scan depth", func(c *Config) { c.Roster.HeaderScanDepth = 0 }, "roster.header_scan_depth must be > 0"},
		{"negative weeks total", func(c *Config) { c.Score.WeeksTotal = -1 }, "score.weeks_total must be >= 0"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port must be <= 65535"},
		{"topic without label", func(c *Config) { c.Roster.Topics = []TopicEntry{{Topic: "Intro"}} }, "roster.topics[0].label is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_PostgresWithoutPath(t *testing.T) {
	cfg := validDefaults()
	cfg.Ledger.Driver = "postgres"
	cfg.Ledger.Path = ""
	cfg.Ledger.DatabaseURL = "postgres://localhost/participation"
	assert.NoError(t, cfg.Validate())
}

func TestLoadTopics(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "topics.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
"Week 1 (9/4)": Course Intro
"Week 2 (9/11)": Variables
`), 0644))

	rc := RosterConfig{
		TopicsFile: file,
		Topics:     []TopicEntry{{Label: "Week 2 (9/11)", Topic: "Variables and Types"}},
	}
	topics, err := rc.LoadTopics()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Week 1 (9/4)":  "Course Intro",
		"Week 2 (9/11)": "Variables and Types",
	}, topics)
}

func TestLoadTopics_MissingFile(t *testing.T) {
	rc := RosterConfig{TopicsFile: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := rc.LoadTopics()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read topics file")
}

func TestLoadTopics_None(t *testing.T) {
	topics, err := RosterConfig{}.LoadTopics()
	require.NoError(t, err)
	assert.Empty(t, topics)
}
