// Package config provides unified configuration loading for streamsim.
// Values are layered: built-in defaults, then a .env file, then a YAML file,
// then STREAMSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/streamsim/internal/constants"
	"github.com/nvandessel/streamsim/internal/creation"
	"github.com/nvandessel/streamsim/internal/idgen"
	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/logging"
	"github.com/nvandessel/streamsim/internal/mutation"
	"github.com/nvandessel/streamsim/internal/pathutil"
	"github.com/nvandessel/streamsim/internal/session"
	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/store"
)

// FileName is the config file looked up inside the data directory.
const FileName = "config.yaml"

// Config contains all streamsim configuration settings.
type Config struct {
	// Store selects the database.
	Store store.Config `json:"store" yaml:"store"`

	// Simulation holds the engine parameters of a regular cycle.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Reset holds the parameters of a reset cycle.
	Reset ResetConfig `json:"reset" yaml:"reset"`

	// Logging contains settings for operational logging and cycle tracing.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures the engines.
type SimulationConfig struct {
	// IDStrategy is "sequential", "token" or "uuid". It is fixed per store
	// until the next reset.
	IDStrategy string `json:"id_strategy" yaml:"id_strategy"`

	// Epoch is the first simulated day (YYYY-MM-DD).
	Epoch string `json:"epoch" yaml:"epoch"`

	UpdateFraction float64 `json:"update_fraction" yaml:"update_fraction"`
	DeleteFraction float64 `json:"delete_fraction" yaml:"delete_fraction"`
	JitterMin      int     `json:"jitter_min" yaml:"jitter_min"`
	JitterMax      int     `json:"jitter_max" yaml:"jitter_max"`

	NewUsersMin int `json:"new_users_min" yaml:"new_users_min"`
	NewUsersMax int `json:"new_users_max" yaml:"new_users_max"`

	// ActiveFraction scales both session participants and new posts.
	ActiveFraction float64 `json:"active_fraction" yaml:"active_fraction"`

	MaxEventsPerUser int           `json:"max_events_per_user" yaml:"max_events_per_user"`
	LikeRatio        float64       `json:"like_ratio" yaml:"like_ratio"`
	SessionDwell     time.Duration `json:"session_dwell" yaml:"session_dwell"`
	MaxLikeDelay     time.Duration `json:"max_like_delay" yaml:"max_like_delay"`
}

// ResetConfig configures reset cycles.
type ResetConfig struct {
	UserCount   int `json:"user_count" yaml:"user_count"`
	PostCount   int `json:"post_count" yaml:"post_count"`
	ActiveUsers int `json:"active_users" yaml:"active_users"`

	// Backup archives the existing dataset before it is wiped.
	Backup    bool   `json:"backup" yaml:"backup"`
	BackupDir string `json:"backup_dir" yaml:"backup_dir"`

	// Keep is how many archives survive pruning (0 keeps all).
	Keep int `json:"keep" yaml:"keep"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables cycle tracing to .streamsim/cycles.jsonl.
	// "trace" additionally records per-row decisions.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference simulation parameters.
// Paths are left empty; Resolve fills them relative to a project root.
func Default() *Config {
	return &Config{
		Store: store.Config{Driver: store.DriverSQLite},
		Simulation: SimulationConfig{
			IDStrategy:       string(idgen.Sequential),
			Epoch:            constants.EpochDay,
			UpdateFraction:   constants.DefaultUpdateFraction,
			DeleteFraction:   constants.DefaultDeleteFraction,
			JitterMin:        constants.DefaultJitterMin,
			JitterMax:        constants.DefaultJitterMax,
			NewUsersMin:      constants.DefaultNewUsersMin,
			NewUsersMax:      constants.DefaultNewUsersMax,
			ActiveFraction:   constants.DefaultActiveFraction,
			MaxEventsPerUser: constants.DefaultMaxEventsPerUser,
			LikeRatio:        constants.DefaultLikeRatio,
			SessionDwell:     constants.DefaultSessionDwell,
			MaxLikeDelay:     constants.DefaultMaxLikeDelay,
		},
		Reset: ResetConfig{
			UserCount:   constants.ResetUserCount,
			PostCount:   constants.ResetPostCount,
			ActiveUsers: constants.ResetActiveUsers,
			Backup:      true,
			Keep:        constants.DefaultKeepBackups,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration for projectRoot.
// Order: defaults -> projectRoot/.env -> YAML -> environment variables.
// The YAML file is path when given, else .streamsim/config.yaml if present.
func Load(projectRoot, path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, simerr.Configuration("config.load", "reading .env: %v", err)
	}

	config := Default()
	if path == "" {
		candidate := filepath.Join(store.DataDir(projectRoot), FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	config.Resolve(projectRoot)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Configuration("config.load", "reading config file: %v", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, simerr.Configuration("config.load", "parsing config file %s: %v", pathutil.RedactPath(path), err)
	}

	// Expand environment variables in the DSN
	config.Store.DSN = expandEnvVars(config.Store.DSN)

	return config, nil
}

// Resolve fills empty paths relative to projectRoot.
func (c *Config) Resolve(projectRoot string) {
	if c.Store.Driver == store.DriverSQLite && c.Store.Path == "" {
		c.Store.Path = store.DefaultDatabasePath(projectRoot)
	}
	if c.Reset.BackupDir == "" {
		c.Reset.BackupDir = filepath.Join(store.DataDir(projectRoot), "backups")
	}
}

// Validate checks that the configuration is valid. Every failure is a
// configuration error raised before any store access.
func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return simerr.Configuration("config.validate", format, args...)
	}

	switch c.Store.Driver {
	case store.DriverSQLite:
		if c.Store.Path == "" {
			return bad("store.path is required for the sqlite driver")
		}
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return bad("store.dsn is required for the postgres driver")
		}
	default:
		return bad("invalid driver: %s (valid: sqlite, postgres)", c.Store.Driver)
	}

	s := c.Simulation
	if _, err := idgen.ParseStrategy(s.IDStrategy); err != nil {
		return err
	}
	if _, err := ledger.ParseDay(s.Epoch); err != nil {
		return err
	}
	fractions := []struct {
		name  string
		value float64
	}{
		{"update_fraction", s.UpdateFraction},
		{"delete_fraction", s.DeleteFraction},
		{"active_fraction", s.ActiveFraction},
		{"like_ratio", s.LikeRatio},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value > 1 {
			return bad("%s must be between 0 and 1, got %f", f.name, f.value)
		}
	}
	if s.JitterMin < 0 || s.JitterMax < s.JitterMin {
		return bad("jitter range [%d, %d] is invalid", s.JitterMin, s.JitterMax)
	}
	if s.NewUsersMin < 0 || s.NewUsersMax < s.NewUsersMin {
		return bad("new users range [%d, %d] is invalid", s.NewUsersMin, s.NewUsersMax)
	}
	if s.MaxEventsPerUser < 1 {
		return bad("max_events_per_user must be at least 1, got %d", s.MaxEventsPerUser)
	}
	if s.SessionDwell <= 0 {
		return bad("session_dwell must be positive, got %v", s.SessionDwell)
	}
	if s.MaxLikeDelay < constants.Precision {
		return bad("max_like_delay must be at least %v, got %v", constants.Precision, s.MaxLikeDelay)
	}

	r := c.Reset
	if r.UserCount < 0 || r.PostCount < 0 || r.ActiveUsers < 0 {
		return bad("reset counts must be non-negative, got users=%d posts=%d active=%d", r.UserCount, r.PostCount, r.ActiveUsers)
	}
	if r.PostCount > 0 && r.UserCount == 0 {
		return bad("reset.post_count requires reset.user_count > 0")
	}
	if r.Keep < 0 {
		return bad("reset.keep must be non-negative, got %d", r.Keep)
	}

	if c.Logging.Level != "" && !logging.KnownLevel(c.Logging.Level) {
		return bad("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Mutation returns the mutation engine parameters.
func (c *Config) Mutation() mutation.Config {
	return mutation.Config{
		UpdateFraction: c.Simulation.UpdateFraction,
		DeleteFraction: c.Simulation.DeleteFraction,
		JitterMin:      c.Simulation.JitterMin,
		JitterMax:      c.Simulation.JitterMax,
	}
}

// Creation returns the creation engine parameters.
func (c *Config) Creation() creation.Config {
	return creation.Config{
		ResetUsers:     c.Reset.UserCount,
		ResetPosts:     c.Reset.PostCount,
		NewUsersMin:    c.Simulation.NewUsersMin,
		NewUsersMax:    c.Simulation.NewUsersMax,
		ActiveFraction: c.Simulation.ActiveFraction,
	}
}

// Session returns the session simulator parameters.
func (c *Config) Session() session.Config {
	return session.Config{
		ResetActiveUsers: c.Reset.ActiveUsers,
		ActiveFraction:   c.Simulation.ActiveFraction,
		JitterMin:        c.Simulation.JitterMin,
		JitterMax:        c.Simulation.JitterMax,
		MaxEventsPerUser: c.Simulation.MaxEventsPerUser,
		LikeRatio:        c.Simulation.LikeRatio,
		Dwell:            c.Simulation.SessionDwell,
		MaxLikeDelay:     c.Simulation.MaxLikeDelay,
	}
}

// Redacted returns a copy safe to print: the DSN password is masked.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Store.DSN != "" {
		cp.Store.DSN = redactDSN(cp.Store.DSN)
	}
	return &cp
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	if colon := strings.Index(userinfo, ":"); colon >= 0 {
		return dsn[:scheme+3] + userinfo[:colon] + ":****" + dsn[at:]
	}
	return dsn
}

// applyEnvOverrides applies STREAMSIM_* environment variable overrides.
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("STREAMSIM_DRIVER"); v != "" {
		config.Store.Driver = v
	}
	if v := os.Getenv("STREAMSIM_DB_PATH"); v != "" {
		config.Store.Path = v
	}
	if v := os.Getenv("STREAMSIM_DSN"); v != "" {
		config.Store.DSN = v
	}
	if v := os.Getenv("STREAMSIM_ID_STRATEGY"); v != "" {
		config.Simulation.IDStrategy = v
	}
	if v := os.Getenv("STREAMSIM_EPOCH"); v != "" {
		config.Simulation.Epoch = v
	}

	floats := map[string]*float64{
		"STREAMSIM_UPDATE_FRACTION": &config.Simulation.UpdateFraction,
		"STREAMSIM_DELETE_FRACTION": &config.Simulation.DeleteFraction,
		"STREAMSIM_ACTIVE_FRACTION": &config.Simulation.ActiveFraction,
		"STREAMSIM_LIKE_RATIO":      &config.Simulation.LikeRatio,
	}
	for name, dst := range floats {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return simerr.Configuration("config.env", "%s=%q is not a number", name, v)
			}
			*dst = f
		}
	}

	if v := os.Getenv("STREAMSIM_RESET_BACKUP"); v != "" {
		config.Reset.Backup = v == "true" || v == "1"
	}
	if v := os.Getenv("STREAMSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}

// String renders the effective configuration as YAML with secrets masked.
func (c *Config) String() string {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
