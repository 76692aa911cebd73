// Package config resolves kpin settings from defaults, a YAML file, .env,
// the environment and command-line flags, in that order of precedence.
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
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/knowledgepin/cli/internal/api"
	"github.com/knowledgepin/cli/internal/extract"
)

// PathEnv overrides the config file location.
const PathEnv = "KPIN_CONFIG"

// Environment variables read by Load.
const (
	EnvAPIURL        = "KNOWLEDGEPIN_API_URL"
	EnvLogLevel      = "KNOWLEDGEPIN_LOG_LEVEL"
	EnvDashboardAddr = "KNOWLEDGEPIN_DASHBOARD_ADDR"
	EnvUserAgent     = "KNOWLEDGEPIN_USER_AGENT"
	EnvColumns       = "KNOWLEDGEPIN_COLUMNS"
	EnvTimeout       = "KNOWLEDGEPIN_TIMEOUT"
)

// Flag names that override file and environment settings when set.
const (
	FlagAPIURL    = "api-url"
	FlagLogLevel  = "log-level"
	FlagUserAgent = "user-agent"
	FlagTimeout   = "timeout"
	FlagAddr      = "addr"
	FlagColumns   = "columns"
)

type Config struct {
	APIURL        string        `yaml:"api_url"`
	LogLevel      string        `yaml:"log_level"`
	DashboardAddr string        `yaml:"dashboard_addr"`
	UserAgent     string        `yaml:"user_agent"`
	Columns       int           `yaml:"columns"`
	Timeout       time.Duration `yaml:"timeout"`
}

func Default() Config {
	return Config{
		APIURL:        api.DefaultBaseURL,
		LogLevel:      "info",
		DashboardAddr: "127.0.0.1:8787",
		UserAgent:     extract.DefaultUserAgent,
		Columns:       3,
	}
}

// DefaultPath returns $KPIN_CONFIG, or config.yaml under the user config dir.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(PathEnv)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "knowledgepin", "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. Values in envFile fill in variables missing from the process
// environment. Missing files are skipped; malformed ones are errors.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the variables lookup reports as set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvAPIURL, &c.APIURL)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvDashboardAddr, &c.DashboardAddr)
	str(EnvUserAgent, &c.UserAgent)

	if v, ok := lookup(EnvColumns); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return fmt.Errorf("%s: want a positive integer, got %q", EnvColumns, v)
		}
		c.Columns = n
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// ApplyFlags overrides fields from flags that were set on the command line.
// Flags the set does not define are ignored.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagAPIURL:
			c.APIURL = f.Value.String()
		case FlagLogLevel:
			c.LogLevel = f.Value.String()
		case FlagUserAgent:
			c.UserAgent = f.Value.String()
		case FlagAddr:
			c.DashboardAddr = f.Value.String()
		case FlagTimeout:
			c.Timeout, err = flags.GetDuration(FlagTimeout)
		case FlagColumns:
			c.Columns, err = flags.GetInt(FlagColumns)
		}
	})
	return err
}
