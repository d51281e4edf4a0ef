// Package config holds the run configuration and its loading from flags,
// environment, dotenv and YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/loykin/s3smoke/internal/auth"
	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/constants"
	"github.com/loykin/s3smoke/internal/storage"
	"github.com/loykin/s3smoke/internal/util"
)

// EnvPrefix prefixes every environment variable read through viper.
const EnvPrefix = "S3SMOKE"

type ParserConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Insecure      bool          `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string        `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string        `mapstructure:"max_tls_version" yaml:"max_tls_version"`
	Auth          auth.Config   `mapstructure:"auth" yaml:"auth"`
	// SummaryPaths are gjson paths printed from a JSON response body.
	SummaryPaths []string `mapstructure:"summary_paths" yaml:"summary_paths"`
}

type FixtureConfig struct {
	Path      string `mapstructure:"path" yaml:"path"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

type ProbeConfig struct {
	Method   string        `mapstructure:"method" yaml:"method"` // GET or HEAD
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type PreviewConfig struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type ConsoleConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`     // object store web console shown in the summary
	Color *bool  `mapstructure:"color" yaml:"color"` // nil = auto-detect terminal
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Type    string `mapstructure:"type" yaml:"type"` // sqlite or postgres
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
	Table   string `mapstructure:"table" yaml:"table"`
}

// Config is immutable once a run starts.
type Config struct {
	Storage storage.Config `mapstructure:"storage" yaml:"storage"`
	Parser  ParserConfig   `mapstructure:"parser" yaml:"parser"`
	Fixture FixtureConfig  `mapstructure:"fixture" yaml:"fixture"`
	Probe   ProbeConfig    `mapstructure:"probe" yaml:"probe"`
	Preview PreviewConfig  `mapstructure:"preview" yaml:"preview"`
	Console ConsoleConfig  `mapstructure:"console" yaml:"console"`
	Logging LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	History HistoryConfig  `mapstructure:"history" yaml:"history"`
}

// Default returns the configuration of the local docker-compose stack.
func Default() *Config {
	return &Config{
		Storage: storage.Config{
			Driver:    constants.DefaultStorageDriver,
			Endpoint:  constants.DefaultStorageEndpoint,
			AccessKey: constants.DefaultAccessKey,
			SecretKey: constants.DefaultSecretKey,
			Region:    constants.DefaultRegion,
			Bucket:    constants.DefaultBucket,
			PathStyle: true,
			Timeout:   constants.DefaultStorageTimeout,
		},
		Parser: ParserConfig{
			URL:     constants.DefaultParserURL,
			Timeout: constants.DefaultParserTimeout,
		},
		Fixture: FixtureConfig{
			Path:      constants.DefaultFixturePath,
			KeyPrefix: constants.DefaultKeyPrefix,
		},
		Probe: ProbeConfig{
			Method:   constants.DefaultProbeMethod,
			Attempts: constants.DefaultProbeAttempts,
			Timeout:  constants.DefaultProbeTimeout,
			Interval: constants.DefaultProbeInterval,
		},
		Preview: PreviewConfig{Limit: constants.DefaultPreviewLimit},
		Console: ConsoleConfig{URL: constants.DefaultConsoleURL},
		Logging: LoggingConfig{Level: "warn", Format: "text"},
		History: HistoryConfig{
			Type:  constants.DefaultHistoryType,
			DSN:   constants.DefaultHistorySQLiteDSN,
			Table: constants.DefaultHistoryTable,
		},
	}
}

// SetDefaults registers every key with viper so that AutomaticEnv can see
// it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.access_key", d.Storage.AccessKey)
	v.SetDefault("storage.secret_key", d.Storage.SecretKey)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.bucket", d.Storage.Bucket)
	v.SetDefault("storage.path_style", d.Storage.PathStyle)
	v.SetDefault("storage.insecure", false)
	v.SetDefault("storage.timeout", d.Storage.Timeout)

	v.SetDefault("parser.url", d.Parser.URL)
	v.SetDefault("parser.timeout", d.Parser.Timeout)
	v.SetDefault("parser.insecure", false)
	v.SetDefault("parser.min_tls_version", "")
	v.SetDefault("parser.max_tls_version", "")
	v.SetDefault("parser.auth.type", "")
	v.SetDefault("parser.summary_paths", []string{})

	v.SetDefault("fixture.path", d.Fixture.Path)
	v.SetDefault("fixture.key_prefix", d.Fixture.KeyPrefix)

	v.SetDefault("probe.method", d.Probe.Method)
	v.SetDefault("probe.attempts", d.Probe.Attempts)
	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.interval", d.Probe.Interval)

	v.SetDefault("preview.limit", d.Preview.Limit)
	v.SetDefault("console.url", d.Console.URL)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.type", d.History.Type)
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("history.table", d.History.Table)
}

// legacyEnv maps keys to the variable names the replay service itself reads,
// so one .env file can drive both.
var legacyEnv = map[string]string{
	"storage.endpoint":   "S3_ENDPOINT",
	"storage.region":     "S3_REGION",
	"storage.access_key": "S3_ACCESS_KEY",
	"storage.secret_key": "S3_SECRET_KEY",
	"storage.path_style": "S3_PATH_STYLE_ACCESS",
}

// BindEnv enables S3SMOKE_* variables (storage.bucket -> S3SMOKE_STORAGE_BUCKET)
// plus the S3_* names in legacyEnv. The prefixed name wins when both are set.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, name)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is only
// an error when required is true.
func LoadDotEnv(path string, required bool) error {
	p, ok := util.TrimEmptyCheck(path)
	if !ok {
		return nil
	}
	if _, err := os.Stat(p); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("env file %s: %w", p, err)
	}
	return nil
}

// Load reads the optional YAML file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if p, ok := util.TrimEmptyCheck(path); ok {
		v.SetConfigFile(p)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the scenario cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := util.TrimEmptyCheck(c.Storage.Endpoint); !ok {
		errs = append(errs, errors.New("storage.endpoint is required"))
	}
	if _, ok := util.TrimEmptyCheck(c.Storage.Bucket); !ok {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if d := util.TrimAndLower(c.Storage.Driver); d != "" && !storage.HasDriver(d) {
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported (valid: %s)", c.Storage.Driver, strings.Join(storage.Drivers(), ", ")))
	}
	if _, ok := util.TrimEmptyCheck(c.Fixture.Path); !ok {
		errs = append(errs, errors.New("fixture.path is required"))
	}
	if _, ok := util.TrimEmptyCheck(c.Parser.URL); !ok {
		errs = append(errs, errors.New("parser.url is required"))
	}
	switch strings.ToUpper(strings.TrimSpace(c.Probe.Method)) {
	case "", http.MethodGet, http.MethodHead:
	default:
		errs = append(errs, fmt.Errorf("probe.method %q is not supported (valid: GET, HEAD)", c.Probe.Method))
	}
	if c.Probe.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("probe.attempts must be positive, got %d", c.Probe.Attempts))
	}
	if c.Probe.Interval < 0 {
		errs = append(errs, fmt.Errorf("probe.interval must not be negative, got %s", c.Probe.Interval))
	}
	if c.Preview.Limit < 0 {
		errs = append(errs, fmt.Errorf("preview.limit must not be negative, got %d", c.Preview.Limit))
	}
	if t := util.TrimAndLower(c.Parser.Auth.Type); t != "" && !auth.HasProvider(t) {
		errs = append(errs, fmt.Errorf("parser.auth.type %q is not supported", c.Parser.Auth.Type))
	}
	if c.History.Enabled {
		switch util.TrimAndLower(c.History.Type) {
		case "sqlite", "postgres", "postgresql":
		default:
			errs = append(errs, fmt.Errorf("history.type %q is not supported (valid: sqlite, postgres)", c.History.Type))
		}
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with credentials replaced by the mask value.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Storage.SecretKey != "" {
		out.Storage.SecretKey = common.MaskedValue
	}
	out.Parser.Auth.Config = redactMap(c.Parser.Auth.Config)
	out.History.DSN = redactDSN(c.History.DSN)
	return &out
}

// redactDSN hides the password of URL and keyword/value style DSNs.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	return common.MaskSensitiveData(dsn)
}

func redactMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	m := common.NewMasker()
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = redactMap(nested)
			continue
		}
		out[k] = m.MaskValue(k, v)
	}
	return out
}

// WriteYAML renders the redacted configuration.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}
