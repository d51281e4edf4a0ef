package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/s3smoke/internal/config"
)

// flagKeys maps persistent flags to config keys. Flags override the config
// file and the environment.
var flagKeys = map[string]string{
	"endpoint":       "storage.endpoint",
	"driver":         "storage.driver",
	"bucket":         "storage.bucket",
	"access-key":     "storage.access_key",
	"secret-key":     "storage.secret_key",
	"region":         "storage.region",
	"fixture":        "fixture.path",
	"parser-url":     "parser.url",
	"parser-timeout": "parser.timeout",
	"probe-method":   "probe.method",
	"probe-attempts": "probe.attempts",
	"probe-interval": "probe.interval",
	"preview-limit":  "preview.limit",
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"history":        "history.enabled",
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	config.SetDefaults(v)
	config.BindEnv(v)
	d := config.Default()

	root := &cobra.Command{
		Use:           "s3smoke",
		Short:         "Smoke-test a replay parser against an S3-compatible object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(cmd, v)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a config yaml")
	pf.String("env-file", ".env", "dotenv file loaded before reading the environment (ignored when missing unless set explicitly)")
	pf.String("endpoint", d.Storage.Endpoint, "object store endpoint")
	pf.String("driver", d.Storage.Driver, "storage driver: minio or aws")
	pf.String("bucket", d.Storage.Bucket, "bucket to upload the fixture into")
	pf.String("access-key", d.Storage.AccessKey, "object store access key")
	pf.String("secret-key", d.Storage.SecretKey, "object store secret key")
	pf.String("region", d.Storage.Region, "object store region")
	pf.String("fixture", d.Fixture.Path, "local replay file to upload")
	pf.String("parser-url", d.Parser.URL, "base URL of the parser service")
	pf.Duration("parser-timeout", d.Parser.Timeout, "timeout of the parser blob call")
	pf.String("probe-method", d.Probe.Method, "health check method: GET or HEAD")
	pf.Int("probe-attempts", d.Probe.Attempts, "health check attempts per dependency")
	pf.Duration("probe-interval", d.Probe.Interval, "delay between health check attempts")
	pf.Int("preview-limit", d.Preview.Limit, "characters of the parser response to print")
	pf.String("log-level", d.Logging.Level, "log level: error, warn, info, debug")
	pf.String("log-format", d.Logging.Format, "log format: text, json, color")
	pf.Bool("history", false, "record the run in the history journal")

	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("env_file", pf.Lookup("env-file"))
	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newConfigCmd(v))
	root.AddCommand(newStubCmd(v))
	root.AddCommand(newHistoryCmd(v))
	return root
}

// loadConfig resolves the effective configuration and installs the logger.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	envFile := v.GetString("env_file")
	explicit := false
	if f := cmd.Flags().Lookup("env-file"); f != nil {
		explicit = f.Changed
	}
	if err := config.LoadDotEnv(envFile, explicit); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v, v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.SetupLogging(cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()
	if err != nil {
		exitHandler.LogFatalError(err, "s3smoke failed")
	}
}
