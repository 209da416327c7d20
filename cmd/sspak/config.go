package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	sspak "github.com/vansante/go-sspak"
	sspakhttp "github.com/vansante/go-sspak/http"
	"github.com/vansante/go-sspak/job"
	"github.com/vansante/go-sspak/sniff"
	"github.com/vansante/go-sspak/store"
	"github.com/vansante/go-sspak/transfer"
)

const envPrefix = "SSPAK"

// Config is the complete configuration of the command line tool
type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Exec     sspak.Config     `mapstructure:",squash"`
	Sniffer  sniff.Config     `mapstructure:"sniffer"`
	Transfer transfer.Config  `mapstructure:"transfer"`
	HTTP     sspakhttp.Config `mapstructure:"http"`
	S3       store.Config     `mapstructure:"s3"`
	Job      job.Config       `mapstructure:"job"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.LogLevel = "info"
	c.Exec.ApplyDefaults()
	c.Sniffer.ApplyDefaults()
	c.Transfer.ApplyDefaults()
	c.HTTP.ApplyDefaults()
	c.S3.ApplyDefaults()
	c.Job.ApplyDefaults()
}

func defaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sspak", "config.toml")
}

func setDefaults(v *viper.Viper, conf Config) {
	v.SetDefault("log_level", conf.LogLevel)

	v.SetDefault("ssh_binary", conf.Exec.SSHBinary)
	v.SetDefault("scp_binary", conf.Exec.SCPBinary)
	v.SetDefault("shell", conf.Exec.Shell)
	v.SetDefault("identity", conf.Exec.Identity)
	v.SetDefault("bytes_per_second", conf.Exec.BytesPerSecond)
	v.SetDefault("temp_dir", conf.Exec.TempDir)

	v.SetDefault("sniffer.runtime", conf.Sniffer.Runtime)
	v.SetDefault("sniffer.remote_dir", conf.Sniffer.RemoteDir)
	v.SetDefault("sniffer.extension", conf.Sniffer.Extension)

	v.SetDefault("transfer.build_dir", conf.Transfer.BuildDir)
	v.SetDefault("transfer.default_remote", conf.Transfer.DefaultRemote)
	v.SetDefault("transfer.progress_event_interval", conf.Transfer.ProgressEventInterval)

	v.SetDefault("http.host", conf.HTTP.Host)
	v.SetDefault("http.port", conf.HTTP.Port)
	v.SetDefault("http.tokens", conf.HTTP.AuthenticationTokens)
	v.SetDefault("http.bytes_per_second", conf.HTTP.SpeedBytesPerSecond)
	v.SetDefault("http.allow_speed_override", conf.HTTP.AllowSpeedOverride)

	v.SetDefault("s3.endpoint", conf.S3.Endpoint)
	v.SetDefault("s3.region", conf.S3.Region)
	v.SetDefault("s3.access_key", conf.S3.AccessKey)
	v.SetDefault("s3.secret_key", conf.S3.SecretKey)
	v.SetDefault("s3.max_retries", conf.S3.MaxRetries)
	v.SetDefault("s3.timeout_seconds", conf.S3.TimeoutSeconds)
	v.SetDefault("s3.overwrite", conf.S3.Overwrite)

	v.SetDefault("job.directory", conf.Job.Directory)
	v.SetDefault("job.pak_name_template", conf.Job.PakNameTemplate)
	v.SetDefault("job.enable_save", conf.Job.EnablePakSave)
	v.SetDefault("job.enable_push", conf.Job.EnablePakPush)
	v.SetDefault("job.enable_mark", conf.Job.EnablePakMark)
	v.SetDefault("job.enable_prune", conf.Job.EnablePakPrune)
	v.SetDefault("job.push_prefix", conf.Job.PushPrefix)
	v.SetDefault("job.push_routines", conf.Job.PushRoutines)
	v.SetDefault("job.maximum_push_time", conf.Job.MaximumPushTime)
}

// loadConfig reads the config file, when there is one, and applies environment variables and flags on top.
// A missing default config file is fine, a missing explicitly given one is not.
func loadConfig(configFile string, flags *pflag.FlagSet) (Config, error) {
	var conf Config
	conf.ApplyDefaults()

	v := viper.New()
	setDefaults(v, conf)

	explicit := configFile != ""
	if !explicit {
		configFile = defaultConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("toml")
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
		default:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"log_level":        "log-level",
		"identity":         "identity",
		"bytes_per_second": "bytes-per-second",
		"sniffer.runtime":  "sniffer",
	} {
		if f := flags.Lookup(flag); f != nil {
			err := v.BindPFlag(key, f)
			if err != nil {
				return Config{}, err
			}
		}
	}

	err := v.Unmarshal(&conf)
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if conf.Transfer.TempDir == "" {
		conf.Transfer.TempDir = conf.Exec.TempDir
	}
	if conf.Transfer.BytesPerSecond == 0 {
		conf.Transfer.BytesPerSecond = conf.Exec.BytesPerSecond
	}

	err = validateStruct(conf.LogLevel, conf.Exec, conf.Sniffer, conf.Transfer)
	if err != nil {
		return Config{}, err
	}
	return conf, nil
}

var validate = validator.New()

func validateStruct(level string, structs ...any) error {
	err := validate.Var(level, "oneof=debug info warn error")
	if err != nil {
		return fmt.Errorf("config validation failed: invalid log level %q", level)
	}
	for _, s := range structs {
		err = validate.Struct(s)
		if err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	err := l.UnmarshalText([]byte(level))
	if err != nil {
		return slog.LevelInfo
	}
	return l
}
