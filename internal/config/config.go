// Package config loads Arbor's settings with Viper from an optional
// .arbor.yml file, ARBOR_ prefixed environment variables and a .env file.
//
// Precedence, highest first: explicit Set calls (bound flags), environment,
// config file, defaults. Values are unmarshalled into Config, zero values are
// defaulted again and the result is validated before use.
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
	"github.com/conneroisu/arbor/internal/logging"
)

const (
	// FileName is the config file searched for when none is given.
	FileName = ".arbor.yml"
	// EnvPrefix prefixes every environment override, e.g. ARBOR_BUILD_NUMBER.
	EnvPrefix = "ARBOR"
	// FileEnv names the environment variable holding a config file path.
	FileEnv = "ARBOR_CONFIG_FILE"
)

// Defaults.
const (
	DefaultProjectDir = "."
	DefaultOutput     = "build"
	DefaultDebounce   = 300 * time.Millisecond
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// DefaultIgnore lists the watch patterns skipped when none are configured.
var DefaultIgnore = []string{"**/.git/**", "**/node_modules/**", "**/*~", "**/.#*", "**/*.swp"}

type Config struct {
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Build   BuildConfig   `mapstructure:"build" yaml:"build"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ProjectConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type BuildConfig struct {
	Output string `mapstructure:"output" yaml:"output"`
	Number int    `mapstructure:"number" yaml:"number"`
	Clean  bool   `mapstructure:"clean" yaml:"clean"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Ignore   []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers every key with its default so environment overrides
// reach Unmarshal even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project.dir", DefaultProjectDir)
	v.SetDefault("build.output", DefaultOutput)
	v.SetDefault("build.number", 0)
	v.SetDefault("build.clean", false)
	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("watch.ignore", DefaultIgnore)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}

// Setup prepares v for Load and returns the config file in use, if any.
//
// The file is, in order: file, $ARBOR_CONFIG_FILE, or .arbor.yml in dir.
// A .env file in dir is loaded first without overriding the environment. An
// explicitly named file must exist; the default one is optional.
func Setup(v *viper.Viper, file, dir string) (string, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeConfigInvalid,
			"cannot load .env").WithFile(filepath.Join(dir, ".env"))
	}

	explicit := true
	if file == "" {
		file = os.Getenv(FileEnv)
	}
	if file == "" {
		explicit = false
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	} else {
		v.SetConfigFile(file)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return "", nil
		}
		return "", arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeConfigInvalid,
			"cannot read config file").WithFile(file)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals and validates the configuration held by v, or by the
// global Viper instance when v is nil.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, arborerrors.Wrap(err, arborerrors.ErrorTypeConfig, arborerrors.ErrCodeConfigInvalid,
			"cannot decode configuration")
	}

	// Slices set through Set or a comma separated variable arrive as strings.
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}

	applyDefaults(&config, v)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if config.Project.Dir == "" {
		config.Project.Dir = DefaultProjectDir
	}
	if config.Build.Output == "" {
		config.Build.Output = DefaultOutput
	}
	if !v.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if config.Watch.Ignore == nil {
		config.Watch.Ignore = append([]string(nil), DefaultIgnore...)
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}

// OutputDir returns the build output directory, relative outputs being taken
// from the project directory.
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Build.Output) {
		return filepath.Clean(c.Build.Output)
	}
	return filepath.Join(c.Project.Dir, c.Build.Output)
}

// LoggerConfig turns the log section into a logger configuration.
func (c *Config) LoggerConfig(out io.Writer) *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	if out != nil {
		lc.Output = out
	}
	return lc
}
