package config

import (
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/avlin/sensehatd/internal/errors"
)

const (
	DefaultLogPath    = "/tmp/sensehat_log"
	DefaultSeparator  = ";"
	DefaultInterval   = 0.5
	DefaultCores      = 4
	DefaultTargetTemp = 24.0

	configEnvVar   = "SENSEHATD_CONFIG"
	configName     = "sensehatd.conf"
	configType     = "toml"
	systemConfPath = "/etc"
)

type Config struct {
	LogPath     string  `mapstructure:"log_path"`
	Separator   string  `mapstructure:"separator"`
	Interval    float64 `mapstructure:"interval"`
	Cores       int     `mapstructure:"cores"`
	TargetTemp  float64 `mapstructure:"target_temp"`
	Telemetry   bool    `mapstructure:"telemetry"`
	TelemetryDB string  `mapstructure:"telemetry_db"`
	Fake        bool    `mapstructure:"fake"`
	Debug       bool    `mapstructure:"debug"`
	Verbose     bool    `mapstructure:"verbose"`
}

// LogInterval returns the logging interval as a duration.
func (c *Config) LogInterval() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet("sensehatd", pflag.ContinueOnError)
	flags.Float64("interval", DefaultInterval, "Seconds between log entries")
	flags.String("separator", DefaultSeparator, "Field separator for the log file")
	flags.Int("cores", DefaultCores, "Number of CPU cores for usage scaling")
	flags.Float64("target-temp", DefaultTargetTemp, "Initial target temperature in Celsius")
	flags.Bool("telemetry", false, "Mirror log entries into a local database")
	flags.String("telemetry-db", "", "Path to the telemetry database")
	flags.Bool("fake", false, "Run against a simulated Sense HAT")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("log_path", DefaultLogPath)
	v.SetDefault("separator", DefaultSeparator)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("cores", DefaultCores)
	v.SetDefault("target_temp", DefaultTargetTemp)

	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(systemConfPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Flags given on the command line override file values.
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "target-temp":
			v.Set("target_temp", f.Value.String())
		case "telemetry-db":
			v.Set("telemetry_db", f.Value.String())
		default:
			v.Set(f.Name, f.Value.String())
		}
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	// An optional positional argument names the log file.
	if rest := flags.Args(); len(rest) > 0 {
		config.LogPath = rest[0]
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.Cores <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "cores must be positive")
	}
	if c.LogPath == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "log path must not be empty")
	}
	if c.Separator == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "separator must not be empty")
	}

	return nil
}
