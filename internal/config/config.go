// Package config loads fansim settings from flags, the environment, an
// optional .env file and a TOML configuration file, in that order of
// precedence.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/thermal"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval       = 10 * time.Millisecond
	DefaultDecimation     = 10
	DefaultWindow         = 300.0
	DefaultFanCount       = 1
	DefaultSubsystemCount = 1
	DefaultMaxRPM         = 2000.0
	DefaultExportPath     = "temp_speed_log.csv"
	DefaultLogLevel       = LogLevelInfo
	DefaultEnvPrefix      = "FANSIM"
	DefaultEnvFile        = ".env"

	configName = "fansim"
	configType = "toml"
)

// Accepted ranges for the session shape.
const (
	MinFans       = 1
	MaxFans       = 20
	MinSubsystems = 1
	MaxSubsystems = 20
	MinRPM        = 1.0
	MaxRPM        = 10000.0
)

type Config struct {
	Interval       time.Duration `mapstructure:"interval"`
	Decimation     int           `mapstructure:"decimation"`
	Window         float64       `mapstructure:"window"`
	FanCount       int           `mapstructure:"fan_count"`
	SubsystemCount int           `mapstructure:"subsystem_count"`
	MaxRPMs        []float64     `mapstructure:"max_rpms"`
	Simulation     Simulation    `mapstructure:"simulation"`
	Duration       time.Duration `mapstructure:"duration"`
	ExportPath     string        `mapstructure:"export_path"`
	LogLevel       LogLevel      `mapstructure:"log_level"`
}

// Simulation holds the thermal model and the random seed. A zero seed seeds
// from the clock.
type Simulation struct {
	thermal.Config `mapstructure:",squash"`
	Seed           int64 `mapstructure:"seed"`
}

// flag name -> configuration key
var flagKeys = map[string]string{
	"interval":        "interval",
	"decimation":      "decimation",
	"window":          "window",
	"fan-count":       "fan_count",
	"subsystem-count": "subsystem_count",
	"seed":            "simulation.seed",
	"duration":        "duration",
	"export-path":     "export_path",
	"log-level":       "log_level",
}

// RegisterFlags defines the command line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file")
	flags.Duration("interval", DefaultInterval, "Simulation tick interval")
	flags.Int("decimation", DefaultDecimation, "Simulation ticks per control cycle")
	flags.Float64("window", DefaultWindow, "Rolling log window in seconds")
	flags.Int("fan-count", DefaultFanCount, "Number of fans (1-20)")
	flags.Int("subsystem-count", DefaultSubsystemCount, "Number of subsystems (1-20)")
	flags.Float64Slice("max-rpm", nil, "Maximum RPM per fan (1-10000), comma separated")
	flags.Int64("seed", 0, "Random seed for the thermal model (0 seeds from the clock)")
	flags.Duration("duration", 0, "Stop tracking after this long (0 runs until interrupted)")
	flags.String("export-path", DefaultExportPath, "File the log is exported to (.csv, .db or .sqlite)")
	flags.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("decimation", DefaultDecimation)
	v.SetDefault("window", DefaultWindow)
	v.SetDefault("fan_count", DefaultFanCount)
	v.SetDefault("subsystem_count", DefaultSubsystemCount)
	v.SetDefault("max_rpms", []float64{})
	v.SetDefault("duration", time.Duration(0))
	v.SetDefault("export_path", DefaultExportPath)
	v.SetDefault("log_level", string(DefaultLogLevel))

	sim := thermal.DefaultConfig()
	v.SetDefault("simulation.initial_min", sim.InitialMin)
	v.SetDefault("simulation.initial_max", sim.InitialMax)
	v.SetDefault("simulation.cooling_scale", sim.CoolingScale)
	v.SetDefault("simulation.step_duration", sim.StepDuration)
	v.SetDefault("simulation.spike_probability", sim.SpikeProbability)
	v.SetDefault("simulation.spike_min", sim.SpikeMin)
	v.SetDefault("simulation.spike_max", sim.SpikeMax)
	v.SetDefault("simulation.floor", sim.Floor)
	v.SetDefault("simulation.seed", int64(0))
}

// Load reads the configuration. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		envPrefix: DefaultEnvPrefix,
		envFile:   DefaultEnvFile,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	if err := loadEnvFile(o.envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
		if o.configPath == "" {
			if path, err := flags.GetString("config"); err == nil {
				o.configPath = path
			}
		}
	}

	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if len(cfg.MaxRPMs) == 0 {
		cfg.MaxRPMs = make([]float64, cfg.FanCount)
		for i := range cfg.MaxRPMs {
			cfg.MaxRPMs[i] = DefaultMaxRPM
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return errors.New().WithData(errors.ErrReadConfig, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	errFactory := errors.New()

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	// pflag slices are rendered as "[a,b]" strings; set the parsed values.
	if flag := flags.Lookup("max-rpm"); flag != nil && flag.Changed {
		rpms, err := flags.GetFloat64Slice("max-rpm")
		if err != nil {
			return errFactory.Wrap(errors.ErrBindFlags, err)
		}
		v.Set("max_rpms", rpms)
	}

	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", configName))
	}
	v.AddConfigPath(filepath.Join("/etc", configName))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Status validates the configuration and reports every invalid field.
func (c *Config) Status() Status {
	var errs []ValidationError
	invalid := func(field string, value interface{}, reason string) {
		errs = append(errs, &validationError{field: field, value: value, reason: reason})
	}

	if c.Interval <= 0 {
		invalid("interval", c.Interval, "must be positive")
	}
	if c.Decimation < 1 {
		invalid("decimation", c.Decimation, "must be at least 1")
	}
	if !(c.Window > 0) || math.IsInf(c.Window, 0) {
		invalid("window", c.Window, "must be a positive number of seconds")
	}
	if c.FanCount < MinFans || c.FanCount > MaxFans {
		invalid("fan_count", c.FanCount, "must be between 1 and 20")
	}
	if c.SubsystemCount < MinSubsystems || c.SubsystemCount > MaxSubsystems {
		invalid("subsystem_count", c.SubsystemCount, "must be between 1 and 20")
	}
	if len(c.MaxRPMs) != c.FanCount {
		invalid("max_rpms", c.MaxRPMs, "must have one value per fan")
	}
	for _, rpm := range c.MaxRPMs {
		if !(rpm >= MinRPM && rpm <= MaxRPM) {
			invalid("max_rpms", c.MaxRPMs, "values must be between 1 and 10000")
			break
		}
	}
	if err := c.Simulation.Config.Validate(); err != nil {
		invalid("simulation", c.Simulation.Config, err.Error())
	}
	if c.Duration < 0 {
		invalid("duration", c.Duration, "must not be negative")
	}
	if !c.LogLevel.IsValid() {
		invalid("log_level", c.LogLevel, "must be one of debug, info, warning, error")
	}

	return Status{Valid: len(errs) == 0, ValidationErrors: errs}
}

// Validate returns nil for a valid configuration. Otherwise the error carries
// every ValidationError; invalid log levels get their own code.
func (c *Config) Validate() error {
	status := c.Status()
	if status.Valid {
		return nil
	}

	code := errors.ErrInvalidConfig
	errs := make([]error, len(status.ValidationErrors))
	for i, ve := range status.ValidationErrors {
		errs[i] = ve
		if ve.Field() == "log_level" && len(status.ValidationErrors) == 1 {
			code = errors.ErrInvalidLogLevel
		}
	}

	return errors.New().Wrap(code, errors.Join(errs...))
}
