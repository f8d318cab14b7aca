package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/d1nch8g/voicefem/spectrum"
)

// EnvPrefix is prepended to every environment override, e.g.
// VOICEFEM_SPECTRUM_GAIN.
const EnvPrefix = "VOICEFEM"

type Config struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Spectrum SpectrumConfig `mapstructure:"spectrum" yaml:"spectrum"`
	Plot     PlotConfig     `mapstructure:"plot" yaml:"plot"`
}

// AudioConfig selects and parameterises the input.
type AudioConfig struct {
	// Device indexes the input device list; negative means none chosen.
	Device          int     `mapstructure:"device" yaml:"device"`
	InputFile       string  `mapstructure:"input_file" yaml:"input_file"`
	SampleRate      float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	FramesPerBuffer int     `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	QueueSize       int     `mapstructure:"queue_size" yaml:"queue_size"`
}

// SpectrumConfig covers the analysis window and the peak-hold filter.
type SpectrumConfig struct {
	FFTSize      int     `mapstructure:"fft_size" yaml:"fft_size"`
	MinFrequency float64 `mapstructure:"min_frequency" yaml:"min_frequency"`
	MaxFrequency float64 `mapstructure:"max_frequency" yaml:"max_frequency"`
	Scaling      string  `mapstructure:"scaling" yaml:"scaling"`
	Gain         float64 `mapstructure:"gain" yaml:"gain"`
	Decay        float64 `mapstructure:"decay" yaml:"decay"`
}

type PlotConfig struct {
	Headless    bool    `mapstructure:"headless" yaml:"headless"`
	Listen      string  `mapstructure:"listen" yaml:"listen"`
	FrameRate   int     `mapstructure:"frame_rate" yaml:"frame_rate"`
	LogInterval string  `mapstructure:"log_interval" yaml:"log_interval"`
	Title       string  `mapstructure:"title" yaml:"title"`
	XLabel      string  `mapstructure:"x_label" yaml:"x_label"`
	YLabel      string  `mapstructure:"y_label" yaml:"y_label"`
	XMin        float64 `mapstructure:"x_min" yaml:"x_min"`
	XMax        float64 `mapstructure:"x_max" yaml:"x_max"`
	YMin        float64 `mapstructure:"y_min" yaml:"y_min"`
	YMax        float64 `mapstructure:"y_max" yaml:"y_max"`
}

// SetDefaults registers every key so that environment variables are picked
// up by Unmarshal even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("audio.device", -1)
	v.SetDefault("audio.input_file", "")
	v.SetDefault("audio.sample_rate", 0.0)
	v.SetDefault("audio.frames_per_buffer", 1024)
	v.SetDefault("audio.queue_size", 16)

	v.SetDefault("spectrum.fft_size", 2048)
	v.SetDefault("spectrum.min_frequency", 165.0)
	v.SetDefault("spectrum.max_frequency", 255.0)
	v.SetDefault("spectrum.scaling", "sqrt-n")
	v.SetDefault("spectrum.gain", spectrum.DefaultGain)
	v.SetDefault("spectrum.decay", spectrum.DefaultDecay)

	v.SetDefault("plot.headless", false)
	v.SetDefault("plot.listen", "127.0.0.1:8090")
	v.SetDefault("plot.frame_rate", 30)
	v.SetDefault("plot.log_interval", "1s")
	v.SetDefault("plot.title", "voice fem tools")
	v.SetDefault("plot.x_label", "x-axis")
	v.SetDefault("plot.y_label", "y-axis")
	v.SetDefault("plot.x_min", 0.0)
	v.SetDefault("plot.x_max", 22050.0)
	v.SetDefault("plot.y_min", 0.0)
	v.SetDefault("plot.y_max", 500.0)
}

// Load reads .env files (./.env when none are given; missing files are
// skipped), applies defaults and VOICEFEM_* environment overrides to v, and
// returns the validated result. The config file, or its search paths, must
// already be set on v; not finding one is not an error.
func Load(v *viper.Viper, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles...); err != nil {
		return nil, err
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		logrus.WithField("file", v.ConfigFileUsed()).Debug("Using config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json: %q", c.LogFormat))
	}
	if c.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be >= 0: %f", c.Audio.SampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be > 0: %d", c.Audio.FramesPerBuffer))
	}
	if c.Audio.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_size must be > 0: %d", c.Audio.QueueSize))
	}
	if c.Spectrum.FFTSize < 2 {
		errs = append(errs, fmt.Errorf("spectrum.fft_size must be >= 2: %d", c.Spectrum.FFTSize))
	}
	if c.Spectrum.MinFrequency < 0 || c.Spectrum.MinFrequency > c.Spectrum.MaxFrequency {
		errs = append(errs, fmt.Errorf("spectrum frequency range invalid: %f..%f", c.Spectrum.MinFrequency, c.Spectrum.MaxFrequency))
	}
	if _, err := spectrum.ParseScaling(c.Spectrum.Scaling); err != nil {
		errs = append(errs, err)
	}
	if c.Spectrum.Gain < 0 {
		errs = append(errs, fmt.Errorf("spectrum.gain must be >= 0: %f", c.Spectrum.Gain))
	}
	if c.Spectrum.Decay < 0 || c.Spectrum.Decay > 1 {
		errs = append(errs, fmt.Errorf("spectrum.decay must be within [0, 1]: %f", c.Spectrum.Decay))
	}
	if c.Plot.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("plot.frame_rate must be > 0: %d", c.Plot.FrameRate))
	}
	if _, err := time.ParseDuration(c.Plot.LogInterval); err != nil {
		errs = append(errs, fmt.Errorf("plot.log_interval: %w", err))
	}
	if c.Plot.XMin >= c.Plot.XMax || c.Plot.YMin >= c.Plot.YMax {
		errs = append(errs, fmt.Errorf("plot axis ranges must be increasing"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Interval returns LogInterval parsed; Validate guarantees it parses.
func (p PlotConfig) Interval() time.Duration {
	d, _ := time.ParseDuration(p.LogInterval)
	return d
}

// Dump renders cfg as YAML, the same shape a config file takes.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
