package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d1nch8g/voicefem/audio"
	"github.com/d1nch8g/voicefem/config"
	"github.com/d1nch8g/voicefem/engine"
	"github.com/d1nch8g/voicefem/plot"
	"github.com/d1nch8g/voicefem/spectrum"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return audio.WithPortaudio(func() error {
			devs, err := audio.ListInputDevices()
			if err != nil {
				return err
			}
			return audio.FormatDevices(cmd.OutOrStdout(), devs)
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := config.Dump(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func runVisualizer(cmd *cobra.Command, _ []string) error {
	source, err := newSource(cmd, cfg)
	if err != nil {
		return err
	}

	engineConfig, err := newEngineConfig(cfg)
	if err != nil {
		return err
	}

	e := engine.NewEngine(engineConfig, source, newRenderers(cfg)...)
	return e.Start(cmd.Context())
}

func newSource(cmd *cobra.Command, cfg *config.Config) (audio.Source, error) {
	audioConfig := audio.Config{
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}

	if cfg.Audio.InputFile != "" {
		return audio.NewMP3Source(cfg.Audio.InputFile, audioConfig), nil
	}

	var dev audio.Device
	err := audio.WithPortaudio(func() error {
		devs, err := audio.ListInputDevices()
		if err != nil {
			return err
		}
		dev, err = audio.SelectDevice(devs, cfg.Audio.Device)
		if err != nil {
			if ferr := audio.FormatDevices(cmd.OutOrStdout(), devs); ferr != nil {
				return ferr
			}
			return fmt.Errorf("%w: %w", errChooseDevice, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "chosen device: %s\n", dev.Name)
	return audio.NewPortaudioSource(audioConfig, &dev), nil
}

func newEngineConfig(cfg *config.Config) (engine.EngineConfig, error) {
	scaling, err := spectrum.ParseScaling(cfg.Spectrum.Scaling)
	if err != nil {
		return engine.EngineConfig{}, err
	}
	return engine.EngineConfig{
		Analyzer: spectrum.AnalyzerConfig{
			Size:         cfg.Spectrum.FFTSize,
			MinFrequency: cfg.Spectrum.MinFrequency,
			MaxFrequency: cfg.Spectrum.MaxFrequency,
			Scaling:      scaling,
		},
		Gain:      cfg.Spectrum.Gain,
		Decay:     cfg.Spectrum.Decay,
		QueueSize: cfg.Audio.QueueSize,
	}, nil
}

func newRenderers(cfg *config.Config) []plot.Renderer {
	if cfg.Plot.Headless {
		logrus.Info("Running headless")
		return []plot.Renderer{plot.NewLogRenderer(cfg.Plot.Interval())}
	}
	return []plot.Renderer{plot.NewWebRenderer(plot.WebConfig{
		Listen:    cfg.Plot.Listen,
		FrameRate: cfg.Plot.FrameRate,
		Layout: plot.Layout{
			Title:  cfg.Plot.Title,
			XLabel: cfg.Plot.XLabel,
			YLabel: cfg.Plot.YLabel,
			XMin:   cfg.Plot.XMin,
			XMax:   cfg.Plot.XMax,
			YMin:   cfg.Plot.YMin,
			YMax:   cfg.Plot.YMax,
		},
	})}
}
