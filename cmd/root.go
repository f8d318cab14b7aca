package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/d1nch8g/voicefem/config"
)

var (
	configFile string
	v          = viper.New()
	cfg        *config.Config
)

// errChooseDevice ends the run after the device list was printed.
var errChooseDevice = errors.New("no input device chosen")

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":   "log_level",
	"log-format":  "log_format",
	"device":      "audio.device",
	"input":       "audio.input_file",
	"sample-rate": "audio.sample_rate",
	"min-freq":    "spectrum.min_frequency",
	"max-freq":    "spectrum.max_frequency",
	"gain":        "spectrum.gain",
	"decay":       "spectrum.decay",
	"listen":      "plot.listen",
	"headless":    "plot.headless",
}

var rootCmd = &cobra.Command{
	Use:   "voicefem",
	Short: "Live voice pitch spectrum",
	Long: `voicefem captures a microphone (or replays an mp3 file), computes the
spectrum of the most recent 2048 samples over a narrow frequency range, and
plots it live with falling peaks in the browser.

Without --device or --input it lists the available input devices.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initializeConfig,
	RunE:              runVisualizer,
}

// Execute runs the root command and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints why the run ended. The stack trace is only logged at
// debug level.
func reportError(w io.Writer, err error) {
	if errors.Is(err, errChooseDevice) {
		fmt.Fprintln(w, "choose one of those input devices!")
		return
	}
	logrus.WithError(err).Error("voicefem failed")
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.WithField("stack", xerrors.Sprint(xerrors.New(err))).Debug("Failure details")
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "",
		"config file (default is ./voicefem.yaml or $HOME/.config/voicefem/voicefem.yaml)")
	pf.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")

	f := rootCmd.Flags()
	f.IntP("device", "d", -1, "index of the input device to use")
	f.StringP("input", "i", "", "mp3 file to replay instead of a microphone")
	f.Float64("sample-rate", 0, "capture sample rate, 0 for the device default")
	f.Float64("min-freq", 165, "lowest plotted frequency in Hz")
	f.Float64("max-freq", 255, "highest plotted frequency in Hz")
	f.Float64("gain", 5000, "factor applied to fresh FFT amplitudes")
	f.Float64("decay", 0.84, "share of the held peak kept per frame")
	f.String("listen", "127.0.0.1:8090", "address of the plot page")
	f.Bool("headless", false, "log the dominant frequency instead of serving the plot")

	rootCmd.AddCommand(devicesCmd, configCmd)
}

func initializeConfig(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicefem")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "voicefem"))
		}
	}

	if err := bindFlags(cmd, v); err != nil {
		return err
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded
	return setupLogging(cfg)
}

// bindFlags binds each known flag to its config key so that a flag set on
// the command line wins over files and environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error
	bind := func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	return lastErr
}

func setupLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
