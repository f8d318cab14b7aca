package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d1nch8g/voicefem/audio"
	"github.com/d1nch8g/voicefem/config"
	"github.com/d1nch8g/voicefem/plot"
	"github.com/d1nch8g/voicefem/spectrum"
)

func TestConfigCommandAppliesFlags(t *testing.T) {
	t.Setenv("VOICEFEM_SPECTRUM_GAIN", "1234")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--log-level", "debug"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "log_level: debug")
	assert.Contains(t, out.String(), "gain: 1234")
	assert.Contains(t, out.String(), "title: voice fem tools")
}

func TestNewEngineConfig(t *testing.T) {
	loaded, err := config.Load(viper.New(), t.TempDir()+"/none.env")
	require.NoError(t, err)
	loaded.Spectrum.Decay = 0.9
	loaded.Spectrum.Scaling = "n"

	ec, err := newEngineConfig(loaded)
	require.NoError(t, err)
	assert.Equal(t, 2048, ec.Analyzer.Size)
	assert.Equal(t, spectrum.ScaleN, ec.Analyzer.Scaling)
	assert.Equal(t, 165.0, ec.Analyzer.MinFrequency)
	assert.Equal(t, 0.9, ec.Decay)
	assert.Equal(t, 5000.0, ec.Gain)

	loaded.Spectrum.Scaling = "cubic"
	_, err = newEngineConfig(loaded)
	assert.Error(t, err)
}

func TestNewRenderers(t *testing.T) {
	loaded, err := config.Load(viper.New(), t.TempDir()+"/none.env")
	require.NoError(t, err)

	rs := newRenderers(loaded)
	require.Len(t, rs, 1)
	assert.IsType(t, &plot.WebRenderer{}, rs[0])

	loaded.Plot.Headless = true
	rs = newRenderers(loaded)
	require.Len(t, rs, 1)
	assert.IsType(t, &plot.LogRenderer{}, rs[0])
}

func TestNewSourceForFile(t *testing.T) {
	loaded, err := config.Load(viper.New(), t.TempDir()+"/none.env")
	require.NoError(t, err)
	loaded.Audio.InputFile = "voice.mp3"

	src, err := newSource(rootCmd, loaded)
	require.NoError(t, err)
	assert.IsType(t, &audio.MP3Source{}, src)
}

func TestReportErrorLogsStackAtDebug(t *testing.T) {
	std := logrus.StandardLogger()
	level, out := std.GetLevel(), std.Out
	hook := test.NewGlobal()
	std.SetOutput(io.Discard)
	t.Cleanup(func() {
		std.ReplaceHooks(make(logrus.LevelHooks))
		std.SetLevel(level)
		std.SetOutput(out)
	})

	boom := errors.New("stream closed")

	std.SetLevel(logrus.InfoLevel)
	reportError(io.Discard, boom)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, boom, hook.LastEntry().Data[logrus.ErrorKey])

	hook.Reset()
	std.SetLevel(logrus.DebugLevel)
	reportError(io.Discard, boom)
	require.Len(t, hook.AllEntries(), 2)
	stack, ok := hook.LastEntry().Data["stack"].(string)
	require.True(t, ok)
	assert.Contains(t, stack, "stream closed")
	assert.Greater(t, len(stack), len(boom.Error()))
}

func TestReportErrorAsksForDevice(t *testing.T) {
	hook := test.NewGlobal()
	t.Cleanup(func() { logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks)) })

	var out bytes.Buffer
	reportError(&out, fmt.Errorf("%w: %w", errChooseDevice, audio.ErrDeviceNotFound))
	assert.Equal(t, "choose one of those input devices!\n", out.String())
	assert.Empty(t, hook.AllEntries())
}
