package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestValidateOpacityArgs(t *testing.T) {
	require.NoError(t, validateOpacityArgs(rootCmd, nil))
	require.NoError(t, validateOpacityArgs(rootCmd, []string{"0.8"}))
	require.NoError(t, validateOpacityArgs(rootCmd, []string{"1"}))
	require.Error(t, validateOpacityArgs(rootCmd, []string{"1.5"}))
	require.Error(t, validateOpacityArgs(rootCmd, []string{"dim"}))
	require.Error(t, validateOpacityArgs(rootCmd, []string{"0.5", "0.6"}))
}

func TestParseOpacityTrimsWhitespace(t *testing.T) {
	v, err := parseOpacity(" 0.75 ")
	require.NoError(t, err)
	require.Equal(t, 0.75, v)
}

func TestApplyOverridesOnlyTouchesSetKeys(t *testing.T) {
	cfg := config.Defaults()
	v := viper.New()
	v.Set("focused_opacity", 0.9)
	v.Set("control.http_addr", "127.0.0.1:7878")
	v.Set("control.signals", false)

	applyOverrides(cfg, v)

	require.Equal(t, 0.9, cfg.FocusedOpacity)
	require.Equal(t, "127.0.0.1:7878", cfg.Control.HTTPAddr)
	require.False(t, cfg.Control.Signals)
	require.Equal(t, config.DefaultUnfocusedOpacity, cfg.UnfocusedOpacity)
	require.Equal(t, config.DefaultOpacityStep, cfg.OpacityStep)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestApplyOverridesIgnoresEmptyStrings(t *testing.T) {
	cfg := config.Defaults()
	cfg.SocketPath = "/run/sway.sock"
	v := viper.New()
	v.Set("socket_path", "")

	applyOverrides(cfg, v)
	require.Equal(t, "/run/sway.sock", cfg.SocketPath)
}

func TestLoadRunConfigPositionalOpacity(t *testing.T) {
	old := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = old })

	cfg, err := loadRunConfig([]string{"0.5"})
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.UnfocusedOpacity)

	cfg, err = loadRunConfig(nil)
	require.NoError(t, err)
	require.Equal(t, config.DefaultUnfocusedOpacity, cfg.UnfocusedOpacity)

	_, err = loadRunConfig([]string{"2"})
	require.Error(t, err)
}

func TestWriteConfigFormats(t *testing.T) {
	cfg := config.Defaults()

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "yaml"))
	require.Contains(t, buf.String(), "unfocused_opacity: 0.95")

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "json"))
	require.Contains(t, buf.String(), `"unfocused_opacity": 0.95`)

	require.Error(t, writeConfig(&buf, cfg, "toml"))
}

func TestAdjustMethod(t *testing.T) {
	m, err := adjustMethod("up")
	require.NoError(t, err)
	require.Equal(t, "Increase", m)

	m, err = adjustMethod("down")
	require.NoError(t, err)
	require.Equal(t, "Decrease", m)

	_, err = adjustMethod("sideways")
	require.Error(t, err)
}
