package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "dimsway [OPACITY]",
		Short: "dimsway - dim inactive windows in Sway",
		Long: `dimsway talks to Sway over its IPC socket ($SWAYSOCK) and keeps every
window except the focused one slightly transparent.

OPACITY overrides the unfocused opacity (0.0 - 1.0, default 0.95).

While running:
  • SIGUSR1 raises the unfocused opacity by one step
  • SIGUSR2 lowers it by one step
  • "dimsway adjust up|down" does the same over D-Bus (control.dbus)
  • an optional HTTP API serves state and a focus stream (control.http_addr)`,
		Example: `  # Dim unfocused windows to the configured level
  dimsway

  # Dim unfocused windows to 80% opacity
  dimsway 0.8

  # Debug logging and HTTP control on localhost
  dimsway --log-level debug --http 127.0.0.1:7878`,
		Args:          validateOpacityArgs,
		RunE:          runDimmer,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/dimsway/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", true, "human-readable console logs")

	rootCmd.Flags().String("socket", "", "compositor IPC socket (default is $SWAYSOCK)")
	rootCmd.Flags().Float64("focused", config.DefaultFocusedOpacity, "opacity of the focused window")
	rootCmd.Flags().Float64("step", config.DefaultOpacityStep, "opacity change per adjustment")
	rootCmd.Flags().String("http", "", "serve the control API on this address")
	rootCmd.Flags().Bool("dbus", false, "export the D-Bus control object")
	rootCmd.Flags().Bool("signals", true, "adjust opacity on SIGUSR1/SIGUSR2")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.BindPFlag("socket_path", rootCmd.Flags().Lookup("socket"))
	viper.BindPFlag("focused_opacity", rootCmd.Flags().Lookup("focused"))
	viper.BindPFlag("opacity_step", rootCmd.Flags().Lookup("step"))
	viper.BindPFlag("control.http_addr", rootCmd.Flags().Lookup("http"))
	viper.BindPFlag("control.dbus", rootCmd.Flags().Lookup("dbus"))
	viper.BindPFlag("control.signals", rootCmd.Flags().Lookup("signals"))
}

func initConfig() {
	// DIMSWAY_LOG_LEVEL, DIMSWAY_CONTROL_HTTP_ADDR, ...
	viper.SetEnvPrefix("dimsway")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// validateOpacityArgs accepts zero or one opacity in [0,1].
func validateOpacityArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return err
	}
	if len(args) == 1 {
		if _, err := parseOpacity(args[0]); err != nil {
			return err
		}
	}
	return nil
}

func parseOpacity(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid opacity %q: must be a number between 0.0 and 1.0", s)
	}
	if err := config.ValidateOpacity("opacity", v); err != nil {
		return 0, err
	}
	return v, nil
}

// applyOverrides copies flag and environment values that were explicitly set
// over the file configuration. Flag defaults do not count as set.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if s := v.GetString("log_level"); v.IsSet("log_level") && s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("socket_path"); v.IsSet("socket_path") && s != "" {
		cfg.SocketPath = s
	}
	if v.IsSet("focused_opacity") {
		cfg.FocusedOpacity = v.GetFloat64("focused_opacity")
	}
	if v.IsSet("unfocused_opacity") {
		cfg.UnfocusedOpacity = v.GetFloat64("unfocused_opacity")
	}
	if v.IsSet("opacity_step") {
		cfg.OpacityStep = v.GetFloat64("opacity_step")
	}
	if s := v.GetString("control.http_addr"); v.IsSet("control.http_addr") && s != "" {
		cfg.Control.HTTPAddr = s
	}
	if v.IsSet("control.dbus") {
		cfg.Control.DBus = v.GetBool("control.dbus")
	}
	if v.IsSet("control.signals") {
		cfg.Control.Signals = v.GetBool("control.signals")
	}
}
