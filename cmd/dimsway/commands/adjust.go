package commands

import (
	"fmt"

	"github.com/bryanchriswhite/dimsway/internal/control"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust up|down",
	Short: "Step the unfocused opacity of a running instance",
	Long: `Raise or lower the unfocused opacity of a running dimsway by one step.

The running instance must export its D-Bus control object (control.dbus or
--dbus). Without D-Bus, send SIGUSR1 (up) or SIGUSR2 (down) instead.`,
	Example: `  dimsway adjust up
  dimsway adjust down`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE:      runAdjust,
}

func init() {
	rootCmd.AddCommand(adjustCmd)
}

// adjustMethod maps a direction to the D-Bus member name.
func adjustMethod(direction string) (string, error) {
	switch direction {
	case "up":
		return "Increase", nil
	case "down":
		return "Decrease", nil
	default:
		return "", fmt.Errorf("invalid direction %q (use: up or down)", direction)
	}
}

func runAdjust(cmd *cobra.Command, args []string) error {
	method, err := adjustMethod(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	v, err := control.CallDBus(conn, method)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "unfocused opacity: %.2f\n", v)
	return nil
}
