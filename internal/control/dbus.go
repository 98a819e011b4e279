package control

import (
	"context"
	"fmt"

	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/godbus/dbus/v5"
)

// D-Bus names for the control object
const (
	BusName    = "org.dimsway.Control"
	ObjectPath = dbus.ObjectPath("/org/dimsway/Control")
	Interface  = "org.dimsway.Control"
)

// dbusObject is exported on the session bus. Method names are the D-Bus
// member names.
type dbusObject struct {
	levels *config.Levels
}

// Increase raises the unfocused opacity by one step.
func (o *dbusObject) Increase() (float64, *dbus.Error) {
	v := o.levels.Increase()
	logger.WithComponent("control").Info().Str("source", "dbus").Float64("unfocused_opacity", v).Msg("Unfocused opacity adjusted")
	return v, nil
}

// Decrease lowers the unfocused opacity by one step.
func (o *dbusObject) Decrease() (float64, *dbus.Error) {
	v := o.levels.Decrease()
	logger.WithComponent("control").Info().Str("source", "dbus").Float64("unfocused_opacity", v).Msg("Unfocused opacity adjusted")
	return v, nil
}

// Levels returns the focused and unfocused opacity.
func (o *dbusObject) Levels() (float64, float64, *dbus.Error) {
	s := o.levels.Snapshot()
	return s.Focused, s.Unfocused, nil
}

// ExportDBus publishes the control object on conn and claims BusName.
func ExportDBus(conn *dbus.Conn, levels *config.Levels) error {
	if err := conn.Export(&dbusObject{levels: levels}, ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export control object: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", BusName)
	}
	return nil
}

// ServeDBus connects to the session bus and serves the control object
// until ctx is cancelled.
func ServeDBus(ctx context.Context, levels *config.Levels) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	if err := ExportDBus(conn, levels); err != nil {
		return err
	}
	logger.WithComponent("control").Info().Str("name", BusName).Msg("D-Bus control object exported")

	<-ctx.Done()
	return nil
}

// CallDBus invokes Increase or Decrease on a running instance and returns
// the new unfocused opacity.
func CallDBus(conn *dbus.Conn, method string) (float64, error) {
	var v float64
	obj := conn.Object(BusName, ObjectPath)
	if err := obj.Call(Interface+"."+method, 0).Store(&v); err != nil {
		return 0, fmt.Errorf("%s.%s: %w", Interface, method, err)
	}
	return v, nil
}
