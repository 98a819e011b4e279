package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/dimsway/internal/api"
	"github.com/bryanchriswhite/dimsway/internal/config"
	"github.com/bryanchriswhite/dimsway/internal/control"
	"github.com/bryanchriswhite/dimsway/internal/dimmer"
	"github.com/bryanchriswhite/dimsway/internal/ipc"
	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadRunConfig merges file config, flags, environment and the positional
// opacity argument, in increasing precedence.
func loadRunConfig(args []string) (*config.Config, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := configMgr.Get()
	applyOverrides(cfg, viper.GetViper())

	if len(args) == 1 {
		v, err := parseOpacity(args[0])
		if err != nil {
			return nil, err
		}
		cfg.UnfocusedOpacity = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDimmer(cmd *cobra.Command, args []string) error {
	// Args already validated the positional opacity; later failures are
	// not usage errors
	cmd.SilenceUsage = true

	cfg, err := loadRunConfig(args)
	if err != nil {
		return err
	}

	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	log := logger.WithComponent("main")

	retryDelay, _ := cfg.RetryDelay()
	transport := ipc.NewTransport(ipc.TransportConfig{
		SocketPath:     cfg.SocketPath,
		MaxMessageSize: cfg.MaxMessageSize,
		RetryDelay:     retryDelay,
	})
	if transport.SocketPath() == "" {
		return fmt.Errorf("the compositor socket address, $%s, was empty", ipc.SocketEnv)
	}

	levels := config.NewLevels(cfg.Levels())
	d := dimmer.New(ipc.NewClient(transport), levels)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Control.Signals {
		control.WatchSignals(ctx, levels)
	}
	if cfg.Control.DBus {
		go func() {
			if err := control.ServeDBus(ctx, levels); err != nil {
				log.Warn().Err(err).Msg("D-Bus control unavailable")
			}
		}()
	}
	if cfg.Control.HTTPAddr != "" {
		server := api.NewServer(d)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Control.HTTPAddr); err != nil {
				log.Warn().Err(err).Msg("Control API stopped")
			}
		}()
	}

	log.Info().
		Str("socket", transport.SocketPath()).
		Float64("focused_opacity", cfg.FocusedOpacity).
		Float64("unfocused_opacity", cfg.UnfocusedOpacity).
		Msg("Starting dimmer")

	if err := d.Start(); err != nil {
		return err
	}

	// Closing the socket is the only way to interrupt the blocking receive
	go func() {
		<-ctx.Done()
		_ = transport.Close()
	}()

	if err := d.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("Shutting down")
	return nil
}
