package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/fseditor/internal/logger"
	"github.com/marmos91/fseditor/pkg/config"
	"github.com/marmos91/fseditor/pkg/identity"
	promMetrics "github.com/marmos91/fseditor/pkg/metrics/prometheus"
	"github.com/marmos91/fseditor/pkg/server"
	"github.com/urfave/cli/v2"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "start the editor server",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if err := configureLogging(&cfg.Logging); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write a configuration file with the default values",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if err := config.InitConfigToPath(path, c.Bool("force")); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}
}

func chipIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "chipid",
		Usage: "print the device chip id derived from the configured identity source",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			src, err := config.CreateIdentitySource(&cfg.Identity)
			if err != nil {
				return err
			}
			if src == nil {
				return errors.New("identity source is none")
			}
			mac, err := src.HardwareAddr()
			if err != nil {
				return fmt.Errorf("failed to read hardware address: %w", err)
			}
			fmt.Println(identity.Format(identity.Pack(mac)))
			return nil
		},
	}
}

func configureLogging(cfg *config.LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	logger.SetFormat(cfg.Format)
	if err := logger.SetOutput(cfg.Output); err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	return nil
}

// run wires the configured components together and serves until ctx is
// cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger.Info("fseditor %s starting", version)

	m := config.InitializeMetrics(cfg)

	fs, err := config.CreateFilesystem(ctx, &cfg.Filesystem)
	if err != nil {
		return err
	}

	src, err := config.CreateIdentitySource(&cfg.Identity)
	if err != nil {
		_ = fs.Close()
		return err
	}

	var chipID func() uint32
	if src != nil {
		// The address does not change while running; read it once.
		id := identity.NewProvider(src)()
		chipID = func() uint32 { return id }
		logger.Info("Chip ID: %s", identity.Format(id))
		promMetrics.RegisterDeviceInfo(identity.Format(id), cfg.Filesystem.Type)
	}

	adapters, err := config.CreateAdapters(cfg, fs, m, chipID)
	if err != nil {
		_ = fs.Close()
		return err
	}

	srv := server.New(fs, cfg.Server.ShutdownTimeout)
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = fs.Close()
			return err
		}
	}

	logger.Info("Editor available at http://localhost:%d%s", cfg.Adapters.HTTP.Port, cfg.Editor.MountPrefix)
	if cfg.Metrics.Enabled {
		logger.Info("Metrics available at http://localhost:%d/metrics", cfg.Metrics.Port)
	}

	err = srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Server stopped")
		return nil
	}
	return err
}
