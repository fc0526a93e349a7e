// File: cmd/arithd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// arithd serves "<number> <op> <number>" requests over TCP from a single
// readiness-multiplexed event loop.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/momentics/hioload-arith/control"
	"github.com/momentics/hioload-arith/internal/config"
	"github.com/momentics/hioload-arith/internal/logging"
	"github.com/momentics/hioload-arith/server"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	log, _ := logging.New(logging.Options{})
	root := newRootCmd(&log)
	root.AddCommand(newEvalCmd())
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("arithd")
		os.Exit(1)
	}
}

func newRootCmd(log *zerolog.Logger) *cobra.Command {
	cfg := config.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:   "arithd",
		Short: "Single-threaded arithmetic server",
		Long: `arithd answers "<number> <op> <number>" requests, one request per read,
with "Result: <value>" or "Error: <reason>". Operators: + - * /.

Configuration is read from defaults, the TOML file, ARITHD_* environment
variables and flags, later sources winning.`,
		Example:       "  arithd --listen :3890\n  arithd eval 3 + 4",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = config.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			haveFile := cfgFile != "" && config.FileExists(cfgFile)
			if haveFile {
				fc, err := config.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			l, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			*log = l
			log.Info().Interface("config", cfg.Snapshot()).Msg("configuration")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cfgFile, haveFile, changed, *log)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.arithd/config.toml)")
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP listen address; empty host listens on IPv4 and IPv6")
	f.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog")
	f.IntVar(&cfg.BufferSize, "buffer-size", cfg.BufferSize, "maximum request size in bytes")
	f.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "concurrent connection limit (0 = unlimited)")
	f.StringVar(&cfg.Backend, "backend", cfg.Backend, "readiness backend: auto, epoll or poll")
	f.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "readiness wait timeout (0 blocks)")
	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "ready events handled per wait")
	f.StringVar(&cfg.ControlAddr, "control-addr", cfg.ControlAddr, "address for /metrics, /healthz and /debug (empty disables)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	if err := f.MarkHidden("max-events"); err != nil {
		log.Info().Err(err).Msg("failed to hide max-events flag")
	}
	return root
}

func serve(ctx context.Context, cfg config.Config, cfgFile string, watch bool, changed map[string]bool, log zerolog.Logger) error {
	metrics := control.NewMetrics(nil)
	probes := control.NewDebugProbes()
	store := control.NewConfigStore()
	store.SetConfig(cfg.Snapshot())

	srv, err := server.NewServer(cfg.ServerConfig(),
		server.WithLogger(log),
		server.WithMetrics(metrics),
		server.WithDebugProbes(probes),
		server.WithTracerProvider(otel.GetTracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.ControlAddr != "" {
		hs, err := control.ListenHTTP(cfg.ControlAddr, control.NewRouter(control.RouterOptions{
			Metrics: metrics,
			Probes:  probes,
			Config:  store,
		}))
		if err != nil {
			srv.Shutdown()
			return fmt.Errorf("control listener: %w", err)
		}
		log.Info().Str("addr", hs.Addr().String()).Msg("control endpoint listening")
		go func() {
			if err := hs.Serve(); err != nil {
				log.Error().Err(err).Msg("control endpoint stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Shutdown(sctx)
		}()
	}

	if watch {
		w := config.NewWatcher(cfgFile, cfg, changed, store, log)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
