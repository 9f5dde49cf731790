// sockwatch connects to a WebSocket endpoint, mirrors socket state into a
// store, and prints inbound messages. Lines read from stdin are sent as text
// messages.
//
// Usage:
//
//	go run ./cmd/sockwatch --config configs/sockwatch.example.yaml
//	go run ./cmd/sockwatch --url ws://localhost:8080/ws --reconnect
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/sockbridge/internal/config"
	"github.com/rickgao/sockbridge/internal/connection"
	"github.com/rickgao/sockbridge/internal/journal"
	"github.com/rickgao/sockbridge/internal/listener"
	"github.com/rickgao/sockbridge/internal/router"
	"github.com/rickgao/sockbridge/internal/store"
	"github.com/rickgao/sockbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("url", "", "socket address (overrides config)")
	reconnect := flag.Bool("reconnect", false, "enable reconnection (overrides config)")
	statsEvery := flag.Duration("stats", 30*time.Second, "state log interval, 0 to disable")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sockwatch", version.String())
		return
	}

	cfg, err := loadConfig(*configPath, *addr, *reconnect)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting sockwatch",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Socket.URL,
		"transport", cfg.Socket.Transport,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *statsEvery, logger); err != nil {
		logger.Error("sockwatch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func loadConfig(path, addr string, reconnect bool) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Socket.URL = addr
	}
	if reconnect {
		cfg.Socket.Reconnection.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg *config.Config, statsEvery time.Duration, logger *slog.Logger) error {
	st := store.New(logger)
	store.RegisterSocketModule(st)

	var sink router.Committer = st
	var jw *journal.Writer
	if cfg.Journal.Enabled {
		pool, err := journal.Connect(ctx, cfg.Journal.DBConfig())
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := journal.EnsureTable(ctx, pool, cfg.Journal.Table); err != nil {
			return err
		}

		jw = journal.NewWriter(cfg.Journal.WriterConfig(), pool, logger)
		// The writer outlives ctx so that Stop can flush what is queued.
		if err := jw.Start(context.Background()); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		sink = journal.Wrap(st, jw, logger)
		logger.Info("journal enabled", "table", cfg.Journal.Table)
	}

	rtr := router.NewRouter(cfg.Socket.RouterConfig(), router.CommitterTarget(sink), logger)

	reg := listener.NewRegistry(logger)
	reg.Subscribe(connection.LabelMessage, func(args ...any) {
		if ev, ok := args[0].(connection.Event); ok {
			fmt.Printf("< %s\n", ev.Data)
		}
	})
	reg.Subscribe(connection.LabelReconnectError, func(...any) {
		logger.Error("giving up on reconnection")
	})

	var transport connection.Transport
	switch cfg.Socket.Transport {
	case "coder":
		transport = connection.NewCoderTransport(cfg.Socket.TransportConfig(), logger)
	default:
		transport = connection.NewWebSocketTransport(cfg.Socket.TransportConfig(), logger)
	}

	mgr := connection.NewManager(cfg.Socket.ManagerConfig(), logger,
		connection.WithTransport(transport),
		connection.WithRouter(rtr),
		connection.WithRegistry(reg),
	)

	// stdin cannot be interrupted, so it stays outside the group.
	go sendLines(mgr, logger)

	g, gctx := errgroup.WithContext(ctx)

	if statsEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(statsEvery)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					snap := mgr.State()
					rs := rtr.Stats()
					connected, _ := st.Get("socket/" + store.KeyConnected)
					logger.Info("stats",
						"status", snap.Status,
						"attempts", snap.Attempts,
						"store_connected", connected,
						"routed", rs.Routed,
						"skipped", rs.Skipped,
						"unhandled", rs.Unhandled,
						"decode_errors", rs.DecodeErrors,
					)
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		mgr.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if jw != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := jw.Stop(shutdownCtx); err != nil {
			logger.Warn("journal stop", "error", err)
		}
		logger.Info("journal flushed", "inserted", jw.Stats().Inserted, "dropped", jw.Stats().Dropped)
	}
	return nil
}

func sendLines(mgr connection.Manager, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := mgr.Send(append([]byte(nil), line...)); err != nil {
			logger.Warn("send failed", "error", err)
		}
	}
}
