// viewer: hosts the remote object and drives it from controller messages
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/actuation"
	"github.com/teslashibe/go-marionette/pkg/transport"
	"github.com/teslashibe/go-marionette/pkg/viewer"
)

var (
	configPath    = flag.String("config", "", "Path to YAML config file")
	broker        = flag.String("broker", "", "Relay websocket URL (overrides config)")
	statsInterval = flag.Duration("stats", 10*time.Second, "Stats print interval (0 disables)")
)

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config error: %v\n", err)
		os.Exit(1)
	}
	if *broker != "" {
		cfg.Transport.BrokerURL = *broker
	}
	if cfg.Transport.ClientID == "" {
		cfg.Transport.ClientID = transport.NewClientID("viewer")
	}
	log.Init(cfg.Logging.Level)

	fmt.Println()
	fmt.Println("🪆 Marionette Viewer")
	fmt.Printf("   Client:  %s\n", cfg.Transport.ClientID)
	fmt.Printf("   Broker:  %s\n", cfg.Transport.BrokerURL)
	fmt.Printf("   Tick:    %v\n", cfg.Actuation.TickRate)
	fmt.Printf("   Reset:   %s while cloaked\n", cfg.Actuation.ResetPolicy)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := transport.New(cfg.Transport, log.For("transport"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	topics := client.Topics()
	fmt.Printf("🔌 Subscribing to %s...\n", topics.Controls())
	if err := client.ConnectWithRetry(ctx, topics.Controls(), topics.State()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Connected")

	machine, err := actuation.NewMachine(cfg.Actuation, viewer.NewVisibility(log.For("visual")), log.For("actuation"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	machine.SpawnDefault()
	fmt.Printf("✨ Spawned at %v\n", cfg.Actuation.SpawnPosition)

	runner := actuation.NewRunner(machine,
		viewer.NewStatePublisher(client, topics.State(), cfg.Transport.WriteTimeout),
		log.For("runner"))
	forwarder := viewer.NewForwarder(runner, topics.Controls(), log.For("viewer"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return forwarder.Run(gctx, client.Messages()) })
	if *statsInterval > 0 {
		g.Go(func() error { return printStats(gctx, *statsInterval, runner, forwarder, client) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}

	fmt.Println("\n👋 Shutting down...")
	machine.Despawn()
	fmt.Println("✅ Goodbye!")
}

func printStats(ctx context.Context, every time.Duration, r *actuation.Runner, f *viewer.Forwarder, c *transport.Client) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rs, fs, cs := r.Stats(), f.Stats(), c.Stats()
			snap := r.Snapshot()
			fmt.Printf("📊 phase=%s ticks=%d applied=%d dropped=%d malformed=%d sent=%d connected=%v\n",
				snap.Phase, rs.Ticks, rs.Applied, rs.Dropped+fs.Dropped, fs.Malformed, cs.MessagesSent, cs.Connected)
		}
	}
}
