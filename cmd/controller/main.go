// controller: drives a remote object from touch gestures
//
// Gestures are read one per line from a script file or stdin:
//
//	drag left 40 0
//	release left
//	slider 60
//	tap cloak
//	wait 500ms
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/input"
	"github.com/teslashibe/go-marionette/pkg/transport"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	broker     = flag.String("broker", "", "Relay websocket URL (overrides config)")
	script     = flag.String("script", "", "Gesture script file (default: stdin)")
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
		cfg.Transport.ClientID = transport.NewClientID("controller")
	}
	log.Init(cfg.Logging.Level)

	fmt.Println()
	fmt.Println("🎮 Marionette Controller")
	fmt.Printf("   Client: %s\n", cfg.Transport.ClientID)
	fmt.Printf("   Broker: %s\n", cfg.Transport.BrokerURL)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := transport.New(cfg.Transport, log.For("transport"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	topic := client.Topics().Controls()
	fmt.Printf("🔌 Connecting to %s...\n", topic)
	if err := client.ConnectWithRetry(ctx, topic); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Connected")

	ctrl, err := input.NewController(cfg.Input, client, topic, log.For("input"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	var r io.Reader = os.Stdin
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	} else {
		fmt.Println("⌨️  Reading gestures from stdin (Ctrl-D to quit)")
	}

	go client.WatchConnection(ctx, time.Second, func(connected bool) {
		if connected {
			fmt.Println("✅ Reconnected")
		} else {
			fmt.Println("⚠️  Disconnected from broker")
		}
	})

	err = input.RunScript(ctx, r, ctrl, func(line int, err error) {
		fmt.Printf("⚠️  line %d: %v\n", line, err)
	})
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}

	stats := client.Stats()
	fmt.Printf("\n📊 Sent %d messages (%d failed, %d reconnects)\n",
		ctrl.Sent(), ctrl.Failed(), stats.ReconnectCount)
	fmt.Println("👋 Goodbye!")
}

