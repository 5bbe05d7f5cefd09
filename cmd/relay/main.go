// relay: topic-based websocket broker between controllers and viewers
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-marionette/internal/config"
	"github.com/teslashibe/go-marionette/internal/log"
	"github.com/teslashibe/go-marionette/pkg/relay"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	accessLog  = flag.Bool("access-log", false, "Log every HTTP request")
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
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *accessLog {
		cfg.Relay.AccessLog = true
	}
	log.Init(cfg.Logging.Level)

	fmt.Println()
	fmt.Println("📡 Marionette Relay")
	fmt.Println("   Topic broker for controllers and viewers")
	fmt.Println()

	server, err := relay.New(cfg.Relay, log.For("relay"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	go func() {
		fmt.Printf("🚀 Listening on %s\n", cfg.Relay.Addr)
		fmt.Printf("   WebSocket: ws://localhost%s/ws/<topic>\n", cfg.Relay.Addr)
		fmt.Printf("   Health:    http://localhost%s/healthz\n", cfg.Relay.Addr)
		fmt.Printf("   Topics:    http://localhost%s/api/topics\n", cfg.Relay.Addr)
		fmt.Println()

		if err := server.Listen(); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("shutdown error", "error", err)
	}

	fmt.Println("✅ Goodbye!")
}
