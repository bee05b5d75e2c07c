// ABOUTME: Entry point for the VoiceChat bridge
// ABOUTME: Parses CLI flags and starts the device hub
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/songbird-audio/voicechat-go/internal/bridge"
	"github.com/songbird-audio/voicechat-go/internal/config"
	"github.com/songbird-audio/voicechat-go/internal/version"
)

var (
	configPath  = flag.String("config", "", "YAML config file (link section)")
	port        = flag.Int("port", 0, "WebSocket port (default: from link.listen)")
	name        = flag.String("name", "", "Bridge friendly name (default: hostname-voicechat-bridge)")
	logFile     = flag.String("log-file", "voicechat-bridge.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, stream logs to stdout")
	noMetrics   = flag.Bool("no-metrics", false, "Disable the /metrics endpoint")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s bridge %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	listenPort := *port
	if listenPort == 0 {
		listenPort, err = portFromListen(cfg.Link.Listen)
		if err != nil {
			log.Fatalf("Invalid link.listen %q: %v", cfg.Link.Listen, err)
		}
	}

	bridgeName := *name
	if bridgeName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		bridgeName = fmt.Sprintf("%s-voicechat-bridge", hostname)
	}

	log.Printf("Starting %s bridge %s: %s on port %d", version.Product, version.Version, bridgeName, listenPort)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	var reg *prometheus.Registry
	if !*noMetrics {
		reg = prometheus.NewRegistry()
	}

	srv := bridge.New(bridge.Config{
		Port:       listenPort,
		Name:       bridgeName,
		EnableMDNS: cfg.Link.MDNS && !*noMDNS,
		UseTUI:     useTUI,
		Debug:      *debug,
		PingEvery:  cfg.Link.GetPingEvery(),
	}, reg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Bridge error: %v", err)
	}

	log.Printf("Bridge stopped")
}

func portFromListen(listen string) (int, error) {
	_, p, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}
