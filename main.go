// ABOUTME: Entry point for the VoiceChat handset simulator
// ABOUTME: Wires storage, microphone substitute, speaker and bridge link into the device loop
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/songbird-audio/voicechat-go/internal/config"
	"github.com/songbird-audio/voicechat-go/internal/device"
	"github.com/songbird-audio/voicechat-go/internal/discovery"
	"github.com/songbird-audio/voicechat-go/internal/link"
	"github.com/songbird-audio/voicechat-go/internal/metrics"
	"github.com/songbird-audio/voicechat-go/internal/source"
	"github.com/songbird-audio/voicechat-go/internal/ui"
	"github.com/songbird-audio/voicechat-go/internal/version"
	"github.com/songbird-audio/voicechat-go/pkg/audio"
	"github.com/songbird-audio/voicechat-go/pkg/audio/output"
	"github.com/songbird-audio/voicechat-go/pkg/storage"
	"github.com/songbird-audio/voicechat-go/pkg/transport"
)

var (
	configPath  = flag.String("config", "", "YAML config file (default: built-in settings)")
	bridgeAddr  = flag.String("bridge", "", "Bridge URL or host:port (overrides link.url)")
	tty         = flag.String("tty", "", "Serial device or pipe to the bridge instead of a WebSocket")
	discover    = flag.Bool("discover", false, "Find the bridge with mDNS")
	name        = flag.String("name", "", "Device name (default: device.name, then derived from the machine id)")
	micSource   = flag.String("source", "", "Microphone substitute: tone, silence, or an MP3/FLAC/WAV file")
	cardDir     = flag.String("card", "", "Directory holding the simulated SD card")
	speaker     = flag.String("output", "", "Speaker backend: oto or null")
	logFile     = flag.String("log-file", "", "Log file path")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs  = flag.Bool("stream-logs", false, "Alias for -no-tui")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

const (
	micQueueBlocks     = 64
	speakerQueueBlocks = 64
	discoveryTimeout   = 10 * time.Second
	statusEvery        = 200 * time.Millisecond
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", version.Product, version.Version, version.Manufacturer)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	useTUI := !(*noTUI || *streamLogs)

	f, err := os.OpenFile(cfg.Logging.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	logWriters := []io.Writer{f}
	if !useTUI || cfg.Logging.Stdout {
		logWriters = append(logWriters, os.Stdout)
	}
	log.SetOutput(io.MultiWriter(logWriters...))

	deviceName := resolveName(cfg.Device.Name)
	log.Printf("Starting %s %s: %s", version.Product, version.Version, deviceName)

	state, err := config.LoadState(cfg.Storage.StateFile)
	if err != nil {
		log.Fatalf("Failed to load state: %v", err)
	}

	st, err := storage.NewDir(cfg.Storage.Dir)
	if err != nil {
		log.Fatalf("Failed to open card %s: %v", cfg.Storage.Dir, err)
	}
	if cfg.Storage.Capacity > 0 {
		st.SetCapacity(cfg.Storage.Capacity)
	}

	medium, closeMedium, err := openMedium(cfg, deviceName)
	if err != nil {
		log.Fatalf("Failed to open bridge link: %v", err)
	}
	defer closeMedium()

	gen, err := newGenerator(cfg.Audio.Source)
	if err != nil {
		log.Fatalf("Failed to open microphone source: %v", err)
	}
	mic := source.NewPaced(gen, micQueueBlocks)

	spk := newSpeaker(cfg.Audio.Output)
	if err := spk.Open(audio.DeviceSampleRate); err != nil {
		log.Printf("Speaker unavailable (%v), falling back to null output", err)
		spk = output.NewNull(speakerQueueBlocks)
		if err := spk.Open(audio.DeviceSampleRate); err != nil {
			log.Fatalf("Failed to open null output: %v", err)
		}
	}
	spk.SetVolume(cfg.Audio.Volume)
	defer spk.Close()

	dev, err := device.New(st, medium, mic, spk, device.Config{
		Name:        deviceName,
		Channels:    cfg.Device.Channels,
		Channel:     state.Channel,
		Muted:       state.Muted,
		AutoPlay:    cfg.Device.AutoPlay,
		Codec:       cfg.Codec,
		SyncEvery:   cfg.Storage.SyncEvery,
		Liveness:    cfg.Transport.GetLiveness(),
		Sequence:    state,
		Preferences: state,
	})
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}

	if cfg.Logging.Bridge {
		log.SetOutput(io.MultiWriter(append(logWriters, dev.Link().LogWriter())...))
	}

	mic.Start()
	defer func() {
		if err := mic.Stop(); err != nil {
			log.Printf("Error closing microphone source: %v", err)
		}
	}()

	var met *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		met = metrics.New(prometheus.NewRegistry())
		go met.Serve(cfg.Metrics.Listen)
	}

	var tuiProg *tea.Program
	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls)
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var commands <-chan device.Command
	var quit <-chan struct{}
	if controls != nil {
		commands = controls.Commands
		quit = controls.Quit
	}

	ticker := time.NewTicker(cfg.Device.GetTick())
	defer ticker.Stop()
	statusTicker := time.NewTicker(statusEvery)
	defer statusTicker.Stop()

	lastMode := device.ModeIdle
	for {
		select {
		case <-ticker.C:
			dev.Tick()

		case cmd := <-commands:
			if !dev.Post(cmd) {
				log.Printf("Command queue full, dropping %v", cmd)
			}

		case <-statusTicker.C:
			status := dev.Status()
			stats := dev.Stats()
			if met != nil {
				met.Observe(stats)
			}
			if tuiProg != nil {
				tuiProg.Send(ui.StatusMsg{Status: status, Stats: stats})
			} else if status.Mode != lastMode {
				log.Printf("Channel %d: %s", status.Channel+1, status.Mode)
			}
			lastMode = status.Mode

		case <-quit:
			log.Printf("Received quit signal from TUI")
			shutdown(tuiProg)
			return

		case <-sigChan:
			log.Printf("Shutdown signal received")
			shutdown(tuiProg)
			return
		}
	}
}

func shutdown(tuiProg *tea.Program) {
	if tuiProg != nil {
		tuiProg.Quit()
	}
	log.Printf("Device stopped")
}

// applyFlags lets command-line flags override the config file
func applyFlags(cfg *config.Config) {
	if *bridgeAddr != "" {
		cfg.Link.URL = *bridgeAddr
	}
	if *discover {
		cfg.Link.Discover = true
	}
	if *name != "" {
		cfg.Device.Name = *name
	}
	if *micSource != "" {
		cfg.Audio.Source = *micSource
	}
	if *cardDir != "" {
		cfg.Storage.Dir = *cardDir
	}
	if *speaker != "" {
		cfg.Audio.Output = *speaker
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
}

// resolveName picks a stable device name that fits a bridge username
func resolveName(configured string) string {
	if configured != "" {
		if len(configured) > transport.MaxUsername {
			return configured[:transport.MaxUsername]
		}
		return configured
	}

	id, err := machineid.ProtectedID("voicechat")
	if err != nil {
		log.Printf("No machine id (%v), using a random name", err)
		id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return "vc-" + id[:8]
}

// openMedium connects to the bridge over a tty or a WebSocket
func openMedium(cfg *config.Config, deviceName string) (transport.Medium, func(), error) {
	if *tty != "" {
		f, err := os.OpenFile(*tty, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, err
		}
		s := link.NewStream(f, link.DefaultRingSize)
		log.Printf("Bridge link on %s", *tty)
		return s, func() { _ = s.Close() }, nil
	}

	ws := link.NewWebSocket(link.WebSocketConfig{
		URL:       resolveBridge(cfg, deviceName),
		Name:      deviceName,
		Reconnect: cfg.Link.GetReconnect(),
	})
	ws.Start()
	return ws, func() { _ = ws.Close() }, nil
}

// resolveBridge returns the bridge URL from config, mDNS, or the local default
func resolveBridge(cfg *config.Config, deviceName string) string {
	if cfg.Link.URL != "" {
		if strings.Contains(cfg.Link.URL, "://") {
			return cfg.Link.URL
		}
		return link.Endpoint(cfg.Link.URL, "")
	}

	port := "8930"
	if _, p, err := net.SplitHostPort(cfg.Link.Listen); err == nil {
		port = p
	}
	fallback := link.Endpoint(net.JoinHostPort("localhost", port), "")
	if !cfg.Link.Discover {
		return fallback
	}

	log.Printf("Starting bridge discovery...")
	disc := discovery.NewManager(discovery.Config{ServiceName: deviceName})
	disc.Browse()
	defer disc.Stop()

	select {
	case b := <-disc.Bridges():
		log.Printf("Discovered bridge %s at %s", b.Name, b.Addr())
		return link.Endpoint(b.Addr(), "")
	case <-time.After(discoveryTimeout):
		log.Printf("No bridge found after %v, trying %s", discoveryTimeout, fallback)
		return fallback
	}
}

func newGenerator(src string) (source.Generator, error) {
	switch src {
	case "tone":
		return source.NewTone(440, 0.5), nil
	case "silence":
		return source.Silence{}, nil
	default:
		return source.OpenFile(src, true)
	}
}

func newSpeaker(kind string) output.Output {
	if kind == "null" {
		return output.NewNull(speakerQueueBlocks)
	}
	return output.NewOto(speakerQueueBlocks)
}
