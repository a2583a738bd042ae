// Command turnkey-server runs a Henry validation server: it accepts
// turnstile connections, validates access requests against a local
// credential store, and exposes device/audit status over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/henrycontrol/turnkey/internal/config"
	"github.com/henrycontrol/turnkey/internal/discovery"
	"github.com/henrycontrol/turnkey/internal/logging"
	"github.com/henrycontrol/turnkey/internal/opsweb"
	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/storage"
	"github.com/henrycontrol/turnkey/internal/transport"
	"github.com/henrycontrol/turnkey/internal/validator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "turnkey-server",
		Short: "Henry protocol validation server",
	}

	serveCmd := &cobra.Command{
		Use:                "serve",
		Short:              "accept turnstile connections and validate access requests",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(args)
		},
	}

	var discoverTimeout time.Duration
	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "browse the LAN for other Henry validation servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(discoverTimeout)
		},
	}
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 3*time.Second, "browse duration")

	rootCmd.AddCommand(serveCmd, discoverCmd)
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger := logging.New(level, format, os.Stdout)
	logging.SetDefault(logger)

	store := storage.NewMemoryStore()
	offline := validator.NewOfflineValidator(store)
	metrics := opsweb.NewMetrics()
	hub := opsweb.NewHub(store, metrics)

	server, err := transport.NewServerWithLimits(cfg.ListenAddr, cfg.MaxConnections, cfg.ConnectionDeadline)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	server.SetLogger(logger.With(logging.Component("server")))
	defer server.Close()

	ops := opsweb.NewWebServer(cfg.OpsAddr, hub, metrics, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ops.Start(ctx)

	var advertisement *discovery.Advertisement
	if cfg.MDNSEnabled {
		port := tcpPort(server.Addr().String())
		advertisement, err = discovery.Advertise(cfg.MDNSInstance, port, nil)
		if err != nil {
			logger.Warn("mdns advertise failed", logging.Field{Key: "error", Value: err.Error()})
		} else {
			defer advertisement.Shutdown()
		}
	}

	logger.Info("turnkey-server listening",
		logging.Field{Key: "listen_addr", Value: server.Addr().String()},
		logging.Field{Key: "ops_addr", Value: cfg.OpsAddr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		server.Close()
	}()

	go acceptLoop(ctx, server, logger)
	go recvLoop(ctx, server, offline, hub, logger, metrics)

	<-ctx.Done()
	return nil
}

// recvLoop dispatches every inbound message to its own handleMessage
// goroutine via RecvAny, rather than one Recv(deviceID) goroutine per
// device — RecvAny fans in across all connected devices, so a quiet
// device never starves another's replies.
func recvLoop(ctx context.Context, server *transport.Server, offline *validator.OfflineValidator, hub *opsweb.Hub, logger logging.Logger, metrics *opsweb.Metrics) {
	for {
		deviceID, msg, err := server.RecvAny()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warn("device disconnected", logging.DeviceField(deviceID), logging.Field{Key: "error", Value: err.Error()})
			hub.RecordDeviceDisconnected(deviceID)
			_ = server.Disconnect(deviceID)
			continue
		}
		go handleMessage(server, deviceID, msg, offline, logger, metrics)
	}
}

// acceptLoop admits connections until ctx is cancelled, running
// independently of the RecvAny dispatch loop so a slow or silent device
// never blocks new devices from connecting.
func acceptLoop(ctx context.Context, server *transport.Server, logger logging.Logger) {
	for {
		if _, err := server.Accept(); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Error("accept failed", logging.Field{Key: "error", Value: err.Error()})
			return
		}
	}
}

// handleMessage validates one inbound access request and replies to its
// originating device. Every call runs in its own goroutine so one
// device's request never waits on another's; each device's own Send
// remains serialized by its connection's internal mutex.
func handleMessage(server *transport.Server, deviceID protocol.DeviceID, msg protocol.Message, offline *validator.OfflineValidator, logger logging.Logger, metrics *opsweb.Metrics) {
	deviceLogger := logger.With(logging.DeviceField(deviceID))

	if msg.Command != protocol.CommandAccessRequest {
		deviceLogger.Warn("ignoring unexpected command", logging.Field{Key: "command", Value: msg.Command.String()})
		return
	}

	fields := make([]string, len(msg.Fields))
	for i, f := range msg.Fields {
		fields[i] = f.String()
	}
	request, err := protocol.ParseAccessRequest(fields)
	if err != nil {
		deviceLogger.Warn("invalid access request", logging.Field{Key: "error", Value: err.Error()})
		return
	}

	response, err := offline.Validate(request)
	if err != nil {
		deviceLogger.Error("validation failed", logging.Field{Key: "error", Value: err.Error()})
		if metrics != nil {
			metrics.ObserveValidationError()
		}
		return
	}
	if metrics != nil {
		metrics.ObserveDecision(response.Decision)
	}

	reply, err := response.ToMessage(deviceID)
	if err != nil {
		deviceLogger.Error("failed to build response message", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	if err := server.Send(deviceID, reply); err != nil {
		deviceLogger.Warn("failed to send response", logging.Field{Key: "error", Value: err.Error()})
	}
}

func runDiscover(timeout time.Duration) error {
	servers, err := discovery.Browse(context.Background(), timeout)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if len(servers) == 0 {
		fmt.Println("no Henry validation servers found")
		return nil
	}
	for _, s := range servers {
		fmt.Printf("%s\t%s:%d\t%v\n", s.Instance, s.Hostname, s.Port, s.Addresses)
	}
	return nil
}

func tcpPort(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port, _ := strconv.Atoi(addr[i+1:])
			return port
		}
	}
	return 0
}
