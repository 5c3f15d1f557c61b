// Voxsync-mockd serves an in-memory voice modulator backend.
//
// It answers the same REST configuration API and /ws event channel as the
// real backend, with a fixed set of audio devices and the shipped default
// profiles. Use it to develop against voxsync without audio hardware.
//
// Usage:
//
//	voxsync-mockd serve [flags]
//
// See 'voxsync-mockd serve --help' for available options.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/discovery"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/mockbackend"
	"github.com/muurk/voxsync/internal/version"
)

// shutdownTimeout bounds the graceful stop after a signal
const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voxsync-mockd",
	Short: "Mock voice modulator backend",
	Long: `An in-memory stand-in for the voice modulator backend.

Serves GET /devices, the /profiles routes, POST /config, POST /profile,
GET /status and the /ws event channel. State lives in memory and is lost
on exit.`,
	Version:      version.Version,
	SilenceUsage: true,
}

// Serve command and flags
var (
	addr      string
	advertise bool
	instance  string
	strict    bool
	interval  time.Duration
	logLevel  string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	serveCmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Advertise the backend with mDNS")
	serveCmd.Flags().StringVar(&instance, "instance", "voxsync-mock", "mDNS instance name")
	serveCmd.Flags().BoolVar(&strict, "strict", false, "Reject protected deletes with 403 instead of 404")
	serveCmd.Flags().DurationVar(&interval, "interval", mockbackend.DefaultStatusInterval, "Status broadcast period (negative disables)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock backend",
	Example: `  # Serve on the default port
  voxsync-mockd serve

  # Serve on another port and answer mDNS scans
  voxsync-mockd serve --addr :9000 --advertise

  # No periodic status, 403 on protected deletes
  voxsync-mockd serve --interval -1s --strict --log-level debug`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer logging.Sync()

	if logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := mockbackend.New(mockbackend.Options{
		StatusInterval:   interval,
		StrictProtection: strict,
	})
	defer backend.Close()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logging.Info("Mock backend listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("strict", strict),
		zap.Duration("status_interval", interval),
	)

	if advertise {
		port, perr := listenPort(listener.Addr())
		if perr != nil {
			_ = listener.Close()
			return perr
		}
		ad, aerr := discovery.Advertise(instance, port, version.Version)
		if aerr != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(aerr))
		} else {
			logging.Info("Advertising with mDNS",
				zap.String("instance", instance),
				zap.String("service", discovery.ServiceType),
				zap.Int("port", port),
			)
		}
		defer ad.Shutdown()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-cmd.Context().Done():
		logging.Info("Shutdown signal received, stopping server...")
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	// Websocket connections are hijacked and not tracked by Shutdown
	backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return srv.Close()
	}
	logging.Info("Server stopped")
	return nil
}

func listenPort(a net.Addr) (int, error) {
	_, p, err := net.SplitHostPort(a.String())
	if err != nil {
		return 0, fmt.Errorf("cannot parse listen address %s: %w", a, err)
	}
	return strconv.Atoi(p)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxsync-mockd %s\n", version.Full())
	},
}
