package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nishad/runsheet/internal/api"
	"github.com/nishad/runsheet/internal/writer"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the runsheet API server",
	Long: `Start an HTTP server that converts uploaded ISA archives.

The server provides:
- POST /api/v1/runsheets to convert a multipart-uploaded ISA archive
- Profile listing and OSDR file lookups
- Prometheus metrics at /metrics
- CORS support for web applications`,
	Example: `  runsheet server
  runsheet server --port 3000 --host 0.0.0.0`,
	RunE: runServer,
}

var (
	serverPort       int
	serverHost       string
	serverEnableCORS bool
	serverOffline    bool
)

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to listen on (default: configured port)")
	serverCmd.Flags().StringVar(&serverHost, "host", "", "Host to bind to (default: configured host)")
	serverCmd.Flags().BoolVar(&serverEnableCORS, "enable-cors", true, "Enable CORS for web access")
	serverCmd.Flags().BoolVar(&serverOffline, "offline", false, "Disable OSDR lookups and URL mapping")
}

func runServer(cmd *cobra.Command, args []string) error {
	scfg := &api.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		MaxUploadMB:   cfg.Server.MaxUploadMB,
		EnableCORS:    serverEnableCORS,
		EnableMetrics: cfg.Server.EnableMetrics,
	}
	if serverHost != "" {
		scfg.Host = serverHost
	}
	if serverPort != 0 {
		scfg.Port = serverPort
	}

	sink, err := writer.Open(cmd.Context(), cfg.Output)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := api.Services{
		Profiles: profiles(),
		Sink:     sink,
		Logger:   logger,
		Registry: reg,
	}
	if !serverOffline {
		resolver, closeResolver, err := newResolver()
		if err != nil {
			return fmt.Errorf("failed to open file cache: %w", err)
		}
		defer closeResolver()
		svc.Files = resolver
	}

	server := api.NewServer(scfg, svc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		printSuccess("Server ready at http://%s:%d", scfg.Host, scfg.Port)
		printInfo("Runsheet sink: %s", cfg.Output.Sink)
		if scfg.EnableMetrics {
			printInfo("Metrics at http://%s:%d/metrics", scfg.Host, scfg.Port)
		}
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		printInfo("\nShutting down server...")
	case err := <-serverErr:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	printSuccess("Server stopped gracefully")
	return nil
}
