// Command spectro-server runs the spectrum delivery service: the
// endpoint table of spec.md section 4.7 over the dataset contexts
// named in a JSON configuration file. See spec.md section 6 for the
// command-line surface this mirrors.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/sdss-spectro/spectro-service/internal/config"
	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/metrics"
	"github.com/sdss-spectro/spectro-service/internal/service"
)

func main() {
	sync := flag.Bool("sync", false, "use a thread-pool-backed server instead of the default async server")
	host := flag.String("host", "", "listen host (overrides the active profile's host)")
	port := flag.Int("port", 0, "listen port (overrides the active profile's port)")
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	catalogEndpoint := flag.String("catalog-endpoint", "", "query-manager HTTP endpoint for catalog lookups")
	workers := flag.Int("workers", runtime.NumCPU(), "worker thread count in --sync mode")
	metricsAddr := flag.String("metrics-listen", ":9090", "listen address for the /metrics endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	hostname, _ := os.Hostname()
	profile := cfg.ActiveProfile(hostname)
	listenHost := profile.Host
	if *host != "" {
		listenHost = *host
	}
	listenPort := profile.Port
	if *port != 0 {
		listenPort = *port
	}
	addr := formatAddr(listenHost, listenPort)

	catalog := dataset.NewHTTPCatalogClient(*catalogEndpoint)
	metricsReg, promReg := metrics.New()
	svc := service.New(cfg, catalog, metricsReg)

	if *sync {
		svc.Pool = service.NewWorkerPool(*workers)
		log.Printf("Running in sync mode with %d worker threads", *workers)
	} else {
		log.Printf("Running in async mode (one goroutine per request)")
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      svc.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsSrv := &http.Server{
		Addr:    *metricsAddr,
		Handler: metrics.Handler(promReg),
	}
	go func() {
		log.Printf("Metrics listening on %s", *metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		if svc.Pool != nil {
			svc.Pool.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		metricsSrv.Shutdown(ctx)
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	log.Printf("Server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func formatAddr(host string, port int) string {
	if port == 0 {
		port = 8080
	}
	return host + ":" + strconv.Itoa(port)
}
