package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/roperia/roperia/internal/platform/timeouts"
	"github.com/roperia/roperia/internal/services/trade/api"
	"github.com/roperia/roperia/internal/services/trade/domain"
	tradesqlite "github.com/roperia/roperia/internal/services/trade/storage/sqlite"
)

// RuntimeConfig controls trade service startup, dependencies, and sweep
// behavior.
type RuntimeConfig struct {
	Port                 int
	HTTPPort             int
	DBPath               string
	SweepInterval        time.Duration
	AdmissionCap         int
	ProposalTTL          time.Duration
	ReminderWindow       time.Duration
	MaxProposalNoteRunes int
	MaxMessageRunes      int
}

const (
	defaultTradePort     = 8090
	defaultTradeHTTPPort = 8091
	defaultTradeDB       = "data/trade.db"
)

// Run starts the trade runtime: the SQLite store, the gRPC health surface,
// the HTTP and websocket surface, and the expiration sweeper. It blocks until
// the context is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultTradePort
	}
	if cfg.HTTPPort <= 0 {
		cfg.HTTPPort = defaultTradeHTTPPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultTradeDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trade storage dir: %w", err)
		}
	}

	tradeStore, err := tradesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open trade sqlite store: %w", err)
	}
	defer func() {
		if closeErr := tradeStore.Close(); closeErr != nil {
			log.Printf("close trade sqlite store: %v", closeErr)
		}
	}()

	hub := newNegotiationHub()
	domainService := domain.NewService(
		newDomainStoreAdapter(tradeStore, tradeStore, tradeStore, tradeStore, tradeStore, tradeStore),
		logNotifier{},
		hub,
		domain.Config{
			AdmissionCap:         cfg.AdmissionCap,
			ProposalTTL:          cfg.ProposalTTL,
			ReminderWindow:       cfg.ReminderWindow,
			MaxProposalNoteRunes: cfg.MaxProposalNoteRunes,
			MaxMessageRunes:      cfg.MaxMessageRunes,
		},
		nil,
		nil,
	)
	apiService := api.New(domainService)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on trade port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("trade.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-grpcErr
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           NewHandler(apiService, hub),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("trade http shutdown: %v", err)
		}
		if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("trade http server: %v", err)
		}
	}()

	log.Printf("trade server listening at %v (http :%d)", listener.Addr(), cfg.HTTPPort)
	return NewSweeper(domainService, cfg.SweepInterval).Run(ctx)
}
