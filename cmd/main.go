package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/events"
	"weigh_station/internal/handlers"
	"weigh_station/internal/intake"
	"weigh_station/internal/logger"
	"weigh_station/internal/relay"
	"weigh_station/internal/repository"
	"weigh_station/internal/scale"
	"weigh_station/internal/server"
	"weigh_station/internal/service"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load configs/config.yml; a missing file falls back to defaults
	store, err := config.Load()
	if err != nil {
		log.Fatalw("error reading config", "err", err)
	}
	snap := store.Snapshot()

	// open DB
	db, err := openDB(snap.DBPath, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	bus := events.NewBus()

	parser, err := scale.NewFrameParser(snap.Scale.Protocol)
	if err != nil {
		log.Fatalw("unknown scale protocol", "protocol", snap.Scale.Protocol, "err", err)
	}
	reader := scale.NewReader(store, parser, scale.NewDetector(snap.Stability), bus, log)

	sender := intake.New(snap.Upload.Timeout)
	services := service.NewService(repos, store, reader, sender, bus, log)
	apiHandler := handlers.NewHandler(services, bus, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// pick up records a previous run left PENDING before the worker starts
	if _, err := services.Uploads.RecoverPending(ctx); err != nil {
		log.Errorw("recover pending uploads", "err", err)
	}

	// start the serial pipeline and the delivery worker
	go reader.Run(ctx)
	go services.Uploads.Run(ctx)

	// optional MQTT mirror of the event stream
	if snap.MQTT.Broker != "" {
		rly, err := relay.New(store, bus, log)
		if err != nil {
			log.Errorw("mqtt relay disabled", "err", err)
		} else {
			go rly.Run(ctx)
			defer rly.Close()
		}
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, snap.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// openDB initializes the SQLite database at the configured path.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "weigh_station.db")
		path = "weigh_station.db"
	}
	return repository.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
