//go:build !js && !wasip1

// Command pdffs-server serves the PDF operations over HTTP. The DOCX
// worker runs under wazero when worker.module_path is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joeblew999/pdffs/handler"
	"github.com/joeblew999/pdffs/internal/app"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, *configPath)
	if err != nil {
		logrus.WithError(err).Fatal("startup failed")
	}
	defer a.Close()

	cfg := a.Config.Server
	srv := handler.New(a.Registry, a.Runtime,
		handler.WithMaxUpload(cfg.MaxUploadMB<<20),
		handler.WithAllowedOrigins(cfg.AllowedOrigins...),
		handler.WithJobTTL(a.Config.Redis.TTL),
		handler.WithWorkerState(a.WorkerState),
	)

	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	log := logrus.WithField("component", "server")
	serverErrors := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":       cfg.Addr,
			"operations": a.Registry.Names(),
		}).Info("listening")
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		httpSrv.Close()
	}
	log.Info("server stopped")
}
