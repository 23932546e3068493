// Package app assembles the processors, worker bridge and runtime from
// configuration. The server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/joeblew999/pdffs/internal/config"
	"github.com/joeblew999/pdffs/internal/docx"
	"github.com/joeblew999/pdffs/internal/logging"
	"github.com/joeblew999/pdffs/internal/processor"
	"github.com/joeblew999/pdffs/internal/render"
	"github.com/joeblew999/pdffs/internal/worker"
	"github.com/joeblew999/pdffs/pkg/pipeline"
	"github.com/joeblew999/pdffs/runtime"
)

// App holds everything an entry point needs
type App struct {
	Config   *config.Config
	Registry *pipeline.Registry
	Runtime  *runtime.Runtime
	Bridge   *worker.Bridge

	host    *worker.WASMHost
	closers []func() error
	log     *logrus.Entry
}

// New loads configuration from path (may be empty) and builds an App
func New(ctx context.Context, path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg)
}

// Build wires an App from an already loaded configuration
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, log: logging.Component("app")}

	rt, err := a.buildRuntime(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Runtime = rt

	factory, err := a.buildFactory(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Bridge = worker.NewBridge(factory, worker.WithLogger(logging.Component("worker")))
	a.closers = append(a.closers, a.Bridge.Close)

	a.Registry = processor.Catalog(render.NewFitzEngine(), a.Bridge, Limits(cfg.Render))
	a.log.WithField("operations", a.Registry.Names()).Debug("processors registered")
	return a, nil
}

// Limits converts render settings into processor limits
func Limits(rc config.RenderConfig) processor.Limits {
	l := processor.DefaultLimits()
	if rc.DefaultDPI > 0 {
		l.DefaultDPI = rc.DefaultDPI
	}
	if rc.MinDPI > 0 {
		l.MinDPI = rc.MinDPI
	}
	if rc.MaxDPI > 0 {
		l.MaxDPI = rc.MaxDPI
	}
	if rc.MaxScale > 0 {
		l.MaxScale = rc.MaxScale
	}
	return l
}

func (a *App) buildRuntime(ctx context.Context) (*runtime.Runtime, error) {
	cfg := a.Config
	rt := &runtime.Runtime{}

	switch cfg.Storage.Backend {
	case "s3":
		st, err := runtime.NewS3Storage(ctx, runtime.S3Options{
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Endpoint:     cfg.S3.Endpoint,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Prefix:       cfg.S3.Prefix,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		rt.OutputStorage = st
	default:
		st, err := runtime.NewLocalFileStorage(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		rt.OutputStorage = st
	}

	switch cfg.KV.Backend {
	case "redis":
		kv, err := runtime.NewRedisKV(ctx, runtime.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("redis kv: %w", err)
		}
		a.closers = append(a.closers, kv.Close)
		rt.KVStore = kv
	default:
		rt.KVStore = runtime.NewMemoryKV()
	}

	a.log.WithFields(logrus.Fields{
		"storage": cfg.Storage.Backend,
		"kv":      cfg.KV.Backend,
	}).Info("runtime ready")
	return rt, nil
}

// buildFactory runs the DOCX converter under wazero when a guest module is
// configured and in process otherwise
func (a *App) buildFactory(ctx context.Context) (worker.Factory, error) {
	wc := a.Config.Worker
	if wc.ModulePath == "" {
		a.log.Info("docx worker running in process")
		return worker.InProcess(docx.NewConverter()), nil
	}
	host, err := worker.NewWASMHost(ctx, worker.WASMConfig{
		ModulePath:       wc.ModulePath,
		MemoryLimitPages: wc.MemoryLimitPages,
	})
	if err != nil {
		return nil, err
	}
	a.host = host
	a.log.WithField("module", wc.ModulePath).Info("docx worker running under wazero")
	return host.Factory(), nil
}

// WorkerState reports the bridge state for health checks
func (a *App) WorkerState() string {
	if a.Bridge == nil {
		return ""
	}
	return a.Bridge.State().String()
}

// Close releases the bridge, the guest runtime and any store connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.host != nil {
		if err := a.host.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
		a.host = nil
	}
	return errors.Join(errs...)
}
