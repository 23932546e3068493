package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// WASMConfig describes the guest module
type WASMConfig struct {
	// ModulePath is read when Module is empty
	ModulePath string
	Module     []byte

	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the wazero default.
	MemoryLimitPages uint32

	// Stderr receives guest logs. Defaults to os.Stderr.
	Stderr io.Writer
}

// WASMHost compiles a WASI guest once and starts a fresh instance for each
// execution context. The guest speaks the message protocol on stdin/stdout.
type WASMHost struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	stderr   io.Writer
}

// NewWASMHost compiles the guest module
func NewWASMHost(ctx context.Context, cfg WASMConfig) (*WASMHost, error) {
	code := cfg.Module
	if len(code) == 0 {
		if cfg.ModulePath == "" {
			return nil, errors.New("worker module path is not configured")
		}
		var err error
		code, err = os.ReadFile(cfg.ModulePath)
		if err != nil {
			return nil, fmt.Errorf("read worker module: %w", err)
		}
	}

	rcfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		rcfg = rcfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rcfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, code)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("compile worker module: %w", err)
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &WASMHost{rt: rt, compiled: compiled, stderr: stderr}, nil
}

// Factory starts one guest instance per call
func (h *WASMHost) Factory() Factory {
	return h.start
}

func (h *WASMHost) start(ctx context.Context) (Transport, error) {
	hostR, guestW := io.Pipe()
	guestR, hostW := io.Pipe()
	mctx, cancel := context.WithCancel(ctx)

	name := "pdffs-worker-" + uuid.NewString()
	modCfg := wazero.NewModuleConfig().
		WithName(name).
		WithArgs("pdffs-worker", "serve").
		WithStdin(guestR).
		WithStdout(guestW).
		WithStderr(h.stderr)

	go func() {
		mod, err := h.rt.InstantiateModule(mctx, h.compiled, modCfg)
		if mod != nil {
			mod.Close(context.Background())
		}

		var exit *sys.ExitError
		switch {
		case err == nil, errors.As(err, &exit) && exit.ExitCode() == 0:
			err = errGuestExited
		default:
			logrus.WithError(err).WithField("module", name).Warn("worker module stopped")
		}
		guestW.CloseWithError(err)
	}()

	return NewStreamTransport(hostR, hostW, func() error {
		hostW.Close()
		cancel()
		return hostR.Close()
	}), nil
}

// Close releases the runtime and every running guest
func (h *WASMHost) Close(ctx context.Context) error {
	return h.rt.Close(ctx)
}
