package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

const wasmProgramName = "trainer"

type WasmConfig struct {
	Module string
	// Binary, when set, is used instead of reading Module from disk.
	Binary  []byte
	Debug   bool
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

type wasmRunner struct {
	binary  []byte
	debug   bool
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
}

// NewWasmRunner runs a WASI trainer module in process. The module sees the
// same arguments as a host trainer; the directories of the job's files are
// mounted at their host paths.
func NewWasmRunner(cfg WasmConfig, logger *slog.Logger) (Runner, error) {
	binary := cfg.Binary
	if len(binary) == 0 {
		if cfg.Module == "" {
			return nil, ErrEmptyModule
		}
		var err error
		binary, err = os.ReadFile(cfg.Module)
		if err != nil {
			return nil, fmt.Errorf("failed to read trainer module: %w", err)
		}
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	return &wasmRunner{
		binary:  binary,
		debug:   cfg.Debug,
		timeout: cfg.Timeout,
		stdout:  cfg.Stdout,
		stderr:  cfg.Stderr,
		logger:  logger,
	}, nil
}

func (w *wasmRunner) Run(ctx context.Context, job Job) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	defer func() {
		if err := r.Close(ctx); err != nil {
			w.logger.Warn("failed to close wasm runtime", slog.Any("error", err))
		}
	}()

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	fsConfig := wazero.NewFSConfig()
	for _, dir := range jobDirs(job) {
		fsConfig = fsConfig.WithDirMount(dir, dir)
	}

	stdout := io.Discard
	if w.debug {
		stdout = w.stdout
	}

	args := append([]string{wasmProgramName}, job.Args()...)
	modConfig := wazero.NewModuleConfig().
		WithArgs(args...).
		WithFSConfig(fsConfig).
		WithStdout(stdout).
		WithStderr(w.stderr).
		WithSysWalltime().
		WithSysNanotime()

	w.logger.Debug("Starting wasm trainer", slog.Any("args", args))

	_, err := r.InstantiateWithConfig(ctx, w.binary, modConfig)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, w.timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}

		return &ExitError{Code: int(exitErr.ExitCode())}
	}

	return errors.Join(ErrStartFailed, err)
}

func jobDirs(job Job) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, p := range []string{job.ModelPath, job.InputPath, job.TargetPath, job.GradientPath} {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	return dirs
}
